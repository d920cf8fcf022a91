package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/elective-enrollment-api/internal/middleware"
	"github.com/noah-isme/elective-enrollment-api/internal/models"
	"github.com/noah-isme/elective-enrollment-api/internal/service"
	appErrors "github.com/noah-isme/elective-enrollment-api/pkg/errors"
	"github.com/noah-isme/elective-enrollment-api/pkg/export"
)

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func withClaims(c *gin.Context, userID string, role models.UserRole) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: userID, Role: role, Department: "CSE"})
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

type allocatorMock struct {
	lastReq service.AllocationRequest
	result  *models.AllocationResult
	err     error
}

func (m *allocatorMock) Enroll(_ context.Context, req service.AllocationRequest) (*models.AllocationResult, error) {
	m.lastReq = req
	return m.result, m.err
}

func (m *allocatorMock) Unenroll(_ context.Context, req service.AllocationRequest) (*models.AllocationResult, error) {
	m.lastReq = req
	return m.result, m.err
}

type ledgerMock struct {
	studentID string
	rows      []models.EnrollmentDetail
}

func (m *ledgerMock) ListForStudent(_ context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	m.studentID = studentID
	return m.rows, nil
}

func TestEnrollmentHandlerEnrollUsesCallerIdentity(t *testing.T) {
	allocator := &allocatorMock{result: &models.AllocationResult{Action: models.ActionEnrolled, NewCount: 1}}
	h := NewEnrollmentHandler(allocator, &ledgerMock{})

	c, w := newGinContext(http.MethodPost, "/sections/sec-1/enrollment", nil)
	c.Params = gin.Params{{Key: "id", Value: "sec-1"}}
	withClaims(c, "stu-1", models.RoleStudent)

	h.Enroll(c)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, service.AllocationRequest{StudentID: "stu-1", SectionID: "sec-1"}, allocator.lastReq)
}

func TestEnrollmentHandlerStudentCannotActForOthers(t *testing.T) {
	allocator := &allocatorMock{}
	h := NewEnrollmentHandler(allocator, &ledgerMock{})

	c, w := newGinContext(http.MethodPost, "/sections/sec-1/enrollment?studentId=stu-2", nil)
	c.Params = gin.Params{{Key: "id", Value: "sec-1"}}
	withClaims(c, "stu-1", models.RoleStudent)

	h.Enroll(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, allocator.lastReq.StudentID)
}

func TestEnrollmentHandlerAdminNamesStudent(t *testing.T) {
	allocator := &allocatorMock{result: &models.AllocationResult{Action: models.ActionUnenrolled}}
	h := NewEnrollmentHandler(allocator, &ledgerMock{})

	c, w := newGinContext(http.MethodDelete, "/sections/sec-1/enrollment?studentId=stu-2", nil)
	c.Params = gin.Params{{Key: "id", Value: "sec-1"}}
	withClaims(c, "adm-1", models.RoleAdmin)

	h.Unenroll(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stu-2", allocator.lastReq.StudentID)

	c, w = newGinContext(http.MethodDelete, "/sections/sec-1/enrollment", nil)
	c.Params = gin.Params{{Key: "id", Value: "sec-1"}}
	withClaims(c, "adm-1", models.RoleAdmin)
	h.Unenroll(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEnrollmentHandlerMapsOutcomes(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{appErrors.ErrSectionNotFound, http.StatusNotFound, "SECTION_NOT_FOUND"},
		{appErrors.ErrAlreadyEnrolledSection, http.StatusConflict, "ALREADY_ENROLLED_SECTION"},
		{appErrors.ErrAlreadyEnrolledSubject, http.StatusConflict, "ALREADY_ENROLLED_SUBJECT"},
		{appErrors.ErrSectionFull, http.StatusConflict, "SECTION_FULL"},
		{appErrors.ErrContentionTimeout, http.StatusServiceUnavailable, "CONTENTION_TIMEOUT"},
		{appErrors.ErrPersistence, http.StatusInternalServerError, "PERSISTENCE_FAILURE"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			h := NewEnrollmentHandler(&allocatorMock{err: tc.err}, &ledgerMock{})
			c, w := newGinContext(http.MethodPost, "/sections/sec-1/enrollment", nil)
			c.Params = gin.Params{{Key: "id", Value: "sec-1"}}
			withClaims(c, "stu-1", models.RoleStudent)

			h.Enroll(c)
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.code, decodeError(t, w))
		})
	}
}

func TestEnrollmentHandlerMine(t *testing.T) {
	ledger := &ledgerMock{rows: []models.EnrollmentDetail{{SubjectName: "Algorithms"}}}
	h := NewEnrollmentHandler(&allocatorMock{}, ledger)

	c, w := newGinContext(http.MethodGet, "/enrollments/me", nil)
	withClaims(c, "stu-1", models.RoleStudent)

	h.Mine(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stu-1", ledger.studentID)
	assert.Contains(t, w.Body.String(), `"total":1`)
}

type registryMock struct {
	filter    models.SectionFilter
	dept      string
	year      int
	studentID string
	created   service.CreateSectionRequest
	err       error
}

func (m *registryMock) Get(_ context.Context, id string) (*models.Section, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Section{ID: id}, nil
}

func (m *registryMock) List(_ context.Context, filter models.SectionFilter) ([]models.Section, error) {
	m.filter = filter
	return []models.Section{{ID: "sec-1"}}, nil
}

func (m *registryMock) ListAvailable(_ context.Context, department string, year int, studentID string) ([]models.Section, error) {
	m.dept, m.year, m.studentID = department, year, studentID
	return nil, m.err
}

func (m *registryMock) Create(_ context.Context, req service.CreateSectionRequest) (*models.Section, error) {
	m.created = req
	return &models.Section{ID: "sec-new", Capacity: 60}, m.err
}

func TestSectionHandlerListParsesFilter(t *testing.T) {
	registry := &registryMock{}
	h := NewSectionHandler(registry)

	c, w := newGinContext(http.MethodGet, "/sections?department=CSE&year=3&facultyId=fac-1&subject=Algorithms", nil)
	h.List(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.SectionFilter{Department: "CSE", Year: 3, FacultyID: "fac-1", Subject: "Algorithms"}, registry.filter)

	c, w = newGinContext(http.MethodGet, "/sections?year=third", nil)
	h.List(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSectionHandlerAvailableForStudent(t *testing.T) {
	registry := &registryMock{}
	h := NewSectionHandler(registry)

	c, w := newGinContext(http.MethodGet, "/sections/available?year=3", nil)
	withClaims(c, "stu-1", models.RoleStudent)
	h.Available(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "CSE", registry.dept)
	assert.Equal(t, 3, registry.year)
	assert.Equal(t, "stu-1", registry.studentID)
}

func TestSectionHandlerAvailableForStaffDoesNotFilterByHoldings(t *testing.T) {
	registry := &registryMock{}
	h := NewSectionHandler(registry)

	c, _ := newGinContext(http.MethodGet, "/sections/available?year=2&department=ECE", nil)
	withClaims(c, "fac-1", models.RoleFaculty)
	h.Available(c)

	assert.Equal(t, "ECE", registry.dept)
	assert.Empty(t, registry.studentID)
}

func TestSectionHandlerGetNotFound(t *testing.T) {
	h := NewSectionHandler(&registryMock{err: appErrors.ErrSectionNotFound})
	c, w := newGinContext(http.MethodGet, "/sections/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	h.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSectionHandlerCreate(t *testing.T) {
	registry := &registryMock{}
	h := NewSectionHandler(registry)

	payload, _ := json.Marshal(service.CreateSectionRequest{SubjectID: "sub-1", FacultyID: "fac-1", Department: "CSE", Year: 3})
	c, w := newGinContext(http.MethodPost, "/sections", payload)
	h.Create(c)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "sub-1", registry.created.SubjectID)

	c, w = newGinContext(http.MethodPost, "/sections", []byte("{"))
	h.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type reporterMock struct {
	req     service.SectionReportRequest
	format  export.Format
	columns []string
	err     error
}

func (m *reporterMock) SectionReport(_ context.Context, req service.SectionReportRequest) (*service.SectionReport, error) {
	m.req = req
	return &service.SectionReport{SubjectName: req.SubjectName, Total: 0}, m.err
}

func (m *reporterMock) Export(_ context.Context, req service.SectionReportRequest, format export.Format, columns []string) (*service.ReportFile, error) {
	m.req, m.format, m.columns = req, format, columns
	if m.err != nil {
		return nil, m.err
	}
	return &service.ReportFile{Filename: "Algorithms_Enrollments.csv", ContentType: format.ContentType(), Payload: []byte("x")}, nil
}

func TestReportHandlerFacultyReportsOwnSections(t *testing.T) {
	reporter := &reporterMock{}
	h := NewReportHandler(reporter)

	c, w := newGinContext(http.MethodGet, "/reports/sections?subject=Algorithms", nil)
	withClaims(c, "fac-1", models.RoleFaculty)
	h.Sections(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.SectionReportRequest{FacultyID: "fac-1", SubjectName: "Algorithms"}, reporter.req)

	c, w = newGinContext(http.MethodGet, "/reports/sections?subject=Algorithms&facultyId=fac-2", nil)
	withClaims(c, "fac-1", models.RoleFaculty)
	h.Sections(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestReportHandlerExport(t *testing.T) {
	reporter := &reporterMock{}
	h := NewReportHandler(reporter)

	c, w := newGinContext(http.MethodGet, "/reports/sections?subject=Algorithms&facultyId=fac-2&format=CSV&columns=student_name,+email", nil)
	withClaims(c, "adm-1", models.RoleAdmin)
	h.Sections(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, export.FormatCSV, reporter.format)
	assert.Equal(t, []string{"student_name", "email"}, reporter.columns)
	assert.Equal(t, "fac-2", reporter.req.FacultyID)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "Algorithms_Enrollments.csv")
}

func TestReportHandlerRejectsUnknownFormat(t *testing.T) {
	h := NewReportHandler(&reporterMock{})
	c, w := newGinContext(http.MethodGet, "/reports/sections?subject=Algorithms&format=xlsx", nil)
	withClaims(c, "fac-1", models.RoleFaculty)
	h.Sections(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportHandlerStudentsForbidden(t *testing.T) {
	h := NewReportHandler(&reporterMock{})
	c, w := newGinContext(http.MethodGet, "/reports/sections?subject=Algorithms", nil)
	withClaims(c, "stu-1", models.RoleStudent)
	h.Sections(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

type issuerMock struct{}

func (issuerMock) IssueToken(userID string, role models.UserRole, _, _ string) (string, time.Time, error) {
	return "token-" + userID + "-" + string(role), time.Unix(0, 0), nil
}

func TestAuthHandlerDevToken(t *testing.T) {
	h := NewAuthHandler(issuerMock{})

	c, w := newGinContext(http.MethodPost, "/auth/dev-token", []byte(`{"user_id":"stu-1","role":"STUDENT"}`))
	h.DevToken(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "token-stu-1-STUDENT")

	c, w = newGinContext(http.MethodPost, "/auth/dev-token", []byte(`{"user_id":"stu-1","role":"ROOT"}`))
	h.DevToken(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandlerMe(t *testing.T) {
	h := NewAuthHandler(issuerMock{})
	c, w := newGinContext(http.MethodGet, "/auth/me", nil)
	h.Me(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, w = newGinContext(http.MethodGet, "/auth/me", nil)
	withClaims(c, "fac-1", models.RoleFaculty)
	h.Me(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"role":"FACULTY"`)
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) PingContext(ctx context.Context) error { return f(ctx) }

func TestMetricsHandlerReady(t *testing.T) {
	ok := pingerFunc(func(context.Context) error { return nil })
	down := pingerFunc(func(context.Context) error { return errors.New("connection refused") })

	h := NewMetricsHandler(service.NewMetricsService(), map[string]Pinger{"postgres": ok})
	c, w := newGinContext(http.MethodGet, "/ready", nil)
	h.Ready(c)
	assert.Equal(t, http.StatusOK, w.Code)

	h = NewMetricsHandler(service.NewMetricsService(), map[string]Pinger{"postgres": ok, "redis": down})
	c, w = newGinContext(http.MethodGet, "/ready", nil)
	h.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestMetricsHandlerSummary(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.ObserveAllocation(models.ActionEnrolled, "success", "")
	h := NewMetricsHandler(metrics, nil)

	c, w := newGinContext(http.MethodGet, "/metrics/summary", nil)
	h.Summary(c)
	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data models.SystemMetrics `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, uint64(1), body.Data.Enrollments)
}

func TestAuthorizeTopic(t *testing.T) {
	student := &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent}
	faculty := &models.JWTClaims{UserID: "fac-1", Role: models.RoleFaculty}
	admin := &models.JWTClaims{UserID: "adm-1", Role: models.RoleAdmin}

	assert.NoError(t, authorizeTopic(student, "Algorithms_3_CSE"))
	assert.Error(t, authorizeTopic(student, "audience.FACULTY"))
	assert.NoError(t, authorizeTopic(faculty, "audience.FACULTY"))
	assert.Error(t, authorizeTopic(faculty, "audience.ADMIN"))
	assert.NoError(t, authorizeTopic(admin, "audience.FACULTY"))
	assert.NoError(t, authorizeTopic(admin, "audience.ADMIN"))
}
