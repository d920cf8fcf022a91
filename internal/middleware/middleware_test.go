package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/elective-enrollment-api/internal/models"
	"github.com/noah-isme/elective-enrollment-api/internal/service"
)

func newAuth() *service.AuthService {
	return service.NewAuthService(service.AuthConfig{Secret: "test-secret", Issuer: "test", Expiry: time.Hour})
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		claims := CurrentClaims(c)
		c.String(http.StatusOK, claims.UserID)
	})
	r.GET("/protected", handlers...)
	return r
}

func TestJWTRejectsMissingHeader(t *testing.T) {
	r := newRouter(JWT(newAuth()))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTRejectsMalformedHeader(t *testing.T) {
	r := newRouter(JWT(newAuth()))
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Token abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid authorization header")
}

func TestJWTAttachesClaims(t *testing.T) {
	auth := newAuth()
	token, _, err := auth.IssueToken("stu-1", models.RoleStudent, "Asha", "CSE")
	require.NoError(t, err)

	r := newRouter(JWT(auth))
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stu-1", w.Body.String())
}

func TestJWTIgnoresQueryToken(t *testing.T) {
	auth := newAuth()
	token, _, err := auth.IssueToken("stu-1", models.RoleStudent, "Asha", "CSE")
	require.NoError(t, err)

	r := newRouter(JWT(auth))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected?access_token="+token, nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStreamJWTAcceptsQueryToken(t *testing.T) {
	auth := newAuth()
	token, _, err := auth.IssueToken("fac-1", models.RoleFaculty, "Dr. Rao", "CSE")
	require.NoError(t, err)

	r := newRouter(StreamJWT(auth))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected?access_token="+token, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "fac-1", w.Body.String())
}

func TestRequireRoles(t *testing.T) {
	auth := newAuth()
	student, _, err := auth.IssueToken("stu-1", models.RoleStudent, "Asha", "CSE")
	require.NoError(t, err)
	admin, _, err := auth.IssueToken("adm-1", models.RoleAdmin, "Root", "")
	require.NoError(t, err)

	r := newRouter(JWT(auth), RequireRoles(models.RoleAdmin))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+student)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRolesWithoutClaims(t *testing.T) {
	r := newRouter(RequireRoles(models.RoleAdmin))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

type recordingObserver struct {
	method string
	path   string
	status int
}

func (r *recordingObserver) ObserveHTTPRequest(method, path string, status int, _ time.Duration) {
	r.method, r.path, r.status = method, path, status
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observer := &recordingObserver{}
	r := gin.New()
	r.Use(Metrics(observer))
	r.GET("/sections/:id", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sections/abc", nil))
	assert.Equal(t, "GET", observer.method)
	assert.Equal(t, "/sections/:id", observer.path)
	assert.Equal(t, http.StatusTeapot, observer.status)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, "unmatched", observer.path)
}
