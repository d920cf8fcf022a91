// Package memory provides an in-process record store with the same contract as
// the PostgreSQL repositories. It backs local development and the concurrency
// tests of the allocator.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/elective-enrollment-api/internal/models"
	"github.com/noah-isme/elective-enrollment-api/internal/repository"
)

type enrollmentKey struct {
	studentID string
	sectionID string
}

type enrollmentRow struct {
	record models.Enrollment
	seq    uint64
}

// Store keeps every table in maps behind one RWMutex. Allocation units stage
// their writes and apply them in a single critical section on commit, after
// re-checking the same constraints the SQL schema enforces. Enrollments are
// indexed by student, then section.
type Store struct {
	mu          sync.RWMutex
	subjects    map[string]models.Subject
	faculties   map[string]models.Faculty
	students    map[string]models.Student
	sections    map[string]models.Section
	enrollments map[string]map[string]enrollmentRow
	seq         uint64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		subjects:    make(map[string]models.Subject),
		faculties:   make(map[string]models.Faculty),
		students:    make(map[string]models.Student),
		sections:    make(map[string]models.Section),
		enrollments: make(map[string]map[string]enrollmentRow),
	}
}

// PutSubject inserts or replaces a subject.
func (s *Store) PutSubject(subject models.Subject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subjects[subject.ID] = subject
}

// PutFaculty inserts or replaces a faculty member.
func (s *Store) PutFaculty(faculty models.Faculty) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faculties[faculty.ID] = faculty
}

// PutStudent inserts or replaces a student.
func (s *Store) PutStudent(student models.Student) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.students[student.ID] = student
}

// PutSection inserts or replaces a section as-is, including its count. It is
// meant for seeding; production writes go through Sections().Create and
// allocation units.
func (s *Store) PutSection(section models.Section) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sections[section.ID] = section
}

// PutEnrollment seeds a ledger entry without touching section counts.
func (s *Store) PutEnrollment(enrollment models.Enrollment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.putRow(enrollmentKey{enrollment.StudentID, enrollment.SectionID}, enrollmentRow{record: enrollment, seq: s.seq})
}

func (s *Store) row(key enrollmentKey) (enrollmentRow, bool) {
	row, ok := s.enrollments[key.studentID][key.sectionID]
	return row, ok
}

func (s *Store) putRow(key enrollmentKey, row enrollmentRow) {
	held, ok := s.enrollments[key.studentID]
	if !ok {
		held = make(map[string]enrollmentRow)
		s.enrollments[key.studentID] = held
	}
	held[key.sectionID] = row
}

func (s *Store) deleteRow(key enrollmentKey) {
	held := s.enrollments[key.studentID]
	delete(held, key.sectionID)
	if len(held) == 0 {
		delete(s.enrollments, key.studentID)
	}
}

// holdsSubject reports whether the student has a committed enrollment in a
// section of the subject, ignoring the keys in skip.
func (s *Store) holdsSubject(studentID, subjectID string, skip map[enrollmentKey]struct{}) bool {
	for sectionID := range s.enrollments[studentID] {
		if _, skipped := skip[enrollmentKey{studentID, sectionID}]; skipped {
			continue
		}
		if s.sections[sectionID].SubjectID == subjectID {
			return true
		}
	}
	return false
}

// Sections returns the section registry view.
func (s *Store) Sections() *SectionTable { return &SectionTable{store: s} }

// Students returns the student view.
func (s *Store) Students() *StudentTable { return &StudentTable{store: s} }

// Enrollments returns the ledger view.
func (s *Store) Enrollments() *EnrollmentTable { return &EnrollmentTable{store: s} }

// describe fills subject and faculty names. Callers hold s.mu.
func (s *Store) describe(section models.Section) models.Section {
	if subject, ok := s.subjects[section.SubjectID]; ok {
		section.SubjectName = subject.Name
	}
	if faculty, ok := s.faculties[section.FacultyID]; ok {
		section.FacultyName = faculty.FullName
		section.FacultyEmail = faculty.Email
	}
	return section
}

// WithinTx runs fn against a staged view of the store and commits the staged
// writes atomically when fn returns nil.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.AllocationTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &allocationTx{
		store:   s,
		inserts: make(map[enrollmentKey]models.Enrollment),
		removes: make(map[enrollmentKey]struct{}),
		deltas:  make(map[string]int),
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return tx.commit()
}

type allocationTx struct {
	store   *Store
	inserts map[enrollmentKey]models.Enrollment
	removes map[enrollmentKey]struct{}
	deltas  map[string]int
}

func (t *allocationTx) FindSection(_ context.Context, id string) (*models.Section, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	section, ok := t.store.sections[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	section = t.store.describe(section)
	section.SelectedCount += t.deltas[id]
	return &section, nil
}

func (t *allocationTx) HasSectionEnrollment(_ context.Context, studentID, sectionID string) (bool, error) {
	key := enrollmentKey{studentID, sectionID}
	if _, ok := t.inserts[key]; ok {
		return true, nil
	}
	if _, ok := t.removes[key]; ok {
		return false, nil
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	_, ok := t.store.row(key)
	return ok, nil
}

func (t *allocationTx) HasSubjectEnrollment(_ context.Context, studentID, subjectID string) (bool, error) {
	for key, staged := range t.inserts {
		if key.studentID == studentID && staged.SubjectID == subjectID {
			return true, nil
		}
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return t.store.holdsSubject(studentID, subjectID, t.removes), nil
}

func (t *allocationTx) InsertEnrollment(ctx context.Context, enrollment *models.Enrollment) error {
	held, _ := t.HasSectionEnrollment(ctx, enrollment.StudentID, enrollment.SectionID)
	if held {
		return fmt.Errorf("insert enrollment: %w", repository.ErrDuplicateSection)
	}
	held, _ = t.HasSubjectEnrollment(ctx, enrollment.StudentID, enrollment.SubjectID)
	if held {
		return fmt.Errorf("insert enrollment: %w", repository.ErrDuplicateSubject)
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	key := enrollmentKey{enrollment.StudentID, enrollment.SectionID}
	delete(t.removes, key)
	t.inserts[key] = *enrollment
	return nil
}

func (t *allocationTx) RemoveEnrollment(_ context.Context, studentID, sectionID string) (*models.Enrollment, error) {
	key := enrollmentKey{studentID, sectionID}
	if staged, ok := t.inserts[key]; ok {
		delete(t.inserts, key)
		return &staged, nil
	}
	if _, ok := t.removes[key]; ok {
		return nil, sql.ErrNoRows
	}
	t.store.mu.RLock()
	row, ok := t.store.row(key)
	t.store.mu.RUnlock()
	if !ok {
		return nil, sql.ErrNoRows
	}
	t.removes[key] = struct{}{}
	record := row.record
	return &record, nil
}

func (t *allocationTx) AdjustCount(ctx context.Context, sectionID string, delta int) (*models.Section, error) {
	if delta != 1 && delta != -1 {
		return nil, fmt.Errorf("adjust section %s by %d: %w", sectionID, delta, repository.ErrCapacityViolation)
	}
	section, err := t.FindSection(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	next := section.SelectedCount + delta
	if next < 0 || next > section.Capacity {
		return nil, fmt.Errorf("adjust section %s by %d: %w", sectionID, delta, repository.ErrCapacityViolation)
	}
	t.deltas[sectionID] += delta
	section.SelectedCount = next
	return section, nil
}

// commit validates every staged write against the live tables, then applies
// all of them or none.
func (t *allocationTx) commit() error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range t.removes {
		if _, ok := s.row(key); !ok {
			return fmt.Errorf("commit allocation: enrollment %s/%s vanished: %w", key.studentID, key.sectionID, repository.ErrTransient)
		}
	}
	for key, staged := range t.inserts {
		if _, ok := s.row(key); ok {
			return fmt.Errorf("commit allocation: %w", repository.ErrDuplicateSection)
		}
		if s.holdsSubject(key.studentID, staged.SubjectID, t.removes) {
			return fmt.Errorf("commit allocation: %w", repository.ErrDuplicateSubject)
		}
	}
	for id, delta := range t.deltas {
		section, ok := s.sections[id]
		if !ok {
			return fmt.Errorf("commit allocation: section %s: %w", id, sql.ErrNoRows)
		}
		next := section.SelectedCount + delta
		if next < 0 || next > section.Capacity {
			return fmt.Errorf("commit allocation: section %s: %w", id, repository.ErrCapacityViolation)
		}
	}

	for key := range t.removes {
		s.deleteRow(key)
	}
	for key, staged := range t.inserts {
		s.seq++
		s.putRow(key, enrollmentRow{record: staged, seq: s.seq})
	}
	for id, delta := range t.deltas {
		section := s.sections[id]
		section.SelectedCount += delta
		s.sections[id] = section
	}
	return nil
}

// SectionTable is the registry view of the store.
type SectionTable struct {
	store *Store
}

// FindByID returns a section or sql.ErrNoRows.
func (t *SectionTable) FindByID(_ context.Context, id string) (*models.Section, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	section, ok := t.store.sections[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	section = t.store.describe(section)
	return &section, nil
}

// ListAvailable returns sections of a cohort with free seats.
func (t *SectionTable) ListAvailable(ctx context.Context, department string, year int) ([]models.Section, error) {
	all, err := t.List(ctx, models.SectionFilter{Department: department, Year: year})
	if err != nil {
		return nil, err
	}
	available := make([]models.Section, 0, len(all))
	for _, section := range all {
		if section.SelectedCount < section.Capacity {
			available = append(available, section)
		}
	}
	return available, nil
}

// List returns sections matching the filter ordered by subject, faculty, id.
func (t *SectionTable) List(_ context.Context, filter models.SectionFilter) ([]models.Section, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	var sections []models.Section
	for _, section := range t.store.sections {
		section = t.store.describe(section)
		if filter.Department != "" && section.Department != filter.Department {
			continue
		}
		if filter.Year > 0 && section.Year != filter.Year {
			continue
		}
		if filter.FacultyID != "" && section.FacultyID != filter.FacultyID {
			continue
		}
		if filter.Subject != "" && section.SubjectName != filter.Subject {
			continue
		}
		sections = append(sections, section)
	}
	sort.Slice(sections, func(i, j int) bool {
		a, b := sections[i], sections[j]
		if a.SubjectName != b.SubjectName {
			return a.SubjectName < b.SubjectName
		}
		if a.FacultyName != b.FacultyName {
			return a.FacultyName < b.FacultyName
		}
		return a.ID < b.ID
	})
	return sections, nil
}

// Create registers a new section. Unknown subject or faculty ids fail the
// same way a foreign key would.
func (t *SectionTable) Create(_ context.Context, section *models.Section) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if _, ok := t.store.subjects[section.SubjectID]; !ok {
		return fmt.Errorf("create section: subject %s: %w", section.SubjectID, sql.ErrNoRows)
	}
	if _, ok := t.store.faculties[section.FacultyID]; !ok {
		return fmt.Errorf("create section: faculty %s: %w", section.FacultyID, sql.ErrNoRows)
	}
	for _, existing := range t.store.sections {
		if existing.SubjectID == section.SubjectID && existing.FacultyID == section.FacultyID &&
			existing.Department == section.Department && existing.Year == section.Year {
			return fmt.Errorf("create section: %w", repository.ErrDuplicateKey)
		}
	}
	if section.ID == "" {
		section.ID = uuid.NewString()
	}
	if section.CreatedAt.IsZero() {
		section.CreatedAt = time.Now().UTC()
	}
	t.store.sections[section.ID] = *section
	return nil
}

// StudentTable is the student view of the store.
type StudentTable struct {
	store *Store
}

// FindByID returns a student or sql.ErrNoRows.
func (t *StudentTable) FindByID(_ context.Context, id string) (*models.Student, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	student, ok := t.store.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &student, nil
}

// EnrollmentTable is the ledger view of the store.
type EnrollmentTable struct {
	store *Store
}

// ListForStudent returns a student's enrollments in commit order.
func (t *EnrollmentTable) ListForStudent(_ context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	rows := make([]enrollmentRow, 0, len(t.store.enrollments[studentID]))
	for _, row := range t.store.enrollments[studentID] {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	details := make([]models.EnrollmentDetail, 0, len(rows))
	for _, row := range rows {
		section := t.store.describe(t.store.sections[row.record.SectionID])
		details = append(details, models.EnrollmentDetail{
			Enrollment:  row.record,
			SubjectName: section.SubjectName,
			FacultyName: section.FacultyName,
			Department:  section.Department,
			Year:        section.Year,
		})
	}
	return details, nil
}

// ListReport returns students enrolled in a faculty's sections of a subject,
// ordered by enrollment time, student name, then student id.
func (t *EnrollmentTable) ListReport(_ context.Context, filter models.EnrollmentReportFilter) ([]models.EnrollmentReportRow, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	var report []models.EnrollmentReportRow
	for studentID, held := range t.store.enrollments {
		for sectionID, row := range held {
			section := t.store.describe(t.store.sections[sectionID])
			if section.FacultyID != filter.FacultyID || section.SubjectName != filter.SubjectName {
				continue
			}
			student := t.store.students[studentID]
			report = append(report, models.EnrollmentReportRow{
				StudentID:    student.ID,
				StudentName:  student.FullName,
				RegdNumber:   student.RegdNumber,
				StudentEmail: student.Email,
				StudentYear:  student.Year,
				Department:   student.Department,
				SectionID:    section.ID,
				SubjectName:  section.SubjectName,
				FacultyName:  section.FacultyName,
				FacultyEmail: section.FacultyEmail,
				EnrolledAt:   row.record.EnrolledAt,
			})
		}
	}
	sort.Slice(report, func(i, j int) bool {
		a, b := report[i], report[j]
		if !a.EnrolledAt.Equal(b.EnrolledAt) {
			return a.EnrolledAt.Before(b.EnrolledAt)
		}
		if a.StudentName != b.StudentName {
			return a.StudentName < b.StudentName
		}
		return a.StudentID < b.StudentID
	})
	return report, nil
}

// CountForSection returns the number of ledger entries for a section.
func (t *EnrollmentTable) CountForSection(_ context.Context, sectionID string) (int, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	total := 0
	for _, held := range t.store.enrollments {
		if _, ok := held[sectionID]; ok {
			total++
		}
	}
	return total, nil
}
