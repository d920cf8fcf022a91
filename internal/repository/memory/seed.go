package memory

import (
	"fmt"

	"github.com/noah-isme/elective-enrollment-api/internal/models"
)

// SeedDemo loads a small campus: two cohorts, three electives taught by two
// faculty members each, and a handful of students. Sections start empty.
func (s *Store) SeedDemo(capacity int) {
	if capacity <= 0 {
		capacity = 60
	}

	subjects := []models.Subject{
		{ID: "sub-ml", Name: "Machine Learning", Semester: "7"},
		{ID: "sub-cloud", Name: "Cloud Computing", Semester: "7"},
		{ID: "sub-iot", Name: "Internet of Things", Semester: "5"},
	}
	faculties := []models.Faculty{
		{ID: "fac-rao", FullName: "Dr. Rao", Email: "rao@example.edu", Department: "CSE"},
		{ID: "fac-iyer", FullName: "Dr. Iyer", Email: "iyer@example.edu", Department: "CSE"},
	}
	for _, subject := range subjects {
		s.PutSubject(subject)
	}
	for _, faculty := range faculties {
		s.PutFaculty(faculty)
	}

	cohorts := []struct {
		department string
		year       int
	}{{"CSE", 3}, {"CSE", 4}}
	for _, cohort := range cohorts {
		for _, subject := range subjects {
			for _, faculty := range faculties {
				s.PutSection(models.Section{
					ID:         fmt.Sprintf("%s-%s-%s-%d", subject.ID, faculty.ID, cohort.department, cohort.year),
					SubjectID:  subject.ID,
					FacultyID:  faculty.ID,
					Department: cohort.department,
					Year:       cohort.year,
					Capacity:   capacity,
				})
			}
		}
		for i := 1; i <= 5; i++ {
			id := fmt.Sprintf("stu-%s%d-%02d", cohort.department, cohort.year, i)
			s.PutStudent(models.Student{
				ID:         id,
				FullName:   fmt.Sprintf("Student %s%d-%02d", cohort.department, cohort.year, i),
				RegdNumber: fmt.Sprintf("%s%d%03d", cohort.department, cohort.year, i),
				Department: cohort.department,
				Year:       cohort.year,
				Email:      fmt.Sprintf("%s@example.edu", id),
			})
		}
	}
}
