package models

// Subject is a course that one or more faculty members may offer as sections.
type Subject struct {
	ID       string `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	Semester string `db:"semester" json:"semester"`
}

// Faculty is a teaching staff member owning sections.
type Faculty struct {
	ID         string `db:"id" json:"id"`
	FullName   string `db:"full_name" json:"full_name"`
	Email      string `db:"email" json:"email"`
	Department string `db:"department" json:"department"`
}
