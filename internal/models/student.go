package models

// Student represents a learner who can hold section enrollments.
type Student struct {
	ID         string `db:"id" json:"id"`
	FullName   string `db:"full_name" json:"full_name"`
	RegdNumber string `db:"regd_number" json:"regd_number"`
	Department string `db:"department" json:"department"`
	Year       int    `db:"year" json:"year"`
	Email      string `db:"email" json:"email"`
}
