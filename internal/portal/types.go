package portal

import (
	"fmt"
	"unicode/utf8"
)

// Student is an account owned by the identity service.
type Student struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Profile is the server-verified identity behind a credential.
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
}

// TokenGrant is the login response of the identity service.
type TokenGrant struct {
	AccessToken string  `json:"access_token"`
	TokenType   string  `json:"token_type"`
	Role        string  `json:"role"`
	User        Profile `json:"user"`
}

// Credentials are an email/password pair submitted at login.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Registration creates a student account.
type Registration struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// Course is a read-only, possibly stale copy of a catalog entry.
type Course struct {
	ID                 string `json:"id"`
	Title              string `json:"title"`
	Description        string `json:"description,omitempty"`
	Credits            int    `json:"credits"`
	Instructor         string `json:"instructor,omitempty"`
	DurationWeeks      *int   `json:"duration_weeks,omitempty"`
	MaxStudents        *int   `json:"max_students,omitempty"`
	CurrentEnrollments int    `json:"current_enrollments"`
	CreatedAt          string `json:"created_at,omitempty"`
	UpdatedAt          string `json:"updated_at,omitempty"`
}

// Full is true only for capped courses whose enrollment count reached the cap.
func (c Course) Full() bool {
	if c.MaxStudents == nil || *c.MaxStudents <= 0 {
		return false
	}
	return c.CurrentEnrollments >= *c.MaxStudents
}

// Input returns the editable fields of c, the starting point of an edit form.
func (c Course) Input() CourseInput {
	return CourseInput{
		Title:         c.Title,
		Description:   c.Description,
		Credits:       c.Credits,
		Instructor:    c.Instructor,
		DurationWeeks: copyInt(c.DurationWeeks),
		MaxStudents:   copyInt(c.MaxStudents),
	}
}

// CourseInput carries the editable course fields for create and update.
type CourseInput struct {
	Title         string `json:"title" validate:"required,min=3,max=200"`
	Description   string `json:"description,omitempty" validate:"max=1000"`
	Credits       int    `json:"credits" validate:"min=1,max=10"`
	Instructor    string `json:"instructor,omitempty" validate:"max=100"`
	DurationWeeks *int   `json:"duration_weeks,omitempty" validate:"omitempty,min=1,max=52"`
	MaxStudents   *int   `json:"max_students,omitempty" validate:"omitempty,min=1"`
}

// EnrollmentStatus is the lifecycle state of an enrollment.
type EnrollmentStatus string

const (
	StatusEnrolled  EnrollmentStatus = "enrolled"
	StatusCompleted EnrollmentStatus = "completed"
	StatusDropped   EnrollmentStatus = "dropped"
)

func (s EnrollmentStatus) Valid() bool {
	return s == StatusEnrolled || s == StatusCompleted || s == StatusDropped
}

// Holds reports whether the status still claims a seat in the course.
func (s EnrollmentStatus) Holds() bool {
	return s == StatusEnrolled || s == StatusCompleted
}

// MinDropReason is the shortest accepted drop reason, in characters.
const MinDropReason = 10

// Enrollment links a student to a course. The detail fields are filled by the
// per-student listing and are empty elsewhere.
type Enrollment struct {
	ID             string           `json:"id"`
	StudentID      string           `json:"student_id"`
	CourseID       string           `json:"course_id"`
	StudentName    string           `json:"student_name,omitempty"`
	StudentEmail   string           `json:"student_email,omitempty"`
	CourseTitle    string           `json:"course_title,omitempty"`
	CourseCredits  int              `json:"course_credits"`
	Status         EnrollmentStatus `json:"status"`
	Progress       int              `json:"progress"`
	EnrollmentDate string           `json:"enrollment_date"`
	CompletionDate *string          `json:"completion_date,omitempty"`
	DropDate       *string          `json:"drop_date,omitempty"`
	DropReason     *string          `json:"drop_reason,omitempty"`
}

// CheckInvariants verifies the status-dependent fields of e.
func (e Enrollment) CheckInvariants() error {
	if !e.Status.Valid() {
		return fmt.Errorf("enrollment %s: unknown status %q", e.ID, e.Status)
	}
	if e.Progress < 0 || e.Progress > 100 {
		return fmt.Errorf("enrollment %s: progress %d out of range", e.ID, e.Progress)
	}
	dropped := e.Status == StatusDropped
	if dropped != (e.DropReason != nil) {
		return fmt.Errorf("enrollment %s: drop reason must be present iff dropped", e.ID)
	}
	if dropped && utf8.RuneCountInString(*e.DropReason) < MinDropReason {
		return fmt.Errorf("enrollment %s: drop reason shorter than %d characters", e.ID, MinDropReason)
	}
	if (e.Status == StatusCompleted) != (e.CompletionDate != nil) {
		return fmt.Errorf("enrollment %s: completion date must be present iff completed", e.ID)
	}
	return nil
}

// StudentEnrollments is the per-student listing of the enrollment service.
type StudentEnrollments struct {
	TotalEnrolled         int          `json:"total_enrolled"`
	TotalCompleted        int          `json:"total_completed"`
	TotalDropped          int          `json:"total_dropped"`
	TotalCreditsEnrolled  int          `json:"total_credits_enrolled"`
	TotalCreditsCompleted int          `json:"total_credits_completed"`
	Enrollments           []Enrollment `json:"enrollments"`
}

// EnrollmentStats are the global counts by status.
type EnrollmentStats struct {
	Total     int `json:"total"`
	Enrolled  int `json:"enrolled"`
	Completed int `json:"completed"`
	Dropped   int `json:"dropped"`
}

// StudentPage is one page of the admin student listing.
type StudentPage struct {
	Students []Student `json:"students"`
	Total    int       `json:"total"`
	Skip     int       `json:"skip"`
	Limit    int       `json:"limit"`
}

// CoursePage is one page of the course catalog.
type CoursePage struct {
	Courses []Course `json:"courses"`
	Total   int      `json:"total"`
	Skip    int      `json:"skip"`
	Limit   int      `json:"limit"`
}

// PageRequest is a skip/limit window.
type PageRequest struct {
	Skip  int
	Limit int
}

// Normalize clamps negative values and defaults the limit to 100.
func (p PageRequest) Normalize() PageRequest {
	if p.Skip < 0 {
		p.Skip = 0
	}
	if p.Limit <= 0 {
		p.Limit = 100
	}
	return p
}
