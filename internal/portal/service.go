package portal

import "context"

// IdentityService is the student/admin account service.
type IdentityService interface {
	Register(ctx context.Context, r Registration) (string, error)
	LoginStudent(ctx context.Context, c Credentials) (TokenGrant, error)
	LoginAdmin(ctx context.Context, c Credentials) (TokenGrant, error)
	StudentProfile(ctx context.Context) (Profile, error)
	AdminProfile(ctx context.Context) (Profile, error)
	ListStudents(ctx context.Context, page PageRequest) (StudentPage, error)
}

// CourseService is the course catalog service.
type CourseService interface {
	ListCourses(ctx context.Context, page PageRequest) (CoursePage, error)
	GetCourse(ctx context.Context, id string) (Course, error)
	CreateCourse(ctx context.Context, in CourseInput) (Course, error)
	UpdateCourse(ctx context.Context, id string, in CourseInput) (Course, error)
	DeleteCourse(ctx context.Context, id string) error
}

// EnrollmentService is the enrollment service.
type EnrollmentService interface {
	Enroll(ctx context.Context, studentID, courseID string) (Enrollment, error)
	Drop(ctx context.Context, studentID, courseID, reason string) (Enrollment, error)
	StudentEnrollments(ctx context.Context, studentID string) (StudentEnrollments, error)
	Stats(ctx context.Context) (EnrollmentStats, error)
}

// Services bundles the three upstream services.
type Services struct {
	Identity    IdentityService
	Courses     CourseService
	Enrollments EnrollmentService
}
