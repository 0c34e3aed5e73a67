package remote

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"studentportal.org/internal/portal"
)

// Endpoints are the base URLs of the three services.
type Endpoints struct {
	Student    string
	Course     string
	Enrollment string
}

// Clients holds one transport client per service.
type Clients struct {
	Student    *Client
	Course     *Client
	Enrollment *Client
}

// DialAll builds the three clients with shared options.
func DialAll(ep Endpoints, opts ...Option) (Clients, error) {
	student, err := Dial("student", ep.Student, opts...)
	if err != nil {
		return Clients{}, err
	}
	course, err := Dial("course", ep.Course, opts...)
	if err != nil {
		return Clients{}, err
	}
	enrollment, err := Dial("enrollment", ep.Enrollment, opts...)
	if err != nil {
		return Clients{}, err
	}
	return Clients{Student: student, Course: course, Enrollment: enrollment}, nil
}

// Services adapts the clients to the portal service interfaces.
func (c Clients) Services() portal.Services {
	return portal.Services{
		Identity:    &Identity{client: c.Student},
		Courses:     &Courses{client: c.Course},
		Enrollments: &Enrollments{client: c.Enrollment},
	}
}

// All lists the clients in a stable order.
func (c Clients) All() []*Client {
	return []*Client{c.Student, c.Course, c.Enrollment}
}

func pageQuery(p portal.PageRequest) url.Values {
	p = p.Normalize()
	return url.Values{
		"skip":  {strconv.Itoa(p.Skip)},
		"limit": {strconv.Itoa(p.Limit)},
	}
}

// Identity talks to the student/admin service.
type Identity struct{ client *Client }

var _ portal.IdentityService = (*Identity)(nil)

type registerResponse struct {
	Message   string `json:"message"`
	StudentID string `json:"student_id"`
}

func (s *Identity) Register(ctx context.Context, r portal.Registration) (string, error) {
	var resp registerResponse
	if err := s.client.do(ctx, http.MethodPost, "/students/register", nil, r, &resp); err != nil {
		return "", err
	}
	return resp.StudentID, nil
}

func (s *Identity) LoginStudent(ctx context.Context, c portal.Credentials) (portal.TokenGrant, error) {
	var grant portal.TokenGrant
	err := s.client.do(ctx, http.MethodPost, "/students/login", nil, c, &grant)
	return grant, err
}

func (s *Identity) LoginAdmin(ctx context.Context, c portal.Credentials) (portal.TokenGrant, error) {
	var grant portal.TokenGrant
	err := s.client.do(ctx, http.MethodPost, "/admin/login", nil, c, &grant)
	return grant, err
}

func (s *Identity) StudentProfile(ctx context.Context) (portal.Profile, error) {
	var p portal.Profile
	if err := s.client.do(ctx, http.MethodGet, "/students/me", nil, nil, &p); err != nil {
		return portal.Profile{}, err
	}
	p.Role = "student"
	return p, nil
}

func (s *Identity) AdminProfile(ctx context.Context) (portal.Profile, error) {
	var p portal.Profile
	if err := s.client.do(ctx, http.MethodGet, "/admin/me", nil, nil, &p); err != nil {
		return portal.Profile{}, err
	}
	p.Role = "admin"
	return p, nil
}

func (s *Identity) ListStudents(ctx context.Context, page portal.PageRequest) (portal.StudentPage, error) {
	var out portal.StudentPage
	err := s.client.do(ctx, http.MethodGet, "/admin/students", pageQuery(page), nil, &out)
	return out, err
}

// Courses talks to the course service.
type Courses struct{ client *Client }

var _ portal.CourseService = (*Courses)(nil)

func (s *Courses) ListCourses(ctx context.Context, page portal.PageRequest) (portal.CoursePage, error) {
	var out portal.CoursePage
	err := s.client.do(ctx, http.MethodGet, "/courses", pageQuery(page), nil, &out)
	return out, err
}

func (s *Courses) GetCourse(ctx context.Context, id string) (portal.Course, error) {
	var out portal.Course
	err := s.client.do(ctx, http.MethodGet, "/courses/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

func (s *Courses) CreateCourse(ctx context.Context, in portal.CourseInput) (portal.Course, error) {
	var out portal.Course
	err := s.client.do(ctx, http.MethodPost, "/courses", nil, in, &out)
	return out, err
}

func (s *Courses) UpdateCourse(ctx context.Context, id string, in portal.CourseInput) (portal.Course, error) {
	var out portal.Course
	err := s.client.do(ctx, http.MethodPut, "/courses/"+url.PathEscape(id), nil, in, &out)
	return out, err
}

func (s *Courses) DeleteCourse(ctx context.Context, id string) error {
	return s.client.do(ctx, http.MethodDelete, "/courses/"+url.PathEscape(id), nil, nil, nil)
}

// Enrollments talks to the enrollment service.
type Enrollments struct{ client *Client }

var _ portal.EnrollmentService = (*Enrollments)(nil)

type enrollRequest struct {
	StudentID string `json:"student_id"`
	CourseID  string `json:"course_id"`
}

type dropRequest struct {
	StudentID  string `json:"student_id"`
	CourseID   string `json:"course_id"`
	DropReason string `json:"drop_reason"`
}

func (s *Enrollments) Enroll(ctx context.Context, studentID, courseID string) (portal.Enrollment, error) {
	var out portal.Enrollment
	err := s.client.do(ctx, http.MethodPost, "/enrollments", nil, enrollRequest{StudentID: studentID, CourseID: courseID}, &out)
	return out, err
}

func (s *Enrollments) Drop(ctx context.Context, studentID, courseID, reason string) (portal.Enrollment, error) {
	var out portal.Enrollment
	err := s.client.do(ctx, http.MethodPost, "/enrollments/drop", nil,
		dropRequest{StudentID: studentID, CourseID: courseID, DropReason: reason}, &out)
	return out, err
}

func (s *Enrollments) StudentEnrollments(ctx context.Context, studentID string) (portal.StudentEnrollments, error) {
	var out portal.StudentEnrollments
	err := s.client.do(ctx, http.MethodGet, "/enrollments/student/"+url.PathEscape(studentID), nil, nil, &out)
	return out, err
}

func (s *Enrollments) Stats(ctx context.Context) (portal.EnrollmentStats, error) {
	var out portal.EnrollmentStats
	err := s.client.do(ctx, http.MethodGet, "/enrollments/stats", nil, nil, &out)
	return out, err
}
