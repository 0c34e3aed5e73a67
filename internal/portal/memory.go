package portal

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"studentportal.org/internal/auth"
	"studentportal.org/internal/ids"
)

// Memory is an in-process stand-in for the three services. It applies the same
// server-side rules as the real services and answers with *UpstreamError on refusal,
// which makes it usable both for tests and for running the portal without backends.
type Memory struct {
	mu          sync.Mutex
	students    map[string]*memAccount
	admins      map[string]*memAccount
	courses     map[string]*Course
	courseOrder []string
	enrollments []*Enrollment
	tokens      map[string]principal
	now         func() time.Time
}

type memAccount struct {
	Student
	hash string
}

type principal struct {
	id   string
	role auth.Role
}

var (
	_ IdentityService   = (*Memory)(nil)
	_ CourseService     = (*Memory)(nil)
	_ EnrollmentService = (*Memory)(nil)
)

// NewInMemory returns an empty backend.
func NewInMemory() *Memory {
	return &Memory{
		students: make(map[string]*memAccount),
		admins:   make(map[string]*memAccount),
		courses:  make(map[string]*Course),
		tokens:   make(map[string]principal),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Services exposes m as all three upstream services.
func (m *Memory) Services() Services {
	return Services{Identity: m, Courses: m, Enrollments: m}
}

func reject(service string, code int, detail string) error {
	return &UpstreamError{Service: service, StatusCode: code, Detail: detail}
}

func (m *Memory) stamp() string { return m.now().Format(time.RFC3339) }

// SeedAdmin creates an administrator account.
func (m *Memory) SeedAdmin(name, email, password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := ids.New()
	m.admins[id] = &memAccount{Student: Student{ID: id, Name: name, Email: strings.ToLower(email), CreatedAt: m.stamp()}, hash: string(hash)}
	return id, nil
}

func (m *Memory) caller(ctx context.Context, service string) (principal, error) {
	token, ok := auth.TokenFromContext(ctx)
	if !ok {
		return principal{}, reject(service, http.StatusUnauthorized, "Not authenticated")
	}
	p, ok := m.tokens[token]
	if !ok {
		return principal{}, reject(service, http.StatusUnauthorized, "Invalid or expired token")
	}
	return p, nil
}

func (m *Memory) requireAdmin(ctx context.Context, service string) error {
	p, err := m.caller(ctx, service)
	if err != nil {
		return err
	}
	if p.role != auth.RoleAdmin {
		return reject(service, http.StatusForbidden, "Admin access required")
	}
	return nil
}

func unprocessable(service string, err error) error {
	return reject(service, http.StatusUnprocessableEntity, err.Error())
}

// Identity ------------------------------------------------------------------

func (m *Memory) Register(_ context.Context, r Registration) (string, error) {
	if err := Validate(r); err != nil {
		return "", unprocessable("student", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(strings.TrimSpace(r.Password)), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	email := strings.ToLower(r.Email)
	for _, s := range m.students {
		if s.Email == email {
			return "", reject("student", http.StatusBadRequest, "Email already registered")
		}
	}
	id := ids.New()
	m.students[id] = &memAccount{Student: Student{ID: id, Name: r.Name, Email: email, CreatedAt: m.stamp()}, hash: string(hash)}
	return id, nil
}

func (m *Memory) login(accounts map[string]*memAccount, role auth.Role, c Credentials) (TokenGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(c.Email))
	for _, acc := range accounts {
		if acc.Email != email {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(acc.hash), []byte(c.Password)) != nil {
			break
		}
		token := ids.New()
		m.tokens[token] = principal{id: acc.ID, role: role}
		return TokenGrant{
			AccessToken: token,
			TokenType:   "bearer",
			Role:        string(role),
			User:        Profile{ID: acc.ID, Name: acc.Name, Email: acc.Email, Role: string(role)},
		}, nil
	}
	return TokenGrant{}, reject("student", http.StatusUnauthorized, "Invalid email or password")
}

func (m *Memory) LoginStudent(_ context.Context, c Credentials) (TokenGrant, error) {
	return m.login(m.students, auth.RoleStudent, c)
}

func (m *Memory) LoginAdmin(_ context.Context, c Credentials) (TokenGrant, error) {
	return m.login(m.admins, auth.RoleAdmin, c)
}

func (m *Memory) profile(ctx context.Context, role auth.Role) (Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.caller(ctx, "student")
	if err != nil {
		return Profile{}, err
	}
	if p.role != role {
		detail := "Student access required"
		if role == auth.RoleAdmin {
			detail = "Admin access required"
		}
		return Profile{}, reject("student", http.StatusForbidden, detail)
	}
	accounts := m.students
	if role == auth.RoleAdmin {
		accounts = m.admins
	}
	acc, ok := accounts[p.id]
	if !ok {
		return Profile{}, reject("student", http.StatusNotFound, "Account not found")
	}
	return Profile{ID: acc.ID, Name: acc.Name, Email: acc.Email, Role: string(role)}, nil
}

func (m *Memory) StudentProfile(ctx context.Context) (Profile, error) {
	return m.profile(ctx, auth.RoleStudent)
}

func (m *Memory) AdminProfile(ctx context.Context) (Profile, error) {
	return m.profile(ctx, auth.RoleAdmin)
}

func (m *Memory) ListStudents(ctx context.Context, page PageRequest) (StudentPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireAdmin(ctx, "student"); err != nil {
		return StudentPage{}, err
	}
	page = page.Normalize()
	all := make([]Student, 0, len(m.students))
	for _, s := range m.students {
		all = append(all, s.Student)
	}
	// ULID ids sort by creation time.
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return StudentPage{Students: window(all, page), Total: len(all), Skip: page.Skip, Limit: page.Limit}, nil
}

// Courses -------------------------------------------------------------------

func (m *Memory) seats(courseID string) int {
	n := 0
	for _, e := range m.enrollments {
		if e.CourseID == courseID && e.Status.Holds() {
			n++
		}
	}
	return n
}

func (m *Memory) courseView(c *Course) Course {
	out := *c
	out.CurrentEnrollments = m.seats(c.ID)
	return out
}

func (m *Memory) ListCourses(_ context.Context, page PageRequest) (CoursePage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	page = page.Normalize()
	all := make([]Course, 0, len(m.courseOrder))
	for _, id := range m.courseOrder {
		all = append(all, m.courseView(m.courses[id]))
	}
	return CoursePage{Courses: window(all, page), Total: len(all), Skip: page.Skip, Limit: page.Limit}, nil
}

func (m *Memory) GetCourse(_ context.Context, id string) (Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.courses[id]
	if !ok {
		return Course{}, reject("course", http.StatusNotFound, "Course not found")
	}
	return m.courseView(c), nil
}

func (m *Memory) CreateCourse(ctx context.Context, in CourseInput) (Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireAdmin(ctx, "course"); err != nil {
		return Course{}, err
	}
	if err := Validate(in); err != nil {
		return Course{}, unprocessable("course", err)
	}
	now := m.stamp()
	c := &Course{ID: ids.New(), CreatedAt: now, UpdatedAt: now}
	applyCourseInput(c, in)
	m.courses[c.ID] = c
	m.courseOrder = append(m.courseOrder, c.ID)
	return m.courseView(c), nil
}

func (m *Memory) UpdateCourse(ctx context.Context, id string, in CourseInput) (Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireAdmin(ctx, "course"); err != nil {
		return Course{}, err
	}
	if err := Validate(in); err != nil {
		return Course{}, unprocessable("course", err)
	}
	c, ok := m.courses[id]
	if !ok {
		return Course{}, reject("course", http.StatusNotFound, "Course not found")
	}
	applyCourseInput(c, in)
	c.UpdatedAt = m.stamp()
	return m.courseView(c), nil
}

func (m *Memory) DeleteCourse(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireAdmin(ctx, "course"); err != nil {
		return err
	}
	if n := m.seats(id); n > 0 {
		return reject("course", http.StatusBadRequest,
			fmt.Sprintf("Cannot delete course with %d active enrollments. Please remove all enrollments first.", n))
	}
	if _, ok := m.courses[id]; !ok {
		return reject("course", http.StatusNotFound, "Course not found")
	}
	delete(m.courses, id)
	for i, cid := range m.courseOrder {
		if cid == id {
			m.courseOrder = append(m.courseOrder[:i], m.courseOrder[i+1:]...)
			break
		}
	}
	return nil
}

func applyCourseInput(c *Course, in CourseInput) {
	c.Title = in.Title
	c.Description = in.Description
	c.Credits = in.Credits
	c.Instructor = in.Instructor
	c.DurationWeeks = copyInt(in.DurationWeeks)
	c.MaxStudents = copyInt(in.MaxStudents)
}

// Enrollments ---------------------------------------------------------------

func (m *Memory) selfOrAdmin(ctx context.Context, studentID, denial string) error {
	p, err := m.caller(ctx, "enrollment")
	if err != nil {
		return err
	}
	if p.role != auth.RoleAdmin && p.id != studentID {
		return reject("enrollment", http.StatusForbidden, denial)
	}
	return nil
}

func (m *Memory) Enroll(ctx context.Context, studentID, courseID string) (Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.selfOrAdmin(ctx, studentID, "Can only enroll yourself"); err != nil {
		return Enrollment{}, err
	}
	if _, ok := m.students[studentID]; !ok {
		return Enrollment{}, reject("enrollment", http.StatusNotFound, "Student not found")
	}
	course, ok := m.courses[courseID]
	if !ok {
		return Enrollment{}, reject("enrollment", http.StatusNotFound, "Course not found")
	}
	active := 0
	for _, e := range m.enrollments {
		if e.CourseID != courseID {
			continue
		}
		if e.StudentID == studentID {
			switch e.Status {
			case StatusEnrolled:
				return Enrollment{}, reject("enrollment", http.StatusBadRequest, "Already enrolled in this course")
			case StatusCompleted:
				return Enrollment{}, reject("enrollment", http.StatusBadRequest, "Already completed this course")
			}
		}
		if e.Status == StatusEnrolled {
			active++
		}
	}
	if course.MaxStudents != nil && active >= *course.MaxStudents {
		return Enrollment{}, reject("enrollment", http.StatusBadRequest, "Course is full")
	}
	e := &Enrollment{
		ID:             ids.New(),
		StudentID:      studentID,
		CourseID:       courseID,
		Status:         StatusEnrolled,
		EnrollmentDate: m.stamp(),
	}
	m.enrollments = append(m.enrollments, e)
	return *e, nil
}

func (m *Memory) Drop(ctx context.Context, studentID, courseID, reason string) (Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.selfOrAdmin(ctx, studentID, "Can only drop your own courses"); err != nil {
		return Enrollment{}, err
	}
	if n := utf8.RuneCountInString(reason); n < MinDropReason || n > 500 {
		return Enrollment{}, reject("enrollment", http.StatusUnprocessableEntity, "drop_reason must be between 10 and 500 characters")
	}
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.CourseID == courseID && e.Status == StatusEnrolled {
			now := m.stamp()
			e.Status = StatusDropped
			e.DropDate = &now
			e.DropReason = &reason
			return *e, nil
		}
	}
	return Enrollment{}, reject("enrollment", http.StatusNotFound, "Active enrollment not found")
}

// Complete marks an active enrollment completed. Admin only. The portal has no
// operation that completes a course; this exists as a test fixture for seeding
// completed enrollments.
func (m *Memory) Complete(ctx context.Context, studentID, courseID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireAdmin(ctx, "enrollment"); err != nil {
		return err
	}
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.CourseID == courseID && e.Status == StatusEnrolled {
			now := m.stamp()
			e.Status = StatusCompleted
			e.Progress = 100
			e.CompletionDate = &now
			return nil
		}
	}
	return reject("enrollment", http.StatusNotFound, "Active enrollment not found")
}

func (m *Memory) StudentEnrollments(ctx context.Context, studentID string) (StudentEnrollments, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.selfOrAdmin(ctx, studentID, "Not authorized to access this resource"); err != nil {
		return StudentEnrollments{}, err
	}
	out := StudentEnrollments{Enrollments: []Enrollment{}}
	student := m.students[studentID]
	for _, e := range m.enrollments {
		if e.StudentID != studentID {
			continue
		}
		d := *e
		d.StudentName, d.StudentEmail = "Unknown", "Unknown"
		if student != nil {
			d.StudentName, d.StudentEmail = student.Name, student.Email
		}
		d.CourseTitle = "Unknown Course"
		if c, ok := m.courses[e.CourseID]; ok {
			d.CourseTitle, d.CourseCredits = c.Title, c.Credits
		}
		switch d.Status {
		case StatusEnrolled:
			out.TotalEnrolled++
			out.TotalCreditsEnrolled += d.CourseCredits
		case StatusCompleted:
			out.TotalCompleted++
			out.TotalCreditsEnrolled += d.CourseCredits
			out.TotalCreditsCompleted += d.CourseCredits
		case StatusDropped:
			out.TotalDropped++
		}
		out.Enrollments = append(out.Enrollments, d)
	}
	return out, nil
}

func (m *Memory) Stats(ctx context.Context) (EnrollmentStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireAdmin(ctx, "enrollment"); err != nil {
		return EnrollmentStats{}, err
	}
	var st EnrollmentStats
	for _, e := range m.enrollments {
		st.Total++
		switch e.Status {
		case StatusEnrolled:
			st.Enrolled++
		case StatusCompleted:
			st.Completed++
		case StatusDropped:
			st.Dropped++
		}
	}
	return st, nil
}

// helpers -------------------------------------------------------------------

func window[T any](all []T, page PageRequest) []T {
	if page.Skip >= len(all) {
		return []T{}
	}
	end := page.Skip + page.Limit
	if end > len(all) {
		end = len(all)
	}
	return append([]T(nil), all[page.Skip:end]...)
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
