package mutate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"studentportal.org/internal/aggregate"
	"studentportal.org/internal/auth"
	"studentportal.org/internal/portal"
)

type fixture struct {
	mem       *portal.Memory
	ops       *Ops
	admin     context.Context
	student   context.Context
	studentID string
	courseID  string
}

func intp(v int) *int { return &v }

func setup(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	mem := portal.NewInMemory()
	sid, err := mem.Register(ctx, portal.Registration{Name: "Ann Student", Email: "ann@example.com", Password: "secret1"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := mem.SeedAdmin("Root", "root@example.com", "adminpw"); err != nil {
		t.Fatal(err)
	}
	sg, err := mem.LoginStudent(ctx, portal.Credentials{Email: "ann@example.com", Password: "secret1"})
	if err != nil {
		t.Fatal(err)
	}
	ag, err := mem.LoginAdmin(ctx, portal.Credentials{Email: "root@example.com", Password: "adminpw"})
	if err != nil {
		t.Fatal(err)
	}
	admin := auth.ContextWithToken(ctx, ag.AccessToken)
	c, err := mem.CreateCourse(admin, portal.CourseInput{Title: "Go 101", Credits: 3, MaxStudents: intp(1)})
	if err != nil {
		t.Fatal(err)
	}
	return fixture{
		mem:       mem,
		ops:       New(mem.Services(), nil),
		admin:     admin,
		student:   auth.ContextWithToken(ctx, sg.AccessToken),
		studentID: sid,
		courseID:  c.ID,
	}
}

func TestEnrollRefetchesCatalog(t *testing.T) {
	f := setup(t)
	view, err := f.ops.Enroll(f.student, f.studentID, f.courseID)
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if len(view.Courses) != 1 {
		t.Fatalf("courses = %+v", view.Courses)
	}
	c := view.Courses[0]
	if !c.Enrolled || !c.Full || c.CanEnroll || c.CurrentEnrollments != 1 {
		t.Fatalf("reloaded view stale: %+v", c)
	}

	_, err = f.ops.Enroll(f.student, f.studentID, f.courseID)
	if !errors.Is(err, portal.ErrRejected) {
		t.Fatalf("duplicate enroll err = %v", err)
	}
	if msg := portal.UserMessage(err, "Failed to enroll"); msg != "Already enrolled in this course" {
		t.Fatalf("user message = %q", msg)
	}
}

func TestDropBoundary(t *testing.T) {
	f := setup(t)
	if _, err := f.ops.Enroll(f.student, f.studentID, f.courseID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.ops.Drop(f.student, f.studentID, f.courseID, strings.Repeat("x", 9)); !errors.Is(err, portal.ErrInvalidInput) {
		t.Fatalf("9-char reason err = %v", err)
	}
	dash, err := f.ops.Drop(f.student, f.studentID, f.courseID, strings.Repeat("x", 10))
	if err != nil {
		t.Fatalf("10-char reason: %v", err)
	}
	if dash.Totals.TotalDropped != 1 || dash.Totals.TotalEnrolled != 0 || dash.Totals.TotalCreditsEnrolled != 0 {
		t.Fatalf("totals after drop = %+v", dash.Totals)
	}
}

func TestDropNotFoundStillRefetches(t *testing.T) {
	f := setup(t)
	dash, err := f.ops.Drop(f.student, f.studentID, f.courseID, "never enrolled here")
	if !errors.Is(err, portal.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
	if dash.StudentID != f.studentID {
		t.Fatalf("view not reloaded on not found: %+v", dash)
	}
}

func TestCourseValidationNeverCallsService(t *testing.T) {
	f := setup(t)
	cases := []struct {
		name string
		in   portal.CourseInput
		ok   bool
	}{
		{"title too short", portal.CourseInput{Title: "Go", Credits: 3}, false},
		{"credits zero", portal.CourseInput{Title: "Algebra", Credits: 0}, false},
		{"credits eleven", portal.CourseInput{Title: "Algebra", Credits: 11}, false},
		{"duration 53", portal.CourseInput{Title: "Algebra", Credits: 3, DurationWeeks: intp(53)}, false},
		{"max students zero", portal.CourseInput{Title: "Algebra", Credits: 3, MaxStudents: intp(0)}, false},
		{"lower bounds", portal.CourseInput{Title: "Art", Credits: 1, DurationWeeks: intp(1), MaxStudents: intp(1)}, true},
		{"upper bounds", portal.CourseInput{Title: "Bio", Credits: 10, DurationWeeks: intp(52)}, true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			page, err := f.ops.CreateCourse(f.admin, tc.in)
			if tc.ok {
				if err != nil {
					t.Fatalf("create: %v", err)
				}
				found := false
				for _, c := range page.Courses {
					found = found || c.Title == tc.in.Title
				}
				if !found {
					t.Fatalf("created course missing from reloaded list")
				}
				return
			}
			var verr *portal.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected client-side validation error, got %v", err)
			}
		})
	}
}

func TestUpdateCourse(t *testing.T) {
	f := setup(t)
	page, err := f.ops.UpdateCourse(f.admin, f.courseID, portal.CourseInput{Title: "Go 102", Credits: 4})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if page.Courses[0].Title != "Go 102" || page.Courses[0].Credits != 4 {
		t.Fatalf("reloaded list stale: %+v", page.Courses[0])
	}
	if _, err := f.ops.UpdateCourse(f.student, f.courseID, portal.CourseInput{Title: "Hack", Credits: 4}); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("student update err = %v", err)
	}
}

func TestDeleteCourseNeedsConfirmation(t *testing.T) {
	f := setup(t)
	if _, err := f.ops.DeleteCourse(f.admin, f.courseID, nil); !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("nil confirmer err = %v", err)
	}
	var prompt string
	declined := ConfirmFunc(func(_ context.Context, p string) (bool, error) {
		prompt = p
		return false, nil
	})
	if _, err := f.ops.DeleteCourse(f.admin, f.courseID, declined); !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("declined err = %v", err)
	}
	if !strings.Contains(prompt, f.courseID) {
		t.Fatalf("prompt = %q", prompt)
	}
	if _, err := f.mem.GetCourse(f.admin, f.courseID); err != nil {
		t.Fatalf("course deleted without confirmation: %v", err)
	}

	page, err := f.ops.DeleteCourse(f.admin, f.courseID, Confirmed(true))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(page.Courses) != 0 {
		t.Fatalf("reloaded list still has the course: %+v", page.Courses)
	}
}

type blockingEnrollments struct {
	portal.EnrollmentService
	entered chan struct{}
	release chan struct{}
	mu      sync.Mutex
	calls   int
}

func (b *blockingEnrollments) Enroll(ctx context.Context, studentID, courseID string) (portal.Enrollment, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	b.entered <- struct{}{}
	<-b.release
	return b.EnrollmentService.Enroll(ctx, studentID, courseID)
}

func TestDuplicateSubmissionRejected(t *testing.T) {
	f := setup(t)
	svc := f.mem.Services()
	blocking := &blockingEnrollments{EnrollmentService: svc.Enrollments, entered: make(chan struct{}), release: make(chan struct{})}
	svc.Enrollments = blocking
	ops := New(svc, aggregate.New(svc))

	done := make(chan error, 1)
	go func() {
		_, err := ops.Enroll(f.student, f.studentID, f.courseID)
		done <- err
	}()
	<-blocking.entered

	if _, err := ops.Enroll(f.student, f.studentID, f.courseID); !errors.Is(err, ErrInFlight) {
		t.Fatalf("second submission err = %v", err)
	}
	// Unrelated mutations stay available.
	if _, err := ops.CreateCourse(f.admin, portal.CourseInput{Title: "Other", Credits: 2}); err != nil {
		t.Fatalf("unrelated mutation blocked: %v", err)
	}

	close(blocking.release)
	if err := <-done; err != nil {
		t.Fatalf("first submission: %v", err)
	}
	blocking.mu.Lock()
	defer blocking.mu.Unlock()
	if blocking.calls != 1 {
		t.Fatalf("service called %d times", blocking.calls)
	}
}

type blockingCourses struct {
	portal.CourseService
	entered chan struct{}
	release chan struct{}
}

func (b *blockingCourses) CreateCourse(ctx context.Context, in portal.CourseInput) (portal.Course, error) {
	b.entered <- struct{}{}
	<-b.release
	return b.CourseService.CreateCourse(ctx, in)
}

func TestCreateCourseGuardIsPerAdmin(t *testing.T) {
	f := setup(t)
	svc := f.mem.Services()
	blocking := &blockingCourses{CourseService: svc.Courses, entered: make(chan struct{}, 2), release: make(chan struct{})}
	svc.Courses = blocking
	ops := New(svc, aggregate.New(svc))

	token, _ := auth.TokenFromContext(f.admin)
	as := func(subject string) context.Context {
		return auth.ContextWithSession(f.admin, auth.Session{SubjectID: subject, DisplayName: subject, Role: auth.RoleAdmin, Token: token})
	}
	in := portal.CourseInput{Title: "Databases", Credits: 4}

	done := make(chan error, 2)
	for _, subject := range []string{"admin-a", "admin-b"} {
		ctx := as(subject)
		go func() {
			_, err := ops.CreateCourse(ctx, in)
			done <- err
		}()
	}
	<-blocking.entered
	<-blocking.entered

	if _, err := ops.CreateCourse(as("admin-a"), in); !errors.Is(err, ErrInFlight) {
		t.Fatalf("same admin resubmit err = %v", err)
	}

	close(blocking.release)
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			t.Fatalf("create: %v", err)
		}
	}
}
