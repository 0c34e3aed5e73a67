package aggregate

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"studentportal.org/internal/auth"
	"studentportal.org/internal/portal"
)

type fakeServices struct {
	students    portal.StudentPage
	courses     portal.CoursePage
	stats       portal.EnrollmentStats
	enrollments portal.StudentEnrollments

	studentsErr, coursesErr, statsErr, enrollErr error
	statsDelay                                   time.Duration
	canceled                                     atomic.Bool
}

func (f *fakeServices) services() portal.Services {
	return portal.Services{
		Identity:    fakeIdentity{f},
		Courses:     fakeCourses{f},
		Enrollments: fakeEnrollments{f},
	}
}

type fakeIdentity struct{ *fakeServices }

func (fakeIdentity) Register(context.Context, portal.Registration) (string, error) { return "", nil }
func (fakeIdentity) LoginStudent(context.Context, portal.Credentials) (portal.TokenGrant, error) {
	return portal.TokenGrant{}, nil
}
func (fakeIdentity) LoginAdmin(context.Context, portal.Credentials) (portal.TokenGrant, error) {
	return portal.TokenGrant{}, nil
}
func (fakeIdentity) StudentProfile(context.Context) (portal.Profile, error) { return portal.Profile{}, nil }
func (fakeIdentity) AdminProfile(context.Context) (portal.Profile, error)   { return portal.Profile{}, nil }
func (f fakeIdentity) ListStudents(_ context.Context, page portal.PageRequest) (portal.StudentPage, error) {
	if page.Limit != dashboardPage && page.Limit != catalogPage {
		return portal.StudentPage{}, errors.New("unexpected page size")
	}
	return f.students, f.studentsErr
}

type fakeCourses struct{ *fakeServices }

func (f fakeCourses) ListCourses(context.Context, portal.PageRequest) (portal.CoursePage, error) {
	return f.courses, f.coursesErr
}
func (fakeCourses) GetCourse(context.Context, string) (portal.Course, error) { return portal.Course{}, nil }
func (fakeCourses) CreateCourse(context.Context, portal.CourseInput) (portal.Course, error) {
	return portal.Course{}, nil
}
func (fakeCourses) UpdateCourse(context.Context, string, portal.CourseInput) (portal.Course, error) {
	return portal.Course{}, nil
}
func (fakeCourses) DeleteCourse(context.Context, string) error { return nil }

type fakeEnrollments struct{ *fakeServices }

func (fakeEnrollments) Enroll(context.Context, string, string) (portal.Enrollment, error) {
	return portal.Enrollment{}, nil
}
func (fakeEnrollments) Drop(context.Context, string, string, string) (portal.Enrollment, error) {
	return portal.Enrollment{}, nil
}
func (f fakeEnrollments) StudentEnrollments(context.Context, string) (portal.StudentEnrollments, error) {
	return f.enrollments, f.enrollErr
}
func (f fakeEnrollments) Stats(ctx context.Context) (portal.EnrollmentStats, error) {
	if f.statsDelay > 0 {
		select {
		case <-time.After(f.statsDelay):
		case <-ctx.Done():
			f.canceled.Store(true)
			return portal.EnrollmentStats{}, ctx.Err()
		}
	}
	return f.stats, f.statsErr
}

func intp(v int) *int { return &v }

func students(n int) []portal.Student {
	out := make([]portal.Student, n)
	for i := range out {
		out[i] = portal.Student{ID: string(rune('a' + i))}
	}
	return out
}

func TestAdminDashboardMerge(t *testing.T) {
	t.Parallel()
	f := &fakeServices{
		students: portal.StudentPage{Students: students(7), Total: 42},
		courses:  portal.CoursePage{Courses: []portal.Course{{ID: "c3"}, {ID: "c1"}, {ID: "c2"}}, Total: 3},
		stats:    portal.EnrollmentStats{Total: 10, Enrolled: 6, Completed: 3, Dropped: 1},
	}
	got, err := New(f.services()).AdminDashboard(context.Background())
	if err != nil {
		t.Fatalf("AdminDashboard: %v", err)
	}
	want := AdminTotals{TotalStudents: 42, TotalCourses: 3, TotalEnrollments: 10, ActiveEnrollments: 6, Completed: 3, Dropped: 1}
	if got.Totals != want {
		t.Fatalf("totals = %+v, want %+v", got.Totals, want)
	}
	if len(got.RecentStudents) != 5 || got.RecentStudents[0].ID != "a" || got.RecentStudents[4].ID != "e" {
		t.Fatalf("recent students = %+v", got.RecentStudents)
	}
	if len(got.RecentCourses) != 3 || got.RecentCourses[0].ID != "c3" {
		t.Fatalf("recent courses not in upstream order: %+v", got.RecentCourses)
	}
}

func TestAdminDashboardAllOrNothing(t *testing.T) {
	t.Parallel()
	statsDown := &portal.UpstreamError{Service: "enrollment", StatusCode: 500}
	f := &fakeServices{
		students: portal.StudentPage{Students: students(2), Total: 2},
		courses:  portal.CoursePage{Courses: []portal.Course{{ID: "c1"}}, Total: 1},
		statsErr: statsDown,
	}
	got, err := New(f.services()).AdminDashboard(context.Background())
	if !errors.Is(err, portal.ErrAggregate) || !errors.Is(err, portal.ErrUnavailable) {
		t.Fatalf("err = %v", err)
	}
	var aerr *portal.AggregateError
	if !errors.As(err, &aerr) || aerr.Query != QueryAdminDashboard {
		t.Fatalf("aggregate error = %#v", aerr)
	}
	if !reflect.DeepEqual(got, AdminDashboard{}) {
		t.Fatalf("partial dashboard returned: %+v", got)
	}
}

func TestAdminDashboardCancelsStragglers(t *testing.T) {
	t.Parallel()
	f := &fakeServices{
		studentsErr: &portal.UpstreamError{Service: "student", StatusCode: 401},
		statsDelay:  5 * time.Second,
	}
	start := time.Now()
	_, err := New(f.services()).AdminDashboard(context.Background())
	if !errors.Is(err, auth.ErrUnauthenticated) {
		t.Fatalf("err = %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("aggregate waited for a straggler after a failure")
	}
	if !f.canceled.Load() {
		t.Fatal("sibling call was not canceled")
	}
}

func TestStudentDashboardScenario(t *testing.T) {
	t.Parallel()
	reason := "moved to another city"
	done := "2024-05-01T00:00:00Z"
	f := &fakeServices{enrollments: portal.StudentEnrollments{
		// Service rollups deliberately wrong: totals are derived client-side.
		TotalEnrolled: 99,
		Enrollments: []portal.Enrollment{
			{ID: "e1", CourseID: "c1", Status: portal.StatusEnrolled, CourseCredits: 3},
			{ID: "e2", CourseID: "c2", Status: portal.StatusCompleted, CourseCredits: 4, CompletionDate: &done},
		},
	}}
	q := New(f.services())
	got, err := q.StudentDashboard(context.Background(), "s1")
	if err != nil {
		t.Fatalf("StudentDashboard: %v", err)
	}
	want := StudentTotals{TotalEnrolled: 1, TotalCompleted: 1, TotalCreditsCompleted: 4, TotalCreditsEnrolled: 7}
	if got.Totals != want {
		t.Fatalf("totals = %+v, want %+v", got.Totals, want)
	}

	f.enrollments.Enrollments = append(f.enrollments.Enrollments,
		portal.Enrollment{ID: "e3", CourseID: "c3", Status: portal.StatusDropped, CourseCredits: 5, DropReason: &reason})
	got, err = q.StudentDashboard(context.Background(), "s1")
	if err != nil {
		t.Fatalf("StudentDashboard: %v", err)
	}
	want.TotalDropped = 1
	if got.Totals != want {
		t.Fatalf("dropped credits leaked into totals: %+v", got.Totals)
	}
}

func TestRecentCoursesKeepUpstreamOrder(t *testing.T) {
	t.Parallel()
	list := make([]portal.Enrollment, 8)
	for i := range list {
		list[i] = portal.Enrollment{ID: string(rune('h' - i)), Status: portal.StatusEnrolled}
	}
	f := &fakeServices{enrollments: portal.StudentEnrollments{Enrollments: list}}
	got, err := New(f.services()).StudentDashboard(context.Background(), "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.RecentCourses) != 5 {
		t.Fatalf("recent = %d", len(got.RecentCourses))
	}
	for i, e := range got.RecentCourses {
		if e.ID != list[i].ID {
			t.Fatalf("recent[%d] = %s, want %s", i, e.ID, list[i].ID)
		}
	}
}

func TestBrowseCoursesFlags(t *testing.T) {
	t.Parallel()
	reason := "schedule clash here"
	f := &fakeServices{
		courses: portal.CoursePage{Total: 5, Courses: []portal.Course{
			{ID: "open", MaxStudents: intp(10), CurrentEnrollments: 3},
			{ID: "full", MaxStudents: intp(2), CurrentEnrollments: 2},
			{ID: "over", MaxStudents: intp(2), CurrentEnrollments: 5},
			{ID: "unbounded", CurrentEnrollments: 1000},
			{ID: "mine", MaxStudents: intp(1), CurrentEnrollments: 1},
			{ID: "dropped"},
		}},
		enrollments: portal.StudentEnrollments{Enrollments: []portal.Enrollment{
			{CourseID: "mine", Status: portal.StatusEnrolled},
			{CourseID: "dropped", Status: portal.StatusDropped, DropReason: &reason},
		}},
	}
	got, err := New(f.services()).BrowseCourses(context.Background(), "s1")
	if err != nil {
		t.Fatalf("BrowseCourses: %v", err)
	}
	want := map[string][3]bool{ // enrolled, full, can enroll
		"open":      {false, false, true},
		"full":      {false, true, false},
		"over":      {false, true, false},
		"unbounded": {false, false, true},
		"mine":      {true, true, false},
		"dropped":   {false, false, true},
	}
	for _, c := range got.Courses {
		w := want[c.ID]
		if c.Enrolled != w[0] || c.Full != w[1] || c.CanEnroll != w[2] {
			t.Fatalf("%s: enrolled=%v full=%v can=%v, want %v", c.ID, c.Enrolled, c.Full, c.CanEnroll, w)
		}
	}
	if len(got.EnrolledCourseIDs) != 1 || !got.EnrolledCourseIDs["mine"] {
		t.Fatalf("enrolled ids = %v", got.EnrolledCourseIDs)
	}
}

func TestBrowseCoursesFailsWhole(t *testing.T) {
	t.Parallel()
	f := &fakeServices{
		courses:   portal.CoursePage{Courses: []portal.Course{{ID: "c1"}}},
		enrollErr: &portal.UpstreamError{Service: "enrollment", StatusCode: 403},
	}
	got, err := New(f.services()).BrowseCourses(context.Background(), "s1")
	if !errors.Is(err, auth.ErrForbidden) || !errors.Is(err, portal.ErrAggregate) {
		t.Fatalf("err = %v", err)
	}
	if got.Courses != nil {
		t.Fatalf("partial catalog returned: %+v", got)
	}
}

func TestMyCoursesFilter(t *testing.T) {
	t.Parallel()
	reason := "too much work load"
	done := "2024-01-01T00:00:00Z"
	f := &fakeServices{enrollments: portal.StudentEnrollments{Enrollments: []portal.Enrollment{
		{ID: "e1", Status: portal.StatusEnrolled},
		{ID: "e2", Status: portal.StatusCompleted, CompletionDate: &done},
		{ID: "e3", Status: portal.StatusDropped, DropReason: &reason},
		{ID: "e4", Status: portal.StatusEnrolled},
	}}}
	q := New(f.services())

	cases := []struct {
		filter string
		ids    []string
	}{
		{"", []string{"e1", "e2", "e3", "e4"}},
		{"enrolled", []string{"e1", "e4"}},
		{"completed", []string{"e2"}},
		{"dropped", []string{"e3"}},
	}
	for _, tc := range cases {
		filter, err := ParseFilter(tc.filter)
		if err != nil {
			t.Fatalf("ParseFilter(%q): %v", tc.filter, err)
		}
		got, err := q.MyCourses(context.Background(), "s1", filter)
		if err != nil {
			t.Fatalf("MyCourses: %v", err)
		}
		var ids []string
		for _, e := range got.Entries {
			ids = append(ids, e.ID)
			if e.CanDrop != (e.Status == portal.StatusEnrolled) {
				t.Fatalf("%s can_drop = %v", e.ID, e.CanDrop)
			}
		}
		if !reflect.DeepEqual(ids, tc.ids) {
			t.Fatalf("filter %q: ids = %v, want %v", tc.filter, ids, tc.ids)
		}
		if got.Counts[FilterAll] != 4 || got.Counts["enrolled"] != 2 {
			t.Fatalf("counts = %v", got.Counts)
		}
	}
	if _, err := ParseFilter("pending"); !errors.Is(err, portal.ErrInvalidInput) {
		t.Fatalf("bad filter err = %v", err)
	}
}

func TestQueriesIdempotent(t *testing.T) {
	t.Parallel()
	f := &fakeServices{
		students: portal.StudentPage{Students: students(3), Total: 3},
		courses:  portal.CoursePage{Courses: []portal.Course{{ID: "c1", MaxStudents: intp(1), CurrentEnrollments: 1}}, Total: 1},
		stats:    portal.EnrollmentStats{Total: 1, Enrolled: 1},
		enrollments: portal.StudentEnrollments{Enrollments: []portal.Enrollment{
			{CourseID: "c1", Status: portal.StatusEnrolled, CourseCredits: 3},
		}},
	}
	q := New(f.services())
	ctx := context.Background()

	a1, _ := q.AdminDashboard(ctx)
	a2, _ := q.AdminDashboard(ctx)
	if !reflect.DeepEqual(a1, a2) {
		t.Fatalf("admin dashboard not idempotent: %+v vs %+v", a1, a2)
	}
	s1, _ := q.StudentDashboard(ctx, "s1")
	s2, _ := q.StudentDashboard(ctx, "s1")
	if !reflect.DeepEqual(s1, s2) {
		t.Fatalf("student dashboard not idempotent")
	}
	b1, _ := q.BrowseCourses(ctx, "s1")
	b2, _ := q.BrowseCourses(ctx, "s1")
	if !reflect.DeepEqual(b1, b2) {
		t.Fatalf("browse not idempotent")
	}
}

func TestStudentDetailRequiresID(t *testing.T) {
	t.Parallel()
	f := &fakeServices{}
	if _, err := New(f.services()).StudentDetail(context.Background(), ""); !errors.Is(err, portal.ErrInvalidInput) {
		t.Fatalf("err = %v", err)
	}
}
