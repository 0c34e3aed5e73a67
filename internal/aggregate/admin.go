package aggregate

import (
	"context"
	"fmt"

	"studentportal.org/internal/portal"
)

// AdminTotals are the dashboard cards.
type AdminTotals struct {
	TotalStudents     int `json:"total_students"`
	TotalCourses      int `json:"total_courses"`
	TotalEnrollments  int `json:"total_enrollments"`
	ActiveEnrollments int `json:"active_enrollments"`
	Completed         int `json:"completed"`
	Dropped           int `json:"dropped"`
}

// AdminDashboard is the admin landing view.
type AdminDashboard struct {
	Totals         AdminTotals      `json:"totals"`
	RecentStudents []portal.Student `json:"recent_students"`
	RecentCourses  []portal.Course  `json:"recent_courses"`
}

// AdminDashboard fetches the first student page, the first course page and the
// enrollment stats. Recent lists keep the upstream order.
func (q *Queries) AdminDashboard(ctx context.Context) (AdminDashboard, error) {
	var (
		students portal.StudentPage
		courses  portal.CoursePage
		stats    portal.EnrollmentStats
	)
	page := portal.PageRequest{Skip: 0, Limit: dashboardPage}
	err := fanOut(ctx,
		func(ctx context.Context) (err error) {
			students, err = q.svc.Identity.ListStudents(ctx, page)
			return err
		},
		func(ctx context.Context) (err error) {
			courses, err = q.svc.Courses.ListCourses(ctx, page)
			return err
		},
		func(ctx context.Context) (err error) {
			stats, err = q.svc.Enrollments.Stats(ctx)
			return err
		},
	)
	if err != nil {
		return AdminDashboard{}, fail(QueryAdminDashboard, err)
	}
	return AdminDashboard{
		Totals: AdminTotals{
			TotalStudents:     students.Total,
			TotalCourses:      courses.Total,
			TotalEnrollments:  stats.Total,
			ActiveEnrollments: stats.Enrolled,
			Completed:         stats.Completed,
			Dropped:           stats.Dropped,
		},
		RecentStudents: head(students.Students, recentCount),
		RecentCourses:  head(courses.Courses, recentCount),
	}, nil
}

// ManageStudents is the admin student list.
func (q *Queries) ManageStudents(ctx context.Context) (portal.StudentPage, error) {
	page, err := q.svc.Identity.ListStudents(ctx, portal.PageRequest{Limit: catalogPage})
	if err != nil {
		return portal.StudentPage{}, fail(QueryManageStudents, err)
	}
	if page.Students == nil {
		page.Students = []portal.Student{}
	}
	return page, nil
}

// ManageCourses is the admin course list.
func (q *Queries) ManageCourses(ctx context.Context) (portal.CoursePage, error) {
	page, err := q.svc.Courses.ListCourses(ctx, portal.PageRequest{Limit: catalogPage})
	if err != nil {
		return portal.CoursePage{}, fail(QueryManageCourses, err)
	}
	if page.Courses == nil {
		page.Courses = []portal.Course{}
	}
	return page, nil
}

// Course loads one course for editing.
func (q *Queries) Course(ctx context.Context, id string) (portal.Course, error) {
	if id == "" {
		return portal.Course{}, fmt.Errorf("%w: course id required", portal.ErrInvalidInput)
	}
	return q.svc.Courses.GetCourse(ctx, id)
}
