package aggregate

import (
	"context"

	"studentportal.org/internal/portal"
)

// CourseOption is one catalog entry as seen by a student.
type CourseOption struct {
	portal.Course
	Enrolled  bool `json:"enrolled"`
	Full      bool `json:"full"`
	CanEnroll bool `json:"can_enroll"`
}

// BrowseCourses is the catalog annotated for one student.
type BrowseCourses struct {
	Total             int             `json:"total"`
	EnrolledCourseIDs map[string]bool `json:"enrolled_course_ids"`
	Courses           []CourseOption  `json:"courses"`
}

// BrowseCourses fetches the catalog and the student's enrollments together. A course is
// enrollable unless the student holds it (enrolled or completed) or it is capped and full.
func (q *Queries) BrowseCourses(ctx context.Context, studentID string) (BrowseCourses, error) {
	var (
		catalog portal.CoursePage
		mine    portal.StudentEnrollments
	)
	err := fanOut(ctx,
		func(ctx context.Context) (err error) {
			catalog, err = q.svc.Courses.ListCourses(ctx, portal.PageRequest{Skip: 0, Limit: catalogPage})
			return err
		},
		func(ctx context.Context) (err error) {
			mine, err = q.svc.Enrollments.StudentEnrollments(ctx, studentID)
			return err
		},
	)
	if err != nil {
		return BrowseCourses{}, fail(QueryBrowseCourses, err)
	}

	held := EnrolledCourseIDs(mine.Enrollments)
	out := BrowseCourses{
		Total:             catalog.Total,
		EnrolledCourseIDs: held,
		Courses:           make([]CourseOption, 0, len(catalog.Courses)),
	}
	for _, c := range catalog.Courses {
		opt := CourseOption{Course: c, Enrolled: held[c.ID], Full: c.Full()}
		opt.CanEnroll = !opt.Enrolled && !opt.Full
		out.Courses = append(out.Courses, opt)
	}
	return out, nil
}

// EnrolledCourseIDs is the set of courses the enrollments still hold a seat in.
func EnrolledCourseIDs(enrollments []portal.Enrollment) map[string]bool {
	ids := make(map[string]bool, len(enrollments))
	for _, e := range enrollments {
		if e.Status.Holds() {
			ids[e.CourseID] = true
		}
	}
	return ids
}
