package aggregate

import (
	"context"
	"fmt"

	"studentportal.org/internal/portal"
)

// StudentTotals are derived from the enrollment list, never copied from the service's
// own rollups.
type StudentTotals struct {
	TotalEnrolled         int `json:"total_enrolled"`
	TotalCompleted        int `json:"total_completed"`
	TotalDropped          int `json:"total_dropped"`
	TotalCreditsEnrolled  int `json:"total_credits_enrolled"`
	TotalCreditsCompleted int `json:"total_credits_completed"`
}

// Totals counts enrollments by status. Enrolled credits cover enrolled and completed
// enrollments; dropped ones count toward nothing but TotalDropped.
func Totals(enrollments []portal.Enrollment) StudentTotals {
	var t StudentTotals
	for _, e := range enrollments {
		switch e.Status {
		case portal.StatusEnrolled:
			t.TotalEnrolled++
			t.TotalCreditsEnrolled += e.CourseCredits
		case portal.StatusCompleted:
			t.TotalCompleted++
			t.TotalCreditsEnrolled += e.CourseCredits
			t.TotalCreditsCompleted += e.CourseCredits
		case portal.StatusDropped:
			t.TotalDropped++
		}
	}
	return t
}

// StudentDashboard is the student landing view. RecentCourses is the head of the
// upstream list in upstream order; the service does not promise recency.
type StudentDashboard struct {
	StudentID     string              `json:"student_id"`
	Totals        StudentTotals       `json:"totals"`
	RecentCourses []portal.Enrollment `json:"recent_courses"`
}

func (q *Queries) StudentDashboard(ctx context.Context, studentID string) (StudentDashboard, error) {
	list, err := q.enrollments(ctx, studentID)
	if err != nil {
		return StudentDashboard{}, fail(QueryStudentDashboard, err)
	}
	return StudentDashboard{
		StudentID:     studentID,
		Totals:        Totals(list),
		RecentCourses: head(list, recentCount),
	}, nil
}

// StudentDetail is the admin view of one selected student.
type StudentDetail struct {
	StudentID   string              `json:"student_id"`
	Totals      StudentTotals       `json:"totals"`
	Enrollments []portal.Enrollment `json:"enrollments"`
}

func (q *Queries) StudentDetail(ctx context.Context, studentID string) (StudentDetail, error) {
	list, err := q.enrollments(ctx, studentID)
	if err != nil {
		return StudentDetail{}, fail(QueryStudentDetail, err)
	}
	return StudentDetail{StudentID: studentID, Totals: Totals(list), Enrollments: list}, nil
}

func (q *Queries) enrollments(ctx context.Context, studentID string) ([]portal.Enrollment, error) {
	if studentID == "" {
		return nil, fmt.Errorf("%w: student id required", portal.ErrInvalidInput)
	}
	res, err := q.svc.Enrollments.StudentEnrollments(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if res.Enrollments == nil {
		return []portal.Enrollment{}, nil
	}
	return res.Enrollments, nil
}

// StatusFilter selects a My Courses tab. The zero value shows everything.
type StatusFilter string

const FilterAll StatusFilter = "all"

// ParseFilter accepts "", "all" or an enrollment status.
func ParseFilter(s string) (StatusFilter, error) {
	switch st := portal.EnrollmentStatus(s); {
	case s == "" || s == string(FilterAll):
		return FilterAll, nil
	case st.Valid():
		return StatusFilter(s), nil
	default:
		return "", fmt.Errorf("%w: unknown status filter %q", portal.ErrInvalidInput, s)
	}
}

// MyCourseEntry is one row of My Courses. Only enrolled rows may be dropped.
type MyCourseEntry struct {
	portal.Enrollment
	CanDrop bool `json:"can_drop"`
}

// MyCourses is the filtered enrollment list with the count behind every tab.
type MyCourses struct {
	Filter  StatusFilter         `json:"filter"`
	Counts  map[StatusFilter]int `json:"counts"`
	Entries []MyCourseEntry      `json:"entries"`
}

func (q *Queries) MyCourses(ctx context.Context, studentID string, filter StatusFilter) (MyCourses, error) {
	if filter == "" {
		filter = FilterAll
	}
	list, err := q.enrollments(ctx, studentID)
	if err != nil {
		return MyCourses{}, fail(QueryMyCourses, err)
	}
	out := MyCourses{
		Filter: filter,
		Counts: map[StatusFilter]int{
			FilterAll:                            len(list),
			StatusFilter(portal.StatusEnrolled):  0,
			StatusFilter(portal.StatusCompleted): 0,
			StatusFilter(portal.StatusDropped):   0,
		},
		Entries: []MyCourseEntry{},
	}
	for _, e := range list {
		out.Counts[StatusFilter(e.Status)]++
		if filter != FilterAll && StatusFilter(e.Status) != filter {
			continue
		}
		out.Entries = append(out.Entries, MyCourseEntry{Enrollment: e, CanDrop: e.Status == portal.StatusEnrolled})
	}
	return out, nil
}
