package mutate

import (
	"context"

	"studentportal.org/internal/aggregate"
	"studentportal.org/internal/audit"
	"studentportal.org/internal/portal"
)

// Enroll enrolls studentID in courseID and reloads the catalog view.
func (o *Ops) Enroll(ctx context.Context, studentID, courseID string) (aggregate.BrowseCourses, error) {
	if err := portal.ValidateEnroll(studentID, courseID); err != nil {
		return aggregate.BrowseCourses{}, err
	}
	return fireAndRefetch(ctx, o, guardKey("enroll", studentID, courseID),
		func(ctx context.Context) error {
			e, err := o.svc.Enrollments.Enroll(ctx, studentID, courseID)
			if err != nil {
				return err
			}
			logged(ctx, audit.EnrollmentCreate, map[string]any{"enrollment_id": e.ID, "student_id": studentID, "course_id": courseID})
			return nil
		},
		func(ctx context.Context) (aggregate.BrowseCourses, error) {
			return o.queries.BrowseCourses(ctx, studentID)
		})
}

// Drop drops an active enrollment. The reason is checked before anything is sent.
func (o *Ops) Drop(ctx context.Context, studentID, courseID, reason string) (aggregate.StudentDashboard, error) {
	if err := portal.ValidateDrop(studentID, courseID, reason); err != nil {
		return aggregate.StudentDashboard{}, err
	}
	return fireAndRefetch(ctx, o, guardKey("drop", studentID, courseID),
		func(ctx context.Context) error {
			e, err := o.svc.Enrollments.Drop(ctx, studentID, courseID, reason)
			if err != nil {
				return err
			}
			logged(ctx, audit.EnrollmentDrop, map[string]any{"enrollment_id": e.ID, "student_id": studentID, "course_id": courseID})
			return nil
		},
		func(ctx context.Context) (aggregate.StudentDashboard, error) {
			return o.queries.StudentDashboard(ctx, studentID)
		})
}
