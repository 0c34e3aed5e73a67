package mutate

import (
	"context"
	"fmt"

	"studentportal.org/internal/audit"
	"studentportal.org/internal/auth"
	"studentportal.org/internal/portal"
)

// CreateCourse creates a course and reloads the course list.
func (o *Ops) CreateCourse(ctx context.Context, in portal.CourseInput) (portal.CoursePage, error) {
	if err := portal.Validate(in); err != nil {
		return portal.CoursePage{}, err
	}
	// Keyed per admin: two admins creating the same title are separate submissions.
	subject, _ := auth.UserIDFromContext(ctx)
	return fireAndRefetch(ctx, o, guardKey("course.create", subject, in.Title),
		func(ctx context.Context) error {
			c, err := o.svc.Courses.CreateCourse(ctx, in)
			if err != nil {
				return err
			}
			logged(ctx, audit.CourseCreate, map[string]any{"course_id": c.ID, "title": c.Title})
			return nil
		},
		o.queries.ManageCourses)
}

// UpdateCourse replaces the editable fields of course id and reloads the course list.
func (o *Ops) UpdateCourse(ctx context.Context, id string, in portal.CourseInput) (portal.CoursePage, error) {
	if id == "" {
		return portal.CoursePage{}, fmt.Errorf("%w: course id required", portal.ErrInvalidInput)
	}
	if err := portal.Validate(in); err != nil {
		return portal.CoursePage{}, err
	}
	return fireAndRefetch(ctx, o, guardKey("course.write", id),
		func(ctx context.Context) error {
			if _, err := o.svc.Courses.UpdateCourse(ctx, id, in); err != nil {
				return err
			}
			logged(ctx, audit.CourseUpdate, map[string]any{"course_id": id})
			return nil
		},
		o.queries.ManageCourses)
}

// DeleteCourse deletes course id once confirm approves it. There is no undo.
func (o *Ops) DeleteCourse(ctx context.Context, id string, confirm Confirmer) (portal.CoursePage, error) {
	if id == "" {
		return portal.CoursePage{}, fmt.Errorf("%w: course id required", portal.ErrInvalidInput)
	}
	if confirm == nil {
		return portal.CoursePage{}, ErrNotConfirmed
	}
	ok, err := confirm.Confirm(ctx, fmt.Sprintf("Delete course %s? This cannot be undone.", id))
	if err != nil {
		return portal.CoursePage{}, err
	}
	if !ok {
		return portal.CoursePage{}, ErrNotConfirmed
	}
	return fireAndRefetch(ctx, o, guardKey("course.write", id),
		func(ctx context.Context) error {
			if err := o.svc.Courses.DeleteCourse(ctx, id); err != nil {
				return err
			}
			logged(ctx, audit.CourseDelete, map[string]any{"course_id": id})
			return nil
		},
		o.queries.ManageCourses)
}
