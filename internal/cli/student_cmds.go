package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"studentportal.org/internal/aggregate"
	"studentportal.org/internal/auth"
)

func (r *root) newDashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show the dashboard for the current role",
		Args:  cobra.NoArgs,
		RunE: r.guarded("", func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			sess, _ := a.store.Current()
			if sess.IsAdmin() {
				view, err := a.queries.AdminDashboard(ctx)
				if err != nil {
					return failed(err, "Failed to load dashboard data")
				}
				return r.emit(cmd.OutOrStdout(), view, func(w io.Writer) { renderAdminDashboard(w, view) })
			}
			view, err := a.queries.StudentDashboard(ctx, sess.SubjectID)
			if err != nil {
				return failed(err, "Failed to load dashboard")
			}
			return r.emit(cmd.OutOrStdout(), view, func(w io.Writer) { renderStudentDashboard(w, sess.DisplayName, view) })
		}),
	}
}

func (r *root) newBrowseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "List the catalog with enrollment availability",
		Args:  cobra.NoArgs,
		RunE: r.guarded(auth.RoleStudent, func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			sess, _ := a.store.Current()
			view, err := a.queries.BrowseCourses(ctx, sess.SubjectID)
			if err != nil {
				return failed(err, "Failed to load courses")
			}
			return r.emit(cmd.OutOrStdout(), view, func(w io.Writer) { renderBrowse(w, view) })
		}),
	}
}

func (r *root) newEnrollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enroll <course-id>",
		Short: "Enroll in a course",
		Args:  cobra.ExactArgs(1),
		RunE: r.guarded(auth.RoleStudent, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			sess, _ := a.store.Current()
			view, err := a.ops.Enroll(ctx, sess.SubjectID, args[0])
			if err != nil {
				return failed(err, "Failed to enroll")
			}
			return r.emit(cmd.OutOrStdout(), view, func(w io.Writer) {
				fmt.Fprintln(w, okStyle.Render("Successfully enrolled in course"))
				renderBrowse(w, view)
			})
		}),
	}
}

func (r *root) newDropCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "drop <course-id>",
		Short: "Drop an enrolled course",
		Args:  cobra.ExactArgs(1),
		RunE: r.guarded(auth.RoleStudent, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			sess, _ := a.store.Current()
			view, err := a.ops.Drop(ctx, sess.SubjectID, args[0], reason)
			if err != nil {
				return failed(err, "Failed to drop course")
			}
			return r.emit(cmd.OutOrStdout(), view, func(w io.Writer) {
				fmt.Fprintln(w, okStyle.Render("Course dropped"))
				renderStudentDashboard(w, sess.DisplayName, view)
			})
		}),
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the course is dropped (at least 10 characters)")
	return cmd
}

func (r *root) newMyCoursesCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "my-courses",
		Short: "List your enrollments",
		Args:  cobra.NoArgs,
		RunE: r.guarded(auth.RoleStudent, func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			filter, err := aggregate.ParseFilter(status)
			if err != nil {
				return err
			}
			sess, _ := a.store.Current()
			view, err := a.queries.MyCourses(ctx, sess.SubjectID, filter)
			if err != nil {
				return failed(err, "Failed to load your courses")
			}
			return r.emit(cmd.OutOrStdout(), view, func(w io.Writer) { renderMyCourses(w, view) })
		}),
	}
	cmd.Flags().StringVar(&status, "status", "all", "all, enrolled, completed or dropped")
	return cmd
}

func renderStudentDashboard(w io.Writer, name string, v aggregate.StudentDashboard) {
	renderTitle(w, "Welcome back, "+name)
	renderCards(w, [][2]string{
		{"enrolled", itoa(v.Totals.TotalEnrolled)},
		{"completed", itoa(v.Totals.TotalCompleted)},
		{"dropped", itoa(v.Totals.TotalDropped)},
		{"credits enrolled", itoa(v.Totals.TotalCreditsEnrolled)},
		{"credits completed", itoa(v.Totals.TotalCreditsCompleted)},
	})
	renderTitle(w, "Recent courses")
	renderTable(w, enrollmentHeaders, enrollmentRows(v.RecentCourses))
}

func renderBrowse(w io.Writer, v aggregate.BrowseCourses) {
	renderTitle(w, fmt.Sprintf("Course catalog (%d)", v.Total))
	rows := make([][]string, 0, len(v.Courses))
	for _, c := range v.Courses {
		state := "open"
		switch {
		case c.Enrolled:
			state = okStyle.Render("enrolled")
		case c.Full:
			state = warnStyle.Render("full")
		}
		rows = append(rows, []string{c.ID, c.Title, itoa(c.Credits), orDash(c.Instructor), seats(c.Course), state})
	}
	renderTable(w, []string{"ID", "TITLE", "CREDITS", "INSTRUCTOR", "SEATS", "STATE"}, rows)
}

func renderMyCourses(w io.Writer, v aggregate.MyCourses) {
	renderTitle(w, "My courses")
	renderCards(w, [][2]string{
		{"all", itoa(v.Counts[aggregate.FilterAll])},
		{"enrolled", itoa(v.Counts["enrolled"])},
		{"completed", itoa(v.Counts["completed"])},
		{"dropped", itoa(v.Counts["dropped"])},
	})
	rows := make([][]string, 0, len(v.Entries))
	for _, e := range v.Entries {
		rows = append(rows, []string{e.CourseID, orDash(e.CourseTitle), itoa(e.CourseCredits), statusLabel(e.Status), itoa(e.Progress) + "%", yesNo(e.CanDrop)})
	}
	renderTable(w, []string{"COURSE", "TITLE", "CREDITS", "STATUS", "PROGRESS", "DROPPABLE"}, rows)
}
