package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"studentportal.org/internal/aggregate"
	"studentportal.org/internal/auth"
	"studentportal.org/internal/mutate"
	"studentportal.org/internal/portal"
)

func (r *root) newCoursesCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "courses", Short: "Browse or manage courses"}
	cmd.AddCommand(r.newBrowseCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all courses (admin)",
		Args:  cobra.NoArgs,
		RunE: r.guarded(auth.RoleAdmin, func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			page, err := a.queries.ManageCourses(ctx)
			if err != nil {
				return failed(err, "Failed to load courses")
			}
			return r.emit(cmd.OutOrStdout(), page, func(w io.Writer) { renderCourses(w, page) })
		}),
	})
	cmd.AddCommand(r.newCourseCreateCmd())
	cmd.AddCommand(r.newCourseUpdateCmd())
	cmd.AddCommand(r.newCourseDeleteCmd())
	return cmd
}

// courseFlags binds the editable course fields. Optional integers stay unset unless given.
type courseFlags struct {
	in          portal.CourseInput
	weeks       int
	maxStudents int
}

func (f *courseFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.in.Title, "title", "", "course title")
	cmd.Flags().StringVar(&f.in.Description, "description", "", "course description")
	cmd.Flags().IntVar(&f.in.Credits, "credits", 3, "credits, 1 to 10")
	cmd.Flags().StringVar(&f.in.Instructor, "instructor", "", "instructor name")
	cmd.Flags().IntVar(&f.weeks, "weeks", 0, "duration in weeks, 1 to 52")
	cmd.Flags().IntVar(&f.maxStudents, "max-students", 0, "enrollment cap")
}

// apply copies the flags that were set onto in.
func (f *courseFlags) apply(cmd *cobra.Command, in portal.CourseInput) portal.CourseInput {
	set := cmd.Flags().Changed
	if set("title") {
		in.Title = f.in.Title
	}
	if set("description") {
		in.Description = f.in.Description
	}
	if set("credits") {
		in.Credits = f.in.Credits
	}
	if set("instructor") {
		in.Instructor = f.in.Instructor
	}
	if set("weeks") {
		w := f.weeks
		in.DurationWeeks = &w
	}
	if set("max-students") {
		m := f.maxStudents
		in.MaxStudents = &m
	}
	return in
}

func (r *root) newCourseCreateCmd() *cobra.Command {
	var f courseFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a course (admin)",
		Args:  cobra.NoArgs,
		RunE: r.guarded(auth.RoleAdmin, func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			page, err := a.ops.CreateCourse(ctx, f.apply(cmd, portal.CourseInput{Credits: 3}))
			if err != nil {
				return failed(err, "Failed to save course")
			}
			return r.emit(cmd.OutOrStdout(), page, func(w io.Writer) {
				fmt.Fprintln(w, okStyle.Render("Course created"))
				renderCourses(w, page)
			})
		}),
	}
	f.bind(cmd)
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func (r *root) newCourseUpdateCmd() *cobra.Command {
	var f courseFlags
	cmd := &cobra.Command{
		Use:   "update <course-id>",
		Short: "Edit a course (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: r.guarded(auth.RoleAdmin, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			cur, err := a.queries.Course(ctx, args[0])
			if err != nil {
				return failed(err, "Failed to load course")
			}
			page, err := a.ops.UpdateCourse(ctx, args[0], f.apply(cmd, cur.Input()))
			if err != nil {
				return failed(err, "Failed to save course")
			}
			return r.emit(cmd.OutOrStdout(), page, func(w io.Writer) {
				fmt.Fprintln(w, okStyle.Render("Course updated"))
				renderCourses(w, page)
			})
		}),
	}
	f.bind(cmd)
	return cmd
}

func (r *root) newCourseDeleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <course-id>",
		Short: "Delete a course (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: r.guarded(auth.RoleAdmin, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			var confirm mutate.Confirmer = mutate.Confirmed(true)
			if !yes {
				confirm = promptConfirmer(cmd)
			}
			page, err := a.ops.DeleteCourse(ctx, args[0], confirm)
			if err != nil {
				return failed(err, "Failed to delete course")
			}
			return r.emit(cmd.OutOrStdout(), page, func(w io.Writer) {
				fmt.Fprintln(w, okStyle.Render("Course deleted"))
				renderCourses(w, page)
			})
		}),
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func (r *root) newStudentsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "students", Short: "Inspect students (admin)"}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List students",
		Args:  cobra.NoArgs,
		RunE: r.guarded(auth.RoleAdmin, func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			page, err := a.queries.ManageStudents(ctx)
			if err != nil {
				return failed(err, "Failed to load students")
			}
			return r.emit(cmd.OutOrStdout(), page, func(w io.Writer) {
				renderTitle(w, fmt.Sprintf("Students (%d)", page.Total))
				rows := make([][]string, 0, len(page.Students))
				for _, s := range page.Students {
					rows = append(rows, []string{s.ID, s.Name, s.Email, orDash(s.CreatedAt)})
				}
				renderTable(w, []string{"ID", "NAME", "EMAIL", "JOINED"}, rows)
			})
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show <student-id>",
		Short: "Show one student's enrollments",
		Args:  cobra.ExactArgs(1),
		RunE: r.guarded(auth.RoleAdmin, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			view, err := a.queries.StudentDetail(ctx, args[0])
			if err != nil {
				return failed(err, "Failed to load student enrollments")
			}
			return r.emit(cmd.OutOrStdout(), view, func(w io.Writer) { renderStudentDetail(w, view) })
		}),
	})
	return cmd
}

func renderAdminDashboard(w io.Writer, v aggregate.AdminDashboard) {
	renderTitle(w, "Admin dashboard")
	renderCards(w, [][2]string{
		{"students", itoa(v.Totals.TotalStudents)},
		{"courses", itoa(v.Totals.TotalCourses)},
		{"enrollments", itoa(v.Totals.TotalEnrollments)},
		{"active", itoa(v.Totals.ActiveEnrollments)},
		{"completed", itoa(v.Totals.Completed)},
		{"dropped", itoa(v.Totals.Dropped)},
	})
	renderTitle(w, "Recent students")
	rows := make([][]string, 0, len(v.RecentStudents))
	for _, s := range v.RecentStudents {
		rows = append(rows, []string{s.ID, s.Name, s.Email})
	}
	renderTable(w, []string{"ID", "NAME", "EMAIL"}, rows)
	renderTitle(w, "Recent courses")
	renderTable(w, courseHeaders, courseRows(v.RecentCourses))
}

func renderCourses(w io.Writer, page portal.CoursePage) {
	renderTitle(w, fmt.Sprintf("Courses (%d)", page.Total))
	renderTable(w, courseHeaders, courseRows(page.Courses))
}

func renderStudentDetail(w io.Writer, v aggregate.StudentDetail) {
	renderTitle(w, "Student "+v.StudentID)
	renderCards(w, [][2]string{
		{"enrolled", itoa(v.Totals.TotalEnrolled)},
		{"completed", itoa(v.Totals.TotalCompleted)},
		{"dropped", itoa(v.Totals.TotalDropped)},
		{"credits enrolled", itoa(v.Totals.TotalCreditsEnrolled)},
	})
	renderTable(w, enrollmentHeaders, enrollmentRows(v.Enrollments))
}
