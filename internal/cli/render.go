package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"studentportal.org/internal/portal"
)

var (
	sapphire = lipgloss.Color("#74c7ec")
	subtext  = lipgloss.Color("#a6adc8")
	surface  = lipgloss.Color("#45475a")
	green    = lipgloss.Color("#a6e3a1")
	peach    = lipgloss.Color("#fab387")

	titleStyle  = lipgloss.NewStyle().Foreground(sapphire).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(subtext)
	okStyle     = lipgloss.NewStyle().Foreground(green)
	warnStyle   = lipgloss.NewStyle().Foreground(peach).Bold(true)
	headerStyle = lipgloss.NewStyle().Foreground(sapphire).Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func renderTitle(w io.Writer, title string) {
	fmt.Fprintln(w, titleStyle.Render(title))
}

func renderTable(w io.Writer, headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("(none)"))
		return
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(surface)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	fmt.Fprintln(w, t.Render())
}

// renderCards prints label/value pairs on one line each.
func renderCards(w io.Writer, cards [][2]string) {
	for _, c := range cards {
		fmt.Fprintf(w, "%s %s\n", mutedStyle.Render(c[0]+":"), c[1])
	}
}

func itoa(n int) string { return strconv.Itoa(n) }

func optInt(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return okStyle.Render("yes")
	}
	return "no"
}

func statusLabel(s portal.EnrollmentStatus) string {
	switch s {
	case portal.StatusCompleted:
		return okStyle.Render(string(s))
	case portal.StatusDropped:
		return warnStyle.Render(string(s))
	default:
		return string(s)
	}
}

func courseRows(courses []portal.Course) [][]string {
	rows := make([][]string, 0, len(courses))
	for _, c := range courses {
		rows = append(rows, []string{c.ID, c.Title, itoa(c.Credits), orDash(c.Instructor), optInt(c.DurationWeeks), seats(c)})
	}
	return rows
}

func seats(c portal.Course) string {
	if c.MaxStudents == nil {
		return itoa(c.CurrentEnrollments)
	}
	return itoa(c.CurrentEnrollments) + "/" + itoa(*c.MaxStudents)
}

var courseHeaders = []string{"ID", "TITLE", "CREDITS", "INSTRUCTOR", "WEEKS", "SEATS"}

func enrollmentRows(list []portal.Enrollment) [][]string {
	rows := make([][]string, 0, len(list))
	for _, e := range list {
		rows = append(rows, []string{e.CourseID, orDash(e.CourseTitle), itoa(e.CourseCredits), statusLabel(e.Status), itoa(e.Progress) + "%", e.EnrollmentDate})
	}
	return rows
}

var enrollmentHeaders = []string{"COURSE", "TITLE", "CREDITS", "STATUS", "PROGRESS", "ENROLLED"}
