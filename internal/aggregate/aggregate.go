// Package aggregate builds the read models shown by dashboards and list views. Each
// query fans out to the services it needs, waits for all of them and derives its
// totals from what came back. A query either returns a complete result or an
// *portal.AggregateError; partial results are never returned.
package aggregate

import (
	"context"

	"golang.org/x/sync/errgroup"

	"studentportal.org/internal/obs"
	"studentportal.org/internal/portal"
)

// Query names, used in errors and the aggregate_failures_total metric.
const (
	QueryAdminDashboard   = "admin_dashboard"
	QueryStudentDashboard = "student_dashboard"
	QueryBrowseCourses    = "browse_courses"
	QueryStudentDetail    = "student_detail"
	QueryMyCourses        = "my_courses"
	QueryManageCourses    = "manage_courses"
	QueryManageStudents   = "manage_students"
)

const (
	dashboardPage = 10
	recentCount   = 5
	catalogPage   = 100
)

// Queries runs aggregation queries against the three services.
type Queries struct {
	svc portal.Services
}

func New(svc portal.Services) *Queries { return &Queries{svc: svc} }

// fanOut runs the calls concurrently. The first failure cancels the others' context.
func fanOut(ctx context.Context, calls ...func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, call := range calls {
		call := call
		g.Go(func() error { return call(gctx) })
	}
	return g.Wait()
}

func fail(query string, err error) error {
	obs.AggregateFailed(query)
	obs.Warn("aggregate_failed", map[string]any{"query": query, "error": err.Error()})
	return &portal.AggregateError{Query: query, Err: err}
}

func head[T any](items []T, n int) []T {
	if len(items) > n {
		items = items[:n]
	}
	return append([]T{}, items...)
}
