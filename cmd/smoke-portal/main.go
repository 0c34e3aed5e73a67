package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"studentportal.org/internal/aggregate"
	"studentportal.org/internal/auth"
	"studentportal.org/internal/config"
	"studentportal.org/internal/ids"
	"studentportal.org/internal/mutate"
	"studentportal.org/internal/portal"
	"studentportal.org/internal/portal/remote"
	"studentportal.org/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	adminEmail, adminPassword := os.Getenv("SMOKE_ADMIN_EMAIL"), os.Getenv("SMOKE_ADMIN_PASSWORD")
	if adminEmail == "" || adminPassword == "" {
		log.Fatal("SMOKE_ADMIN_EMAIL and SMOKE_ADMIN_PASSWORD are required")
	}

	clients, err := remote.DialAll(remote.Endpoints{
		Student:    cfg.StudentServiceURL,
		Course:     cfg.CourseServiceURL,
		Enrollment: cfg.EnrollmentServiceURL,
	}, remote.WithTimeout(cfg.UpstreamTimeout))
	if err != nil {
		log.Fatalf("dial services: %v", err)
	}
	defer func() {
		for _, c := range clients.All() {
			_ = c.Close()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	svc := clients.Services()
	queries := aggregate.New(svc)
	ops := mutate.New(svc, queries)
	tokens := session.NewMemoryTokens()

	admin := session.NewStore(svc.Identity, tokens, "admin")
	if _, err := admin.Login(ctx, auth.RoleAdmin, portal.Credentials{Email: adminEmail, Password: adminPassword}); err != nil {
		log.Fatalf("admin login: %v", err)
	}
	actx := admin.Context(ctx)
	before, err := queries.AdminDashboard(actx)
	if err != nil {
		log.Fatalf("admin dashboard: %v", err)
	}

	suffix := strings.ToLower(ids.New())
	page, err := ops.CreateCourse(actx, portal.CourseInput{Title: "Smoke " + suffix, Credits: 3})
	if err != nil {
		log.Fatalf("create course: %v", err)
	}
	courseID := ""
	for _, c := range page.Courses {
		if c.Title == "Smoke "+suffix {
			courseID = c.ID
		}
	}
	if courseID == "" {
		log.Fatalf("created course missing from the first %d courses", len(page.Courses))
	}

	student := session.NewStore(svc.Identity, tokens, "student")
	sess, err := student.Register(ctx, portal.Registration{
		Name:     "Smoke Student",
		Email:    "smoke-" + suffix + "@example.com",
		Password: "smoke-" + suffix[:8],
	})
	if err != nil {
		log.Fatalf("register student: %v", err)
	}
	sctx := student.Context(ctx)

	browse, err := ops.Enroll(sctx, sess.SubjectID, courseID)
	if err != nil {
		log.Fatalf("enroll: %v", err)
	}
	if !browse.EnrolledCourseIDs[courseID] {
		log.Fatalf("enrollment not visible after refetch")
	}
	dash, err := ops.Drop(sctx, sess.SubjectID, courseID, "smoke test cleanup")
	if err != nil {
		log.Fatalf("drop: %v", err)
	}
	if dash.Totals.TotalDropped != 1 || dash.Totals.TotalCreditsEnrolled != 0 {
		log.Fatalf("unexpected student totals: %+v", dash.Totals)
	}

	if _, err := ops.DeleteCourse(actx, courseID, mutate.Confirmed(true)); err != nil {
		log.Fatalf("delete course: %v", err)
	}
	after, err := queries.AdminDashboard(actx)
	if err != nil {
		log.Fatalf("admin dashboard: %v", err)
	}
	if after.Totals.TotalStudents != before.Totals.TotalStudents+1 {
		log.Fatalf("student count %d -> %d", before.Totals.TotalStudents, after.Totals.TotalStudents)
	}

	_ = student.Logout(ctx)
	_ = admin.Logout(ctx)
	fmt.Printf("✅ portal smoke test passed: course=%s student=%s\n", courseID, sess.SubjectID)
}
