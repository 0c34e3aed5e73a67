package portal

import (
	"errors"
	"strings"
	"testing"
)

func intp(v int) *int { return &v }

func TestValidateDropReasonBoundary(t *testing.T) {
	cases := []struct {
		reason string
		ok     bool
	}{
		{"", false},
		{strings.Repeat("x", 9), false},
		{strings.Repeat("x", 10), true},
		{strings.Repeat("é", 10), true},
		{strings.Repeat("é", 9), false},
		{strings.Repeat("x", 500), true},
		{strings.Repeat("x", 501), false},
	}
	for _, tc := range cases {
		err := ValidateDrop("s1", "c1", tc.reason)
		if (err == nil) != tc.ok {
			t.Fatalf("reason len %d: err=%v, want ok=%v", len([]rune(tc.reason)), err, tc.ok)
		}
		if err != nil && !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	}
}

func TestValidateCourseInputBoundaries(t *testing.T) {
	cases := []struct {
		name  string
		in    CourseInput
		ok    bool
		field string
	}{
		{"minimums", CourseInput{Title: "Art", Credits: 1}, true, ""},
		{"max credits", CourseInput{Title: "Art", Credits: 10}, true, ""},
		{"zero credits", CourseInput{Title: "Art", Credits: 0}, false, "credits"},
		{"eleven credits", CourseInput{Title: "Art", Credits: 11}, false, "credits"},
		{"short title", CourseInput{Title: "Ar", Credits: 3}, false, "title"},
		{"duration bounds", CourseInput{Title: "Art", Credits: 3, DurationWeeks: intp(52)}, true, ""},
		{"duration zero", CourseInput{Title: "Art", Credits: 3, DurationWeeks: intp(0)}, false, "duration_weeks"},
		{"duration 53", CourseInput{Title: "Art", Credits: 3, DurationWeeks: intp(53)}, false, "duration_weeks"},
		{"max students one", CourseInput{Title: "Art", Credits: 3, MaxStudents: intp(1)}, true, ""},
		{"max students zero", CourseInput{Title: "Art", Credits: 3, MaxStudents: intp(0)}, false, "max_students"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.in)
			if (err == nil) != tc.ok {
				t.Fatalf("err=%v, want ok=%v", err, tc.ok)
			}
			if tc.ok {
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if verr.Fields[0].Field != tc.field {
				t.Fatalf("field=%q, want %q", verr.Fields[0].Field, tc.field)
			}
			if verr.Fields[0].Message == "" {
				t.Fatal("expected translated message")
			}
		})
	}
}

func TestValidateRegistration(t *testing.T) {
	if err := Validate(Registration{Name: "Al", Email: "al@example.com", Password: "secret"}); err != nil {
		t.Fatalf("valid registration rejected: %v", err)
	}
	if err := Validate(Registration{Name: "A", Email: "nope", Password: "123"}); err == nil {
		t.Fatal("invalid registration accepted")
	}
}
