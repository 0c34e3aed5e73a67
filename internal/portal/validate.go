package portal

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	validatorOnce sync.Once
	validate      *validator.Validate
	translator    ut.Translator
)

func initValidator() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	english := en.New()
	translator, _ = ut.New(english, english).GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Report JSON names, the ones the services use in their own messages.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Validate checks v against its struct tags and returns a *ValidationError on failure.
func Validate(v any) error {
	validatorOnce.Do(initValidator)
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Message: fe.Translate(translator)})
	}
	return out
}

type dropForm struct {
	StudentID string `json:"student_id" validate:"required"`
	CourseID  string `json:"course_id" validate:"required"`
	Reason    string `json:"drop_reason" validate:"min=10,max=500"`
}

// ValidateDrop applies the client-side drop preconditions. The reason length is
// counted in characters, not bytes.
func ValidateDrop(studentID, courseID, reason string) error {
	return Validate(dropForm{StudentID: studentID, CourseID: courseID, Reason: reason})
}

type enrollForm struct {
	StudentID string `json:"student_id" validate:"required"`
	CourseID  string `json:"course_id" validate:"required"`
}

// ValidateEnroll requires both identifiers.
func ValidateEnroll(studentID, courseID string) error {
	return Validate(enrollForm{StudentID: studentID, CourseID: courseID})
}
