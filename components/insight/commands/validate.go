package commands

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goliatone/go-datainsight/components/insight"
	"github.com/goliatone/go-datainsight/pkg/session"
)

var errNoSession = fmt.Errorf("%w: no session", insight.ErrValidation)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if strings.SplitN(fld.Tag.Get("json"), ",", 2)[0] == "-" {
			return "-"
		}
		if label := fld.Tag.Get("label"); label != "" {
			return label
		}
		return fld.Name
	})
	return v
}

// InputError lists the fields a form submission got wrong.
type InputError struct {
	Problems []string
}

func (e *InputError) Error() string {
	return "commands: invalid input: " + strings.Join(e.Problems, "; ")
}

// UserMessage implements insight.UserMessage.
func (e *InputError) UserMessage() string {
	return strings.Join(e.Problems, ". ") + "."
}

func (e *InputError) Unwrap() error {
	return insight.ErrValidation
}

func validateInput(msg any) error {
	err := validate.Struct(msg)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("commands: validate: %w", err)
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, describeField(fe))
	}
	return &InputError{Problems: problems}
}

func describeField(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid e-mail address"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "gte", "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	default:
		return fe.Field() + " is invalid"
	}
}

func requireSession(s *session.Session) error {
	if s == nil {
		return errNoSession
	}
	return nil
}

// begin claims the in-flight slot for the session. A nil guard never blocks.
func begin(guard *insight.InFlight, s *session.Session, action insight.Action) (func(), error) {
	if guard == nil {
		return func() {}, nil
	}
	return guard.Begin(s.ID, action)
}
