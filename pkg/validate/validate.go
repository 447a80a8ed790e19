// Package validate wraps go-playground/validator with the rules used for
// request payloads, reporting failures per JSON field.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Custom tags.
const (
	TagProjectName = "projectname"
	TagUsername    = "username"
)

var (
	projectNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{0,99}$`)
	usernamePattern    = regexp.MustCompile(`^[a-zA-Z0-9._-]{3,30}$`)

	shared = New()
)

// FieldError describes the first failing field of a payload.
type FieldError struct {
	Field   string
	Tag     string
	Message string
}

func (e *FieldError) Error() string {
	return e.Message
}

// Validator checks structs and single values.
type Validator struct {
	validate *validator.Validate
}

// New returns a Validator with the custom rules registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			if form := fld.Tag.Get("form"); form != "" {
				return form
			}
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation(TagProjectName, func(fl validator.FieldLevel) bool {
		return IsProjectName(fl.Field().String())
	})
	_ = v.RegisterValidation(TagUsername, func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return &Validator{validate: v}
}

// Struct validates s and returns a *FieldError for the first failing field.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fieldError(verrs[0].Field(), verrs[0])
	}
	return err
}

// Var validates a single value; field names it in the error.
func (v *Validator) Var(field string, value any, tag string) error {
	err := v.validate.Var(value, tag)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fieldError(field, verrs[0])
	}
	return err
}

// IsProjectName reports whether name is acceptable as a hosting project name:
// lowercase letters, digits, '.', '_' and '-', at most 100 characters and no "---".
func IsProjectName(name string) bool {
	return projectNamePattern.MatchString(name) && !strings.Contains(name, "---")
}

// IsEmail reports whether s is a syntactically valid email address.
func IsEmail(s string) bool {
	return shared.Var("email", s, "required,email") == nil
}

func fieldError(field string, fe validator.FieldError) *FieldError {
	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("%s is required", field)
	case "email":
		msg = fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		msg = fmt.Sprintf("%s must be at least %s characters long", field, fe.Param())
	case "max":
		msg = fmt.Sprintf("%s must be at most %s characters long", field, fe.Param())
	case TagProjectName:
		msg = fmt.Sprintf("%s may only contain lowercase letters, numbers, '.', '_' and '-'", field)
	case TagUsername:
		msg = "username must be 3-30 letters, numbers, dots, hyphens or underscores"
	default:
		msg = fmt.Sprintf("%s is invalid", field)
	}
	return &FieldError{Field: field, Tag: fe.Tag(), Message: msg}
}
