// Package validation wraps go-playground/validator with the request rules of
// the service: a shared validator instance, custom tags and errors that carry
// one message per offending field.
//
// Custom tags:
//   - notme: a string that is not "me" in any letter case (reserved for /users/me)
//   - username: letters, digits and the characters . @ + - _
//   - slug: letters, digits, hyphen and underscore
//   - notfuture: an integer year not after the current calendar year
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// ReservedUsername cannot be registered: it is the self-profile route.
const ReservedUsername = "me"

var (
	validate     *validator.Validate
	validateOnce sync.Once

	usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)
	slugPattern     = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

	// now is swapped in tests that pin the calendar year.
	now = time.Now
)

// FieldError is a single failed rule on a single field.
type FieldError struct {
	Field   string
	Tag     string
	Message string
}

func (e FieldError) Error() string {
	return e.Message
}

// RequestValidationError collects the field errors of one request.
type RequestValidationError struct {
	errors []FieldError
}

// NewFieldError builds a validation error for one field. Used for rules
// that need the store, such as uniqueness.
func NewFieldError(field, message string) *RequestValidationError {
	return &RequestValidationError{errors: []FieldError{{Field: field, Tag: "custom", Message: message}}}
}

// Errors returns the individual field errors.
func (ve *RequestValidationError) Errors() []FieldError {
	return ve.errors
}

// Fields returns field -> message. When a field failed more than one rule
// the first message wins.
func (ve *RequestValidationError) Fields() map[string]string {
	out := make(map[string]string, len(ve.errors))
	for _, e := range ve.errors {
		if _, ok := out[e.Field]; !ok {
			out[e.Field] = e.Message
		}
	}
	return out
}

func (ve *RequestValidationError) Error() string {
	if len(ve.errors) == 0 {
		return "validation failed"
	}
	msgs := make([]string, 0, len(ve.errors))
	for _, e := range ve.errors {
		msgs = append(msgs, e.Message)
	}
	sort.Strings(msgs)
	return strings.Join(msgs, "; ")
}

// GetValidator returns the shared validator. Field names in errors are
// the JSON names of the fields.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
		mustRegister("notme", validateNotMe)
		mustRegister("username", validateUsername)
		mustRegister("slug", validateSlug)
		mustRegister("notfuture", validateNotFuture)
	})
	return validate
}

func mustRegister(tag string, fn validator.Func) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: register %q: %v", tag, err))
	}
}

// ValidateStruct validates s with the shared validator. It returns nil or
// a *RequestValidationError.
func ValidateStruct(s interface{}) error {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &RequestValidationError{errors: []FieldError{{Field: "non_field_errors", Tag: "unknown", Message: err.Error()}}}
	}

	out := make([]FieldError, len(verrs))
	for i, fe := range verrs {
		out[i] = FieldError{Field: fe.Field(), Tag: fe.Tag(), Message: translateError(fe)}
	}
	return &RequestValidationError{errors: out}
}

// IsReservedUsername reports whether name is the reserved literal.
func IsReservedUsername(name string) bool {
	return strings.EqualFold(name, ReservedUsername)
}

func validateNotMe(fl validator.FieldLevel) bool {
	return !IsReservedUsername(fl.Field().String())
}

func validateUsername(fl validator.FieldLevel) bool {
	return usernamePattern.MatchString(fl.Field().String())
}

func validateSlug(fl validator.FieldLevel) bool {
	return slugPattern.MatchString(fl.Field().String())
}

func validateNotFuture(fl validator.FieldLevel) bool {
	f := fl.Field()
	switch f.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return f.Int() <= int64(now().Year())
	}
	return false
}

var messageTemplates = map[string]string{
	"required":  "%s is required",
	"email":     "%s must be a valid email address",
	"notme":     "%s must not be \"me\"",
	"username":  "%s may contain only letters, digits and @/./+/-/_",
	"slug":      "%s may contain only letters, digits, hyphens and underscores",
	"notfuture": "%s must not be later than the current year",
}

var messageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
}

func translateError(fe validator.FieldError) string {
	field, tag, param := fe.Field(), fe.Tag(), fe.Param()

	if tmpl, ok := messageTemplates[tag]; ok {
		return fmt.Sprintf(tmpl, field)
	}
	if tmpl, ok := messageWithParam[tag]; ok {
		return fmt.Sprintf(tmpl, field, param)
	}

	isString := fe.Kind() == reflect.String
	switch tag {
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	}
	return fmt.Sprintf("%s failed %s validation", field, tag)
}
