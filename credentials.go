package authcore

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// Password length bounds for local accounts. The upper bound is bcrypt's input limit.
const (
	MinPasswordLength = 6
	MaxPasswordLength = 72
)

// MaxDisplayNameLength bounds display names, counted in runes
const MaxDisplayNameLength = 100

// ClampDisplayName trims a display name and cuts it to MaxDisplayNameLength runes
func ClampDisplayName(name string) string {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) <= MaxDisplayNameLength {
		return name
	}
	return strings.TrimSpace(string([]rune(name)[:MaxDisplayNameLength]))
}

// RegisterInput carries a local signup request
type RegisterInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Name     string `json:"name,omitempty" validate:"omitempty,max=100"`
}

// LoginInput carries a local login request
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ProviderProfile is an identity assertion that a provider-specific verifier
// has already authenticated (OAuth code exchange, identity token signature, ...).
type ProviderProfile struct {
	ProviderID      string `json:"providerId" validate:"required,max=255"`
	Email           string `json:"email" validate:"required,email,max=254"`
	DisplayName     string `json:"displayName,omitempty" validate:"omitempty,max=100"`
	ProfileImageURL string `json:"profileImageUrl,omitempty" validate:"omitempty,url,max=2048"`
}

// ProfileUpdate is a partial change to the user-visible profile fields
type ProfileUpdate struct {
	DisplayName     *string `json:"name,omitempty" validate:"omitempty,max=100"`
	ProfileImageURL *string `json:"profileImage,omitempty" validate:"omitempty,url,max=2048"`
}

// ValidationError reports which fields of an input were rejected
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string { return e.Message }

// Unwrap lets errors.Is(err, ErrInvalidInput) match validation failures
func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	// Report json names instead of Go field names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
}

// Validate checks an input struct against its validate tags
func Validate(input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = describeFieldError(fe)
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return &ValidationError{
		Message: fields[names[0]],
		Fields:  fields,
	}
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed the %q check", field, fe.Tag())
	}
}
