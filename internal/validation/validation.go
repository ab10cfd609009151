// Package validation runs declarative rules over request payloads
// before any handler logic executes.
package validation

import (
	"fmt"
	"regexp"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var nameRe = regexp.MustCompile(`^[a-zA-Z\s]+$`)

// Validator evaluates struct-tag rules and renders rule messages.
type Validator struct {
	v *validator.Validate
}

// New builds a Validator with the custom rules registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Registration errors only occur for blank tags or nil funcs.
	_ = v.RegisterValidation("password", passwordRule)
	_ = v.RegisterValidation("personname", personNameRule)
	return &Validator{v: v}
}

// Validate runs every rule on the payload and returns the collected
// messages. An empty slice means the payload passed.
func (va *Validator) Validate(payload any) []string {
	err := va.v.Struct(payload)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{"invalid request payload"}
	}

	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		messages = append(messages, messageFor(fe))
	}
	return messages
}

// passwordRule requires at least one uppercase letter, one lowercase
// letter, one digit and one special character. Length is enforced by
// a separate min tag.
func passwordRule(fl validator.FieldLevel) bool {
	var upper, lower, digit, special bool
	for _, r := range fl.Field().String() {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			special = true
		}
	}
	return upper && lower && digit && special
}

func personNameRule(fl validator.FieldLevel) bool {
	return nameRe.MatchString(fl.Field().String())
}

func messageFor(fe validator.FieldError) string {
	field := fieldLabel(fe.StructField())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "Invalid email format"
	case "max":
		return fmt.Sprintf("%s must not exceed %s characters", field, fe.Param())
	case "min":
		if fe.StructField() == "RefreshToken" {
			return "Invalid refresh token format"
		}
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "password":
		return "Password must contain at least one uppercase letter, one lowercase letter, one digit, and one special character"
	case "personname":
		return fmt.Sprintf("%s can only contain letters", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func fieldLabel(structField string) string {
	switch structField {
	case "FirstName":
		return "First name"
	case "LastName":
		return "Last name"
	case "RefreshToken":
		return "Refresh token"
	default:
		return structField
	}
}
