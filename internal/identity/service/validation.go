package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"authguard/internal/reqctx"
	"authguard/internal/security"
)

// ValidationError lists every input rule a request broke. Handlers map it to 400.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Violations, "; ")
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		})
		// "address" is the structural email check shared with the rest of the service.
		_ = validate.RegisterValidation("address", func(fl validator.FieldLevel) bool {
			return reqctx.ValidateEmail(fl.Field().String())
		})
	})
	return validate
}

// RegisterInput is the payload of Register. Email is lowercased and Name sanitized before validation.
type RegisterInput struct {
	Email    string `json:"email" validate:"required,max=254,address"`
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Password string `json:"password"`
}

// LoginInput is the payload of Login.
type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ResetInput is the payload of CompletePasswordReset.
type ResetInput struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword"`
}

// ChangePasswordInput is the payload of ChangePassword.
type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword"`
}

// checkInput runs struct validation and the password strength rules, collecting
// every violation. password may be empty when the input carries none.
func checkInput(in any, password *string) error {
	var violations []string
	if err := getValidator().Struct(in); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			violations = append(violations, fieldMessage(fe))
		}
	}
	if password != nil {
		if res := security.ValidatePasswordStrength(*password); !res.Valid {
			violations = append(violations, res.Violations...)
		}
	}
	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "address":
		return field + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", field, fe.Param())
	default:
		return field + " is invalid"
	}
}
