package authapi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidRequest is wrapped by every validation failure. No request is
// sent when it is returned.
var ErrInvalidRequest = errors.New("invalid request")

// requestValidator wraps the go-playground/validator library.
type requestValidator struct {
	validator *validator.Validate
}

func newRequestValidator() *requestValidator {
	return &requestValidator{validator: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate checks the struct tags of req and reports the first failing field
// in plain words.
func (rv *requestValidator) Validate(req any) error {
	err := rv.validator.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return fmt.Errorf("%w: %s", ErrInvalidRequest, describe(verrs[0]))
}

func describe(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return "please enter a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

// SignupRequest is the DTO for creating an account.
type SignupRequest struct {
	Username string `json:"username" validate:"required,min=2"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

func (r *SignupRequest) normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)
}

// LoginRequest is the DTO for POST /users/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (r *LoginRequest) normalize() {
	r.Email = strings.TrimSpace(r.Email)
}

// ForgotPasswordRequest asks the server to mail a reset link.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (r *ForgotPasswordRequest) normalize() {
	r.Email = strings.TrimSpace(r.Email)
}

// ResetPasswordRequest sets a new password using a mailed token. The token
// travels in the URL path.
type ResetPasswordRequest struct {
	Token       string `json:"-" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

func (r *ResetPasswordRequest) normalize() {
	r.Token = strings.TrimSpace(r.Token)
}

// UpdateUserRequest changes a profile. Empty fields are left untouched.
type UpdateUserRequest struct {
	Username string `json:"username,omitempty" validate:"omitempty,min=2"`
	Password string `json:"password,omitempty" validate:"omitempty,min=6"`
}

func (r *UpdateUserRequest) normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Password = strings.TrimSpace(r.Password)
}

// ContactRequest is a support message.
type ContactRequest struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Message string `json:"message" validate:"required,min=10"`
}

func (r *ContactRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.Message = strings.TrimSpace(r.Message)
}

type normalizer interface {
	normalize()
}
