// Package validator provides struct validation utilities with custom validators.
package validator

import (
	stderrors "errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/girderhq/api/pkg/domain/contract"
	"github.com/girderhq/api/pkg/domain/permission"
	"github.com/girderhq/api/pkg/domain/project"
	"github.com/girderhq/api/pkg/domain/rfi"
	"github.com/girderhq/api/pkg/domain/task"
)

// slugRegex validates slugs: lowercase letters, numbers, hyphens
// Must start and end with alphanumeric, no consecutive hyphens
var slugRegex = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// permissionCodeRegex validates the dotted shape of a permission code
// (module.action, optionally nested like contract.payment.create).
var permissionCodeRegex = regexp.MustCompile(`^[a-z][a-z_]*(?:\.[a-z][a-z_]*)+$`)

// Validator wraps the go-playground validator with custom validations.
type Validator struct {
	validate *validator.Validate
}

// ValidationError represents a single field validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, e := range v {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return sb.String()
}

// New creates a new Validator with custom validators registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Register custom validators for tenant domain
	_ = v.RegisterValidation("slug", validateSlug)

	// Register custom validators for the RBAC domain
	_ = v.RegisterValidation("permission_code", validatePermissionCode)

	// Register custom validators for project-management domains
	_ = v.RegisterValidation("project_status", validateProjectStatus)
	_ = v.RegisterValidation("task_status", validateTaskStatus)
	_ = v.RegisterValidation("rfi_status", validateRFIStatus)
	_ = v.RegisterValidation("contract_status", validateContractStatus)

	return &Validator{validate: v}
}

// Validate validates a struct and returns ValidationErrors if validation fails.
func (v *Validator) Validate(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !stderrors.As(err, &validationErrors) {
		return err
	}

	result := make(ValidationErrors, 0, len(validationErrors))
	for _, e := range validationErrors {
		result = append(result, ValidationError{
			Field:   toSnakeCase(e.Field()),
			Message: formatErrorMessage(e),
		})
	}

	return result
}

// validateSlug validates that a string is a valid URL slug.
// Valid: lowercase letters, numbers, hyphens. Must start/end with alphanumeric.
// Examples: "acme-construction", "bridgeworks", "crew7"
func validateSlug(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	return slugRegex.MatchString(value)
}

// validatePermissionCode validates that a string has the dotted
// module.action shape of a permission code and is part of the seeded
// catalog.
func validatePermissionCode(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	return permissionCodeRegex.MatchString(value) && permission.IsKnown(permission.Code(value))
}

// validateProjectStatus validates that a string is a valid project Status.
func validateProjectStatus(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	return project.Status(value).IsValid()
}

// validateTaskStatus validates that a string is a valid task Status.
func validateTaskStatus(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	return task.Status(value).IsValid()
}

// validateRFIStatus validates that a string is a valid RFI Status.
func validateRFIStatus(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	return rfi.Status(value).IsValid()
}

// validateContractStatus validates that a string is a valid contract Status.
func validateContractStatus(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	return contract.Status(value).IsValid()
}

// formatErrorMessage converts validation errors to human-readable messages.
func formatErrorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", e.Param())
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "uuid":
		return "must be a valid UUID"
	case "slug":
		return "must be a valid slug (lowercase letters, numbers, hyphens only)"
	case "permission_code":
		return "must be a known permission code (e.g., project.view)"
	case "project_status":
		return "must be one of: planning, active, on_hold, completed"
	case "task_status":
		return "must be one of: open, in_progress, blocked, done"
	case "rfi_status":
		return "must be one of: open, answered, closed"
	case "contract_status":
		return "must be one of: draft, active, completed, terminated"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", e.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", e.Param())
	default:
		return fmt.Sprintf("failed on '%s' validation", e.Tag())
	}
}

// toSnakeCase converts PascalCase/camelCase to snake_case.
func toSnakeCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result.WriteByte('_')
		}
		result.WriteRune(r)
	}
	return strings.ToLower(result.String())
}
