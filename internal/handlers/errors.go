package handlers

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/MaxtDesign/MaxtPM/internal/middleware"
	"github.com/MaxtDesign/MaxtPM/internal/response"
	"github.com/MaxtDesign/MaxtPM/internal/security"
	"github.com/MaxtDesign/MaxtPM/internal/service"
)

var validatorsOnce sync.Once

// registerValidators teaches gin's validator the account_email tag and makes
// it report JSON field names.
func registerValidators() {
	validatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("account_email", func(fl validator.FieldLevel) bool {
			return security.IsValidEmail(fl.Field().String())
		})
	})
}

var fieldLabels = map[string]string{
	"email":           "Email",
	"password":        "Password",
	"confirmPassword": "Password confirmation",
	"firstName":       "First name",
	"lastName":        "Last name",
	"street":          "Street",
	"city":            "City",
	"state":           "State",
	"zipCode":         "Zip code",
	"country":         "Country",
	"refreshToken":    "Refresh token",
	"token":           "Reset token",
	"currentPassword": "Current password",
	"newPassword":     "New password",
	"isActive":        "Active flag",
}

func fieldMessage(fe validator.FieldError) string {
	label, ok := fieldLabels[fe.Field()]
	if !ok {
		label = fe.Field()
	}
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "account_email":
		if fe.Field() == "companyEmail" {
			return "Invalid company email"
		}
		return "Invalid email address"
	case "max":
		return label + " too long"
	case "eqfield":
		return "Passwords don't match"
	}
	return label + " is invalid"
}

// bind decodes the JSON body into req and answers VALIDATION_ERROR on
// failure. It reports whether the handler may continue.
func bind(c *gin.Context, req any) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		response.Fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request data", nil)
		return false
	}

	details := make([]response.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, response.FieldError{
			Field:   fieldPath(fe.Namespace()),
			Message: fieldMessage(fe),
		})
	}
	response.Fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Request validation failed", details)
	return false
}

// fieldPath drops the struct name validator puts in front of the namespace.
func fieldPath(namespace string) string {
	_, rest, ok := strings.Cut(namespace, ".")
	if !ok {
		return namespace
	}
	return rest
}

func weakPassword(c *gin.Context, err error) {
	var policy *service.PasswordPolicyError
	var details any
	if errors.As(err, &policy) {
		details = policy.Violations
	}
	response.Fail(c, http.StatusBadRequest, "WEAK_PASSWORD", "Password does not meet security requirements", details)
}

// internalError logs err and answers 500 with code. The error text is only
// exposed outside production.
func (h HandlerSet) internalError(c *gin.Context, err error, code, message string) {
	h.log.Error().
		Err(err).
		Str("request_id", middleware.GetRequestID(c)).
		Str("code", code).
		Msg(message)

	var details any
	if !h.cfg.IsProduction() {
		details = err.Error()
	}
	response.Fail(c, http.StatusInternalServerError, code, message, details)
}
