package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MaxtDesign/MaxtPM/internal/middleware"
	"github.com/MaxtDesign/MaxtPM/internal/models"
	"github.com/MaxtDesign/MaxtPM/internal/response"
	"github.com/MaxtDesign/MaxtPM/internal/service"
)

type addressRequest struct {
	Street  string `json:"street" binding:"required"`
	City    string `json:"city" binding:"required"`
	State   string `json:"state" binding:"required"`
	ZipCode string `json:"zipCode" binding:"required"`
	Country string `json:"country" binding:"required"`
}

type registerRequest struct {
	Email           string          `json:"email" binding:"required,account_email"`
	FirstName       string          `json:"firstName" binding:"required,max=50"`
	LastName        string          `json:"lastName" binding:"required,max=50"`
	Password        string          `json:"password" binding:"required"`
	ConfirmPassword string          `json:"confirmPassword" binding:"required,eqfield=Password"`
	CompanyName     string          `json:"companyName"`
	CompanyAddress  *addressRequest `json:"companyAddress" binding:"omitempty"`
	CompanyPhone    string          `json:"companyPhone"`
	CompanyEmail    string          `json:"companyEmail" binding:"omitempty,account_email"`
}

func (h HandlerSet) RegisterUser(c *gin.Context) {
	var req registerRequest
	if !bind(c, &req) {
		return
	}

	input := service.RegisterInput{
		Email:        req.Email,
		Password:     req.Password,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		CompanyName:  req.CompanyName,
		CompanyPhone: req.CompanyPhone,
		CompanyEmail: req.CompanyEmail,
	}
	if a := req.CompanyAddress; a != nil {
		input.CompanyAddress = &models.Address{
			Street:  a.Street,
			City:    a.City,
			State:   a.State,
			ZipCode: a.ZipCode,
			Country: a.Country,
		}
	}

	result, err := h.auth.Register(c.Request.Context(), input)
	switch {
	case errors.Is(err, service.ErrUserAlreadyExists):
		response.Fail(c, http.StatusBadRequest, "USER_ALREADY_EXISTS", "A user with this email already exists", nil)
		return
	case errors.Is(err, service.ErrWeakPassword):
		weakPassword(c, err)
		return
	case err != nil:
		h.internalError(c, err, "REGISTRATION_FAILED", "Failed to register user")
		return
	}

	response.OK(c, http.StatusCreated, gin.H{
		"user":   newUserView(result.User),
		"tokens": newTokensView(result.Tokens),
	}, "User registered successfully")
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,account_email"`
	Password string `json:"password" binding:"required"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if !bind(c, &req) {
		return
	}

	result, err := h.auth.Login(c.Request.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Fail(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil)
		return
	case errors.Is(err, service.ErrAccountInactive):
		response.Fail(c, http.StatusUnauthorized, "ACCOUNT_INACTIVE", "Account is inactive. Please contact support.", nil)
		return
	case err != nil:
		h.internalError(c, err, "LOGIN_FAILED", "Failed to authenticate user")
		return
	}

	user := newUserView(result.User)
	if result.Company != nil {
		user.Company = companyRef{ID: result.Company.ID, Name: result.Company.Name}
	}
	response.OK(c, http.StatusOK, gin.H{
		"user":   user,
		"tokens": newTokensView(result.Tokens),
	}, "Login successful")
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

func (h HandlerSet) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bind(c, &req) {
		return
	}

	tokens, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	switch {
	case errors.Is(err, service.ErrInvalidRefreshToken):
		response.Fail(c, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "Invalid or expired refresh token", nil)
		return
	case errors.Is(err, service.ErrUserNotFound):
		response.Fail(c, http.StatusUnauthorized, "USER_NOT_FOUND", "User not found or account is inactive", nil)
		return
	case err != nil:
		h.log.Error().Err(err).Str("request_id", middleware.GetRequestID(c)).Msg("token refresh failed")
		response.Fail(c, http.StatusUnauthorized, "REFRESH_FAILED", "Failed to refresh token", nil)
		return
	}

	response.OK(c, http.StatusOK, gin.H{"tokens": newTokensView(tokens)}, "Token refreshed successfully")
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Logout revokes the refresh token in the body, if any. The body is optional.
func (h HandlerSet) Logout(c *gin.Context) {
	var req logoutRequest
	if c.Request.ContentLength != 0 {
		_ = c.ShouldBindJSON(&req)
	}

	if err := h.auth.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		h.internalError(c, err, "LOGOUT_FAILED", "Failed to logout")
		return
	}
	response.OK(c, http.StatusOK, nil, "Logged out successfully")
}

func (h HandlerSet) LogoutAll(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}
	if err := h.auth.LogoutAll(c.Request.Context(), identity.ID); err != nil {
		h.internalError(c, err, "LOGOUT_ALL_FAILED", "Failed to logout from all devices")
		return
	}
	response.OK(c, http.StatusOK, nil, "Logged out from all devices successfully")
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required,account_email"`
}

const forgotPasswordMessage = "If an account with that email exists, a password reset link has been sent."

func (h HandlerSet) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if !bind(c, &req) {
		return
	}

	err := h.auth.ForgotPassword(c.Request.Context(), req.Email)
	switch {
	case errors.Is(err, service.ErrEmailSendFailed):
		response.Fail(c, http.StatusInternalServerError, "EMAIL_SEND_FAILED", "Failed to send password reset email", nil)
		return
	case err != nil:
		h.internalError(c, err, "FORGOT_PASSWORD_FAILED", "Failed to process password reset request")
		return
	}
	response.OK(c, http.StatusOK, nil, forgotPasswordMessage)
}

type resetPasswordRequest struct {
	Token           string `json:"token" binding:"required"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required,eqfield=Password"`
}

func (h HandlerSet) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bind(c, &req) {
		return
	}

	err := h.auth.ResetPassword(c.Request.Context(), req.Token, req.Password)
	switch {
	case errors.Is(err, service.ErrInvalidResetToken):
		response.Fail(c, http.StatusBadRequest, "INVALID_RESET_TOKEN", "Invalid or expired reset token", nil)
		return
	case errors.Is(err, service.ErrWeakPassword):
		weakPassword(c, err)
		return
	case err != nil:
		h.internalError(c, err, "RESET_PASSWORD_FAILED", "Failed to reset password")
		return
	}
	response.OK(c, http.StatusOK, nil, "Password reset successfully")
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required,eqfield=NewPassword"`
}

func (h HandlerSet) ChangePassword(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}
	var req changePasswordRequest
	if !bind(c, &req) {
		return
	}

	err := h.auth.ChangePassword(c.Request.Context(), identity.ID, req.CurrentPassword, req.NewPassword)
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		response.Fail(c, http.StatusNotFound, "USER_NOT_FOUND", "User not found", nil)
		return
	case errors.Is(err, service.ErrInvalidCurrentPassword):
		response.Fail(c, http.StatusBadRequest, "INVALID_CURRENT_PASSWORD", "Current password is incorrect", nil)
		return
	case errors.Is(err, service.ErrWeakPassword):
		weakPassword(c, err)
		return
	case err != nil:
		h.internalError(c, err, "CHANGE_PASSWORD_FAILED", "Failed to change password")
		return
	}
	response.OK(c, http.StatusOK, nil, "Password changed successfully. Please log in again.")
}

func (h HandlerSet) Me(c *gin.Context) {
	identity, ok := h.identity(c)
	if !ok {
		return
	}

	profile, err := h.auth.Profile(c.Request.Context(), identity.ID)
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		response.Fail(c, http.StatusNotFound, "USER_NOT_FOUND", "User not found", nil)
		return
	case err != nil:
		h.internalError(c, err, "GET_PROFILE_FAILED", "Failed to retrieve user profile")
		return
	}

	user := newUserView(profile.User)
	if profile.Company != nil {
		user.Company = newCompanyView(*profile.Company)
	}
	response.OK(c, http.StatusOK, gin.H{"user": user}, "User profile retrieved successfully")
}

// identity answers 401 when no caller is attached, which only happens when a
// route is registered without Authenticate.
func (h HandlerSet) identity(c *gin.Context) (models.Identity, bool) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
	}
	return identity, ok
}
