package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MaxtDesign/MaxtPM/internal/response"
	"github.com/MaxtDesign/MaxtPM/internal/service"
)

type userStatusRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

// SetUserStatus activates or deactivates an account. Deactivation ends every
// session of the user.
func (h HandlerSet) SetUserStatus(c *gin.Context) {
	var req userStatusRequest
	if !bind(c, &req) {
		return
	}

	user, err := h.auth.SetUserActive(c.Request.Context(), c.Param("id"), *req.IsActive)
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		response.Fail(c, http.StatusNotFound, "USER_NOT_FOUND", "User not found", nil)
		return
	case err != nil:
		h.internalError(c, err, "UPDATE_USER_STATUS_FAILED", "Failed to update user status")
		return
	}

	message := "User deactivated"
	if user.IsActive {
		message = "User activated"
	}
	response.OK(c, http.StatusOK, gin.H{"user": newUserView(user)}, message)
}
