package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MaxtDesign/MaxtPM/internal/response"
	"github.com/MaxtDesign/MaxtPM/internal/service"
)

func (h HandlerSet) GetCompany(c *gin.Context) {
	company, err := h.companies.Get(c.Request.Context(), c.Param("companyId"))
	if err != nil {
		h.companyError(c, err, "GET_COMPANY_FAILED", "Failed to retrieve company")
		return
	}
	response.OK(c, http.StatusOK, gin.H{"company": newCompanyView(company)}, "")
}

func (h HandlerSet) ListCompanyUsers(c *gin.Context) {
	users, err := h.companies.ListUsers(c.Request.Context(), c.Param("companyId"))
	if err != nil {
		h.companyError(c, err, "LIST_USERS_FAILED", "Failed to list company users")
		return
	}
	response.OK(c, http.StatusOK, gin.H{"users": newUserViews(users)}, "")
}

// UploadCompanyLogo takes the image from the multipart field "logo".
func (h HandlerSet) UploadCompanyLogo(c *gin.Context) {
	file, _, err := c.Request.FormFile("logo")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Request validation failed", []response.FieldError{
			{Field: "logo", Message: "Logo file is required"},
		})
		return
	}
	defer file.Close()

	company, err := h.companies.UploadLogo(c.Request.Context(), c.Param("companyId"), file)
	if err != nil {
		h.companyError(c, err, "LOGO_UPLOAD_FAILED", "Failed to upload company logo")
		return
	}
	response.OK(c, http.StatusOK, gin.H{"company": newCompanyView(company)}, "Company logo updated")
}

func (h HandlerSet) companyError(c *gin.Context, err error, code, message string) {
	switch {
	case errors.Is(err, service.ErrCompanyNotFound):
		response.Fail(c, http.StatusNotFound, "COMPANY_NOT_FOUND", "Company not found", nil)
	case errors.Is(err, service.ErrUnsupportedImage):
		response.Fail(c, http.StatusBadRequest, "INVALID_IMAGE", "Logo must be a JPEG, PNG, GIF, WebP or AVIF image", nil)
	case errors.Is(err, service.ErrImageTooLarge):
		response.Fail(c, http.StatusRequestEntityTooLarge, "IMAGE_TOO_LARGE", "Logo exceeds the maximum allowed size", nil)
	case errors.Is(err, service.ErrStorageUnavailable):
		response.Fail(c, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "File storage is not available", nil)
	default:
		h.internalError(c, err, code, message)
	}
}
