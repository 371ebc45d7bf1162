package security

import "github.com/MaxtDesign/MaxtPM/internal/models"

// CanAccessCompany decides whether a caller may touch a record owned by
// resourceCompanyID. Admins see every company; everyone else only their own.
// An empty resourceCompanyID means the record is not company scoped.
func CanAccessCompany(role models.UserRole, callerCompanyID *string, resourceCompanyID string) bool {
	if role == models.UserRoleAdmin {
		return true
	}
	if resourceCompanyID == "" {
		return true
	}
	return callerCompanyID != nil && *callerCompanyID == resourceCompanyID
}
