package handlers

import (
	"time"

	"github.com/MaxtDesign/MaxtPM/internal/models"
)

type tokensView struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type userView struct {
	ID        string          `json:"id"`
	Email     string          `json:"email"`
	FirstName string          `json:"firstName"`
	LastName  string          `json:"lastName"`
	Role      models.UserRole `json:"role"`
	CompanyID *string         `json:"companyId"`
	IsActive  bool            `json:"isActive"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	// Company is a companyRef after login and a companyView on /auth/me.
	Company any `json:"company,omitempty"`
}

type companyRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type companyView struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Address   models.Address `json:"address"`
	Phone     string         `json:"phone"`
	Email     string         `json:"email"`
	Website   *string        `json:"website"`
	Logo      *string        `json:"logo"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func newTokensView(t models.AuthTokens) tokensView {
	return tokensView{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresIn:    t.ExpiresIn,
	}
}

func newUserView(u models.User) userView {
	return userView{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		CompanyID: u.CompanyID,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func newCompanyView(c models.Company) companyView {
	return companyView{
		ID:        c.ID,
		Name:      c.Name,
		Address:   c.Address,
		Phone:     c.Phone,
		Email:     c.Email,
		Website:   c.Website,
		Logo:      c.Logo,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func newUserViews(users []models.User) []userView {
	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, newUserView(u))
	}
	return views
}
