package client

import (
	"fmt"
	"time"
)

type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}

// Company carries only id and name after login; /auth/me fills the rest.
type Company struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Address *Address `json:"address,omitempty"`
	Phone   string   `json:"phone,omitempty"`
	Email   string   `json:"email,omitempty"`
	Website *string  `json:"website,omitempty"`
	Logo    *string  `json:"logo,omitempty"`
}

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Role      string    `json:"role"`
	CompanyID *string   `json:"companyId"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Company   *Company  `json:"company,omitempty"`
}

type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type RegisterRequest struct {
	Email           string   `json:"email"`
	FirstName       string   `json:"firstName"`
	LastName        string   `json:"lastName"`
	Password        string   `json:"password"`
	ConfirmPassword string   `json:"confirmPassword"`
	CompanyName     string   `json:"companyName,omitempty"`
	CompanyAddress  *Address `json:"companyAddress,omitempty"`
	CompanyPhone    string   `json:"companyPhone,omitempty"`
	CompanyEmail    string   `json:"companyEmail,omitempty"`
}

// APIError is a failed response decoded from the error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notice is a user-facing outcome of an operation.
type Notice struct {
	Level   Level
	Message string
}

type Notifier interface {
	Notify(Notice)
}

type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }
