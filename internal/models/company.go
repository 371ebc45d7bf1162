package models

import "time"

type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}

type Company struct {
	ID        string
	Name      string
	Address   Address
	Phone     string
	Email     string
	Website   *string
	Logo      *string
	CreatedAt time.Time
	UpdatedAt time.Time
}
