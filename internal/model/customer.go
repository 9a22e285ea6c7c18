package model

import "time"

type Customer struct {
	ID        uint
	Code      string
	FullName  string
	Phone     string
	Email     string
	Address   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
