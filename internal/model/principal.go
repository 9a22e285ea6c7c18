package model

// Principal is the authenticated staff identity extracted from the
// access token. The core treats the id as opaque.
type Principal struct {
	UserID   uint
	Role     string
	FullName string
}

func (p Principal) IsAdmin() bool        { return p.Role == "ADMIN" }
func (p Principal) IsAccountant() bool   { return p.Role == "ACCOUNTING" }
func (p Principal) IsServiceStaff() bool { return p.Role == "SERVICE" }
func (p Principal) IsTechnician() bool   { return p.Role == "TECHNICAL" }
func (p Principal) IsCustomer() bool     { return p.Role == "CUSTOMER" }
