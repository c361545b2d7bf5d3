package models

type Role string

const (
	RolePremium  Role = "premium"
	RoleStandard Role = "standard"
	RoleGuest    Role = "guest"
)

const GuestUsername = "guest"

func (r Role) Valid() bool {
	switch r {
	case RolePremium, RoleStandard, RoleGuest:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}
