package identity

import "strings"

const (
	RolePatient = "patient"
	RoleAdmin   = "admin" // ASHA worker / delivery partner
	RoleDoctor  = "doctor"
)

var validRoles = map[string]bool{
	RolePatient: true,
	RoleAdmin:   true,
	RoleDoctor:  true,
}

func ValidRole(role string) bool {
	return validRoles[role]
}

type User struct {
	ID               string `db:"id" json:"id"`
	Name             string `db:"name" json:"name"`
	Phone            string `db:"phone" json:"phone"`
	Village          string `db:"village" json:"village"`
	Area             string `db:"area" json:"area"`
	Role             string `db:"role" json:"role"`
	HealthCardNumber string `db:"health_card_number" json:"healthCardNumber,omitempty"`
}

func (u *User) IsPatient() bool { return u.Role == RolePatient }

// ProfileComplete reports whether the fields needed for delivery are filled.
func (u *User) ProfileComplete() bool {
	return strings.TrimSpace(u.Name) != "" &&
		strings.TrimSpace(u.Village) != "" &&
		strings.TrimSpace(u.Area) != ""
}

// Clone returns a copy that the caller may modify freely.
func (u *User) Clone() *User {
	c := *u
	return &c
}

// Address is the synthetic delivery address derived from a user's profile.
type Address struct {
	Address    string `json:"address"`
	PostalCode string `json:"postalCode"`
}
