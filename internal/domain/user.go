package domain

import (
	"strings"
	"time"
)

// Role is the access level of the current session.
type Role string

const (
	RoleGuest     Role = "guest"
	RoleBuyer     Role = "buyer"
	RoleSeller    Role = "seller"
	RoleInspector Role = "inspector"
	RoleAdmin     Role = "admin"
)

// rolePriority orders roles by privilege. Higher wins when a profile carries
// several.
var rolePriority = map[Role]int{
	RoleBuyer:     1,
	RoleSeller:    2,
	RoleInspector: 3,
	RoleAdmin:     4,
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleGuest || rolePriority[r] > 0
}

// ParseRole maps a backend role name onto a Role. Names are case-insensitive
// and may carry a ROLE_ prefix; "user" and "customer" are buyers. Unknown
// names return false.
func ParseRole(name string) (Role, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.TrimPrefix(n, "role_")
	switch n {
	case "user", "customer":
		return RoleBuyer, true
	}
	r := Role(n)
	if rolePriority[r] > 0 {
		return r, true
	}
	return "", false
}

// NormalizeRoles picks the most privileged recognised role among names.
// An authenticated profile with no recognised role is a buyer.
func NormalizeRoles(names []string) Role {
	best := RoleBuyer
	for _, name := range names {
		if r, ok := ParseRole(name); ok && rolePriority[r] > rolePriority[best] {
			best = r
		}
	}
	return best
}

// User is the profile of the signed-in account.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone,omitempty"`
	Role          Role      `json:"role"`
	CreatedAt     time.Time `json:"created_at"`
	IsKYCVerified bool      `json:"is_kyc_verified"`
}

// ProfileUpdate carries the fields of a partial profile edit. Nil fields are
// left unchanged.
type ProfileUpdate struct {
	Name  *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Phone *string `json:"phone,omitempty" validate:"omitempty,phone"`
	Email *string `json:"email,omitempty" validate:"omitempty,email"`
}

// Apply merges the non-nil fields of p into u.
func (p ProfileUpdate) Apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
}

// RoleOf returns the session role for an optional user.
func RoleOf(u *User) Role {
	if u == nil {
		return RoleGuest
	}
	if u.Role == "" || u.Role == RoleGuest {
		return RoleBuyer
	}
	return u.Role
}
