package apiclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/Pinash124/bike-hub-sub000/internal/domain"
)

// WireID is an identifier the API sends either as a string or as a number.
type WireID string

// UnmarshalJSON accepts "u1", 42 and null.
func (id *WireID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = WireID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("id: expected string or number")
	}
	*id = WireID(n.String())
	return nil
}

// WireRole is a role entry as the API reports it.
type WireRole struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// WireProfile is the my-info result.
type WireProfile struct {
	ID        WireID     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Phone     string     `json:"phone"`
	Roles     []WireRole `json:"roles"`
	Verified  bool       `json:"verified"`
	CreatedAt string     `json:"createdAt"`
}

// ToUser converts the API profile into the session user. Usernames are the
// account email. An unparseable createdAt is left zero.
func ToUser(p WireProfile) domain.User {
	names := make([]string, 0, len(p.Roles))
	for _, r := range p.Roles {
		names = append(names, r.Name)
	}

	email := p.Email
	if email == "" {
		email = p.Username
	}

	u := domain.User{
		ID:            string(p.ID),
		Email:         email,
		Name:          p.Name,
		Phone:         p.Phone,
		Role:          domain.NormalizeRoles(names),
		IsKYCVerified: p.Verified,
	}
	if p.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339, p.CreatedAt); err == nil {
			u.CreatedAt = t.UTC()
		}
	}
	return u
}
