package users

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Role names issued by the server
const (
	RoleUser  = "ROLE_USER"
	RoleAdmin = "ROLE_ADMIN"
)

// Profile is the server's view of a user. It is a snapshot: the client never
// edits it, it only replaces it with a newer one.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Enabled   bool      `json:"enabled"`
	Roles     []string  `json:"roles"`
	CreatedAt Timestamp `json:"createdAt"`
	UpdatedAt Timestamp `json:"updatedAt"`
}

func (p *Profile) HasRole(role string) bool {
	if p == nil {
		return false
	}
	return slices.Contains(p.Roles, role)
}

func (p *Profile) IsAdmin() bool {
	return p.HasRole(RoleAdmin)
}

// IsRegularUser is true for users holding ROLE_USER without ROLE_ADMIN.
func (p *Profile) IsRegularUser() bool {
	return p.HasRole(RoleUser) && !p.IsAdmin()
}

func (p *Profile) FullName() string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Initials returns e.g. "JD" for John Doe.
func (p *Profile) Initials() string {
	if p == nil {
		return ""
	}
	return initial(p.FirstName) + initial(p.LastName)
}

// DisplayRoles strips the ROLE_ prefix and drops duplicates, keeping order.
func (p *Profile) DisplayRoles() []string {
	if p == nil {
		return nil
	}
	out := make([]string, 0, len(p.Roles))
	for _, r := range p.Roles {
		name := strings.TrimPrefix(r, "ROLE_")
		if !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}

func initial(name string) string {
	r, _ := utf8.DecodeRuneInString(strings.TrimSpace(name))
	if r == utf8.RuneError {
		return ""
	}
	return string(unicode.ToUpper(r))
}
