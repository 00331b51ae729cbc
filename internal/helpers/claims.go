package helpers

import "github.com/joshua-takyi/eventpass/internal/models"

const RoleAnonymous = "anonymous"

// Caller is the identity the upstream token resolves to. A nil Caller or
// one without SubjectID is anonymous.
type Caller struct {
	SubjectID string `json:"id"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role"`
}

func (c *Caller) IsAnonymous() bool {
	return c == nil || c.SubjectID == ""
}

// IsAdmin is true for both admin and superadmin.
func (c *Caller) IsAdmin() bool {
	if c.IsAnonymous() {
		return false
	}
	return c.Role == models.RoleAdmin || c.Role == models.RoleSuperAdmin
}

func (c *Caller) HasRole(roles ...string) bool {
	role := c.GetSafeRole()
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func (c *Caller) IsOwner(attendeeID string) bool {
	return !c.IsAnonymous() && c.SubjectID == attendeeID
}

func (c *Caller) GetSafeRole() string {
	if c.IsAnonymous() {
		return RoleAnonymous
	}
	if c.Role == "" {
		return models.RoleGuest
	}
	return c.Role
}
