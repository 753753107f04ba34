package auth

// AdminScope grants destructive operations such as flow deletion.
const AdminScope = "flowdb:admin"

// Claims represents authentication token claims
type Claims struct {
	Subject string
	Scopes  []string
	Raw     map[string]interface{}
}

// HasScope checks if the claims contain a specific scope
func (c *Claims) HasScope(scope string) bool {
	if c == nil {
		return false
	}
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the claims carry the admin scope or an ADMIN role.
func (c *Claims) IsAdmin() bool {
	if c == nil {
		return false
	}
	if c.HasScope(AdminScope) {
		return true
	}
	role, _ := c.Raw["role"].(string)
	return role == "ADMIN"
}

// Validator validates authentication tokens
type Validator interface {
	Validate(token string) (*Claims, error)
}
