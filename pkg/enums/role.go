package enums

import "fmt"

// ActorRole represents the permission level carried by an access token.
type ActorRole string

const (
	ActorRoleAdmin    ActorRole = "admin"
	ActorRoleStaff    ActorRole = "staff"
	ActorRoleCustomer ActorRole = "customer"
)

var validActorRoles = []ActorRole{
	ActorRoleAdmin,
	ActorRoleStaff,
	ActorRoleCustomer,
}

// IsValid reports whether the value is a known ActorRole.
func (r ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// CanManageStore reports whether the role may reach back-office routes.
func (r ActorRole) CanManageStore() bool {
	return r == ActorRoleAdmin || r == ActorRoleStaff
}

// ParseActorRole converts raw input into an ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	for _, candidate := range validActorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}
