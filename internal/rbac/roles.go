package rbac

// Role names carried in access tokens.
const (
	RoleUser          = "user"
	RoleAdministrator = "administrator"
	// RoleGuest identifies anonymous callers that may only take part in calls
	// they were invited to.
	RoleGuest = "guest"
)

func IsAdministrator(role string) bool { return role == RoleAdministrator }

// Known reports whether role is one of the roles this service issues.
func Known(role string) bool {
	switch role {
	case RoleUser, RoleAdministrator, RoleGuest:
		return true
	}
	return false
}
