package domain

// Role enumerates the roles supplied by the identity provider.
type Role string

const (
	RoleServiceStaff Role = "SC_STAFF"
	RoleTechnician   Role = "SC_TECHNICIAN"
	RoleEVMStaff     Role = "EVM_STAFF"
	RoleAdmin        Role = "ADMIN"
)

// Actor is the caller of a command. Credentials are validated upstream.
type Actor struct {
	ID    string
	Roles []Role
}

// HasRole reports whether the actor holds any of the given roles.
func (a Actor) HasRole(roles ...Role) bool {
	for _, held := range a.Roles {
		if held == RoleAdmin {
			return true
		}
		for _, r := range roles {
			if held == r {
				return true
			}
		}
	}
	return false
}

// SystemActor is used by scheduled jobs acting on read-only queries.
var SystemActor = Actor{ID: "system"}
