package domain

// Role enumerates the callers of the dispatch service.
type Role string

const (
	RoleReporter             Role = "reporter"
	RoleGeneralResponder     Role = "general_responder"
	RoleSpecializedResponder Role = "specialized_responder"
	RoleSupervisor           Role = "supervisor"
	RoleAdmin                Role = "admin"
)

// AllRoles lists every role in display order. The auth capability table has
// exactly one entry per role listed here.
var AllRoles = []Role{
	RoleReporter,
	RoleGeneralResponder,
	RoleSpecializedResponder,
	RoleSupervisor,
	RoleAdmin,
}

// IsValid checks if the role is one of the known values.
func (r Role) IsValid() bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}
