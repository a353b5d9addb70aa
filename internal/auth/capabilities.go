package auth

import "github.com/spec-kit/defect-dispatch/internal/domain"

// Capability is the set of things a role may do with reports.
type Capability struct {
	// Categories the role sees in listings and may read.
	Categories []domain.ReportCategory
	// OwnReportsOnly limits listings to reports the caller filed.
	OwnReportsOnly bool
	// Respond allows accepting and working reports of the visible categories.
	Respond bool
	// Supervisory roles are told about major defects as soon as they are filed.
	Supervisory bool
}

// capabilities is the only place role semantics are defined. Roles missing
// from the table see nothing.
var capabilities = map[domain.Role]Capability{
	domain.RoleReporter: {
		Categories:     domain.AllCategories,
		OwnReportsOnly: true,
	},
	domain.RoleGeneralResponder: {
		Categories: []domain.ReportCategory{domain.ReportCategoryGeneral},
		Respond:    true,
	},
	domain.RoleSpecializedResponder: {
		Categories: []domain.ReportCategory{domain.ReportCategorySpecialized},
		Respond:    true,
	},
	domain.RoleSupervisor: {
		Categories:  domain.AllCategories,
		Respond:     true,
		Supervisory: true,
	},
	domain.RoleAdmin: {
		Categories:  domain.AllCategories,
		Respond:     true,
		Supervisory: true,
	},
}

// CapabilityFor returns the capability of role and whether the role is known.
func CapabilityFor(role domain.Role) (Capability, bool) {
	c, ok := capabilities[role]
	return c, ok
}

// CanSee reports whether role may read reports of category.
func CanSee(role domain.Role, category domain.ReportCategory) bool {
	c, ok := capabilities[role]
	if !ok {
		return false
	}
	for _, visible := range c.Categories {
		if visible == category {
			return true
		}
	}
	return false
}

// CanRespond reports whether role may accept and work reports of category.
func CanRespond(role domain.Role, category domain.ReportCategory) bool {
	c, ok := capabilities[role]
	return ok && c.Respond && CanSee(role, category)
}

// SupervisoryRoles lists the roles notified about major defects at filing time.
func SupervisoryRoles() []domain.Role {
	return rolesWhere(func(c Capability) bool { return c.Supervisory })
}

// ResponderRoles lists roles allowed to respond to at least one category.
func ResponderRoles() []domain.Role {
	return rolesWhere(func(c Capability) bool { return c.Respond })
}

// Roles lists every role present in the capability table, in display order.
func Roles() []domain.Role {
	return rolesWhere(func(Capability) bool { return true })
}

func rolesWhere(match func(Capability) bool) []domain.Role {
	var roles []domain.Role
	for _, role := range domain.AllRoles {
		if c, ok := capabilities[role]; ok && match(c) {
			roles = append(roles, role)
		}
	}
	return roles
}
