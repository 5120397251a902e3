// Package access holds the role/path authorization predicates. Pure
// functions over role and path data: no I/O, safe on every request.
package access

import "linoslms.org/internal/records"

// pathRoles maps protected screen paths to the roles allowed in.
// Paths absent from the table are implicitly allowed; the route guard
// only consults the table for screens that declare role requirements.
var pathRoles = map[string][]records.Role{
	"/users":     {records.RoleAdministrator},
	"/patients":  {records.RoleAdministrator, records.RoleReceptionist, records.RoleProvider},
	"/specimens": {records.RoleAdministrator, records.RoleCollector, records.RoleTechnician},
	"/testing":   {records.RoleAdministrator, records.RoleTechnician, records.RoleSupervisor},
	"/results":   {records.RoleAdministrator, records.RoleTechnician, records.RoleSupervisor, records.RoleProvider},
}

// HasRole reports whether the user holds one of the required roles.
// An Administrator passes every check regardless of the required set;
// an unrecognized role never matches anything.
func HasRole(user *records.User, required ...records.Role) bool {
	if user == nil || user.Role == "" {
		return false
	}
	if user.Role == records.RoleAdministrator {
		return true
	}
	for _, role := range required {
		if user.Role == role {
			return true
		}
	}
	return false
}

// CanAccess reports whether the user may reach the given screen path.
func CanAccess(user *records.User, path string) bool {
	if user == nil || user.Role == "" {
		return false
	}
	allowed, listed := pathRoles[path]
	if !listed {
		return true
	}
	return HasRole(user, allowed...)
}
