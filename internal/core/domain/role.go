package domain

import "golang.org/x/text/unicode/norm"

// RoleID identifies an entry of the fixed role catalog.
type RoleID int64

const (
	RoleAdmin    RoleID = 1
	RoleManager  RoleID = 2
	RoleEmployee RoleID = 3
)

// Role names as they appear in tokens and API responses.
const (
	RoleNameAdmin    = "Admin"
	RoleNameManager  = "Manager"
	RoleNameEmployee = "Employé"
)

// Role is a catalog entry.
type Role struct {
	ID          RoleID `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var catalog = []Role{
	{ID: RoleAdmin, Name: RoleNameAdmin, Description: "Administrateur avec tous les droits"},
	{ID: RoleManager, Name: RoleNameManager, Description: "Manager avec droits de gestion"},
	{ID: RoleEmployee, Name: RoleNameEmployee, Description: "Employé avec droits basiques"},
}

// roleIDsByName also accepts the English alias for the employee role.
var roleIDsByName = map[string]RoleID{
	RoleNameAdmin:    RoleAdmin,
	RoleNameManager:  RoleManager,
	RoleNameEmployee: RoleEmployee,
	"Employee":       RoleEmployee,
}

// Roles returns a copy of the catalog ordered by id.
func Roles() []Role {
	out := make([]Role, len(catalog))
	copy(out, catalog)
	return out
}

// LookupRole returns the catalog entry for id.
func LookupRole(id RoleID) (Role, bool) {
	for _, r := range catalog {
		if r.ID == id {
			return r, true
		}
	}
	return Role{}, false
}

// RoleIDForName maps a role name to its id. Unknown names map to the
// employee role.
func RoleIDForName(name string) RoleID {
	if id, ok := roleIDsByName[norm.NFC.String(name)]; ok {
		return id
	}
	return RoleEmployee
}

type roleInputKind int

const (
	roleInputDefault roleInputKind = iota
	roleInputIDs
	roleInputNames
)

// RoleInput is the role part of a user creation request. It holds exactly
// one of: explicit role ids, role names, or nothing (default role).
type RoleInput struct {
	kind  roleInputKind
	ids   []RoleID
	names []string
}

// RoleInputFromIDs selects the explicit-id variant.
func RoleInputFromIDs(ids []RoleID) RoleInput {
	return RoleInput{kind: roleInputIDs, ids: ids}
}

// RoleInputFromNames selects the role-name variant.
func RoleInputFromNames(names []string) RoleInput {
	return RoleInput{kind: roleInputNames, names: names}
}

// NewRoleInput picks the variant from a request carrying both formats:
// non-empty ids win over non-empty names, and neither yields the default.
func NewRoleInput(ids []RoleID, names []string) RoleInput {
	switch {
	case len(ids) > 0:
		return RoleInputFromIDs(ids)
	case len(names) > 0:
		return RoleInputFromNames(names)
	default:
		return RoleInput{}
	}
}

// ResolveRoles turns a RoleInput into a deduplicated list of role ids.
// Ids are not checked against the catalog; see AssignableRoles.
func ResolveRoles(in RoleInput) []RoleID {
	switch {
	case in.kind == roleInputIDs && len(in.ids) > 0:
		return dedupRoleIDs(in.ids)
	case in.kind == roleInputNames && len(in.names) > 0:
		ids := make([]RoleID, 0, len(in.names))
		for _, name := range in.names {
			ids = append(ids, RoleIDForName(name))
		}
		return dedupRoleIDs(ids)
	default:
		return []RoleID{RoleEmployee}
	}
}

// AssignableRoles keeps the ids present in the catalog, deduplicated and in
// input order.
func AssignableRoles(ids []RoleID) []RoleID {
	out := make([]RoleID, 0, len(ids))
	for _, id := range dedupRoleIDs(ids) {
		if _, ok := LookupRole(id); ok {
			out = append(out, id)
		}
	}
	return out
}

func dedupRoleIDs(ids []RoleID) []RoleID {
	seen := make(map[RoleID]struct{}, len(ids))
	out := make([]RoleID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
