package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResolveRoles_IDsTakePrecedence(t *testing.T) {
	in := NewRoleInput([]RoleID{1, 2}, []string{"Employee"})
	assert.Equal(t, []RoleID{1, 2}, ResolveRoles(in))
}

func TestResolveRoles_IDsDeduplicatedNotValidated(t *testing.T) {
	in := RoleInputFromIDs([]RoleID{2, 9, 2, 1})
	assert.Equal(t, []RoleID{2, 9, 1}, ResolveRoles(in))
}

func TestResolveRoles_NamesDeduplicated(t *testing.T) {
	in := NewRoleInput(nil, []string{"Admin", "Admin"})
	assert.Equal(t, []RoleID{1}, ResolveRoles(in))
}

func TestResolveRoles_NameMapping(t *testing.T) {
	cases := []struct {
		name string
		want RoleID
	}{
		{"Admin", RoleAdmin},
		{"Manager", RoleManager},
		{"Employé", RoleEmployee},
		{"Employee", RoleEmployee},
		{"Employe\u0301", RoleEmployee}, // decomposed accent
		{"admin", RoleEmployee},         // names are case-sensitive
		{"Auditor", RoleEmployee},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, RoleIDForName(tc.name))
		})
	}
}

func TestResolveRoles_UnknownNamesCollapseToEmployee(t *testing.T) {
	in := RoleInputFromNames([]string{"Auditor", "Manager", "Guest"})
	assert.Equal(t, []RoleID{RoleEmployee, RoleManager}, ResolveRoles(in))
}

func TestResolveRoles_DefaultsToEmployee(t *testing.T) {
	assert.Equal(t, []RoleID{RoleEmployee}, ResolveRoles(NewRoleInput(nil, nil)))
	assert.Equal(t, []RoleID{RoleEmployee}, ResolveRoles(NewRoleInput([]RoleID{}, []string{})))
	assert.Equal(t, []RoleID{RoleEmployee}, ResolveRoles(RoleInputFromIDs(nil)))
}

func TestAssignableRoles_DropsUnknownIDs(t *testing.T) {
	assert.Equal(t, []RoleID{3, 1}, AssignableRoles([]RoleID{3, 42, 1, 3, 0}))
	assert.Empty(t, AssignableRoles(nil))
}

func TestUser_AssignRolesAndNames(t *testing.T) {
	at := time.Date(2025, 6, 6, 12, 0, 0, 0, time.UTC)
	u := &User{}
	u.AssignRoles([]RoleID{RoleManager, 7, RoleAdmin, RoleManager}, at)

	assert.Equal(t, []RoleID{RoleManager, RoleAdmin}, u.RoleIDs())
	assert.Equal(t, []string{"Manager", "Admin"}, u.RoleNames())
	for _, a := range u.Roles {
		assert.Equal(t, at, a.AssignedAt)
	}
}

func TestRoles_CatalogIsFixed(t *testing.T) {
	roles := Roles()
	assert.Len(t, roles, 3)
	roles[0].Name = "mutated"

	r, ok := LookupRole(RoleAdmin)
	assert.True(t, ok)
	assert.Equal(t, RoleNameAdmin, r.Name)
}
