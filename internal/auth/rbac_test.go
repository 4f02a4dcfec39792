package auth

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	for _, valid := range []string{"public_relations", "public_relations_lead", "directors_office", "none", " directors_office "} {
		_, err := ParseRole(valid)
		assert.NoError(t, err, valid)
	}

	for _, invalid := range []string{"", "admin", "Directors_Office", "directors office"} {
		role, err := ParseRole(invalid)
		require.ErrorIs(t, err, ErrUnknownRole, invalid)
		assert.Equal(t, RoleNone, role)
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "public relations", RolePublicRelations.DisplayName())
	assert.Equal(t, "public relations_lead", RolePublicRelationsLead.DisplayName())
	assert.Equal(t, "directors office", RoleDirectorsOffice.DisplayName())
}

func TestCanPerformPolicyTable(t *testing.T) {
	actors := []Role{RoleDirectorsOffice, RolePublicRelationsLead, RolePublicRelations, RoleNone, Role("bogus")}

	type row struct {
		action Action
		target Role
		allow  map[Role]bool
	}
	rows := []row{
		{ActionCreateKey, RolePublicRelations, map[Role]bool{RoleDirectorsOffice: true, RolePublicRelationsLead: true}},
		{ActionCreateKey, RolePublicRelationsLead, map[Role]bool{RoleDirectorsOffice: true}},
		{ActionCreateKey, RoleDirectorsOffice, map[Role]bool{RoleDirectorsOffice: true}},
		{ActionCreateKey, RoleNone, map[Role]bool{}},
		{ActionCreateKey, Role("bogus"), map[Role]bool{}},
		{ActionListKeys, "", map[Role]bool{RoleDirectorsOffice: true, RolePublicRelationsLead: true}},
		{ActionViewKey, RolePublicRelations, map[Role]bool{RoleDirectorsOffice: true, RolePublicRelationsLead: true}},
		{ActionViewKey, RolePublicRelationsLead, map[Role]bool{RoleDirectorsOffice: true}},
		{ActionViewKey, RoleDirectorsOffice, map[Role]bool{RoleDirectorsOffice: true}},
		{ActionDeleteKey, "", map[Role]bool{RoleDirectorsOffice: true}},
		{ActionManagePhotoSections, "", map[Role]bool{RoleDirectorsOffice: true, RolePublicRelationsLead: true, RolePublicRelations: true}},
		{ActionManagePageContent, "", map[Role]bool{RoleDirectorsOffice: true, RolePublicRelationsLead: true, RolePublicRelations: true}},
		{Action("launch_missiles"), "", map[Role]bool{}},
	}

	for _, r := range rows {
		for _, actor := range actors {
			name := fmt.Sprintf("%s/%s/%s", actor, r.action, r.target)
			assert.Equal(t, r.allow[actor], CanPerform(actor, r.action, r.target), name)
		}
	}
}

func TestCanAssignAll(t *testing.T) {
	assert.True(t, CanAssignAll(RoleDirectorsOffice))
	assert.False(t, CanAssignAll(RolePublicRelationsLead))
	assert.False(t, CanAssignAll(RolePublicRelations))
	assert.False(t, CanAssignAll(RoleNone))
}
