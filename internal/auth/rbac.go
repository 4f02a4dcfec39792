package auth

import (
	"errors"
	"strings"
)

type Role string

const (
	RolePublicRelations     Role = "public_relations"
	RolePublicRelationsLead Role = "public_relations_lead"
	RoleDirectorsOffice     Role = "directors_office"
	RoleNone                Role = "none"
)

// ErrUnknownRole is returned by ParseRole for strings outside the closed set.
var ErrUnknownRole = errors.New("unknown role")

// AssignableRoles are the roles an access key may grant.
var AssignableRoles = []Role{RolePublicRelations, RolePublicRelationsLead, RoleDirectorsOffice}

// ParseRole maps s onto the closed role set. It never falls back to a
// privileged role.
func ParseRole(s string) (Role, error) {
	switch Role(strings.TrimSpace(s)) {
	case RolePublicRelations:
		return RolePublicRelations, nil
	case RolePublicRelationsLead:
		return RolePublicRelationsLead, nil
	case RoleDirectorsOffice:
		return RoleDirectorsOffice, nil
	case RoleNone:
		return RoleNone, nil
	default:
		return RoleNone, ErrUnknownRole
	}
}

// NormalizeRole parses a stored role, treating anything unknown as RoleNone.
func NormalizeRole(s string) Role {
	role, _ := ParseRole(s)
	return role
}

// IsAssignable reports whether an access key may carry role.
func (r Role) IsAssignable() bool {
	for _, candidate := range AssignableRoles {
		if r == candidate {
			return true
		}
	}
	return false
}

// DisplayName renders the role for humans, e.g. "public relations_lead".
// Only the first underscore is replaced, matching the notification text the
// community already knows.
func (r Role) DisplayName() string {
	return strings.Replace(string(r), "_", " ", 1)
}

// Actor is an authenticated caller. Role always comes from the stored user
// record, never from the request.
type Actor struct {
	UserID string
	Role   Role
}

type Action string

const (
	ActionCreateKey           Action = "create_key"
	ActionListKeys            Action = "list_keys"
	ActionViewKey             Action = "view_key"
	ActionDeleteKey           Action = "delete_key"
	ActionManagePhotoSections Action = "manage_photo_sections"
	ActionManagePageContent   Action = "manage_page_content"
)

// CanPerform is the authorization policy. target is the role of the key
// being created or viewed and is ignored by the other actions. Every
// combination not listed below is denied.
func CanPerform(actor Role, action Action, target Role) bool {
	switch action {
	case ActionCreateKey:
		switch actor {
		case RoleDirectorsOffice:
			return target.IsAssignable()
		case RolePublicRelationsLead:
			return target == RolePublicRelations
		}
	case ActionListKeys:
		return actor == RoleDirectorsOffice || actor == RolePublicRelationsLead
	case ActionViewKey:
		switch actor {
		case RoleDirectorsOffice:
			return true
		case RolePublicRelationsLead:
			return target == RolePublicRelations
		}
	case ActionDeleteKey:
		return actor == RoleDirectorsOffice
	case ActionManagePhotoSections, ActionManagePageContent:
		return actor.IsAssignable()
	}
	return false
}

// CanAssignAll reports whether actor may create keys for every assignable
// role. Such actors get a validation error, not a denial, for an unknown
// target role.
func CanAssignAll(actor Role) bool {
	for _, role := range AssignableRoles {
		if !CanPerform(actor, ActionCreateKey, role) {
			return false
		}
	}
	return true
}
