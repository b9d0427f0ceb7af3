package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRoles(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []Role
	}{
		{
			name:     "all known roles",
			input:    []string{"USER", "ADMIN", "OWNER"},
			expected: []Role{RoleUser, RoleAdmin, RoleOwner},
		},
		{
			name:     "unknown and lowercase names are dropped",
			input:    []string{"USER", "admin", "SUPERUSER"},
			expected: []Role{RoleUser},
		},
		{
			name:     "duplicates collapse",
			input:    []string{"ADMIN", "ADMIN"},
			expected: []Role{RoleAdmin},
		},
		{
			name:     "empty input",
			input:    nil,
			expected: []Role{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseRoles(tt.input))
		})
	}
}

func TestIdentity_HasRole(t *testing.T) {
	var nilIdentity *Identity
	assert.False(t, nilIdentity.HasRole(RoleUser))

	identity := &Identity{UserID: 1, Roles: []Role{RoleUser, RoleAdmin}}
	assert.True(t, identity.HasRole(RoleUser))
	assert.True(t, identity.HasRole(RoleAdmin))
	assert.False(t, identity.HasRole(RoleOwner))
}

func TestEvaluate(t *testing.T) {
	user := &Identity{UserID: 1, Roles: []Role{RoleUser}}
	otherUser := &Identity{UserID: 2, Roles: []Role{RoleUser}}
	admin := &Identity{UserID: 3, Roles: []Role{RoleUser, RoleAdmin}}
	elevatedWithoutRole := &Identity{UserID: 4, Roles: []Role{RoleUser}, Elevated: true}
	owner := &Identity{UserID: 5, Roles: []Role{RoleUser, RoleOwner}}

	tests := []struct {
		name     string
		identity *Identity
		op       Operation
		ownerID  int
		expected bool
	}{
		{name: "anonymous read", identity: nil, op: OpReadPost, expected: true},
		{name: "anonymous create", identity: nil, op: OpCreatePost, expected: false},
		{name: "anonymous update own", identity: nil, op: OpUpdateOwnPost, ownerID: 0, expected: false},
		{name: "zero identity create", identity: &Identity{}, op: OpCreatePost, expected: false},
		{name: "zero identity on post without owner", identity: &Identity{}, op: OpUpdateOwnPost, ownerID: 0, expected: false},
		{name: "user create", identity: user, op: OpCreatePost, expected: true},
		{name: "owner updates own post", identity: user, op: OpUpdateOwnPost, ownerID: 1, expected: true},
		{name: "owner deletes own post", identity: user, op: OpDeleteOwnPost, ownerID: 1, expected: true},
		{name: "non-owner updates post", identity: otherUser, op: OpUpdateOwnPost, ownerID: 1, expected: false},
		{name: "non-owner deletes post", identity: otherUser, op: OpDeleteOwnPost, ownerID: 1, expected: false},
		{name: "admin on owner path of foreign post", identity: admin, op: OpDeleteOwnPost, ownerID: 1, expected: false},
		{name: "admin updates any post", identity: admin, op: OpUpdateAnyPost, ownerID: 1, expected: true},
		{name: "admin deletes any post", identity: admin, op: OpDeleteAnyPost, ownerID: 1, expected: true},
		{name: "user deletes any post", identity: user, op: OpDeleteAnyPost, ownerID: 1, expected: false},
		{name: "elevated marker without admin role", identity: elevatedWithoutRole, op: OpUpdateAnyPost, ownerID: 1, expected: false},
		{name: "admin manages tags", identity: admin, op: OpManageTags, expected: true},
		{name: "user manages tags", identity: user, op: OpManageTags, expected: false},
		{name: "admin elevated login", identity: admin, op: OpElevatedLogin, expected: true},
		{name: "user elevated login", identity: user, op: OpElevatedLogin, expected: false},
		{name: "owner grants role", identity: owner, op: OpGrantRole, expected: true},
		{name: "admin grants role", identity: admin, op: OpGrantRole, expected: false},
		{name: "user views profile", identity: user, op: OpViewProfile, expected: true},
		{name: "unknown operation", identity: admin, op: Operation(99), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Evaluate(tt.identity, tt.op, tt.ownerID))
		})
	}
}
