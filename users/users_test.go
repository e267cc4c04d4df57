package users_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-client/users"
	"github.com/stretchr/testify/require"
)

const profileJSON = `{
	"id": "6f1c2a8e-3b7d-4c55-9a0e-1d2f3b4c5d6e",
	"username": "jdoe",
	"email": "john.doe@example.com",
	"firstName": "john",
	"lastName": "doe",
	"enabled": true,
	"roles": ["ROLE_USER", "ROLE_ADMIN", "ROLE_USER"],
	"createdAt": "2024-03-01T09:30:00",
	"updatedAt": "2024-03-02T10:00:00.123Z"
}`

func TestProfileDecoding(t *testing.T) {
	var p users.Profile
	require.NoError(t, json.Unmarshal([]byte(profileJSON), &p))

	require.Equal(t, "6f1c2a8e-3b7d-4c55-9a0e-1d2f3b4c5d6e", p.ID.String())
	require.Equal(t, "jdoe", p.Username)
	require.True(t, p.Enabled)
	require.Equal(t, time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC), p.CreatedAt.Time)
	require.Equal(t, 123*time.Millisecond, time.Duration(p.UpdatedAt.Nanosecond()))
}

func TestProfileRoundTripKeepsTimestamps(t *testing.T) {
	var p users.Profile
	require.NoError(t, json.Unmarshal([]byte(profileJSON), &p))

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var back users.Profile
	require.NoError(t, json.Unmarshal(data, &back))
	require.True(t, p.CreatedAt.Equal(back.CreatedAt.Time))
	require.True(t, p.UpdatedAt.Equal(back.UpdatedAt.Time))
}

func TestTimestampRejectsGarbage(t *testing.T) {
	var ts users.Timestamp
	require.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
	require.Error(t, json.Unmarshal([]byte(`12345`), &ts))
	require.NoError(t, json.Unmarshal([]byte(`null`), &ts))
	require.True(t, ts.IsZero())
}

func TestRoleHelpers(t *testing.T) {
	admin := &users.Profile{Roles: []string{users.RoleUser, users.RoleAdmin}}
	regular := &users.Profile{Roles: []string{users.RoleUser}}
	var none *users.Profile

	require.True(t, admin.IsAdmin())
	require.False(t, admin.IsRegularUser())
	require.True(t, regular.IsRegularUser())
	require.False(t, none.HasRole(users.RoleUser))
}

func TestNameHelpers(t *testing.T) {
	var p users.Profile
	require.NoError(t, json.Unmarshal([]byte(profileJSON), &p))

	require.Equal(t, "john doe", p.FullName())
	require.Equal(t, "JD", p.Initials())
	require.Equal(t, []string{"USER", "ADMIN"}, p.DisplayRoles())

	require.Equal(t, "", (&users.Profile{}).Initials())
}
