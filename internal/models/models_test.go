package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseModelGeneratesID(t *testing.T) {
	m := &BaseModel{}
	require.NoError(t, m.BeforeCreate(nil))
	assert.NotEmpty(t, m.ID)
}

func TestBaseModelKeepsExplicitID(t *testing.T) {
	m := &BaseModel{ID: "tenant-default"}
	require.NoError(t, m.BeforeCreate(nil))
	assert.Equal(t, "tenant-default", m.ID)
}

func TestPreferenceTenantDefault(t *testing.T) {
	pref := NotificationPreference{TenantID: "t-1", NotificationType: "announcement"}
	assert.True(t, pref.IsTenantDefault())

	pref.UserID = "u-1"
	assert.False(t, pref.IsTenantDefault())
}
