package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type samplePayload struct {
	UserID   string `json:"user_id" validate:"required"`
	Priority string `json:"priority" validate:"oneof=low normal high urgent"`
}

func TestValidateStructReportsJSONFieldNames(t *testing.T) {
	err := ValidateStruct(samplePayload{Priority: "extreme"})
	require.Error(t, err)

	failures, ok := err.(ValidationErrors)
	require.True(t, ok)
	require.Len(t, failures, 2)
	assert.Equal(t, "user_id", failures[0].Field)
	assert.Equal(t, "priority", failures[1].Field)
	assert.Contains(t, err.Error(), "oneof")
}

func TestValidateStructPasses(t *testing.T) {
	err := ValidateStruct(samplePayload{UserID: "u-1", Priority: "urgent"})
	assert.NoError(t, err)
}
