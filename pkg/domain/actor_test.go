package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		input string
		want  Role
	}{
		{"TU", RoleTU},
		{"tu", RoleTU},
		{" Coordinator ", RoleCoordinator},
		{"STAFF", RoleStaff},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRole(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.IsValid())
		})
	}

	_, err := ParseRole("admin")
	require.Error(t, err)
	assert.False(t, Role("admin").IsValid())
}
