package id

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNewIDIsUUID(t *testing.T) {
	g := NewUUIDGenerator()

	a, b := g.NewID(), g.NewID()

	require.NotEqual(t, a, b)
	_, err := uuid.Parse(a)
	require.NoError(t, err)
}
