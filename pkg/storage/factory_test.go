package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyrex41/reelflow/pkg/config"
)

func TestNewProviderMemory(t *testing.T) {
	provider, err := NewProvider(config.StorageConfig{Type: "memory"})
	require.NoError(t, err)
	require.NoError(t, provider.Initialize())

	assert.NotNil(t, provider.GetPipelineStore())
	assert.NotNil(t, provider.GetRunStore())
	assert.NoError(t, provider.Close())
}

func TestNewProviderUnknownType(t *testing.T) {
	_, err := NewProvider(config.StorageConfig{Type: "etcd"})
	assert.Error(t, err)
}
