package proxy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSocksClientTimeout(t *testing.T) {
	client, err := NewSocksClient("127.0.0.1:1080", 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, client.Timeout)
	assert.NotNil(t, client.Transport)
}

func TestNewSocksClientTimeoutDefault(t *testing.T) {
	client, err := NewSocksClient("127.0.0.1:1080", 0)
	require.NoError(t, err)
	assert.Equal(t, 120*time.Second, client.Timeout)
}
