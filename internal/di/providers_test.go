package di

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitHostPort(t *testing.T) {
	tests := []struct {
		addr string
		host string
		port int
	}{
		{"localhost:6379", "localhost", 6379},
		{"10.0.0.5:6380", "10.0.0.5", 6380},
		{"[::1]:6379", "::1", 6379},
		{"[fe80::1%eth0]:7000", "fe80::1%eth0", 7000},
		{"redis", "redis", 6379},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			host, port, err := splitHostPort(tt.addr)
			require.NoError(t, err)
			assert.Equal(t, tt.host, host)
			assert.Equal(t, tt.port, port)
		})
	}

	_, _, err := splitHostPort("redis:http")
	assert.Error(t, err)
}
