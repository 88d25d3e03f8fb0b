package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "REPLICA_DATABASE_URLS", "EXPIRATION_CHUNK_SIZE", "EXPIRATION_WORKERS", "EXPIRATION_INTERVAL", "LOCK_TIMEOUT"} {
		t.Setenv(key, "")
	}
	t.Setenv("PORT", "9090")
	t.Setenv("EXPIRATION_CHUNK_SIZE", "not-a-number")
	t.Setenv("EXPIRATION_WORKERS", "8")
	t.Setenv("EXPIRATION_INTERVAL", "30s")
	t.Setenv("LOCK_TIMEOUT", "-1s")

	cfg := LoadConfig()

	assert.Equal(t, "9090", cfg.Port)
	assert.Empty(t, cfg.ReplicaURLs)
	assert.Equal(t, 1000, cfg.ExpirationChunkSize)
	assert.Equal(t, 8, cfg.ExpirationWorkers)
	assert.Equal(t, 30*time.Second, cfg.ExpirationInterval)
	assert.Equal(t, time.Duration(0), cfg.LockTimeout)
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "Empty", raw: "", want: nil},
		{name: "Single", raw: "postgres://a", want: []string{"postgres://a"}},
		{name: "TrimsAndDropsBlanks", raw: " postgres://a , ,postgres://b ", want: []string{"postgres://a", "postgres://b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitList(tt.raw))
		})
	}
}
