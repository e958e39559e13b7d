package stores

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewMinioStoreUnconfigured(t *testing.T) {
	assert.Nil(t, NewMinioStore("", "", "", "backups", false))
	assert.Nil(t, NewMinioStore("minio:9000", "", "", "", false))
}

func TestPublicURL(t *testing.T) {
	m := NewMinioStore("minio:9000", "ak", "sk", "backups", true)
	assert.Equal(t, "https://minio:9000/backups/a.tar.gz", m.PublicURL("a.tar.gz"))

	m.BaseURL = "https://cdn.example.com/"
	assert.Equal(t, "https://cdn.example.com/a.tar.gz", m.PublicURL("a.tar.gz"))
}
