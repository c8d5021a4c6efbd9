package storage

import (
	"testing"

	"github.com/abduss/filevault/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestEndpointHost(t *testing.T) {
	assert.Equal(t, "minio:9000", endpointHost("minio"))
	assert.Equal(t, "localhost:9001", endpointHost("http://localhost:9001/"))
	assert.Equal(t, "s3.example.com:443", endpointHost("https://s3.example.com:443"))
}

func TestObjectBaseURL(t *testing.T) {
	assert.Equal(t, "http://localhost:9000", ObjectBaseURL(config.StorageConfig{Endpoint: "localhost"}))
	assert.Equal(t, "https://s3.example.com:443", ObjectBaseURL(config.StorageConfig{Endpoint: "s3.example.com:443", UseSSL: true}))
	assert.Equal(t, "https://cdn.example.com", ObjectBaseURL(config.StorageConfig{Endpoint: "minio", PublicURL: "https://cdn.example.com/"}))
}

func TestNewMinIOClient(t *testing.T) {
	client, err := NewMinIOClient(config.StorageConfig{
		Endpoint:        "localhost:9000",
		AccessKeyID:     "minioadmin",
		SecretAccessKey: "minioadmin",
	})
	assert.NoError(t, err)
	assert.Equal(t, "localhost:9000", client.EndpointURL().Host)
}
