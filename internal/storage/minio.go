package storage

import (
	"fmt"
	"strings"

	"github.com/abduss/filevault/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// NewMinIOClient establishes a MinIO client using the provided configuration.
func NewMinIOClient(cfg config.StorageConfig) (*minio.Client, error) {
	client, err := minio.New(endpointHost(cfg.Endpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return client, nil
}

// ObjectBaseURL returns the base for direct object URLs: the configured public
// URL when set, otherwise the storage endpoint itself.
func ObjectBaseURL(cfg config.StorageConfig) string {
	if cfg.PublicURL != "" {
		return strings.TrimRight(cfg.PublicURL, "/")
	}
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return scheme + "://" + endpointHost(cfg.Endpoint)
}

// endpointHost strips any scheme and defaults to the MinIO API port.
func endpointHost(endpoint string) string {
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")
	endpoint = strings.TrimRight(endpoint, "/")
	if !strings.Contains(endpoint, ":") {
		endpoint += ":9000"
	}
	return endpoint
}
