package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/abduss/filevault/internal/auth"
	"github.com/abduss/filevault/internal/config"
	"github.com/abduss/filevault/internal/file"
	"github.com/abduss/filevault/internal/health"
	"github.com/abduss/filevault/internal/objectstore"
	"github.com/abduss/filevault/internal/ratelimit"
	"github.com/abduss/filevault/internal/storage"
	"github.com/abduss/filevault/internal/user"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// startStack runs the full API against real Postgres and MinIO containers.
func startStack(t *testing.T) string {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION not set")
	}
	ctx := context.Background()

	pg, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("filevault_e2e"),
		postgres.WithUsername("filevault"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	minioC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "minio/minio:latest",
			ExposedPorts: []string{"9000/tcp"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     "minioadmin",
				"MINIO_ROOT_PASSWORD": "minioadmin",
			},
			Cmd:        []string{"server", "/data"},
			WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = minioC.Terminate(ctx) })

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	endpoint, err := minioC.PortEndpoint(ctx, "9000/tcp", "")
	require.NoError(t, err)

	cfg := testConfig()
	cfg.RateLimit.Max = 1000
	cfg.Postgres = config.PostgresConfig{URL: dsn}
	cfg.Storage = config.StorageConfig{
		Endpoint:        endpoint,
		AccessKeyID:     "minioadmin",
		SecretAccessKey: "minioadmin",
		PublicBucket:    "e2e-public",
		PrivateBucket:   "e2e-private",
		Region:          "us-east-1",
		MaxFileSize:     1 << 20,
		MaxFiles:        5,
	}

	require.NoError(t, storage.Migrate(cfg.Postgres.MigrateURL(), zap.NewNop()))
	pool, err := storage.NewPostgresPool(ctx, cfg.Postgres)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	client, err := storage.NewMinIOClient(cfg.Storage)
	require.NoError(t, err)
	objects := objectstore.New(client, objectstore.Config{
		PublicBucket:  cfg.Storage.PublicBucket,
		PrivateBucket: cfg.Storage.PrivateBucket,
		Region:        cfg.Storage.Region,
		BaseURL:       storage.ObjectBaseURL(cfg.Storage),
	})

	files := file.NewService(file.NewRepository(pool), objects, zap.NewNop())
	router := NewRouter(Dependencies{
		Config: cfg,
		Health: health.NewChecker("e2e", nil,
			health.Check{Name: "database", Run: pool.Ping},
			health.Check{Name: "storage", Run: objects.Ping},
		),
		RateLimitStore: ratelimit.NewMemoryStore(0, time.Minute),
		AuthService:    auth.NewService(auth.NewRepository(pool), cfg.Auth),
		UserService:    user.NewService(user.NewRepository(pool), files, zap.NewNop()),
		FileService:    files,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv.URL
}

type e2eClient struct {
	t       *testing.T
	baseURL string
	http    *http.Client
}

type e2eResponse struct {
	Status  int
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func (c *e2eClient) do(method, path, token, contentType string, body io.Reader) e2eResponse {
	c.t.Helper()
	req, err := http.NewRequest(method, c.baseURL+path, body)
	require.NoError(c.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var out e2eResponse
	raw, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	require.NoError(c.t, json.Unmarshal(raw, &out), string(raw))
	out.Status = resp.StatusCode
	return out
}

func (c *e2eClient) json(method, path, token string, payload any) e2eResponse {
	c.t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(c.t, err)
		body = bytes.NewReader(raw)
	}
	return c.do(method, path, token, "application/json", body)
}

// registerUser creates an account and returns its id and access token.
func (c *e2eClient) registerUser() (string, string) {
	c.t.Helper()
	resp := c.json(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    fmt.Sprintf("e2e_%s@example.com", uuid.NewString()),
		"password": "Password123",
	})
	require.Equal(c.t, http.StatusCreated, resp.Status)

	var data struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
		Tokens struct {
			AccessToken string `json:"accessToken"`
		} `json:"tokens"`
	}
	require.NoError(c.t, json.Unmarshal(resp.Data, &data))
	require.NotEmpty(c.t, data.Tokens.AccessToken)
	return data.User.ID, data.Tokens.AccessToken
}

func (c *e2eClient) upload(token, name, content string, fields map[string]string) e2eResponse {
	c.t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", name)
	require.NoError(c.t, err)
	_, err = part.Write([]byte(content))
	require.NoError(c.t, err)
	for k, v := range fields {
		require.NoError(c.t, w.WriteField(k, v))
	}
	require.NoError(c.t, w.Close())
	return c.do(http.MethodPost, "/api/files", token, w.FormDataContentType(), &buf)
}

func fetch(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestEndToEndFileLifecycle(t *testing.T) {
	c := &e2eClient{t: t, baseURL: startStack(t), http: &http.Client{Timeout: 30 * time.Second}}

	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/health", "", "", nil).Status)
	userID, token := c.registerUser()
	_, strangerToken := c.registerUser()

	// Public upload is directly reachable.
	resp := c.upload(token, "hello.txt", "Hello, this is test content!", nil)
	require.Equal(t, http.StatusCreated, resp.Status)
	var public file.Record
	require.NoError(t, json.Unmarshal(resp.Data, &public))
	status, body := fetch(t, public.URL)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Hello, this is test content!", body)

	// Private upload attached to the user is only reachable through a presigned URL.
	resp = c.upload(token, "secret.txt", "top secret", map[string]string{
		"isPrivate":  "true",
		"entityType": "User",
		"entityId":   userID,
		"metadata":   `{"label":"e2e"}`,
	})
	require.Equal(t, http.StatusCreated, resp.Status)
	var private file.Record
	require.NoError(t, json.Unmarshal(resp.Data, &private))
	assert.True(t, private.IsPrivate)
	status, _ = fetch(t, private.URL)
	assert.Equal(t, http.StatusForbidden, status)

	resp = c.do(http.MethodGet, "/api/files/"+private.ID.String(), token, "", nil)
	require.Equal(t, http.StatusOK, resp.Status)
	var resolved file.Record
	require.NoError(t, json.Unmarshal(resp.Data, &resolved))
	status, body = fetch(t, resolved.URL)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "top secret", body)

	resp = c.do(http.MethodGet, "/api/files/"+public.ID.String()+"/presigned?expiresIn=60", token, "", nil)
	require.Equal(t, http.StatusOK, resp.Status)

	// Only the uploader may modify.
	resp = c.do(http.MethodDelete, "/api/files/"+public.ID.String(), strangerToken, "", nil)
	assert.Equal(t, http.StatusForbidden, resp.Status)

	resp = c.json(http.MethodPatch, "/api/files/"+private.ID.String()+"/metadata", token, map[string]any{
		"metadata": map[string]any{"label": "updated"},
	})
	require.Equal(t, http.StatusOK, resp.Status)

	resp = c.do(http.MethodDelete, "/api/files/"+public.ID.String(), token, "", nil)
	require.Equal(t, http.StatusOK, resp.Status)
	resp = c.do(http.MethodGet, "/api/files/"+public.ID.String(), token, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Equal(t, "FILE_NOT_FOUND", resp.Error.Code)

	// Deleting the account removes the files attached to it.
	resp = c.do(http.MethodDelete, "/api/users/"+userID, token, "", nil)
	require.Equal(t, http.StatusOK, resp.Status)
	resp = c.do(http.MethodGet, "/api/files/"+private.ID.String(), strangerToken, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.Status)
}
