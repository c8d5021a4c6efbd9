package file

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordJSONWithoutOptionalFields(t *testing.T) {
	rec := Record{
		ID:           uuid.MustParse("6f1c1c1e-8f0a-4d6b-9a43-1b1f2c3d4e5f"),
		OriginalName: "a.png",
		MIMEType:     "image/png",
		Size:         3,
		Bucket:       "uploads",
		Key:          "1/x/a.png",
		URL:          "http://localhost:9000/uploads/1/x/a.png",
		Status:       StatusActive,
		CreatedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		UpdatedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	raw, err := json.Marshal(rec)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))

	assert.Nil(t, out["entityType"])
	assert.Nil(t, out["entityId"])
	assert.Nil(t, out["uploadedById"])
	assert.Contains(t, out, "entityType")
	assert.Equal(t, map[string]any{}, out["metadata"])
	assert.NotContains(t, out, "status")
	assert.Equal(t, "a.png", out["originalName"])
	assert.Equal(t, false, out["isPrivate"])
	assert.Equal(t, "2026-01-02T03:04:05Z", out["createdAt"])
}

func TestRecordJSONWithEntityAndUploader(t *testing.T) {
	uploader := uuid.New()
	rec := Record{
		ID:           uuid.New(),
		OriginalName: "test.jpg",
		Entity:       &OwningEntity{Type: "User", ID: uploader.String()},
		UploadedByID: &uploader,
		Metadata:     map[string]any{"alt": "avatar"},
	}

	raw, err := json.Marshal(rec)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))

	assert.Equal(t, "User", out["entityType"])
	assert.Equal(t, uploader.String(), out["entityId"])
	assert.Equal(t, uploader.String(), out["uploadedById"])
	assert.Equal(t, "avatar", out["metadata"].(map[string]any)["alt"])
}
