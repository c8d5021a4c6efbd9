package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/abduss/filevault/internal/apierr"
	"github.com/abduss/filevault/internal/auth"
	"github.com/abduss/filevault/internal/objectstore"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// multipartOverhead is the allowance for form fields and boundaries on top of file bytes.
const multipartOverhead = 1 << 20

// Limits bound what an upload request may contain.
type Limits struct {
	MaxFileSize      int64
	MaxFiles         int
	AllowedMIMETypes []string
}

// RegisterRoutes mounts file operations under the provided (authenticated) router group.
func RegisterRoutes(group *gin.RouterGroup, service *Service, limits Limits) {
	handler := &httpHandler{service: service, limits: limits}
	files := group.Group("/files")
	files.POST("", handler.upload)
	files.POST("/multiple", handler.uploadMany)
	files.GET("/:id", handler.get)
	files.GET("/:id/presigned", handler.presigned)
	files.DELETE("/:id", handler.delete)
	files.PATCH("/:id/metadata", handler.updateMetadata)
}

type httpHandler struct {
	service *Service
	limits  Limits
}

type updateMetadataRequest struct {
	Metadata map[string]any `json:"metadata"`
}

func (h *httpHandler) upload(c *gin.Context) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		apierr.Abort(c, apierr.Unauthorized(""))
		return
	}

	h.limitBody(c, 1)
	header, err := c.FormFile("file")
	if err != nil {
		apierr.Abort(c, formError(err, "No file provided"))
		return
	}
	if err := h.checkFile(header); err != nil {
		apierr.Abort(c, err)
		return
	}

	opts, err := uploadOptions(c, userID)
	if err != nil {
		apierr.Abort(c, err)
		return
	}

	body, err := header.Open()
	if err != nil {
		apierr.Abort(c, apierr.BadRequest("Unable to read uploaded file", nil).WithCause(err))
		return
	}
	defer body.Close()

	rec, err := h.service.Upload(c.Request.Context(), inputFromHeader(header, body), opts)
	if err != nil {
		apierr.Abort(c, serviceError(err))
		return
	}

	apierr.Created(c, rec)
}

func (h *httpHandler) uploadMany(c *gin.Context) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		apierr.Abort(c, apierr.Unauthorized(""))
		return
	}

	h.limitBody(c, h.limits.MaxFiles)
	form, err := c.MultipartForm()
	if err != nil {
		apierr.Abort(c, formError(err, "No files provided"))
		return
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		apierr.Abort(c, apierr.BadRequest("No files provided", nil))
		return
	}
	if h.limits.MaxFiles > 0 && len(headers) > h.limits.MaxFiles {
		apierr.Abort(c, apierr.BadRequest(
			fmt.Sprintf("Too many files; at most %d allowed", h.limits.MaxFiles),
			apierr.Details{"maxFiles": h.limits.MaxFiles, "received": len(headers)},
		))
		return
	}
	for _, header := range headers {
		if err := h.checkFile(header); err != nil {
			apierr.Abort(c, err)
			return
		}
	}

	opts, err := uploadOptions(c, userID)
	if err != nil {
		apierr.Abort(c, err)
		return
	}

	inputs := make([]UploadInput, 0, len(headers))
	for _, header := range headers {
		body, err := header.Open()
		if err != nil {
			apierr.Abort(c, apierr.BadRequest("Unable to read uploaded file", apierr.Details{"file": header.Filename}).WithCause(err))
			return
		}
		defer body.Close()
		inputs = append(inputs, inputFromHeader(header, body))
	}

	records, err := h.service.UploadMany(c.Request.Context(), inputs, opts)
	if err != nil {
		var batch *BatchError
		if errors.As(err, &batch) {
			uploaded := make([]string, len(records))
			for i, rec := range records {
				uploaded[i] = rec.ID.String()
			}
			apierr.Abort(c, apierr.UploadFailed("Some files failed to upload", apierr.Details{
				"uploaded": uploaded,
				"failed":   batch.Names(),
			}).WithCause(err))
			return
		}
		apierr.Abort(c, serviceError(err))
		return
	}

	apierr.Created(c, records)
}

func (h *httpHandler) get(c *gin.Context) {
	id, ok := fileID(c)
	if !ok {
		return
	}
	ttl, ok := expiresIn(c)
	if !ok {
		return
	}

	rec, err := h.service.ResolveAccessURL(c.Request.Context(), id, ttl)
	if err != nil {
		apierr.Abort(c, serviceError(err))
		return
	}
	apierr.OK(c, rec)
}

func (h *httpHandler) presigned(c *gin.Context) {
	id, ok := fileID(c)
	if !ok {
		return
	}
	ttl, ok := expiresIn(c)
	if !ok {
		return
	}

	rec, err := h.service.Presign(c.Request.Context(), id, ttl)
	if err != nil {
		apierr.Abort(c, serviceError(err))
		return
	}
	apierr.OK(c, rec)
}

func (h *httpHandler) delete(c *gin.Context) {
	rec, ok := h.modifiable(c, "You can only delete files that you uploaded")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), rec.ID); err != nil {
		apierr.Abort(c, serviceError(err))
		return
	}
	apierr.OK(c, nil)
}

func (h *httpHandler) updateMetadata(c *gin.Context) {
	var req updateMetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Abort(c, apierr.Validation("metadata must be a JSON object", nil).WithCause(err))
		return
	}

	rec, ok := h.modifiable(c, "You can only update files that you uploaded")
	if !ok {
		return
	}

	updated, err := h.service.UpdateMetadata(c.Request.Context(), rec.ID, req.Metadata)
	if err != nil {
		apierr.Abort(c, serviceError(err))
		return
	}
	apierr.OK(c, updated)
}

// modifiable loads the record named in the path and checks that the caller may
// change it. It aborts the request and returns false otherwise.
func (h *httpHandler) modifiable(c *gin.Context, forbidden string) (Record, bool) {
	userID, user, ok := auth.RequireUser(c)
	if !ok {
		apierr.Abort(c, apierr.Unauthorized(""))
		return Record{}, false
	}
	id, ok := fileID(c)
	if !ok {
		return Record{}, false
	}

	rec, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		apierr.Abort(c, serviceError(err))
		return Record{}, false
	}

	if err := CanModify(Principal{ID: userID, IsAdmin: user.IsAdmin}, rec); err != nil {
		apierr.Abort(c, apierr.Forbidden(forbidden).WithCause(err))
		return Record{}, false
	}
	return rec, true
}

func (h *httpHandler) limitBody(c *gin.Context, files int) {
	if h.limits.MaxFileSize <= 0 || files <= 0 {
		return
	}
	limit := h.limits.MaxFileSize*int64(files) + multipartOverhead
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
}

func (h *httpHandler) checkFile(header *multipart.FileHeader) error {
	if h.limits.MaxFileSize > 0 && header.Size > h.limits.MaxFileSize {
		return apierr.FileTooLarge(fmt.Sprintf("File %q exceeds the maximum size of %d bytes", header.Filename, h.limits.MaxFileSize))
	}
	mimeType := contentType(header)
	if len(h.limits.AllowedMIMETypes) > 0 && !slices.Contains(h.limits.AllowedMIMETypes, mimeType) {
		return apierr.InvalidFileType(fmt.Sprintf("File type %q is not allowed", mimeType))
	}
	return nil
}

func formError(err error, missing string) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apierr.FileTooLarge("").WithCause(err)
	}
	return apierr.BadRequest(missing, nil).WithCause(err)
}

func inputFromHeader(header *multipart.FileHeader, body multipart.File) UploadInput {
	return UploadInput{
		Name:     header.Filename,
		MIMEType: contentType(header),
		Size:     header.Size,
		Body:     body,
	}
}

func contentType(header *multipart.FileHeader) string {
	ct := header.Header.Get("Content-Type")
	if ct == "" {
		return "application/octet-stream"
	}
	return ct
}

// uploadOptions reads the optional form fields shared by single and batch uploads.
func uploadOptions(c *gin.Context, userID uuid.UUID) (UploadOptions, error) {
	opts := UploadOptions{
		UploadedByID: &userID,
		Metadata:     parseMetadata(c.PostForm("metadata")),
		Private:      parseBool(c.PostForm("isPrivate")),
	}

	entityType := strings.TrimSpace(c.PostForm("entityType"))
	entityID := strings.TrimSpace(c.PostForm("entityId"))
	switch {
	case entityType != "" && entityID != "":
		opts.Entity = &OwningEntity{Type: entityType, ID: entityID}
	case entityType != "" || entityID != "":
		return UploadOptions{}, apierr.Validation(ErrIncompleteEntity.Error(), apierr.Details{
			"entityType": entityType,
			"entityId":   entityID,
		})
	}
	return opts, nil
}

// parseMetadata decodes a JSON object. Anything else yields an empty map.
func parseMetadata(raw string) map[string]any {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}

func parseBool(raw string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	return err == nil && v
}

func fileID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apierr.Abort(c, apierr.BadRequest("Invalid file id", nil))
		return uuid.Nil, false
	}
	return id, true
}

// expiresIn parses the optional expiresIn query parameter (seconds).
func expiresIn(c *gin.Context) (time.Duration, bool) {
	raw := c.Query("expiresIn")
	if raw == "" {
		return objectstore.DefaultPresignTTL, true
	}
	seconds, err := strconv.Atoi(raw)
	maxSeconds := int(objectstore.MaxPresignTTL / time.Second)
	if err != nil || seconds < 1 || seconds > maxSeconds {
		apierr.Abort(c, apierr.Validation(
			fmt.Sprintf("expiresIn must be an integer between 1 and %d", maxSeconds),
			apierr.Details{"expiresIn": raw},
		))
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}

func serviceError(err error) error {
	switch {
	case errors.Is(err, ErrFileNotFound):
		return apierr.FileNotFound("").WithCause(err)
	case errors.Is(err, ErrForbidden):
		return apierr.Forbidden("").WithCause(err)
	case errors.Is(err, ErrIncompleteEntity):
		return apierr.Validation(ErrIncompleteEntity.Error(), nil).WithCause(err)
	case errors.Is(err, ErrUploadFailed):
		return apierr.UploadFailed("Failed to upload file", nil).WithCause(err)
	case errors.Is(err, ErrDeleteFailed):
		return apierr.DeleteFailed("Failed to delete file", nil).WithCause(err)
	case errors.Is(err, ErrPresignFailed):
		return apierr.Internal("Failed to generate file URL").WithCause(err)
	default:
		return err
	}
}
