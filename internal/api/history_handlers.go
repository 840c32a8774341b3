package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	database "github.com/Armour007/docproc-backend/internal"
	"github.com/Armour007/docproc-backend/internal/blob"
	"github.com/Armour007/docproc-backend/internal/mesh"
	"github.com/Armour007/docproc-backend/internal/processor"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

const historyColumns = `h.id, h.user_session_id, h.request_type, h.document_name, h.document_type,
h.preprocessing_used, h.request_payload, h.response_data, h.blob_url, h.status,
h.processing_duration_ms, h.created_at`

const insertHistoryQuery = `INSERT INTO request_history (id, user_session_id, request_type, document_name,
document_type, preprocessing_used, request_payload, response_data, blob_url, status, processing_duration_ms)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING created_at`

// GetSessionHistory lists the rows of one of the caller's sessions, newest first.
func GetSessionHistory(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("sessionId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session id"})
		return
	}
	rows := []database.RequestHistory{}
	err = database.DB.SelectContext(c.Request.Context(), &rows,
		`SELECT `+historyColumns+`
		FROM request_history h JOIN user_sessions s ON s.id = h.user_session_id
		WHERE h.user_session_id = $1 AND s.user_id = $2
		ORDER BY h.created_at DESC`, sessionID, c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rows)
}

// GetUserHistory lists the caller's rows across all sessions, newest first.
func GetUserHistory(c *gin.Context) {
	limit := defaultHistoryLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	rows := []database.RequestHistory{}
	err := database.DB.SelectContext(c.Request.Context(), &rows,
		`SELECT `+historyColumns+`
		FROM request_history h JOIN user_sessions s ON s.id = h.user_session_id
		WHERE s.user_id = $1
		ORDER BY h.created_at DESC LIMIT $2`, c.GetString("userID"), limit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rows)
}

// LogHistory records one processing request, snapshotting it to blob storage
// when a response is present.
func LogHistory(c *gin.Context) {
	var req LogHistoryRequest
	if !bindJSON(c, &req, "Invalid request body") {
		return
	}
	row, verr := req.toRow()
	if verr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
		return
	}
	ctx := c.Request.Context()
	userID := c.GetString("userID")

	var owned bool
	err := database.DB.GetContext(ctx, &owned,
		`SELECT EXISTS (SELECT 1 FROM user_sessions WHERE id = $1 AND user_id = $2)`, row.UserSessionID, userID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !owned {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	if row.Status == database.StatusSuccess && deps.Blobs != nil {
		if url, err := snapshotRequest(ctx, row); err != nil {
			zap.L().Warn("blob upload failed", zap.String("session_id", row.UserSessionID.String()), zap.Error(err))
		} else {
			row.BlobURL = &url
		}
	}

	err = database.DB.QueryRowxContext(ctx, insertHistoryQuery,
		row.ID, row.UserSessionID, row.RequestType, row.DocumentName, row.DocumentType,
		row.PreprocessingUsed, row.RequestPayload, row.ResponseData, row.BlobURL, row.Status,
		row.ProcessingDurationMs,
	).Scan(&row.CreatedAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	RecordHistoryLogged(row.RequestType, row.Status)
	publish(ctx, mesh.TopicHistoryLogged, gin.H{
		"id":              row.ID,
		"user_session_id": row.UserSessionID,
		"user_id":         userID,
		"request_type":    row.RequestType,
		"status":          row.Status,
		"blob_url":        row.BlobURL,
	})
	c.JSON(http.StatusOK, gin.H{"success": true, "data": row})
}

// toRow validates the request and builds the row to insert.
func (r LogHistoryRequest) toRow() (database.RequestHistory, error) {
	sessionID, err := uuid.Parse(strings.TrimSpace(r.UserSessionID))
	if err != nil {
		return database.RequestHistory{}, errors.New("user_session_id must be a valid UUID")
	}
	op, err := processor.ParseOperation(r.RequestType)
	if err != nil {
		return database.RequestHistory{}, errors.New("request_type must be one of preprocess, autoindex, classify, extract, extractvalidate")
	}
	name := strings.TrimSpace(r.DocumentName)
	if name == "" {
		return database.RequestHistory{}, errors.New("document_name is required")
	}
	var docType *string
	if r.DocumentType != nil && strings.TrimSpace(*r.DocumentType) != "" {
		dt, ok := processor.LookupDocumentType(*r.DocumentType)
		if !ok {
			return database.RequestHistory{}, errors.New("document_type is not a known document type")
		}
		docType = &dt.Code
	}
	if r.ProcessingDurationMs != nil && *r.ProcessingDurationMs < 0 {
		return database.RequestHistory{}, errors.New("processing_duration_ms must not be negative")
	}
	row := database.RequestHistory{
		ID:                   uuid.New(),
		UserSessionID:        sessionID,
		RequestType:          string(op),
		DocumentName:         name,
		DocumentType:         docType,
		PreprocessingUsed:    r.PreprocessingUsed,
		RequestPayload:       database.NullableJSON(r.RequestPayload),
		ResponseData:         database.NullableJSON(r.ResponseData),
		ProcessingDurationMs: r.ProcessingDurationMs,
		Status:               database.StatusPending,
	}
	if hasResult(r.ResponseData) {
		row.Status = database.StatusSuccess
	}
	return row, nil
}

// hasResult reports whether a response was recorded. null, false, 0 and ""
// count as no result, like the client's own check.
func hasResult(raw json.RawMessage) bool {
	if database.NullableJSON(raw).IsNull() {
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch x := v.(type) {
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	default:
		return true
	}
}

func snapshotRequest(ctx context.Context, row database.RequestHistory) (string, error) {
	start := time.Now()
	snap, err := blob.NewSnapshot(json.RawMessage(row.RequestPayload), json.RawMessage(row.ResponseData), deps.SnapshotSigningKey, start)
	if err != nil {
		return "", err
	}
	uctx, cancel := context.WithTimeout(ctx, deps.BlobTimeout)
	defer cancel()
	url, err := blob.UploadSnapshot(uctx, deps.Blobs, blob.SnapshotName(row.UserSessionID.String(), start), snap)
	RecordExternalOp("blob_upload", time.Since(start), err == nil)
	return url, err
}
