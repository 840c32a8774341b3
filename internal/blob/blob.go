// Package blob stores JSON snapshots of processing requests in object storage.
package blob

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Armour007/docproc-backend/internal/utils"
)

// Store puts an object and returns the URL it can be fetched from.
type Store interface {
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

// Snapshot is the document written for each logged request.
type Snapshot struct {
	Request   json.RawMessage `json:"request"`
	Response  json.RawMessage `json:"response"`
	SignedAt  int64           `json:"signed_at,omitempty"`
	Signature string          `json:"signature,omitempty"`
}

// SnapshotName mirrors the "<ts>-<session>-<ts>.json" layout used by the
// history page downloads.
func SnapshotName(sessionID string, now time.Time) string {
	ms := now.UnixMilli()
	return fmt.Sprintf("%d-%s-%d.json", ms, sessionID, ms)
}

// NewSnapshot builds a snapshot and, when signingKey is set, signs the
// canonical {"request","response"} pair.
func NewSnapshot(request, response json.RawMessage, signingKey string, now time.Time) (Snapshot, error) {
	if len(request) == 0 {
		request = json.RawMessage("null")
	}
	if len(response) == 0 {
		response = json.RawMessage("null")
	}
	s := Snapshot{Request: request, Response: response}
	if signingKey == "" {
		return s, nil
	}
	body, err := json.Marshal(struct {
		Request  json.RawMessage `json:"request"`
		Response json.RawMessage `json:"response"`
	}{request, response})
	if err != nil {
		return Snapshot{}, err
	}
	s.SignedAt = now.Unix()
	s.Signature = utils.SignPayload(signingKey, s.SignedAt, body)
	return s, nil
}

// Verify checks the snapshot signature against signingKey.
func (s Snapshot) Verify(signingKey string) bool {
	if s.Signature == "" {
		return false
	}
	body, err := json.Marshal(struct {
		Request  json.RawMessage `json:"request"`
		Response json.RawMessage `json:"response"`
	}{s.Request, s.Response})
	if err != nil {
		return false
	}
	return utils.VerifyPayload(signingKey, s.SignedAt, body, s.Signature)
}

// UploadSnapshot marshals snap and stores it under name.
func UploadSnapshot(ctx context.Context, store Store, name string, snap Snapshot) (string, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	url, err := store.Put(ctx, name, data, "application/json")
	if err != nil {
		return "", fmt.Errorf("failed to upload snapshot: %w", err)
	}
	return url, nil
}
