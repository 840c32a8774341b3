package database

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Request history statuses
const (
	StatusSuccess = "success"
	StatusPending = "pending"
)

// UserSession represents the 'user_sessions' table
type UserSession struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Username  string    `db:"username" json:"username"`
	Email     string    `db:"email" json:"email"`
	TokenID   string    `db:"token_id" json:"token_id"` // jti of the issued token, never the token itself
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// RequestHistory represents the 'request_history' table
type RequestHistory struct {
	ID                   uuid.UUID    `db:"id" json:"id"`
	UserSessionID        uuid.UUID    `db:"user_session_id" json:"user_session_id"`
	RequestType          string       `db:"request_type" json:"request_type"`
	DocumentName         string       `db:"document_name" json:"document_name"`
	DocumentType         *string      `db:"document_type" json:"document_type"`
	PreprocessingUsed    bool         `db:"preprocessing_used" json:"preprocessing_used"`
	RequestPayload       NullableJSON `db:"request_payload" json:"request_payload"`
	ResponseData         NullableJSON `db:"response_data" json:"response_data"`
	BlobURL              *string      `db:"blob_url" json:"blob_url"`
	Status               string       `db:"status" json:"status"`
	ProcessingDurationMs *int64       `db:"processing_duration_ms" json:"processing_duration_ms"`
	CreatedAt            time.Time    `db:"created_at" json:"created_at"`
}

// NullableJSON is a jsonb column that may be NULL; it marshals as the raw
// document or null.
type NullableJSON json.RawMessage

// Scan implements sql.Scanner.
func (j *NullableJSON) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append((*j)[:0], v...)
	case string:
		*j = NullableJSON(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		*j = b
	}
	return nil
}

// Value implements driver.Valuer.
func (j NullableJSON) Value() (driver.Value, error) {
	if j.IsNull() {
		return nil, nil
	}
	return string(j), nil
}

// IsNull reports whether the value is absent or the JSON literal null.
func (j NullableJSON) IsNull() bool {
	return len(j) == 0 || string(j) == "null"
}

// MarshalJSON implements json.Marshaler.
func (j NullableJSON) MarshalJSON() ([]byte, error) {
	if j.IsNull() {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (j *NullableJSON) UnmarshalJSON(b []byte) error {
	*j = append((*j)[:0], b...)
	return nil
}
