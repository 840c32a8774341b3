package api

import (
	"encoding/json"
	"time"

	database "github.com/Armour007/docproc-backend/internal"
)

// LoginRequest defines the expected JSON body for /api/auth/login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginUserPayload is the user object the client keeps in local storage
type LoginUserPayload struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	Token       string `json:"token"`
}

// LoginResponse is returned on successful login
type LoginResponse struct {
	User    LoginUserPayload     `json:"user"`
	Token   string               `json:"token"`
	Session database.UserSession `json:"session"`
}

// MeResponse describes the caller's token
type MeResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LogHistoryRequest defines the JSON body for /api/history/log
type LogHistoryRequest struct {
	UserSessionID        string          `json:"user_session_id"`
	RequestType          string          `json:"request_type"`
	DocumentName         string          `json:"document_name"`
	DocumentType         *string         `json:"document_type"`
	PreprocessingUsed    bool            `json:"preprocessing_used"`
	RequestPayload       json.RawMessage `json:"request_payload"`
	ResponseData         json.RawMessage `json:"response_data"`
	ProcessingDurationMs *int64          `json:"processing_duration_ms"`
}

// ProcessRequest is the union of the processing endpoints' bodies:
// preprocess/autoindex use image; classify adds documentType; extract and
// extract-validate add analysisResult.
type ProcessRequest struct {
	Image          string          `json:"image"`
	DocumentType   *string         `json:"documentType"`
	AnalysisResult json.RawMessage `json:"analysisResult"`
}
