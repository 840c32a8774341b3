package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	database "github.com/Armour007/docproc-backend/internal"
	"github.com/Armour007/docproc-backend/internal/directory"
	"github.com/Armour007/docproc-backend/internal/mesh"
	"github.com/Armour007/docproc-backend/internal/utils"
)

const insertSessionQuery = `INSERT INTO user_sessions (id, user_id, username, email, token_id, expires_at, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`

// LoginUser authenticates against the directory and opens a session.
func LoginUser(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req, "Username and password are required") {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}
	if deps.Directory == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Login failed: " + directory.ErrUnavailable.Error()})
		return
	}
	ctx := c.Request.Context()

	ident, err := deps.Directory.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, directory.ErrUnavailable) {
			RecordLogin("error")
			zap.L().Error("directory unavailable", zap.String("username", req.Username), zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Login failed: " + directory.ErrUnavailable.Error()})
			return
		}
		RecordLogin("rejected")
		reason := err.Error()
		if errors.Is(err, directory.ErrInvalidCredentials) {
			reason = directory.ErrInvalidCredentials.Error()
		} else if errors.Is(err, directory.ErrUserNotFound) {
			reason = directory.ErrUserNotFound.Error()
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Login failed: " + reason})
		return
	}

	sessionID := uuid.New()
	issued, err := utils.GenerateJWT(deps.JWTSecret, utils.Identity{
		UserID:   ident.ID,
		Username: ident.Username,
		Email:    ident.Email,
	}, sessionID, deps.TokenTTL)
	if err != nil {
		RecordLogin("error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token: " + err.Error()})
		return
	}

	session := database.UserSession{
		ID:        sessionID,
		UserID:    ident.ID,
		Username:  ident.Username,
		Email:     ident.Email,
		TokenID:   issued.ID,
		ExpiresAt: issued.ExpiresAt.UTC(),
		IsActive:  true,
	}
	err = database.DB.QueryRowxContext(ctx, insertSessionQuery,
		session.ID, session.UserID, session.Username, session.Email,
		session.TokenID, session.ExpiresAt, session.IsActive,
	).Scan(&session.CreatedAt)
	if err != nil {
		RecordLogin("error")
		zap.L().Error("create session failed", zap.String("user_id", ident.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed: could not create session"})
		return
	}

	RecordLogin("success")
	publish(ctx, mesh.TopicSessionOpened, gin.H{
		"session_id": session.ID,
		"user_id":    session.UserID,
		"expires_at": session.ExpiresAt,
	})

	c.JSON(http.StatusOK, LoginResponse{
		User: LoginUserPayload{
			ID:          ident.ID,
			Username:    ident.Username,
			Email:       ident.Email,
			DisplayName: ident.DisplayName,
			Token:       issued.Token,
		},
		Token:   issued.Token,
		Session: session,
	})
}

// LogoutUser revokes the presented token and deactivates the caller's sessions.
func LogoutUser(c *gin.Context) {
	claims := currentClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	ctx := c.Request.Context()

	until := time.Now().Add(deps.TokenTTL)
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	if err := deps.Revocations.Revoke(ctx, claims.ID, until); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Logout failed: " + err.Error()})
		return
	}

	res, err := database.DB.ExecContext(ctx,
		`UPDATE user_sessions SET is_active = false WHERE user_id = $1 AND is_active = true`, claims.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Logout failed: " + err.Error()})
		return
	}
	closed, _ := res.RowsAffected()

	publish(ctx, mesh.TopicSessionClosed, gin.H{
		"session_id": claims.SessionID,
		"user_id":    claims.UserID,
		"closed":     closed,
	})
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Me echoes the identity carried by the caller's token.
func Me(c *gin.Context) {
	claims := currentClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	resp := MeResponse{
		ID:        claims.UserID,
		Username:  claims.Username,
		Email:     claims.Email,
		SessionID: claims.SessionID,
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	c.JSON(http.StatusOK, resp)
}
