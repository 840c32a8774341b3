package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Armour007/docproc-backend/internal/audit"
	"github.com/Armour007/docproc-backend/internal/mesh"
)

func publish(ctx context.Context, topic string, payload any) {
	if deps.Bus == nil {
		return
	}
	ev, err := mesh.NewEvent(topic, payload)
	if err == nil {
		err = deps.Bus.Publish(ctx, ev)
	}
	if err != nil {
		zap.L().Warn("event publish failed", zap.String("topic", topic), zap.Error(err))
	}
}

// AuditSubscriber writes every session and history event to logger and,
// when ledger is set, appends it to the user's audit chain.
func AuditSubscriber(logger *zap.Logger, ledger bool) mesh.Handler {
	return func(ctx context.Context, ev mesh.Event) {
		logger.Info("audit",
			zap.String("topic", ev.Topic),
			zap.Time("ts", ev.Timestamp),
			zap.ByteString("payload", ev.Payload),
		)
		if !ledger {
			return
		}
		var who struct {
			UserID string `json:"user_id"`
		}
		if err := json.Unmarshal(ev.Payload, &who); err != nil || who.UserID == "" {
			logger.Warn("audit event without user", zap.String("topic", ev.Topic))
			return
		}
		if _, err := audit.Append(ctx, who.UserID, ev.Topic, ev.Payload); err != nil {
			logger.Error("audit ledger append failed", zap.String("topic", ev.Topic), zap.Error(err))
		}
	}
}

// SubscribeAudit attaches AuditSubscriber to all domain topics.
func SubscribeAudit(b mesh.Bus, logger *zap.Logger, ledger bool) error {
	h := AuditSubscriber(logger, ledger)
	for _, t := range []string{mesh.TopicSessionOpened, mesh.TopicSessionClosed, mesh.TopicHistoryLogged} {
		if _, err := b.Subscribe(t, h); err != nil {
			return err
		}
	}
	return nil
}

// VerifyAuditChain checks the caller's audit chain.
func VerifyAuditChain(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	seq, err := audit.Verify(c.Request.Context(), c.GetString("userID"), limit)
	if seq > 0 {
		c.JSON(http.StatusOK, gin.H{"ok": false, "broken_at": seq})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify audit chain"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
