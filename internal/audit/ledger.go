// Package audit keeps a per-user hash chain of session and history events.
package audit

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	db "github.com/Armour007/docproc-backend/internal"
	"github.com/Armour007/docproc-backend/internal/utils"
)

// ErrChainBroken is returned by Verify when a stored hash does not match.
var ErrChainBroken = errors.New("audit chain broken")

// chainHash = SHA256(prev_hash_bytes || canonical_json)
func chainHash(prev string, canonical []byte) string {
	h := sha256.New()
	if prev != "" {
		pb, _ := hex.DecodeString(prev)
		h.Write(pb)
	}
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil))
}

// Append links a new event to the user's chain. Appends for one user are
// serialised with a transaction-scoped advisory lock.
func Append(ctx context.Context, userID, eventType string, payload []byte) (string, error) {
	canonical := utils.CanonicalJSON(payload)
	tx, err := db.DB.BeginTxx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID); err != nil {
		return "", err
	}
	var prev string
	err = tx.GetContext(ctx, &prev, `SELECT this_hash FROM audit_ledger WHERE user_id=$1 ORDER BY seq DESC LIMIT 1`, userID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}
	hs := chainHash(prev, canonical)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO audit_ledger(user_id, event_type, payload, prev_hash, this_hash) VALUES ($1,$2,$3,$4,$5)`,
		userID, eventType, string(canonical), prev, hs); err != nil {
		return "", err
	}
	return hs, tx.Commit()
}

// Verify walks the user's chain and returns the seq of the first broken
// link, or 0 when the chain is intact.
func Verify(ctx context.Context, userID string, limit int) (int64, error) {
	type row struct {
		Seq     int64  `db:"seq"`
		Prev    string `db:"prev_hash"`
		This    string `db:"this_hash"`
		Payload []byte `db:"payload"`
	}
	rows := []row{}
	if limit <= 0 || limit > 10000 {
		limit = 10000
	}
	if err := db.DB.SelectContext(ctx, &rows, `SELECT seq, prev_hash, this_hash, payload FROM audit_ledger WHERE user_id=$1 ORDER BY seq ASC LIMIT $2`, userID, limit); err != nil {
		return 0, err
	}
	var last string
	for _, r := range rows {
		// jsonb does not preserve key order or spacing
		if r.Prev != last || chainHash(last, utils.CanonicalJSON(r.Payload)) != r.This {
			return r.Seq, fmt.Errorf("%w at seq %d", ErrChainBroken, r.Seq)
		}
		last = r.This
	}
	return 0, nil
}
