package repo

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
)

// IdempotencyRecord ties a client-supplied key to the entity it created.
// Keys are scoped per actor and operation.
type IdempotencyRecord struct {
	ActorID     string
	Operation   string
	Key         string
	RequestHash string
	EntityID    string
	CreatedAt   string
}

// Fingerprint returns a stable SHA-256 hex digest of v's JSON encoding.
func Fingerprint(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func (r Repo) GetIdempotencyRecord(ctx context.Context, tx *sql.Tx, actorID, operation, key string) (IdempotencyRecord, error) {
	rec := IdempotencyRecord{ActorID: actorID, Operation: operation}
	err := r.queryRow(ctx, tx, `SELECT key, request_hash, entity_id, created_at FROM idempotency_keys WHERE actor_id=? AND operation=? AND key=?`,
		actorID, operation, strings.TrimSpace(key)).Scan(&rec.Key, &rec.RequestHash, &rec.EntityID, &rec.CreatedAt)
	if err != nil {
		return IdempotencyRecord{}, notFound(err)
	}
	return rec, nil
}

// InsertIdempotencyRecord stores rec. An existing key yields ErrDuplicate.
func (r Repo) InsertIdempotencyRecord(ctx context.Context, tx *sql.Tx, rec IdempotencyRecord) error {
	if rec.Key == "" || rec.ActorID == "" || rec.Operation == "" {
		return errors.New("idempotency key, actor and operation required")
	}
	_, err := r.exec(ctx, tx, `INSERT INTO idempotency_keys(actor_id, operation, key, request_hash, entity_id, created_at) VALUES (?,?,?,?,?,?)`,
		rec.ActorID, rec.Operation, strings.TrimSpace(rec.Key), rec.RequestHash, rec.EntityID, rec.CreatedAt)
	return err
}

// PurgeIdempotencyRecords deletes records created before cutoff and returns
// how many were removed.
func (r Repo) PurgeIdempotencyRecords(ctx context.Context, cutoff string) (int64, error) {
	res, err := r.exec(ctx, nil, `DELETE FROM idempotency_keys WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
