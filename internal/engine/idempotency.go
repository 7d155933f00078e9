package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"quoteline/internal/domain"
	"quoteline/internal/repo"
)

// createOnce runs create in a transaction. With a non-empty key the request
// fingerprint is stored alongside the new entity id, so a retry with the same
// key and payload returns the stored entity instead of creating a second one,
// and a retry with a different payload is refused.
func createOnce[T any](ctx context.Context, e Engine, p domain.Principal, operation, key string, request any,
	create func(tx *sql.Tx) (T, string, error),
	load func(tx *sql.Tx, id string) (T, error),
) (T, error) {
	var out T
	key = strings.TrimSpace(key)
	hash, err := repo.Fingerprint(request)
	if err != nil {
		return out, fmt.Errorf("fingerprint request: %w", err)
	}
	for attempt := 0; attempt < 2; attempt++ {
		err = e.inTx(ctx, func(tx *sql.Tx) error {
			if key != "" {
				rec, err := e.Repo.GetIdempotencyRecord(ctx, tx, p.ID, operation, key)
				switch {
				case err == nil:
					if rec.RequestHash != hash {
						return fmt.Errorf("%w: key %q was used for a different request", domain.ErrIdempotencyConflict, key)
					}
					out, err = load(tx, rec.EntityID)
					return err
				case !errors.Is(err, repo.ErrNotFound):
					return err
				}
			}
			v, id, err := create(tx)
			if err != nil {
				return err
			}
			if key != "" {
				if err := e.Repo.InsertIdempotencyRecord(ctx, tx, repo.IdempotencyRecord{
					ActorID:     p.ID,
					Operation:   operation,
					Key:         key,
					RequestHash: hash,
					EntityID:    id,
					CreatedAt:   domain.FormatTime(e.now()),
				}); err != nil {
					return err
				}
			}
			out = v
			return nil
		})
		// A concurrent first use of the same key won the insert; the next
		// pass replays its record.
		if key != "" && errors.Is(err, repo.ErrDuplicate) {
			continue
		}
		break
	}
	return out, err
}

// PurgeIdempotencyKeys deletes records older than the configured TTL.
func (e Engine) PurgeIdempotencyKeys(ctx context.Context) (int64, error) {
	cutoff := domain.FormatTime(e.now().Add(-e.Config.Idempotency.TTL))
	n, err := e.Repo.PurgeIdempotencyRecords(ctx, cutoff)
	if err != nil {
		return 0, storageError(err)
	}
	return n, nil
}
