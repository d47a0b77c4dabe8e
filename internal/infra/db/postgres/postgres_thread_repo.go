// File: internal/infra/db/postgres/postgres_thread_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"ai-chat-backend/internal/domain"
	"ai-chat-backend/internal/domain/model"
	"ai-chat-backend/internal/domain/ports/repository"
	"ai-chat-backend/internal/infra/metrics"
	red "ai-chat-backend/internal/infra/redis"
	"ai-chat-backend/internal/infra/security"
)

// ThreadRepo persists thread histories with an optimistic version guard and
// optional encryption-at-rest for turn content. A redis write-through cache
// serves repeat loads; cache failures degrade to postgres silently.
var _ repository.ThreadRepository = (*ThreadRepo)(nil)

type ThreadRepo struct {
	pool          *pgxpool.Pool
	cache         *red.ThreadCache
	encryptionSvc *security.EncryptionService
}

// NewThreadRepo constructs the repo. cache and encryptionSvc may be nil.
func NewThreadRepo(pool *pgxpool.Pool, cache *red.ThreadCache, encryptionSvc *security.EncryptionService) *ThreadRepo {
	return &ThreadRepo{pool: pool, cache: cache, encryptionSvc: encryptionSvc}
}

func (r *ThreadRepo) Load(ctx context.Context, threadID string) (model.History, int64, error) {
	if r.cache != nil {
		if turns, version, ok := r.cache.Get(ctx, threadID); ok {
			metrics.IncCacheHit()
			return model.NewHistory(turns), version, nil
		}
		metrics.IncCacheMiss()
	}

	const qVersion = `SELECT version FROM threads WHERE id = $1;`
	var version int64
	if err := r.pool.QueryRow(ctx, qVersion, threadID).Scan(&version); err != nil {
		if err == pgx.ErrNoRows {
			// Unseen thread ids are valid: empty history, version 0.
			return model.NewHistory(nil), 0, nil
		}
		return model.History{}, 0, fmt.Errorf("load thread version: %w", err)
	}

	const qTurns = `
SELECT id, role, content, encrypted, created_at
FROM turns WHERE thread_id = $1 ORDER BY seq;`
	rows, err := r.pool.Query(ctx, qTurns, threadID)
	if err != nil {
		return model.History{}, 0, fmt.Errorf("load turns: %w", err)
	}
	defer rows.Close()

	var turns []model.Turn
	for rows.Next() {
		var t model.Turn
		var role string
		var encrypted bool
		if err := rows.Scan(&t.ID, &role, &t.Content, &encrypted, &t.CreatedAt); err != nil {
			return model.History{}, 0, fmt.Errorf("scan turn: %w", err)
		}
		if encrypted {
			if r.encryptionSvc == nil {
				return model.History{}, 0, errors.New("encrypted turn but no encryption key configured")
			}
			pt, err := r.encryptionSvc.Decrypt(t.Content)
			if err != nil {
				return model.History{}, 0, fmt.Errorf("decrypt turn %s: %w", t.ID, err)
			}
			t.Content = pt
		}
		t.Role = model.Role(role)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return model.History{}, 0, fmt.Errorf("load turns: %w", err)
	}

	if r.cache != nil {
		_ = r.cache.Store(ctx, threadID, version, turns)
	}
	return model.NewHistory(turns), version, nil
}

func (r *ThreadRepo) AppendTurns(ctx context.Context, threadID string, expectedVersion int64, turns []model.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback(ctx)

	if expectedVersion == 0 {
		const qInsert = `
INSERT INTO threads (id, version, created_at, updated_at)
VALUES ($1, 1, NOW(), NOW())
ON CONFLICT (id) DO NOTHING;`
		res, err := tx.Exec(ctx, qInsert, threadID)
		if err != nil {
			return fmt.Errorf("create thread: %w", err)
		}
		if res.RowsAffected() == 0 {
			// Someone committed to this thread since our load. The cache may
			// hold the snapshot that produced the stale version, so evict it
			// or every retry would conflict again until the TTL expires.
			r.invalidate(ctx, threadID)
			return domain.ErrConflict
		}
	} else {
		const qBump = `
UPDATE threads SET version = version + 1, updated_at = NOW()
WHERE id = $1 AND version = $2;`
		res, err := tx.Exec(ctx, qBump, threadID, expectedVersion)
		if err != nil {
			return fmt.Errorf("bump thread version: %w", err)
		}
		if res.RowsAffected() == 0 {
			r.invalidate(ctx, threadID)
			return domain.ErrConflict
		}
	}

	const qSeq = `SELECT COALESCE(MAX(seq), 0) FROM turns WHERE thread_id = $1;`
	var seq int64
	if err := tx.QueryRow(ctx, qSeq, threadID).Scan(&seq); err != nil {
		return fmt.Errorf("read turn seq: %w", err)
	}

	const qTurn = `
INSERT INTO turns (id, thread_id, seq, role, content, encrypted, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7);`
	for _, t := range turns {
		seq++
		content := t.Content
		encrypted := false
		if r.encryptionSvc != nil {
			ct, err := r.encryptionSvc.Encrypt(t.Content)
			if err != nil {
				return fmt.Errorf("encrypt turn: %w", err)
			}
			content = ct
			encrypted = true
		}
		if _, err := tx.Exec(ctx, qTurn, t.ID, threadID, seq, string(t.Role), content, encrypted, t.CreatedAt); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				// A concurrent writer took this seq; the version guard should
				// have caught it, but the unique constraint is the backstop.
				r.invalidate(ctx, threadID)
				return domain.ErrConflict
			}
			return fmt.Errorf("append turn: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}

	// The cache entry is stale now; the next Load repopulates it.
	r.invalidate(ctx, threadID)
	return nil
}

func (r *ThreadRepo) invalidate(ctx context.Context, threadID string) {
	if r.cache != nil {
		_ = r.cache.Delete(ctx, threadID)
	}
}

func (r *ThreadRepo) ListThreads(ctx context.Context, offset, limit int) ([]model.Thread, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT t.id, t.version, t.created_at, t.updated_at, COUNT(u.id)
FROM threads t LEFT JOIN turns u ON u.thread_id = t.id
GROUP BY t.id
ORDER BY t.updated_at DESC
OFFSET $1 LIMIT $2;`
	rows, err := r.pool.Query(ctx, q, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	var out []model.Thread
	for rows.Next() {
		var t model.Thread
		if err := rows.Scan(&t.ID, &t.Version, &t.CreatedAt, &t.UpdatedAt, &t.TurnCount); err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *ThreadRepo) FindIdleThreads(ctx context.Context, idleSince time.Time, limit int) ([]string, error) {
	const q = `
SELECT id FROM threads WHERE updated_at < $1 ORDER BY updated_at LIMIT $2;`
	rows, err := r.pool.Query(ctx, q, idleSince, limit)
	if err != nil {
		return nil, fmt.Errorf("find idle threads: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan thread id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *ThreadRepo) DeleteThread(ctx context.Context, threadID string) error {
	const q = `DELETE FROM threads WHERE id = $1;`
	res, err := r.pool.Exec(ctx, q, threadID)
	if err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}
	if res.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	r.invalidate(ctx, threadID)
	return nil
}
