package engine

import (
	"context"
	"database/sql"
	"time"

	"golang.org/x/crypto/bcrypt"

	"quoteline/internal/config"
	"quoteline/internal/db"
	"quoteline/internal/domain"
	"quoteline/internal/events"
	"quoteline/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
	// HashCost is the bcrypt cost for new passwords.
	HashCost int
}

func New(conn *sql.DB, dialect db.Dialect, cfg *config.Config) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	return Engine{
		DB:       conn,
		Repo:     repo.Repo{DB: conn, Dialect: dialect},
		Events:   events.Writer{Dialect: dialect},
		Config:   cfg,
		Now:      time.Now,
		HashCost: bcrypt.DefaultCost,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// inTx runs fn in one transaction. Any error rolls the whole operation back.
func (e Engine) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return storageError(err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return storageError(err)
	}
	if err := tx.Commit(); err != nil {
		return storageError(err)
	}
	return nil
}

// readTx runs read-only fn. Postgres gets a READ ONLY transaction. SQLite
// transactions here always take the write lock, so reads use the pool
// directly (tx is nil) and do not queue behind writers.
func (e Engine) readTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if e.Repo.Dialect == db.SQLite {
		return storageError(fn(nil))
	}
	tx, err := e.DB.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return storageError(err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return storageError(err)
	}
	return storageError(tx.Commit())
}

func (e Engine) appendEvent(ctx context.Context, tx *sql.Tx, evtType, entityKind, entityID, actorID string, payload events.EventPayload) error {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	return w.Append(ctx, tx, evtType, entityKind, entityID, actorID, payload)
}

// ListOptions selects a 1-based page.
type ListOptions struct {
	Page  int
	Limit int
}

func (e Engine) page(opts ListOptions) repo.Page {
	p := opts.Page
	if p < 1 {
		p = 1
	}
	return repo.Page{Page: p, Limit: e.Config.NormalizeLimit(opts.Limit)}
}

type OrderPage struct {
	Items      []domain.Order    `json:"items"`
	Pagination domain.Pagination `json:"pagination"`
}

type QuotePage struct {
	Items      []domain.Quote    `json:"items"`
	Pagination domain.Pagination `json:"pagination"`
}

type RequirementPage struct {
	Items      []domain.Requirement `json:"items"`
	Pagination domain.Pagination    `json:"pagination"`
}
