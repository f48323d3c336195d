package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"seju-chat/internal/config"
)

// Upload is one ingested file's metadata row.
type Upload struct {
	bun.BaseModel `bun:"table:uploads,alias:u"`
	ID            string    `bun:"id,pk"`
	Filename      string    `bun:"filename,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// ConnectDB opens the long-lived connection pool. pgdriver reconnects
// stale connections on reuse, so callers never manage the lifecycle.
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	dsn := cfg.URL + "?sslmode=disable"
	// return sql.Open("postgres", dsn)
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn), pgdriver.WithPassword(cfg.Key))), nil
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

func InitDB(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*Upload)(nil)).IfNotExists().Exec(ctx)
	return err
}

// UploadStore records which files have been ingested.
type UploadStore struct {
	db *bun.DB
}

func NewUploadStore(db *bun.DB) *UploadStore {
	return &UploadStore{db: db}
}

// Record inserts one upload row and returns its id.
func (s *UploadStore) Record(ctx context.Context, filename string) (string, error) {
	upload := &Upload{
		ID:        uuid.NewString(),
		Filename:  filename,
		CreatedAt: time.Now(),
	}
	if _, err := s.db.NewInsert().Model(upload).Exec(ctx); err != nil {
		return "", err
	}
	return upload.ID, nil
}

// List returns upload rows, newest first.
func (s *UploadStore) List(ctx context.Context) ([]Upload, error) {
	var uploads []Upload
	err := s.db.NewSelect().
		Model(&uploads).
		Order("created_at DESC").
		Scan(ctx)
	return uploads, err
}
