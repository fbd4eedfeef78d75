package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/quizai/quizai/internal/config"
)

const (
	driverLibsql = "libsql"
	driverMongo  = "mongo"

	memoryDSN = ":memory:"
)

// ErrNotInitialized is returned by every method of a nil or closed-over Store.
var ErrNotInitialized = errors.New("store is not initialized")

// Store keeps accounts, rooms, submissions, and rate limit records in libsql.
// Nested documents (questions, answers, grades) are stored as JSON columns.
type Store struct {
	DB     *sql.DB
	driver string
}

// Open connects to the libsql database described by cfg. The mongo driver
// is only reachable through OpenBackend.
func Open(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	switch driver := normalizeDriver(cfg.Driver); driver {
	case driverLibsql:
		return openLibsql(ctx, cfg)
	case driverMongo:
		return nil, fmt.Errorf("store driver %s is not sql-backed, use OpenBackend", driver)
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", driver)
	}
}

func normalizeDriver(driver string) string {
	driver = strings.ToLower(strings.TrimSpace(driver))
	if driver == "" {
		return driverLibsql
	}
	return driver
}

func openLibsql(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	dsn, err := libsqlDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverLibsql, dsn)
	if err != nil {
		return nil, fmt.Errorf("open libsql store: %w", err)
	}
	if dsn == memoryDSN {
		// Each pooled connection would see its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping libsql store: %w", err)
	}
	return &Store{DB: db, driver: driverLibsql}, nil
}

// conn returns the handle and a non-nil context, or ErrNotInitialized.
func (s *Store) conn(ctx context.Context) (*sql.DB, context.Context, error) {
	if s == nil || s.DB == nil {
		return nil, nil, ErrNotInitialized
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return s.DB, ctx, nil
}

// Close releases database resources.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	db, ctx, err := s.conn(ctx)
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// Driver returns the configured store driver.
func (s *Store) Driver() string {
	if s == nil {
		return ""
	}
	return s.driver
}

// libsqlDSN turns the store config into a driver DSN. A remote URL wins over
// a local path; bare paths become file: DSNs with their directory created.
func libsqlDSN(cfg config.StoreConfig) (string, error) {
	if remote := strings.TrimSpace(cfg.URL); remote != "" {
		return withAuthToken(remote, cfg.AuthToken)
	}

	path := strings.TrimSpace(cfg.Path)
	switch {
	case path == "":
		return "", errors.New("store path or url is required")
	case path == memoryDSN, strings.HasPrefix(path, "libsql:"):
		return path, nil
	case strings.HasPrefix(path, "file:"):
		local, err := fileDSNPath(path)
		if err != nil {
			return "", err
		}
		return path, mkStoreDir(local)
	default:
		return "file:" + filepath.Clean(path), mkStoreDir(path)
	}
}

func withAuthToken(dsn string, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return dsn, nil
	}

	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store url: %w", err)
	}
	query := parsed.Query()
	if query.Get("authToken") != "" {
		return dsn, nil
	}
	query.Set("authToken", token)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func fileDSNPath(dsn string) (string, error) {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid store path: %w", err)
	}
	path := parsed.Path
	if path == "" {
		path = parsed.Opaque
	}
	return strings.TrimPrefix(path, "//"), nil
}

func mkStoreDir(path string) error {
	if path == "" || path == memoryDSN {
		return nil
	}
	dir := filepath.Dir(filepath.Clean(path))
	if dir == "." || dir == string(filepath.Separator) {
		return nil
	}
	// #nosec G301 -- data directories use 0755 for multi-user access compatibility
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	return nil
}
