package nest

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb"
)

// SQLConfig configures a database-backed nest source. Query wins over
// Table when both are set.
type SQLConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string
	// Path is the database file for DuckDB.
	Path  string
	Table string
	Query string
}

// SQLSource fetches records from a SQL database.
type SQLSource struct {
	name   string
	db     *sql.DB
	query  string
	logger *slog.Logger
}

// OpenPostgres connects to a Postgres nest.
func OpenPostgres(ctx context.Context, cfg SQLConfig, logger *slog.Logger) (*SQLSource, error) {
	db, err := sql.Open("pgx", buildPostgresDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return newSQLSource("postgres", db, cfg, logger)
}

// OpenDuckDB opens a DuckDB file as a nest. An empty path opens an
// in-memory database.
func OpenDuckDB(ctx context.Context, cfg SQLConfig, logger *slog.Logger) (*SQLSource, error) {
	db, err := sql.Open("duckdb", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping duckdb: %w", err)
	}
	return newSQLSource("duckdb", db, cfg, logger)
}

// NewSQLSource wraps an already-open database; tests use it to inject a
// mock connection.
func NewSQLSource(name string, db *sql.DB, query string, logger *slog.Logger) *SQLSource {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLSource{name: name, db: db, query: query, logger: logger}
}

func newSQLSource(name string, db *sql.DB, cfg SQLConfig, logger *slog.Logger) (*SQLSource, error) {
	query := cfg.Query
	if query == "" {
		if cfg.Table == "" {
			_ = db.Close()
			return nil, fmt.Errorf("%s nest needs a table or query", name)
		}
		query = fmt.Sprintf("SELECT * FROM %s", cfg.Table)
	}
	return NewSQLSource(name, db, query, logger), nil
}

func buildPostgresDSN(cfg SQLConfig) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslmode := cfg.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s", host, port, cfg.Database, sslmode)
	if cfg.Username != "" {
		dsn += " user=" + cfg.Username
	}
	if cfg.Password != "" {
		dsn += " password=" + cfg.Password
	}
	return dsn
}

// Name implements Source.
func (s *SQLSource) Name() string {
	return s.name
}

// Fetch implements Source.
func (s *SQLSource) Fetch(ctx context.Context, limit int) ([]Record, error) {
	query := s.query
	if limit > 0 {
		query = fmt.Sprintf("%s LIMIT %d", query, limit)
	}
	s.logger.Debug("fetching nest records", "source", s.name, "query", query)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("nest query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []Record
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan nest record: %w", err)
		}
		rec := make(Record, len(cols))
		for i, name := range cols {
			rec[name] = normalizeSQLValue(values[i])
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close implements Source.
func (s *SQLSource) Close() error {
	return s.db.Close()
}

// normalizeSQLValue makes driver values JSON-friendly.
func normalizeSQLValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
