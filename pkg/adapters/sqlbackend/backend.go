// Package sqlbackend implements ports.QueryBackend over database/sql.
//
// Three drivers are registered: "sqlite" (modernc.org/sqlite), "pgx"
// (jackc/pgx stdlib) and "postgres" (lib/pq).
package sqlbackend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/hybridqa/internal/logging"
	"github.com/aretw0/hybridqa/pkg/domain"
	"github.com/aretw0/hybridqa/pkg/ports"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/patrickmn/go-cache"
	_ "modernc.org/sqlite"
)

// Dialect selects the schema introspection queries.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DefaultSchemaTTL is how long an introspected schema is reused.
const DefaultSchemaTTL = 5 * time.Minute

const schemaKey = "schema"

// DialectFor maps a database/sql driver name to its dialect.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "pgx", "postgres", "postgresql":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Backend executes query text and describes the schema of a relational store.
type Backend struct {
	db           *sql.DB
	dialect      Dialect
	logger       *slog.Logger
	schema       *cache.Cache
	schemaTTL    time.Duration
	queryTimeout time.Duration
	serialize    bool
	mu           sync.Mutex
}

var _ ports.QueryBackend = (*Backend)(nil)

type Option func(*Backend)

func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		b.logger = logger
	}
}

// WithSchemaTTL sets how long Schema results are cached. Zero disables caching.
func WithSchemaTTL(ttl time.Duration) Option {
	return func(b *Backend) {
		b.schemaTTL = ttl
	}
}

// WithQueryTimeout bounds each Execute call.
func WithQueryTimeout(d time.Duration) Option {
	return func(b *Backend) {
		b.queryTimeout = d
	}
}

// WithSerializedAccess makes Execute calls run one at a time.
func WithSerializedAccess() Option {
	return func(b *Backend) {
		b.serialize = true
	}
}

// Open connects with the named driver. In-memory SQLite databases are pinned
// to a single connection so every query sees the same data.
func Open(driver, dsn string, opts ...Option) (*Backend, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	driver = strings.ToLower(driver)
	if driver == "postgresql" || driver == "sqlite3" {
		driver = string(dialect)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if dialect == DialectSQLite && strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}
	return New(db, dialect, opts...), nil
}

// New wraps an open database handle.
func New(db *sql.DB, dialect Dialect, opts ...Option) *Backend {
	b := &Backend{
		db:        db,
		dialect:   dialect,
		logger:    logging.NewNop(),
		schemaTTL: DefaultSchemaTTL,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.schemaTTL > 0 {
		b.schema = cache.New(b.schemaTTL, 2*b.schemaTTL)
	}
	return b
}

// DB exposes the underlying handle, mainly for seeding fixtures.
func (b *Backend) DB() *sql.DB {
	return b.db
}

func (b *Backend) Dialect() Dialect {
	return b.dialect
}

func (b *Backend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

func (b *Backend) Close() error {
	return b.db.Close()
}

// InvalidateSchema drops the cached schema description.
func (b *Backend) InvalidateSchema() {
	if b.schema != nil {
		b.schema.Delete(schemaKey)
	}
}

// Schema returns one paragraph per table:
//
//	Table: Orders
//	  - OrderID (INTEGER)
//	  - CustomerID (TEXT)
func (b *Backend) Schema(ctx context.Context) (string, error) {
	if b.schema != nil {
		if v, ok := b.schema.Get(schemaKey); ok {
			return v.(string), nil
		}
	}

	var (
		tables []table
		err    error
	)
	switch b.dialect {
	case DialectPostgres:
		tables, err = b.postgresTables(ctx)
	default:
		tables, err = b.sqliteTables(ctx)
	}
	if err != nil {
		return "", fmt.Errorf("introspect schema: %w", err)
	}

	out := formatSchema(tables)
	if b.schema != nil {
		b.schema.SetDefault(schemaKey, out)
	}
	b.logger.Debug("schema introspected", "tables", len(tables))
	return out, nil
}

// Execute runs query text and never returns an error: failures are carried in
// the result with empty columns and rows.
func (b *Backend) Execute(ctx context.Context, query string) domain.QueryResult {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.FailedResult(domain.ErrEmptyQuery)
	}

	if b.serialize {
		b.mu.Lock()
		defer b.mu.Unlock()
	}
	if b.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.queryTimeout)
		defer cancel()
	}

	res, err := b.query(ctx, query)
	if err != nil {
		b.logger.Debug("query failed", "err", err)
		return domain.FailedResult(err)
	}
	return res
}

func (b *Backend) query(ctx context.Context, query string) (domain.QueryResult, error) {
	rows, err := b.db.QueryContext(ctx, query)
	if err != nil {
		return domain.QueryResult{}, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return domain.QueryResult{}, err
	}

	out := domain.QueryResult{Columns: cols, Rows: []map[string]any{}}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return domain.QueryResult{}, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = normalizeValue(vals[i])
		}
		out.Rows = append(out.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return domain.QueryResult{}, err
	}
	if out.Columns == nil {
		out.Columns = []string{}
	}
	return out, nil
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return t
	}
}

type column struct {
	Name string
	Type string
}

type table struct {
	Name    string
	Columns []column
}

func formatSchema(tables []table) string {
	var sb strings.Builder
	for _, t := range tables {
		fmt.Fprintf(&sb, "Table: %s\n", t.Name)
		for _, c := range t.Columns {
			fmt.Fprintf(&sb, "  - %s (%s)\n", c.Name, c.Type)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (b *Backend) sqliteTables(ctx context.Context) ([]table, error) {
	names, err := b.strings(ctx, "SELECT name FROM sqlite_master WHERE type='table' ORDER BY rowid")
	if err != nil {
		return nil, err
	}

	tables := make([]table, 0, len(names))
	for _, name := range names {
		rows, err := b.db.QueryContext(ctx, "PRAGMA table_info("+quoteIdent(name)+")")
		if err != nil {
			return nil, err
		}
		t := table{Name: name}
		for rows.Next() {
			var (
				cid     int
				colName string
				colType string
				notNull int
				dflt    sql.NullString
				pk      int
			)
			if err := rows.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
				rows.Close()
				return nil, err
			}
			t.Columns = append(t.Columns, column{Name: colName, Type: colType})
		}
		err = errors.Join(rows.Err(), rows.Close())
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func (b *Backend) postgresTables(ctx context.Context) ([]table, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT c.table_name, c.column_name, upper(c.data_type)
		FROM information_schema.columns c
		JOIN information_schema.tables t
		  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
		WHERE c.table_schema = current_schema() AND t.table_type = 'BASE TABLE'
		ORDER BY c.table_name, c.ordinal_position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []table
	for rows.Next() {
		var tbl, col, typ string
		if err := rows.Scan(&tbl, &col, &typ); err != nil {
			return nil, err
		}
		if len(tables) == 0 || tables[len(tables)-1].Name != tbl {
			tables = append(tables, table{Name: tbl})
		}
		last := &tables[len(tables)-1]
		last.Columns = append(last.Columns, column{Name: col, Type: typ})
	}
	return tables, rows.Err()
}

func (b *Backend) strings(ctx context.Context, query string) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
