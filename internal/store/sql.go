package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	apperrors "stockalerts/internal/errors"
	"stockalerts/internal/models"
)

// dialect captures the differences between the supported SQL engines.
type dialect struct {
	driver      string
	alertsIDCol string
	numbered    bool // $1, $2 placeholders instead of ?
}

var (
	sqliteDialect = dialect{
		driver:      "sqlite3",
		alertsIDCol: "id INTEGER PRIMARY KEY AUTOINCREMENT",
	}
	postgresDialect = dialect{
		driver:      "postgres",
		alertsIDCol: "id BIGSERIAL PRIMARY KEY",
		numbered:    true,
	}
)

// rebind rewrites ? placeholders for dialects that number them.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLStore implements Datastore over database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

// NewSQLiteStore opens (creating if needed) a SQLite database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite datastore needs a path")
	}
	dsn := dbPath
	if dbPath != ":memory:" {
		dsn = dbPath + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open(sqliteDialect.driver, dsn)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to open database")
	}

	// A single connection keeps :memory: databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	return newSQLStore(db, sqliteDialect)
}

// NewPostgresStore connects to a PostgreSQL database using dsn.
func NewPostgresStore(dsn string) (*SQLStore, error) {
	db, err := sql.Open(postgresDialect.driver, dsn)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to open database")
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	return newSQLStore(db, postgresDialect)
}

func newSQLStore(db *sql.DB, d dialect) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: d}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, apperrors.Wrap(err, "failed to connect to database")
	}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, apperrors.Wrap(err, "failed to initialize schema")
	}
	return s, nil
}

// initSchema creates the two collections if they are missing.
func (s *SQLStore) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS stocks (
			name TEXT PRIMARY KEY,
			lastprice DOUBLE PRECISION NOT NULL DEFAULT 0
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS alerts (
			%s,
			name TEXT NOT NULL,
			targetprice DOUBLE PRECISION NOT NULL,
			direction INTEGER NOT NULL DEFAULT 0
		)`, s.dialect.alertsIDCol),
		`CREATE INDEX IF NOT EXISTS idx_alerts_name_target ON alerts(name, targetprice)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// ListStocks retrieves every tracked stock.
func (s *SQLStore) ListStocks(ctx context.Context) ([]models.StockRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, lastprice FROM stocks ORDER BY name`)
	if err != nil {
		return nil, apperrors.NewDatastoreError("list", CollectionStocks, err)
	}
	defer rows.Close()

	var stocks []models.StockRecord
	for rows.Next() {
		var st models.StockRecord
		if err := rows.Scan(&st.Name, &st.LastPrice); err != nil {
			return nil, apperrors.NewDatastoreError("list", CollectionStocks, err)
		}
		stocks = append(stocks, st)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatastoreError("list", CollectionStocks, err)
	}
	return stocks, nil
}

// ListAlerts retrieves every active alert in insertion order.
func (s *SQLStore) ListAlerts(ctx context.Context) ([]models.AlertRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, targetprice, direction FROM alerts ORDER BY id`)
	if err != nil {
		return nil, apperrors.NewDatastoreError("list", CollectionAlerts, err)
	}
	defer rows.Close()

	var alerts []models.AlertRecord
	for rows.Next() {
		var a models.AlertRecord
		if err := rows.Scan(&a.Name, &a.TargetPrice, &a.Direction); err != nil {
			return nil, apperrors.NewDatastoreError("list", CollectionAlerts, err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatastoreError("list", CollectionAlerts, err)
	}
	return alerts, nil
}

// UpdateStockPrice sets lastprice on the stock named name. A name with no
// row is not an error, matching PATCH semantics.
func (s *SQLStore) UpdateStockPrice(ctx context.Context, name string, price float64) error {
	query := s.dialect.rebind(`UPDATE stocks SET lastprice = ? WHERE name = ?`)
	if _, err := s.db.ExecContext(ctx, query, price, name); err != nil {
		return apperrors.NewDatastoreError("update", CollectionStocks, err)
	}
	return nil
}

// DeleteAlert deletes alerts matching name and targetPrice.
func (s *SQLStore) DeleteAlert(ctx context.Context, name string, targetPrice float64) error {
	query := s.dialect.rebind(`DELETE FROM alerts WHERE name = ? AND targetprice = ?`)
	if _, err := s.db.ExecContext(ctx, query, name, targetPrice); err != nil {
		return apperrors.NewDatastoreError("delete", CollectionAlerts, err)
	}
	return nil
}

// PutStock inserts a stock, replacing lastprice when the name exists.
func (s *SQLStore) PutStock(ctx context.Context, stock models.StockRecord) error {
	query := s.dialect.rebind(`
		INSERT INTO stocks (name, lastprice) VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET lastprice = excluded.lastprice`)
	if _, err := s.db.ExecContext(ctx, query, stock.Name, stock.LastPrice); err != nil {
		return apperrors.NewDatastoreError("insert", CollectionStocks, err)
	}
	return nil
}

// PutAlert inserts an alert.
func (s *SQLStore) PutAlert(ctx context.Context, alert models.AlertRecord) error {
	query := s.dialect.rebind(`INSERT INTO alerts (name, targetprice, direction) VALUES (?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, query, alert.Name, alert.TargetPrice, alert.Direction); err != nil {
		return apperrors.NewDatastoreError("insert", CollectionAlerts, err)
	}
	return nil
}
