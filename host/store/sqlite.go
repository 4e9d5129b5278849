// Package store persists the product catalog and the sales log.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"kioskctl/core"
	"kioskctl/host/store/migrations"
)

var ErrNotFound = errors.New("not found")

// fixed width so that text ordering is time ordering
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLite is the catalog and sales log backed by one SQLite file
type SQLite struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open opens (creating if needed) the database at path and migrates it.
// ":memory:" opens a private in-memory database.
func Open(ctx context.Context, path string, log zerolog.Logger) (*SQLite, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := migrations.Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Debug().Str("path", path).Msg("store opened")
	return &SQLite{db: db, log: log}, nil
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get implements core.Catalog
func (s *SQLite) Get(ctx context.Context, barcode string) (core.CatalogItem, bool, error) {
	query, args, err := sq.Select("id", "name", "price_cents").
		From("products").
		Where(sq.Eq{"id": barcode}).
		ToSql()
	if err != nil {
		return core.CatalogItem{}, false, fmt.Errorf("build query: %w", err)
	}

	var item core.CatalogItem
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&item.ID, &item.Name, &item.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return core.CatalogItem{}, false, nil
	}
	if err != nil {
		return core.CatalogItem{}, false, fmt.Errorf("get product %s: %w", barcode, err)
	}
	return item, true, nil
}

// List implements core.Catalog; items come back in catalog order
func (s *SQLite) List(ctx context.Context) ([]core.CatalogItem, error) {
	query, args, err := sq.Select("id", "name", "price_cents").
		From("products").
		OrderBy("position", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var items []core.CatalogItem
	for rows.Next() {
		var item core.CatalogItem
		if err := rows.Scan(&item.ID, &item.Name, &item.Price); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Put inserts or updates one product. New products go to the end of the catalog.
func (s *SQLite) Put(ctx context.Context, item core.CatalogItem) error {
	if err := core.ValidateItems([]core.CatalogItem{item}); err != nil {
		return err
	}

	query, args, err := sq.Insert("products").
		Columns("id", "name", "price_cents", "position").
		Values(item.ID, item.Name, int64(item.Price),
			sq.Expr("(SELECT COALESCE(MAX(position), 0) + 1 FROM products)")).
		Suffix("ON CONFLICT(id) DO UPDATE SET name = excluded.name, price_cents = excluded.price_cents").
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("put product %s: %w", item.ID, err)
	}
	s.log.Debug().Str("id", item.ID).Msg("product saved")
	return nil
}

// Delete removes one product; ErrNotFound if it does not exist
func (s *SQLite) Delete(ctx context.Context, barcode string) error {
	query, args, err := sq.Delete("products").Where(sq.Eq{"id": barcode}).ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete product %s: %w", barcode, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("product %s: %w", barcode, ErrNotFound)
	}
	return nil
}

// Replace swaps the whole catalog for items, keeping their order
func (s *SQLite) Replace(ctx context.Context, items []core.CatalogItem) (err error) {
	if err := core.ValidateItems(items); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM products"); err != nil {
		return fmt.Errorf("clear products: %w", err)
	}

	if len(items) > 0 {
		insert := sq.Insert("products").Columns("id", "name", "price_cents", "position")
		for i, item := range items {
			insert = insert.Values(item.ID, item.Name, int64(item.Price), i+1)
		}
		query, args, buildErr := insert.ToSql()
		if buildErr != nil {
			err = fmt.Errorf("build query: %w", buildErr)
			return err
		}
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert products: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.log.Info().Int("items", len(items)).Msg("catalog replaced")
	return nil
}

// Record implements core.SalesLog
func (s *SQLite) Record(ctx context.Context, sale core.SaleEvent) error {
	if sale.Time.IsZero() {
		sale.Time = time.Now()
	}

	query, args, err := sq.Insert("sales").
		Columns("sold_at", "barcode", "name", "price_cents", "quantity").
		Values(sale.Time.UTC().Format(timeLayout), sale.Barcode, sale.Name, int64(sale.Price), sale.Quantity).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record sale %s: %w", sale.Barcode, err)
	}
	return nil
}

// SalesFilter narrows ListSales; zero values mean unbounded
type SalesFilter struct {
	Since time.Time
	Until time.Time
	Limit uint64
}

// ListSales returns recorded sales, oldest first
func (s *SQLite) ListSales(ctx context.Context, filter SalesFilter) ([]core.SaleEvent, error) {
	q := sq.Select("sold_at", "barcode", "name", "price_cents", "quantity").
		From("sales").
		OrderBy("sold_at", "id")
	if !filter.Since.IsZero() {
		q = q.Where(sq.GtOrEq{"sold_at": filter.Since.UTC().Format(timeLayout)})
	}
	if !filter.Until.IsZero() {
		q = q.Where(sq.Lt{"sold_at": filter.Until.UTC().Format(timeLayout)})
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()

	var sales []core.SaleEvent
	for rows.Next() {
		var (
			soldAt string
			sale   core.SaleEvent
		)
		if err := rows.Scan(&soldAt, &sale.Barcode, &sale.Name, &sale.Price, &sale.Quantity); err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		if sale.Time, err = time.Parse(timeLayout, soldAt); err != nil {
			return nil, fmt.Errorf("parse sale time %q: %w", soldAt, err)
		}
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}
