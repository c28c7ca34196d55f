package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jhonier182/lista-mercado/internal/core"
	"github.com/jhonier182/lista-mercado/internal/entities"

	_ "modernc.org/sqlite"
)

const dsnPragmas = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"

// SQLiteRepository implements entities.Repository on SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

var _ entities.Repository = (*SQLiteRepository)(nil)

// NewSQLiteRepository opens the database at dbPath and applies migrations.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	dsn := dbPath + dsnPragmas

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return NewWithDB(db), nil
}

// NewWithDB wraps an already opened and migrated database.
func NewWithDB(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Close closes the database.
func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return core.WrapBackend("ping", r.db.PingContext(ctx))
}

const productColumns = `id, owner_id, name, brand, price, unit, quantity, category_id, category_name,
	store_id, store_name, notes, created_at, updated_at, is_active`

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// InsertProduct stores p without touching the price history.
func (r *SQLiteRepository) InsertProduct(ctx context.Context, p core.Product) error {
	if err := insertProduct(ctx, r.db, p); err != nil {
		return err
	}
	slog.DebugContext(ctx, "Product saved to SQLite", "id", p.ID, "owner_id", p.OwnerID)
	return nil
}

// UpdateProduct overwrites p; ErrNotFound when no row matches.
func (r *SQLiteRepository) UpdateProduct(ctx context.Context, p core.Product) error {
	return updateProduct(ctx, r.db, p)
}

// InsertProductWithPrice stores a new product and its first price entry in
// one transaction.
func (r *SQLiteRepository) InsertProductWithPrice(ctx context.Context, p core.Product, e core.PriceHistoryEntry) error {
	return r.inTx(ctx, "insert product with price", func(tx *sql.Tx) error {
		if err := insertProduct(ctx, tx, p); err != nil {
			return err
		}
		return appendPriceEntry(ctx, tx, e)
	})
}

// UpdateProductWithPrice stores the product and the entry for its new price
// in one transaction.
func (r *SQLiteRepository) UpdateProductWithPrice(ctx context.Context, p core.Product, e core.PriceHistoryEntry) error {
	return r.inTx(ctx, "update product with price", func(tx *sql.Tx) error {
		if err := updateProduct(ctx, tx, p); err != nil {
			return err
		}
		return appendPriceEntry(ctx, tx, e)
	})
}

func (r *SQLiteRepository) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.WrapBackend(op, err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "op", op, "error", rbErr)
		}
		return err
	}
	return core.WrapBackend(op, tx.Commit())
}

func insertProduct(ctx context.Context, ex execer, p core.Product) error {
	_, err := ex.ExecContext(ctx, `INSERT INTO products (`+productColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.OwnerID, p.Name, p.Brand, p.Price, string(p.Unit), p.Quantity, p.CategoryID, p.CategoryName,
		p.StoreID, p.StoreName, p.Notes, toUnix(p.CreatedAt), toNullUnix(p.UpdatedAt), p.IsActive)
	return core.WrapBackend("insert product", err)
}

func updateProduct(ctx context.Context, ex execer, p core.Product) error {
	res, err := ex.ExecContext(ctx, `UPDATE products SET name = ?, brand = ?, price = ?, unit = ?, quantity = ?,
		category_id = ?, category_name = ?, store_id = ?, store_name = ?, notes = ?, updated_at = ?, is_active = ?
		WHERE id = ? AND owner_id = ?`,
		p.Name, p.Brand, p.Price, string(p.Unit), p.Quantity, p.CategoryID, p.CategoryName,
		p.StoreID, p.StoreName, p.Notes, toNullUnix(p.UpdatedAt), p.IsActive, p.ID, p.OwnerID)
	return affectedOne("update product", res, err)
}

func (r *SQLiteRepository) GetProduct(ctx context.Context, ownerID, id string) (core.Product, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ? AND owner_id = ?`, id, ownerID)
	p, err := scanProduct(row)
	if err != nil {
		return core.Product{}, notFoundOrBackend("get product", err)
	}
	return p, nil
}

func (r *SQLiteRepository) QueryProducts(ctx context.Context, ownerID string, f entities.ProductFilter) ([]core.Product, error) {
	q := newQuery(`SELECT `+productColumns+` FROM products`, ownerID).
		active(f.Active).
		eq("category_id", f.CategoryID).
		eq("store_id", f.StoreID).
		eq("brand", f.Brand)

	rows, err := r.db.QueryContext(ctx, q.sql(), q.args...)
	if err != nil {
		return nil, core.WrapBackend("query products", err)
	}
	defer rows.Close()

	out := make([]core.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, core.WrapBackend("scan product", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapBackend("query products", err)
	}
	return out, nil
}

func (r *SQLiteRepository) InsertCategory(ctx context.Context, c core.Category) error {
	return r.insertNamed(ctx, "categories", c.ID, c.OwnerID, c.Name, c.CreatedAt, c.UpdatedAt, c.IsActive)
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) error {
	return r.updateNamed(ctx, "categories", c.ID, c.OwnerID, c.Name, c.UpdatedAt, c.IsActive)
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, ownerID, id string) (core.Category, error) {
	n, err := r.getNamed(ctx, "categories", ownerID, id)
	if err != nil {
		return core.Category{}, err
	}
	return core.Category(n), nil
}

func (r *SQLiteRepository) QueryCategories(ctx context.Context, ownerID string, f entities.Filter) ([]core.Category, error) {
	named, err := r.queryNamed(ctx, "categories", ownerID, f)
	if err != nil {
		return nil, err
	}
	out := make([]core.Category, len(named))
	for i, n := range named {
		out[i] = core.Category(n)
	}
	return out, nil
}

func (r *SQLiteRepository) InsertStore(ctx context.Context, s core.Store) error {
	return r.insertNamed(ctx, "stores", s.ID, s.OwnerID, s.Name, s.CreatedAt, s.UpdatedAt, s.IsActive)
}

func (r *SQLiteRepository) UpdateStore(ctx context.Context, s core.Store) error {
	return r.updateNamed(ctx, "stores", s.ID, s.OwnerID, s.Name, s.UpdatedAt, s.IsActive)
}

func (r *SQLiteRepository) GetStore(ctx context.Context, ownerID, id string) (core.Store, error) {
	n, err := r.getNamed(ctx, "stores", ownerID, id)
	if err != nil {
		return core.Store{}, err
	}
	return core.Store(n), nil
}

func (r *SQLiteRepository) QueryStores(ctx context.Context, ownerID string, f entities.Filter) ([]core.Store, error) {
	named, err := r.queryNamed(ctx, "stores", ownerID, f)
	if err != nil {
		return nil, err
	}
	out := make([]core.Store, len(named))
	for i, n := range named {
		out[i] = core.Store(n)
	}
	return out, nil
}

// AppendPriceEntry adds e to the price history.
func (r *SQLiteRepository) AppendPriceEntry(ctx context.Context, e core.PriceHistoryEntry) error {
	if err := appendPriceEntry(ctx, r.db, e); err != nil {
		return err
	}
	slog.DebugContext(ctx, "Price entry appended", "id", e.ID, "product_id", e.ProductID)
	return nil
}

func appendPriceEntry(ctx context.Context, ex execer, e core.PriceHistoryEntry) error {
	_, err := ex.ExecContext(ctx, `INSERT INTO price_history (id, product_id, owner_id, price, store, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.ProductID, e.OwnerID, e.Price, e.Store, toUnix(e.Date))
	return core.WrapBackend("append price entry", err)
}

func (r *SQLiteRepository) QueryPriceHistory(ctx context.Context, ownerID string, f entities.HistoryFilter) ([]core.PriceHistoryEntry, error) {
	q := newQuery(`SELECT id, product_id, owner_id, price, store, recorded_at FROM price_history`, ownerID).
		eq("product_id", f.ProductID)

	rows, err := r.db.QueryContext(ctx, q.sql(), q.args...)
	if err != nil {
		return nil, core.WrapBackend("query price history", err)
	}
	defer rows.Close()

	out := make([]core.PriceHistoryEntry, 0)
	for rows.Next() {
		var e core.PriceHistoryEntry
		var at int64
		if err := rows.Scan(&e.ID, &e.ProductID, &e.OwnerID, &e.Price, &e.Store, &at); err != nil {
			return nil, core.WrapBackend("scan price entry", err)
		}
		e.Date = fromUnix(at)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapBackend("query price history", err)
	}
	return out, nil
}

func (r *SQLiteRepository) InsertUser(ctx context.Context, u entities.UserRecord) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO users (id, email, display_name, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		u.User.ID, normalizeEmail(u.User.Email), u.User.DisplayName, u.PasswordHash, toUnix(u.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return entities.ErrDuplicate
		}
		return core.WrapBackend("insert user", err)
	}
	return nil
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (entities.UserRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, email, display_name, password_hash, created_at FROM users WHERE email = ?`,
		normalizeEmail(email))
	u, err := scanUser(row)
	if err != nil {
		return entities.UserRecord{}, notFoundOrBackend("get user by email", err)
	}
	return u, nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id string) (entities.UserRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, email, display_name, password_hash, created_at FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		return entities.UserRecord{}, notFoundOrBackend("get user", err)
	}
	return u, nil
}

func (r *SQLiteRepository) RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `INSERT OR REPLACE INTO revoked_tokens (token_id, expires_at) VALUES (?, ?)`,
		tokenID, toUnix(expiresAt))
	if err != nil {
		return core.WrapBackend("revoke token", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at < ?`, toUnix(time.Now())); err != nil {
		slog.WarnContext(ctx, "Failed to prune revoked tokens", "error", err)
	}
	return nil
}

func (r *SQLiteRepository) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM revoked_tokens WHERE token_id = ?`, tokenID).Scan(&n)
	if err != nil {
		return false, core.WrapBackend("check revoked token", err)
	}
	return n > 0, nil
}

// named is the shared shape of categories and stores.
type named struct {
	ID        string
	OwnerID   string
	Name      string
	CreatedAt time.Time
	UpdatedAt *time.Time
	IsActive  bool
}

func (r *SQLiteRepository) insertNamed(ctx context.Context, table, id, ownerID, name string, createdAt time.Time, updatedAt *time.Time, active bool) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO `+table+` (id, owner_id, name, created_at, updated_at, is_active)
		VALUES (?, ?, ?, ?, ?, ?)`, id, ownerID, name, toUnix(createdAt), toNullUnix(updatedAt), active)
	return core.WrapBackend("insert "+table, err)
}

func (r *SQLiteRepository) updateNamed(ctx context.Context, table, id, ownerID, name string, updatedAt *time.Time, active bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE `+table+` SET name = ?, updated_at = ?, is_active = ?
		WHERE id = ? AND owner_id = ?`, name, toNullUnix(updatedAt), active, id, ownerID)
	return affectedOne("update "+table, res, err)
}

func (r *SQLiteRepository) getNamed(ctx context.Context, table, ownerID, id string) (named, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, owner_id, name, created_at, updated_at, is_active FROM `+table+`
		WHERE id = ? AND owner_id = ?`, id, ownerID)
	n, err := scanNamed(row)
	if err != nil {
		return named{}, notFoundOrBackend("get "+table, err)
	}
	return n, nil
}

func (r *SQLiteRepository) queryNamed(ctx context.Context, table, ownerID string, f entities.Filter) ([]named, error) {
	q := newQuery(`SELECT id, owner_id, name, created_at, updated_at, is_active FROM `+table, ownerID).active(f.Active)
	rows, err := r.db.QueryContext(ctx, q.sql(), q.args...)
	if err != nil {
		return nil, core.WrapBackend("query "+table, err)
	}
	defer rows.Close()

	out := make([]named, 0)
	for rows.Next() {
		n, err := scanNamed(rows)
		if err != nil {
			return nil, core.WrapBackend("scan "+table, err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapBackend("query "+table, err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(s scanner) (core.Product, error) {
	var (
		p         core.Product
		unit      string
		createdAt int64
		updatedAt sql.NullInt64
	)
	err := s.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Brand, &p.Price, &unit, &p.Quantity, &p.CategoryID, &p.CategoryName,
		&p.StoreID, &p.StoreName, &p.Notes, &createdAt, &updatedAt, &p.IsActive)
	if err != nil {
		return core.Product{}, err
	}
	p.Unit = core.Unit(unit)
	p.CreatedAt = fromUnix(createdAt)
	p.UpdatedAt = fromNullUnix(updatedAt)
	return p, nil
}

func scanNamed(s scanner) (named, error) {
	var (
		n         named
		createdAt int64
		updatedAt sql.NullInt64
	)
	if err := s.Scan(&n.ID, &n.OwnerID, &n.Name, &createdAt, &updatedAt, &n.IsActive); err != nil {
		return named{}, err
	}
	n.CreatedAt = fromUnix(createdAt)
	n.UpdatedAt = fromNullUnix(updatedAt)
	return n, nil
}

func scanUser(s scanner) (entities.UserRecord, error) {
	var (
		u         entities.UserRecord
		createdAt int64
	)
	if err := s.Scan(&u.User.ID, &u.User.Email, &u.User.DisplayName, &u.PasswordHash, &createdAt); err != nil {
		return entities.UserRecord{}, err
	}
	u.CreatedAt = fromUnix(createdAt)
	return u, nil
}

// query builds an owner-scoped SELECT with optional equality filters.
type query struct {
	base  string
	where []string
	args  []any
}

func newQuery(base, ownerID string) *query {
	return &query{base: base, where: []string{"owner_id = ?"}, args: []any{ownerID}}
}

func (q *query) eq(column, value string) *query {
	if value != "" {
		q.where = append(q.where, column+" = ?")
		q.args = append(q.args, value)
	}
	return q
}

func (q *query) active(v *bool) *query {
	if v != nil {
		q.where = append(q.where, "is_active = ?")
		q.args = append(q.args, *v)
	}
	return q
}

func (q *query) sql() string {
	return q.base + " WHERE " + strings.Join(q.where, " AND ")
}

func affectedOne(op string, res sql.Result, err error) error {
	if err != nil {
		return core.WrapBackend(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.WrapBackend(op, err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func notFoundOrBackend(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	return core.WrapBackend(op, err)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toUnix(t time.Time) int64 {
	return t.UnixNano()
}

func toNullUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromUnix(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func fromNullUnix(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromUnix(n.Int64)
	return &t
}
