package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"productcatalog-api/internal/model"

	sq "github.com/Masterminds/squirrel"
)

const productsTable = "products"

var productColumns = []string{"id", "name", "stock", "price"}

// sqlDialect captures what differs between the relational backends.
type sqlDialect struct {
	name        string
	placeholder sq.PlaceholderFormat
	// contains builds the case-sensitive substring predicate on name.
	contains func(search string) sq.Sqlizer
	// returningID is true when inserts report the new id through
	// RETURNING instead of LastInsertId.
	returningID bool
	// checkViolation reports whether err is a CHECK constraint failure.
	checkViolation func(err error) bool
}

// Options holds settings shared by the SQL repositories.
type Options struct {
	Logger *log.Logger
	// LogSQL logs every generated statement with its arguments.
	LogSQL bool
}

func (o Options) logger() *log.Logger {
	if o.Logger == nil {
		return log.Default()
	}
	return o.Logger
}

// SQLProductRepository implements ProductRepository on database/sql.
// The dialect decides placeholders, the substring predicate and how
// inserted ids come back.
type SQLProductRepository struct {
	db      *sql.DB
	dialect sqlDialect
	logger  *log.Logger
	logSQL  bool
}

func newSQLProductRepository(db *sql.DB, d sqlDialect, opts Options) *SQLProductRepository {
	return &SQLProductRepository{
		db:      db,
		dialect: d,
		logger:  opts.logger(),
		logSQL:  opts.LogSQL,
	}
}

func (r *SQLProductRepository) qb() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(r.dialect.placeholder)
}

func (r *SQLProductRepository) trace(op, query string, args []interface{}) {
	if r.logSQL {
		r.logger.Printf("[%sProductRepository] %s: %s %v", r.dialect.name, op, query, args)
	}
}

// GetByID returns the product with id.
func (r *SQLProductRepository) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	query, args, err := r.qb().Select(productColumns...).
		From(productsTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	r.trace("GetByID", query, args)

	var p model.Product
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&p.ID, &p.Name, &p.Stock, &p.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product %d: %w", id, err)
	}
	return &p, nil
}

// List returns products matching q.
func (r *SQLProductRepository) List(ctx context.Context, q model.ListQuery) ([]model.Product, error) {
	sb := r.qb().Select(productColumns...).From(productsTable)
	if q.Search != "" {
		sb = sb.Where(r.dialect.contains(q.Search))
	}

	column := q.SortColumn()
	if column == model.SortByID {
		sb = sb.OrderBy("id ASC")
	} else {
		direction := "ASC"
		if q.Descending() {
			direction = "DESC"
		}
		sb = sb.OrderBy(column+" "+direction, "id ASC")
	}

	query, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	r.trace("List", query, args)

	start := time.Now()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := make([]model.Product, 0)
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Stock, &p.Price); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}

	if r.logSQL {
		r.logger.Printf("[%sProductRepository] List returned %d rows in %s", r.dialect.name, len(products), time.Since(start))
	}
	return products, nil
}

// Begin starts a database transaction.
func (r *SQLProductRepository) Begin(ctx context.Context) (ProductWriter, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &sqlProductWriter{repo: r, tx: tx}, nil
}

// Ping checks the database connection.
func (r *SQLProductRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Stats returns row and connection pool statistics.
func (r *SQLProductRepository) Stats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var count int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+productsTable).Scan(&count); err != nil {
		return nil, err
	}
	stats["total_products"] = count

	var maxID sql.NullInt64
	if err := r.db.QueryRowContext(ctx, "SELECT MAX(id) FROM "+productsTable).Scan(&maxID); err == nil && maxID.Valid {
		stats["max_id"] = maxID.Int64
	}

	pool := r.db.Stats()
	stats["db_type"] = strings.ToLower(r.dialect.name)
	stats["open_connections"] = pool.OpenConnections
	stats["in_use"] = pool.InUse
	return stats, nil
}

// Close closes the database connection.
func (r *SQLProductRepository) Close() error {
	return r.db.Close()
}

// mapWriteError turns constraint failures into entity errors.
func (r *SQLProductRepository) mapWriteError(err error) error {
	if r.dialect.checkViolation == nil || !r.dialect.checkViolation(err) {
		return err
	}
	if strings.Contains(err.Error(), "chk_products_stock") {
		return model.ErrNegativeStock
	}
	return model.ErrNegativePrice
}

type sqlProductWriter struct {
	repo *SQLProductRepository
	tx   *sql.Tx
}

func (w *sqlProductWriter) Add(ctx context.Context, p *model.Product) error {
	ib := w.repo.qb().Insert(productsTable).
		Columns("name", "stock", "price").
		Values(p.Name, p.Stock, p.Price)

	if w.repo.dialect.returningID {
		query, args, err := ib.Suffix("RETURNING id").ToSql()
		if err != nil {
			return fmt.Errorf("failed to build insert: %w", err)
		}
		w.repo.trace("Add", query, args)

		if err := w.tx.QueryRowContext(ctx, query, args...).Scan(&p.ID); err != nil {
			return fmt.Errorf("failed to insert product: %w", w.repo.mapWriteError(err))
		}
		return nil
	}

	query, args, err := ib.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}
	w.repo.trace("Add", query, args)

	res, err := w.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", w.repo.mapWriteError(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read inserted id: %w", err)
	}
	p.ID = id
	return nil
}

func (w *sqlProductWriter) Update(ctx context.Context, p *model.Product) error {
	query, args, err := w.repo.qb().Update(productsTable).
		Set("name", p.Name).
		Set("stock", p.Stock).
		Set("price", p.Price).
		Where(sq.Eq{"id": p.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}
	w.repo.trace("Update", query, args)

	res, err := w.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update product %d: %w", p.ID, w.repo.mapWriteError(err))
	}
	return requireOneRow(res)
}

func (w *sqlProductWriter) Delete(ctx context.Context, id int64) error {
	query, args, err := w.repo.qb().Delete(productsTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}
	w.repo.trace("Delete", query, args)

	res, err := w.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete product %d: %w", id, err)
	}
	return requireOneRow(res)
}

func (w *sqlProductWriter) Commit() error {
	if err := w.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (w *sqlProductWriter) Rollback() error {
	err := w.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return model.ErrProductNotFound
	}
	return nil
}

var _ ProductRepository = (*SQLProductRepository)(nil)
