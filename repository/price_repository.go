package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/rotisserie/eris"

	"pricewatch/database"
	"pricewatch/models"
)

// ErrDuplicate is returned by Insert when a record for the same
// (retailer, product) already exists.
var ErrDuplicate = eris.New("price record already exists")

// PriceStore is the persisted price state
type PriceStore interface {
	// FindOne returns nil, nil when no record exists for the pair
	FindOne(ctx context.Context, retailer, product string) (*models.PriceRecord, error)
	Insert(ctx context.Context, record *models.PriceRecord) error
	UpdatePrice(ctx context.Context, id, price int64, rawProduct string, at time.Time) error
	FindAll(ctx context.Context, product string) ([]models.PriceRecord, error)
	AddHistory(ctx context.Context, recordID, price int64, at time.Time) error
	History(ctx context.Context, recordID int64, limit int) ([]models.PriceHistory, error)
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PriceRepository is the SQL-backed PriceStore. Used directly it runs each
// call on the pool; WithSession pins a connection for a batch.
type PriceRepository struct {
	priceStore
	db *sql.DB
}

func NewPriceRepository(db *sql.DB, driver string) *PriceRepository {
	return &PriceRepository{
		priceStore: priceStore{q: db, driver: driver},
		db:         db,
	}
}

type priceStore struct {
	q      querier
	driver string
}

const recordColumns = `id, retailer, product, raw_product, price, created_at, last_updated`

// FindOne returns the record for (retailer, product), or nil if there is none
func (s *priceStore) FindOne(ctx context.Context, retailer, product string) (*models.PriceRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM price_records WHERE retailer = ? AND product = ?`

	var record models.PriceRecord
	err := s.q.QueryRowContext(ctx, s.rebind(query), retailer, product).Scan(
		&record.ID, &record.Retailer, &record.Product, &record.RawProduct,
		&record.Price, &record.CreatedAt, &record.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "failed to get price record %s/%s", retailer, product)
	}
	return &record, nil
}

// Insert stores a new record and sets its ID
func (s *priceStore) Insert(ctx context.Context, record *models.PriceRecord) error {
	query := `
		INSERT INTO price_records (retailer, product, raw_product, price, created_at, last_updated)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`

	err := s.q.QueryRowContext(ctx, s.rebind(query),
		record.Retailer, record.Product, record.RawProduct, record.Price,
		record.CreatedAt.UTC(), record.LastUpdated.UTC(),
	).Scan(&record.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return eris.Wrapf(ErrDuplicate, "%s/%s", record.Retailer, record.Product)
		}
		return eris.Wrap(err, "failed to insert price record")
	}
	return nil
}

// UpdatePrice sets a new price on an existing record in place
func (s *priceStore) UpdatePrice(ctx context.Context, id, price int64, rawProduct string, at time.Time) error {
	query := `UPDATE price_records SET price = ?, raw_product = ?, last_updated = ? WHERE id = ?`

	res, err := s.q.ExecContext(ctx, s.rebind(query), price, rawProduct, at.UTC(), id)
	if err != nil {
		return eris.Wrap(err, "failed to update price")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "failed to update price")
	}
	if n == 0 {
		return eris.Errorf("price record %d not found", id)
	}
	return nil
}

// FindAll returns every record of a catalog product, oldest first
func (s *priceStore) FindAll(ctx context.Context, product string) ([]models.PriceRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM price_records WHERE product = ? ORDER BY id`

	rows, err := s.q.QueryContext(ctx, s.rebind(query), product)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to get price records for %s", product)
	}
	defer rows.Close()

	var records []models.PriceRecord
	for rows.Next() {
		var record models.PriceRecord
		if err := rows.Scan(
			&record.ID, &record.Retailer, &record.Product, &record.RawProduct,
			&record.Price, &record.CreatedAt, &record.LastUpdated,
		); err != nil {
			return nil, eris.Wrap(err, "failed to scan price record")
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "failed to read price records")
	}
	return records, nil
}

// AddHistory adds a price point to the history of a record
func (s *priceStore) AddHistory(ctx context.Context, recordID, price int64, at time.Time) error {
	query := `INSERT INTO price_history (record_id, price, recorded_at) VALUES (?, ?, ?)`

	if _, err := s.q.ExecContext(ctx, s.rebind(query), recordID, price, at.UTC()); err != nil {
		return eris.Wrap(err, "failed to add price history")
	}
	return nil
}

// History returns the newest price points of a record first
func (s *priceStore) History(ctx context.Context, recordID int64, limit int) ([]models.PriceHistory, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, record_id, price, recorded_at
		FROM price_history
		WHERE record_id = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?
	`

	rows, err := s.q.QueryContext(ctx, s.rebind(query), recordID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "failed to get price history")
	}
	defer rows.Close()

	var history []models.PriceHistory
	for rows.Next() {
		var entry models.PriceHistory
		if err := rows.Scan(&entry.ID, &entry.RecordID, &entry.Price, &entry.RecordedAt); err != nil {
			return nil, eris.Wrap(err, "failed to scan price history")
		}
		history = append(history, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "failed to read price history")
	}
	return history, nil
}

// rebind turns ? placeholders into $n for Postgres
func (s *priceStore) rebind(query string) string {
	if !database.DollarParams(s.driver) {
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

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
