package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewatch/database"
	"pricewatch/models"
)

func newTestRepository(t *testing.T) *PriceRepository {
	t.Helper()
	ctx := context.Background()
	db, err := database.InitDatabase(ctx, database.DriverSQLite, filepath.Join(t.TempDir(), "prices.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.CreateTables(ctx, db, database.DriverSQLite))
	return NewPriceRepository(db, database.DriverSQLite)
}

func TestPriceRepository_InsertAndFind(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	missing, err := repo.FindOne(ctx, "Amazon", "iPhone 14 128")
	require.NoError(t, err)
	assert.Nil(t, missing)

	record := &models.PriceRecord{
		Retailer:    "Amazon",
		Product:     "iPhone 14 128",
		RawProduct:  "Apple iPhone 14 (128GB) Black",
		Price:       65999,
		CreatedAt:   now,
		LastUpdated: now,
	}
	require.NoError(t, repo.Insert(ctx, record))
	assert.NotZero(t, record.ID)

	got, err := repo.FindOne(ctx, "Amazon", "iPhone 14 128")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, record.ID, got.ID)
	assert.Equal(t, int64(65999), got.Price)
	assert.Equal(t, "Apple iPhone 14 (128GB) Black", got.RawProduct)
	assert.True(t, now.Equal(got.LastUpdated))
	assert.True(t, now.Equal(got.CreatedAt))
}

func TestPriceRepository_InsertDuplicate(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Now()

	first := &models.PriceRecord{Retailer: "Amazon", Product: "iPhone 14 128", Price: 1, CreatedAt: now, LastUpdated: now}
	require.NoError(t, repo.Insert(ctx, first))

	second := &models.PriceRecord{Retailer: "Amazon", Product: "iPhone 14 128", Price: 2, CreatedAt: now, LastUpdated: now}
	err := repo.Insert(ctx, second)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrDuplicate))
}

func TestPriceRepository_UpdatePrice(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	updated := created.Add(10 * time.Minute)

	record := &models.PriceRecord{Retailer: "Croma", Product: "iPhone 15 128", Price: 79900, CreatedAt: created, LastUpdated: created}
	require.NoError(t, repo.Insert(ctx, record))

	require.NoError(t, repo.UpdatePrice(ctx, record.ID, 77900, "iPhone 15 128GB Pink", updated))

	got, err := repo.FindOne(ctx, "Croma", "iPhone 15 128")
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)
	assert.Equal(t, int64(77900), got.Price)
	assert.Equal(t, "iPhone 15 128GB Pink", got.RawProduct)
	assert.True(t, created.Equal(got.CreatedAt))
	assert.True(t, updated.Equal(got.LastUpdated))

	assert.Error(t, repo.UpdatePrice(ctx, record.ID+100, 1, "", updated))
}

func TestPriceRepository_FindAll(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Now()

	for _, r := range []string{"Flipkart", "Amazon"} {
		require.NoError(t, repo.Insert(ctx, &models.PriceRecord{Retailer: r, Product: "iPhone 13 128", Price: 50000, CreatedAt: now, LastUpdated: now}))
	}
	require.NoError(t, repo.Insert(ctx, &models.PriceRecord{Retailer: "Amazon", Product: "iPhone 13 256", Price: 60000, CreatedAt: now, LastUpdated: now}))

	records, err := repo.FindAll(ctx, "iPhone 13 128")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Flipkart", records[0].Retailer)
	assert.Equal(t, "Amazon", records[1].Retailer)

	none, err := repo.FindAll(ctx, "iPhone 15 256")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPriceRepository_History(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	record := &models.PriceRecord{Retailer: "Amazon", Product: "iPhone 14 256", Price: 70000, CreatedAt: base, LastUpdated: base}
	require.NoError(t, repo.Insert(ctx, record))
	for i, price := range []int64{70000, 69000, 68000} {
		require.NoError(t, repo.AddHistory(ctx, record.ID, price, base.Add(time.Duration(i)*time.Hour)))
	}

	history, err := repo.History(ctx, record.ID, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(68000), history[0].Price)
	assert.Equal(t, int64(69000), history[1].Price)
}

func TestSession_InTxRollsBack(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Now()
	boom := eris.New("boom")

	err := repo.WithSession(ctx, func(s Session) error {
		return s.InTx(ctx, func(tx PriceStore) error {
			rec := &models.PriceRecord{Retailer: "Amazon", Product: "iPhone 14 128", Price: 1, CreatedAt: now, LastUpdated: now}
			if err := tx.Insert(ctx, rec); err != nil {
				return err
			}
			return boom
		})
	})
	require.Error(t, err)
	assert.True(t, eris.Is(err, boom))

	got, err := repo.FindOne(ctx, "Amazon", "iPhone 14 128")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSession_ReleasesConnection(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := repo.WithSession(ctx, func(s Session) error {
			_, err := s.FindAll(ctx, "iPhone 14 128")
			return err
		})
		require.NoError(t, err)
	}
	// a failing batch must release its connection too
	_ = repo.WithSession(ctx, func(Session) error { return sql.ErrConnDone })

	assert.Equal(t, 0, repo.db.Stats().InUse)
}

func TestRebind(t *testing.T) {
	pg := &priceStore{driver: database.DriverPostgres}
	assert.Equal(t, "a = $1 AND b = $2", pg.rebind("a = ? AND b = ?"))

	pgx := &priceStore{driver: database.DriverPgx}
	assert.Equal(t, "a = $1", pgx.rebind("a = ?"))

	lite := &priceStore{driver: database.DriverSQLite}
	assert.Equal(t, "a = ? AND b = ?", lite.rebind("a = ? AND b = ?"))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pq.Error{Code: "23505"}))
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.True(t, isUniqueViolation(eris.New("UNIQUE constraint failed: price_records.retailer")))
	assert.False(t, isUniqueViolation(sql.ErrNoRows))
}
