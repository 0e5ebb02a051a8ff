package repository

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Session is a store handle bound to one database connection for the
// duration of a batch. Writes that must land together go through InTx.
type Session interface {
	PriceStore
	InTx(ctx context.Context, fn func(PriceStore) error) error
}

// SessionProvider hands out scoped sessions. The session is only valid
// inside fn and is released on every return path.
type SessionProvider interface {
	WithSession(ctx context.Context, fn func(Session) error) error
}

// WithSession acquires a dedicated connection, runs fn and returns the
// connection to the pool whatever fn returns.
func (r *PriceRepository) WithSession(ctx context.Context, fn func(Session) error) error {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return eris.Wrap(err, "failed to acquire store session")
	}
	defer func() {
		if err := conn.Close(); err != nil {
			zap.L().Warn("failed to release store session", zap.Error(err))
		}
	}()

	return fn(&session{
		priceStore: priceStore{q: conn, driver: r.driver},
		conn:       conn,
	})
}

type session struct {
	priceStore
	conn *sql.Conn
}

func (s *session) InTx(ctx context.Context, fn func(PriceStore) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "failed to begin transaction")
	}

	if err := fn(&priceStore{q: tx, driver: s.driver}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			zap.L().Warn("failed to roll back transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "failed to commit transaction")
	}
	return nil
}
