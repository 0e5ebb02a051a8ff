// Package reconcile decides, for each accepted observation, whether it is a
// new listing, a price change or nothing, and applies that decision to the
// price store. It is the only writer of price records.
package reconcile

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"pricewatch/metrics"
	"pricewatch/models"
	"pricewatch/repository"
)

// Engine applies the upsert policy. Reconciliation of one (retailer, product)
// key is serialized across all callers of the same Engine.
type Engine struct {
	sessions repository.SessionProvider
	locks    *keyLock
	now      func() time.Time
}

func NewEngine(sessions repository.SessionProvider) *Engine {
	return &Engine{
		sessions: sessions,
		locks:    newKeyLock(),
		now:      time.Now,
	}
}

// Reconcile applies a single observation in its own store session
func (e *Engine) Reconcile(ctx context.Context, obs models.Observation) (models.ChangeEvent, error) {
	var event models.ChangeEvent
	err := e.sessions.WithSession(ctx, func(s repository.Session) error {
		var err error
		event, err = e.reconcileIn(ctx, s, obs)
		return err
	})
	if err != nil {
		return models.ChangeEvent{}, err
	}
	metrics.ChangeEvents.WithLabelValues(event.Kind.String()).Inc()
	return event, nil
}

// ReconcileAll applies a batch of observations over one store session. An
// observation whose store step fails is logged and left out of the result;
// the rest of the batch continues. The error is non-nil only when no session
// could be acquired, in which case nothing was applied.
func (e *Engine) ReconcileAll(ctx context.Context, observations []models.Observation) ([]models.ChangeEvent, error) {
	if len(observations) == 0 {
		return nil, nil
	}

	var events []models.ChangeEvent
	err := e.sessions.WithSession(ctx, func(s repository.Session) error {
		for _, obs := range observations {
			event, err := e.reconcileIn(ctx, s, obs)
			if err != nil {
				metrics.StoreFailures.Inc()
				zap.L().Warn("reconciliation abandoned",
					zap.String("retailer", obs.Retailer),
					zap.String("product", obs.Product),
					zap.Int64("price", obs.Price),
					zap.Error(err),
				)
				continue
			}
			metrics.ChangeEvents.WithLabelValues(event.Kind.String()).Inc()
			events = append(events, event)
		}
		return nil
	})
	if err != nil {
		metrics.StoreFailures.Add(float64(len(observations)))
		return nil, eris.Wrap(err, "reconcile batch")
	}
	return events, nil
}

func (e *Engine) reconcileIn(ctx context.Context, s repository.Session, obs models.Observation) (models.ChangeEvent, error) {
	unlock := e.locks.Lock(obs.Key())
	defer unlock()

	event, err := e.apply(ctx, s, obs)
	if eris.Is(err, repository.ErrDuplicate) {
		// another writer created the record between our read and insert
		zap.L().Debug("record created concurrently, re-reading", zap.Stringer("key", obs.Key()))
		event, err = e.apply(ctx, s, obs)
	}
	return event, err
}

func (e *Engine) apply(ctx context.Context, s repository.Session, obs models.Observation) (models.ChangeEvent, error) {
	existing, err := s.FindOne(ctx, obs.Retailer, obs.Product)
	if err != nil {
		return models.ChangeEvent{}, err
	}

	now := e.now()

	if existing == nil {
		record := models.PriceRecord{
			Retailer:    obs.Retailer,
			Product:     obs.Product,
			RawProduct:  obs.RawProduct,
			Price:       obs.Price,
			CreatedAt:   now,
			LastUpdated: now,
		}
		err := s.InTx(ctx, func(tx repository.PriceStore) error {
			if err := tx.Insert(ctx, &record); err != nil {
				return err
			}
			return tx.AddHistory(ctx, record.ID, record.Price, now)
		})
		if err != nil {
			return models.ChangeEvent{}, err
		}
		zap.L().Info("new listing",
			zap.String("retailer", record.Retailer),
			zap.String("product", record.Product),
			zap.Int64("price", record.Price),
		)
		return models.ChangeEvent{Kind: models.ChangeCreated, Record: record, NewPrice: record.Price}, nil
	}

	if existing.Price == obs.Price {
		return models.ChangeEvent{Kind: models.ChangeUnchanged, Record: *existing, NewPrice: obs.Price}, nil
	}

	oldPrice := existing.Price
	err = s.InTx(ctx, func(tx repository.PriceStore) error {
		if err := tx.UpdatePrice(ctx, existing.ID, obs.Price, obs.RawProduct, now); err != nil {
			return err
		}
		return tx.AddHistory(ctx, existing.ID, obs.Price, now)
	})
	if err != nil {
		return models.ChangeEvent{}, err
	}

	updated := *existing
	updated.Price = obs.Price
	updated.RawProduct = obs.RawProduct
	updated.LastUpdated = now

	zap.L().Info("price changed",
		zap.String("retailer", updated.Retailer),
		zap.String("product", updated.Product),
		zap.Int64("old_price", oldPrice),
		zap.Int64("new_price", updated.Price),
	)
	return models.ChangeEvent{
		Kind:     models.ChangePriceChanged,
		Record:   updated,
		OldPrice: oldPrice,
		NewPrice: updated.Price,
	}, nil
}
