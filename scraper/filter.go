package scraper

import (
	"time"

	"go.uber.org/zap"

	"pricewatch/matcher"
	"pricewatch/metrics"
	"pricewatch/models"
)

// discard reasons, also used as metric labels
const (
	discardParse     = "parse"
	discardProduct   = "product"
	discardRetailer  = "retailer"
	discardDuplicate = "duplicate"
)

// ObservationFilter turns the raw rows of one results page into validated
// observations for a single catalog product.
type ObservationFilter struct {
	catalog *matcher.Catalog
	parser  *PriceParser
	now     func() time.Time
}

func NewObservationFilter(catalog *matcher.Catalog, parser *PriceParser) *ObservationFilter {
	return &ObservationFilter{
		catalog: catalog,
		parser:  parser,
		now:     time.Now,
	}
}

// Filter keeps the rows that parse, resolve to product and come from a
// tracked retailer. Only the first accepted row per retailer survives. The
// result is in scan order and holds at most one observation per retailer.
func (f *ObservationFilter) Filter(product string, raws []models.RawObservation) []models.Observation {
	log := zap.L().With(zap.String("product", product))
	seen := make(map[string]struct{})
	var accepted []models.Observation

	for i, raw := range raws {
		price, err := f.parser.Parse(raw.Price)
		if err != nil {
			f.discard(log, discardParse, i, raw, zap.Error(err))
			continue
		}
		if resolved, ok := f.catalog.ResolveProduct(raw.Product); !ok || resolved != product {
			f.discard(log, discardProduct, i, raw, zap.String("resolved", resolved))
			continue
		}
		retailer, ok := f.catalog.ResolveRetailer(raw.Company)
		if !ok {
			f.discard(log, discardRetailer, i, raw)
			continue
		}
		if _, dup := seen[retailer]; dup {
			f.discard(log, discardDuplicate, i, raw, zap.String("retailer", retailer))
			continue
		}
		seen[retailer] = struct{}{}

		accepted = append(accepted, models.Observation{
			Retailer:   retailer,
			Product:    product,
			RawProduct: raw.Product,
			Price:      price,
			ObservedAt: f.now(),
		})
	}

	log.Debug("filtered observations", zap.Int("raw", len(raws)), zap.Int("accepted", len(accepted)))
	return accepted
}

func (f *ObservationFilter) discard(log *zap.Logger, reason string, row int, raw models.RawObservation, fields ...zap.Field) {
	metrics.ObservationsDiscarded.WithLabelValues(reason).Inc()
	log.Debug("discarding observation", append([]zap.Field{
		zap.String("reason", reason),
		zap.Int("row", row),
		zap.String("company", raw.Company),
		zap.String("raw_product", raw.Product),
		zap.String("price", raw.Price),
	}, fields...)...)
}
