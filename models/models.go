package models

import (
	"fmt"
	"time"
)

// RawObservation is one offer row as scraped from the shopping results page.
// Nothing about it is validated yet.
type RawObservation struct {
	Company string `json:"company"`
	Product string `json:"product"`
	Price   string `json:"price"`
}

// Observation is a RawObservation that passed parsing and identity matching.
type Observation struct {
	Retailer   string    `json:"retailer"`
	Product    string    `json:"product"`
	RawProduct string    `json:"raw_product"`
	Price      int64     `json:"price"`
	ObservedAt time.Time `json:"observed_at"`
}

// Key returns the (retailer, product) identity of the observation
func (o Observation) Key() RecordKey {
	return RecordKey{Retailer: o.Retailer, Product: o.Product}
}

// RecordKey uniquely identifies a PriceRecord
type RecordKey struct {
	Retailer string
	Product  string
}

func (k RecordKey) String() string {
	return fmt.Sprintf("%s/%s", k.Retailer, k.Product)
}

// PriceRecord is the last known price of a catalog product at a tracked retailer
type PriceRecord struct {
	ID          int64     `json:"id" db:"id"`
	Retailer    string    `json:"retailer" db:"retailer"`
	Product     string    `json:"product" db:"product"`
	RawProduct  string    `json:"raw_product" db:"raw_product"`
	Price       int64     `json:"price" db:"price"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	LastUpdated time.Time `json:"last_updated" db:"last_updated"`
}

// Key returns the (retailer, product) identity of the record
func (r PriceRecord) Key() RecordKey {
	return RecordKey{Retailer: r.Retailer, Product: r.Product}
}

// PriceHistory represents a price point in time
type PriceHistory struct {
	ID         int64     `json:"id" db:"id"`
	RecordID   int64     `json:"record_id" db:"record_id"`
	Price      int64     `json:"price" db:"price"`
	RecordedAt time.Time `json:"recorded_at" db:"recorded_at"`
}

// ChangeKind tags a ChangeEvent
type ChangeKind int

const (
	ChangeUnchanged ChangeKind = iota
	ChangeCreated
	ChangePriceChanged
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeUnchanged:
		return "unchanged"
	case ChangeCreated:
		return "created"
	case ChangePriceChanged:
		return "price_changed"
	default:
		return "unknown"
	}
}

// ChangeEvent is the outcome of reconciling one Observation.
// OldPrice is only meaningful for ChangePriceChanged.
type ChangeEvent struct {
	Kind     ChangeKind  `json:"kind"`
	Record   PriceRecord `json:"record"`
	OldPrice int64       `json:"old_price,omitempty"`
	NewPrice int64       `json:"new_price"`
}

// IsChange reports whether the event should be announced
func (e ChangeEvent) IsChange() bool {
	return e.Kind == ChangeCreated || e.Kind == ChangePriceChanged
}

// Delta returns the signed price difference of a PriceChanged event
func (e ChangeEvent) Delta() int64 {
	if e.Kind != ChangePriceChanged {
		return 0
	}
	return e.NewPrice - e.OldPrice
}
