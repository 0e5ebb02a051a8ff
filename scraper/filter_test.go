package scraper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewatch/matcher"
	"pricewatch/models"
)

func newTestFilter(t *testing.T, products, retailers []string) *ObservationFilter {
	t.Helper()
	catalog, err := matcher.NewCatalog(products, retailers)
	require.NoError(t, err)
	f := NewObservationFilter(catalog, NewPriceParser("₹", ","))
	f.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return f
}

func TestFilter_Scenario(t *testing.T) {
	f := newTestFilter(t, []string{"iPhone 14 128"}, []string{"Amazon"})

	got := f.Filter("iPhone 14 128", []models.RawObservation{
		{Company: "Amazon.in", Product: "Apple iPhone 14 (128GB) Black", Price: "₹65,999"},
	})

	require.Len(t, got, 1)
	assert.Equal(t, models.Observation{
		Retailer:   "Amazon",
		Product:    "iPhone 14 128",
		RawProduct: "Apple iPhone 14 (128GB) Black",
		Price:      65999,
		ObservedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}, got[0])
}

func TestFilter_FirstPerRetailerWins(t *testing.T) {
	f := newTestFilter(t, []string{"iPhone 14 128"}, []string{"Amazon", "Flipkart"})

	got := f.Filter("iPhone 14 128", []models.RawObservation{
		{Company: "Amazon.in", Product: "iPhone 14 128GB Blue", Price: "₹65,999"},
		{Company: "Amazon.in - Seller", Product: "iPhone 14 128GB Red", Price: "₹61,000"},
		{Company: "Flipkart", Product: "iPhone 14 128GB", Price: "₹66,999"},
	})

	require.Len(t, got, 2)
	assert.Equal(t, "Amazon", got[0].Retailer)
	assert.Equal(t, int64(65999), got[0].Price)
	assert.Equal(t, "Flipkart", got[1].Retailer)
}

func TestFilter_RejectedRowDoesNotClaimRetailer(t *testing.T) {
	f := newTestFilter(t, []string{"iPhone 14 128"}, []string{"Amazon"})

	got := f.Filter("iPhone 14 128", []models.RawObservation{
		{Company: "Amazon.in", Product: "iPhone 14 128GB", Price: "N/A"},
		{Company: "Amazon.in", Product: "iPhone 14 128GB", Price: "₹64,999"},
	})

	require.Len(t, got, 1)
	assert.Equal(t, int64(64999), got[0].Price)
}

func TestFilter_Discards(t *testing.T) {
	f := newTestFilter(t,
		[]string{"iPhone 13 128", "iPhone 14 128"},
		[]string{"Amazon", "Croma"},
	)

	got := f.Filter("iPhone 14 128", []models.RawObservation{
		// parse failure
		{Company: "Amazon.in", Product: "iPhone 14 128GB", Price: "N/A"},
		// resolves to a different catalog product
		{Company: "Croma", Product: "Apple iPhone 13 128GB", Price: "₹52,999"},
		// untracked retailer
		{Company: "Tata CLiQ", Product: "iPhone 14 128GB", Price: "₹63,000"},
		// nothing in the catalog
		{Company: "Croma", Product: "Galaxy S23", Price: "₹63,000"},
	})

	assert.Empty(t, got)
}

func TestFilter_ProductResolvedToEarlierEntryIsDiscarded(t *testing.T) {
	f := newTestFilter(t,
		[]string{"iPhone 13 128", "iPhone 13 256"},
		[]string{"Amazon"},
	)

	// this listing satisfies both entries, so it belongs to the first one
	got := f.Filter("iPhone 13 256", []models.RawObservation{
		{Company: "Amazon", Product: "iPhone 13 128GB 256GB", Price: "₹52,999"},
	})
	assert.Empty(t, got)
}

func TestFilter_Empty(t *testing.T) {
	f := newTestFilter(t, []string{"iPhone 14 128"}, []string{"Amazon"})
	assert.Empty(t, f.Filter("iPhone 14 128", nil))
}
