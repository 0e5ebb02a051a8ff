package notifier

import (
	"fmt"
	"strings"

	"pricewatch/models"
)

const DefaultSymbol = "₹"

// Chat replies that are not built from records
const (
	MsgNotRecognized = "Product not recognized. Please send a valid product name."
	MsgQueryFailed   = "An error occurred while querying the database."
)

// Renderer formats events and query results as chat text
type Renderer struct {
	Symbol string
}

func NewRenderer(symbol string) Renderer {
	if symbol == "" {
		symbol = DefaultSymbol
	}
	return Renderer{Symbol: symbol}
}

// Render returns the announcement for an event, or false for Unchanged
func (r Renderer) Render(event models.ChangeEvent) (string, bool) {
	switch event.Kind {
	case models.ChangeCreated:
		return fmt.Sprintf("New product added:\nCompany: %s\nProduct: %s\nPrice: %s",
			event.Record.Retailer, event.Record.Product, r.price(event.NewPrice)), true
	case models.ChangePriceChanged:
		return fmt.Sprintf("Price Update for:\nCompany: %s\nProduct: %s\nOld Price: %s\nNew Price: %s",
			event.Record.Retailer, event.Record.Product, r.price(event.OldPrice), r.price(event.NewPrice)), true
	default:
		return "", false
	}
}

// RenderQuery formats the latest prices of product
func (r Renderer) RenderQuery(product string, records []models.PriceRecord) string {
	if len(records) == 0 {
		return fmt.Sprintf("No data found for %s.", product)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Prices for %s:\n", product)
	for _, rec := range records {
		fmt.Fprintf(&b, "Company: %s\nPrice: %s\n\n", rec.Retailer, r.price(rec.Price))
	}
	return b.String()
}

func (r Renderer) price(n int64) string {
	return fmt.Sprintf("%s%d", r.Symbol, n)
}

// Render formats event with the default currency symbol
func Render(event models.ChangeEvent) (string, bool) {
	return NewRenderer(DefaultSymbol).Render(event)
}

// RenderQuery formats records with the default currency symbol
func RenderQuery(product string, records []models.PriceRecord) string {
	return NewRenderer(DefaultSymbol).RenderQuery(product, records)
}
