package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"pricewatch/models"
)

// Selectors of the "stores" comparison table on the shopping results page.
const (
	storesTabSelector   = `button[data-name="stores"]`
	offersTableSelector = `table.AHFItb`
	offerRowSelector    = `tr.LvCS6d`
	offerCellSelector   = `td.gWeIWe`
	offerPriceSelector  = `span.Pgbknd`
)

// ParseOffers extracts one RawObservation per offer row of the rendered
// results page. Rows without the expected cells are skipped.
func ParseOffers(html string) ([]models.RawObservation, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrap(err, "failed to parse results page")
	}

	var offers []models.RawObservation
	doc.Find(offerRowSelector).Each(func(_ int, row *goquery.Selection) {
		cells := row.Find(offerCellSelector)
		if cells.Length() < 4 {
			return
		}
		price := cells.Eq(3).Find(offerPriceSelector).First()
		if price.Length() == 0 {
			return
		}
		offers = append(offers, models.RawObservation{
			Company: strings.TrimSpace(cells.Eq(0).Text()),
			Product: strings.TrimSpace(cells.Eq(1).Text()),
			Price:   strings.TrimSpace(price.Text()),
		})
	})

	return offers, nil
}
