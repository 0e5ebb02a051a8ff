package cmd

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"

	"pricewatch/chat"
	"pricewatch/config"
	"pricewatch/database"
	"pricewatch/matcher"
	"pricewatch/notifier"
	"pricewatch/reconcile"
	"pricewatch/repository"
	"pricewatch/scheduler"
	"pricewatch/scraper"
)

// openStore connects to the configured database and makes sure the schema exists
func openStore(ctx context.Context, c *config.Config) (*sql.DB, *repository.PriceRepository, error) {
	db, err := database.InitDatabase(ctx, c.Store.Driver, c.Store.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := database.CreateTables(ctx, db, c.Store.Driver); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, repository.NewPriceRepository(db, c.Store.Driver), nil
}

func buildCatalog(c *config.Config) (*matcher.Catalog, error) {
	catalog, err := matcher.NewCatalog(c.Catalog.Products, c.Catalog.Retailers)
	if err != nil {
		return nil, eris.Wrap(err, "invalid catalog")
	}
	return catalog, nil
}

// pipeline is everything a sweep needs
type pipeline struct {
	db        *sql.DB
	repo      *repository.PriceRepository
	catalog   *matcher.Catalog
	browser   *scraper.ShoppingScraper
	transport *chat.TelegramTransport
	renderer  notifier.Renderer
	sweeper   *scheduler.Sweeper
}

func newPipeline(ctx context.Context, c *config.Config) (*pipeline, error) {
	catalog, err := buildCatalog(c)
	if err != nil {
		return nil, err
	}

	db, repo, err := openStore(ctx, c)
	if err != nil {
		return nil, err
	}

	transport, err := chat.NewTelegramTransport(c.Telegram.BotToken, c.Telegram.ReconnectDelay)
	if err != nil {
		db.Close()
		return nil, err
	}

	browser, err := scraper.NewShoppingScraper(scraper.BrowserOptions{
		Bin:         c.Scraper.BrowserBin,
		Headless:    c.Scraper.Headless,
		PageTimeout: c.Scraper.PageTimeout,
		SettleDelay: c.Scraper.SettleDelay,
		SearchURL:   c.Scraper.SearchURL,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	renderer := notifier.NewRenderer(c.Currency.Symbol)
	sweeper := scheduler.NewSweeper(
		browser,
		scraper.NewObservationFilter(catalog, scraper.NewPriceParser(c.Currency.Symbol, c.Currency.GroupSeparator)),
		reconcile.NewEngine(repo),
		notifier.NewNotifier(transport, c.Telegram.ChatID, renderer, c.Telegram.MessagesPerMinute),
		catalog.Products(),
		scheduler.Options{
			Interval:       c.Scraper.Interval(),
			Pause:          c.Scraper.ProductPause,
			ProductTimeout: c.Scraper.ProductTimeout,
		},
	)

	return &pipeline{
		db:        db,
		repo:      repo,
		catalog:   catalog,
		browser:   browser,
		transport: transport,
		renderer:  renderer,
		sweeper:   sweeper,
	}, nil
}

// Close stops the sweeper before releasing the browser and the store
func (p *pipeline) Close() {
	p.sweeper.Stop()
	p.browser.Close()
	p.db.Close()
}
