// Package seeder drives a running item service: it fills the table with
// random products, reads back every statistic and checks that parallel
// creates receive distinct ids.
package seeder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"math/rand/v2"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/carlmjohnson/requests"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/itemstats/internal/model"
)

// Default run parameters.
const (
	DefaultBaseURL    = "http://localhost:8000"
	DefaultCount      = 35
	DefaultConcurrent = 5
	DefaultTimeout    = 10 * time.Second
)

// Price range of seeded products.
const (
	MinPrice = 10.0
	MaxPrice = 1000.0
)

// Item created by the concurrency check.
const (
	ConcurrentName  = "Item Concorrente"
	ConcurrentPrice = 999.99
)

// Errors reported by a run.
var (
	ErrInvalidConfig = errors.New("invalid seeder config")
	ErrCountMismatch = errors.New("item count mismatch")
	ErrDuplicateID   = errors.New("duplicate item id")
)

// Config controls a seeding run.
type Config struct {
	BaseURL    string
	Count      int
	Concurrent int
	Timeout    time.Duration

	// DataFile is removed before seeding when Reset is set.
	DataFile string
	Reset    bool

	// Seed fixes the price sequence; zero picks a random one.
	Seed uint64
}

// Validate checks the run parameters.
func (c Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: base url is empty", ErrInvalidConfig)
	case c.Count < 1:
		return fmt.Errorf("%w: count must be positive", ErrInvalidConfig)
	case c.Concurrent < 1:
		return fmt.Errorf("%w: concurrent must be positive", ErrInvalidConfig)
	case c.Timeout <= 0:
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	case c.Reset && c.DataFile == "":
		return fmt.Errorf("%w: reset needs a data file", ErrInvalidConfig)
	}
	return nil
}

// Report summarizes what a run observed.
type Report struct {
	Created       []model.Item
	Total         int
	Maior         *model.Item
	Menor         *model.Item
	Media         float64
	AboveAverage  []model.Item
	BelowAverage  []model.Item
	ConcurrentIDs []int64
}

// Runner executes seeding runs against one service.
type Runner struct {
	cfg    Config
	client *http.Client
	rng    *rand.Rand
	out    io.Writer
	logger *zap.Logger
}

// NewRunner creates a Runner that prints its progress to out.
func NewRunner(cfg Config, out io.Writer, logger *zap.Logger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	return &Runner{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		out:    out,
		logger: logger,
	}, nil
}

// Run performs the whole sequence and returns what it saw. The first failing
// step aborts the run.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	if r.cfg.Reset {
		if err := r.reset(); err != nil {
			return nil, err
		}
	}

	report := &Report{}

	if err := r.seed(ctx, report); err != nil {
		return report, err
	}
	if err := r.readStats(ctx, report); err != nil {
		return report, err
	}
	if err := r.checkConcurrency(ctx, report); err != nil {
		return report, err
	}

	return report, nil
}

func (r *Runner) reset() error {
	err := os.Remove(r.cfg.DataFile)
	switch {
	case err == nil:
		fmt.Fprintf(r.out, "Removed previous data file %s\n", r.cfg.DataFile)
	case errors.Is(err, fs.ErrNotExist):
	default:
		return fmt.Errorf("remove data file: %w", err)
	}
	return nil
}

func (r *Runner) seed(ctx context.Context, report *Report) error {
	fmt.Fprintf(r.out, ">>> 1. Creating %d items...\n", r.cfg.Count)

	for i := 1; i <= r.cfg.Count; i++ {
		item, err := r.createItem(ctx, fmt.Sprintf("Produto %02d", i), r.randomPrice())
		if err != nil {
			return err
		}
		report.Created = append(report.Created, *item)
	}

	var items []model.Item
	if err := r.request("/api/items").ToJSON(&items).Fetch(ctx); err != nil {
		return fmt.Errorf("list items: %w", err)
	}
	report.Total = len(items)

	if report.Total < len(report.Created) {
		return fmt.Errorf("%w: listed %d, created %d", ErrCountMismatch, report.Total, len(report.Created))
	}
	if r.cfg.Reset && report.Total != len(report.Created) {
		return fmt.Errorf("%w: listed %d after reset, created %d", ErrCountMismatch, report.Total, len(report.Created))
	}

	fmt.Fprintf(r.out, "OK. Total items stored: %d\n", report.Total)
	return nil
}

func (r *Runner) readStats(ctx context.Context, report *Report) error {
	fmt.Fprintln(r.out, "\n>>> 2. Statistics")

	var err error
	if report.Maior, err = r.fetchItem(ctx, "/stats/maior"); err != nil {
		return err
	}
	if report.Menor, err = r.fetchItem(ctx, "/stats/menor"); err != nil {
		return err
	}

	var avg model.AverageResponse
	if err := r.request("/stats/media").ToJSON(&avg).Fetch(ctx); err != nil {
		return fmt.Errorf("fetch /stats/media: %w", err)
	}
	report.Media = avg.Media

	if err := r.request("/stats/acima-media").ToJSON(&report.AboveAverage).Fetch(ctx); err != nil {
		return fmt.Errorf("fetch /stats/acima-media: %w", err)
	}
	if err := r.request("/stats/abaixo-media").ToJSON(&report.BelowAverage).Fetch(ctx); err != nil {
		return fmt.Errorf("fetch /stats/abaixo-media: %w", err)
	}

	fmt.Fprintf(r.out, "Highest price: %s\n", describe(report.Maior))
	fmt.Fprintf(r.out, "Lowest price: %s\n", describe(report.Menor))
	fmt.Fprintf(r.out, "Average price: %.2f\n", report.Media)
	fmt.Fprintf(r.out, "At or above average: %d%s\n", len(report.AboveAverage), example(report.AboveAverage))
	fmt.Fprintf(r.out, "Below average: %d%s\n", len(report.BelowAverage), example(report.BelowAverage))

	return nil
}

func (r *Runner) checkConcurrency(ctx context.Context, report *Report) error {
	fmt.Fprintf(r.out, "\n>>> 3. Concurrency check (%d parallel creates)\n", r.cfg.Concurrent)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for i := 0; i < r.cfg.Concurrent; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			item, err := r.createItem(ctx, ConcurrentName, ConcurrentPrice)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			report.ConcurrentIDs = append(report.ConcurrentIDs, item.ID)
		}()
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return err
	}

	seen := make(map[int64]bool, len(report.ConcurrentIDs))
	for _, id := range report.ConcurrentIDs {
		if seen[id] {
			return fmt.Errorf("%w: %d", ErrDuplicateID, id)
		}
		seen[id] = true
	}

	fmt.Fprintln(r.out, "Finished with distinct ids and no concurrent access errors.")
	return nil
}

func (r *Runner) createItem(ctx context.Context, nome string, preco float64) (*model.Item, error) {
	var item model.Item
	err := r.request("/api/items").
		BodyJSON(model.CreateItemRequest{Nome: nome, Preco: &preco}).
		CheckStatus(http.StatusCreated).
		ToJSON(&item).
		Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("create item %q: %w", nome, err)
	}

	r.logger.Debug("item created", zap.Int64("id", item.ID), zap.String("nome", item.Nome))
	return &item, nil
}

// fetchItem returns nil when the endpoint answers with an empty object.
func (r *Runner) fetchItem(ctx context.Context, path string) (*model.Item, error) {
	var item model.Item
	if err := r.request(path).ToJSON(&item).Fetch(ctx); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", path, err)
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *Runner) request(path string) *requests.Builder {
	return requests.URL(r.cfg.BaseURL).Path(path).Client(r.client)
}

func (r *Runner) randomPrice() float64 {
	p := MinPrice + r.rng.Float64()*(MaxPrice-MinPrice)
	return math.Round(p*100) / 100
}

func describe(item *model.Item) string {
	if item == nil {
		return "none"
	}
	return fmt.Sprintf("#%d %s - R$%.2f", item.ID, item.Nome, item.Preco)
}

func example(items []model.Item) string {
	if len(items) == 0 {
		return ""
	}
	return fmt.Sprintf(" (e.g. %s - R$%.2f)", items[0].Nome, items[0].Preco)
}
