// Package stats computes aggregate price statistics over the item table.
//
// The package-level functions are pure and operate on a slice in stored
// order. Engine loads a fresh snapshot from a Loader for every call; nothing
// is cached between calls.
package stats

import (
	"context"
	"fmt"
	"math"

	"github.com/vyrodovalexey/itemstats/internal/model"
)

// Loader provides the current table snapshot.
type Loader interface {
	List(ctx context.Context) ([]model.Item, error)
}

// Summary groups the scalar statistics of one snapshot.
type Summary struct {
	Count   int
	Average float64
	Highest *model.Item
	Lowest  *model.Item
}

// Highest returns the item with the largest price. Ties go to the first
// item in stored order. ok is false for an empty slice.
func Highest(items []model.Item) (item model.Item, ok bool) {
	return pick(items, func(candidate, best float64) bool { return candidate > best })
}

// Lowest returns the item with the smallest price. Ties go to the first
// item in stored order. ok is false for an empty slice.
func Lowest(items []model.Item) (item model.Item, ok bool) {
	return pick(items, func(candidate, best float64) bool { return candidate < best })
}

func pick(items []model.Item, better func(candidate, best float64) bool) (model.Item, bool) {
	if len(items) == 0 {
		return model.Item{}, false
	}

	best := items[0]
	for _, item := range items[1:] {
		if better(item.Preco, best.Preco) {
			best = item
		}
	}

	return best, true
}

// Average returns the arithmetic mean price, or 0 for an empty slice.
func Average(items []model.Item) float64 {
	if len(items) == 0 {
		return 0
	}

	n := float64(len(items))

	var sum float64
	for _, item := range items {
		sum += item.Preco
	}
	if !math.IsInf(sum, 0) {
		return sum / n
	}

	// The plain sum overflowed; scaling each term first keeps finite prices finite.
	var mean float64
	for _, item := range items {
		mean += item.Preco / n
	}

	return mean
}

// AboveAverage returns the items priced at or above the mean, in stored order.
func AboveAverage(items []model.Item) []model.Item {
	avg := Average(items)
	return filter(items, func(item model.Item) bool { return item.Preco >= avg })
}

// BelowAverage returns the items priced strictly below the mean, in stored order.
func BelowAverage(items []model.Item) []model.Item {
	avg := Average(items)
	return filter(items, func(item model.Item) bool { return item.Preco < avg })
}

func filter(items []model.Item, keep func(model.Item) bool) []model.Item {
	out := make([]model.Item, 0, len(items))
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

// Summarize computes count, mean, highest and lowest of items.
func Summarize(items []model.Item) Summary {
	summary := Summary{
		Count:   len(items),
		Average: Average(items),
	}

	if highest, ok := Highest(items); ok {
		summary.Highest = &highest
	}
	if lowest, ok := Lowest(items); ok {
		summary.Lowest = &lowest
	}

	return summary
}

// Engine answers statistics queries against a freshly loaded snapshot.
type Engine struct {
	loader Loader
}

// NewEngine creates an Engine reading snapshots from loader.
func NewEngine(loader Loader) *Engine {
	return &Engine{loader: loader}
}

func (e *Engine) snapshot(ctx context.Context, op string) ([]model.Item, error) {
	items, err := e.loader.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return items, nil
}

// Highest returns the highest priced item, or nil when the table is empty.
func (e *Engine) Highest(ctx context.Context) (*model.Item, error) {
	items, err := e.snapshot(ctx, "highest priced")
	if err != nil {
		return nil, err
	}

	item, ok := Highest(items)
	if !ok {
		return nil, nil
	}
	return &item, nil
}

// Lowest returns the lowest priced item, or nil when the table is empty.
func (e *Engine) Lowest(ctx context.Context) (*model.Item, error) {
	items, err := e.snapshot(ctx, "lowest priced")
	if err != nil {
		return nil, err
	}

	item, ok := Lowest(items)
	if !ok {
		return nil, nil
	}
	return &item, nil
}

// Average returns the mean price of the table.
func (e *Engine) Average(ctx context.Context) (float64, error) {
	items, err := e.snapshot(ctx, "average price")
	if err != nil {
		return 0, err
	}
	return Average(items), nil
}

// AboveAverage returns items priced at or above the mean.
func (e *Engine) AboveAverage(ctx context.Context) ([]model.Item, error) {
	items, err := e.snapshot(ctx, "above average")
	if err != nil {
		return nil, err
	}
	return AboveAverage(items), nil
}

// BelowAverage returns items priced below the mean.
func (e *Engine) BelowAverage(ctx context.Context) ([]model.Item, error) {
	items, err := e.snapshot(ctx, "below average")
	if err != nil {
		return nil, err
	}
	return BelowAverage(items), nil
}

// Summary returns the scalar statistics of the current table.
func (e *Engine) Summary(ctx context.Context) (Summary, error) {
	items, err := e.snapshot(ctx, "summary")
	if err != nil {
		return Summary{}, err
	}
	return Summarize(items), nil
}
