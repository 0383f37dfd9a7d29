package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/itemstats/internal/model"
)

// Prometheus metrics.
var (
	storeOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "item_store_operations_total",
			Help: "Total number of item store operations",
		},
		[]string{"operation", "result"},
	)

	storeOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "item_store_operation_duration_seconds",
			Help:    "Item store operation duration in seconds, including file I/O",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	storeTableRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "item_store_table_rows",
			Help: "Number of rows in the item table as of the last load or save",
		},
	)
)

// CSVStore implements Store on top of a single CSV file. Every call reads
// the whole file; Create and Delete rewrite it.
type CSVStore struct {
	path   string
	logger *zap.Logger

	// writeMu serializes the load-transform-save sequence of Create and
	// Delete, and the creation of a missing file.
	writeMu sync.Mutex
	// lastIssued is the highest id handed out for the current table file.
	// Guarded by writeMu.
	lastIssued int64
}

// NewCSVStore creates a CSVStore backed by the file at path. The file is
// created on first access if it does not exist.
func NewCSVStore(path string, logger *zap.Logger) *CSVStore {
	return &CSVStore{
		path:   path,
		logger: logger,
	}
}

// Path returns the backing file path.
func (s *CSVStore) Path() string {
	return s.path
}

// Load reads the full table. A missing file is initialized with the header
// only and an empty table is returned.
func (s *CSVStore) Load(ctx context.Context) (Table, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load table: %w", ctx.Err())
	default:
	}

	table, err := s.readTable()
	if !errors.Is(err, fs.ErrNotExist) {
		return table, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.loadLocked()
}

// Save replaces the backing file with the serialized table.
func (s *CSVStore) Save(ctx context.Context, table Table) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("save table: %w", ctx.Err())
	default:
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.saveLocked(table)
}

// List returns all items in stored order.
func (s *CSVStore) List(ctx context.Context) (items []model.Item, err error) {
	defer observe("list", time.Now(), &err)

	table, err := s.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	return table.Items(), nil
}

// Get retrieves an item by its ID.
func (s *CSVStore) Get(ctx context.Context, id int64) (item *model.Item, err error) {
	defer observe("get", time.Now(), &err)

	if id <= 0 {
		return nil, ErrInvalidID
	}

	table, err := s.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}

	i := table.Index(id)
	if i < 0 {
		return nil, ErrNotFound
	}

	found := table[i]
	return &found, nil
}

// Create appends a new row and returns it. The new id is one past the
// largest id in the file or issued for this table, whichever is higher.
func (s *CSVStore) Create(ctx context.Context, item *model.Item) (created *model.Item, err error) {
	defer observe("create", time.Now(), &err)

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("create item: %w", ctx.Err())
	default:
	}

	if item == nil {
		return nil, fmt.Errorf("create item: %w", ErrNilItem)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	table, err := s.loadLocked()
	if err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}

	newItem := model.Item{
		ID:    max(table.MaxID(), s.lastIssued) + 1,
		Nome:  item.Nome,
		Preco: item.Preco,
	}

	if err := s.saveLocked(append(table, newItem)); err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}
	s.lastIssued = newItem.ID

	return &newItem, nil
}

// Delete removes the row with the given id. The file is left untouched
// when no row matches.
func (s *CSVStore) Delete(ctx context.Context, id int64) (err error) {
	defer observe("delete", time.Now(), &err)

	select {
	case <-ctx.Done():
		return fmt.Errorf("delete item: %w", ctx.Err())
	default:
	}

	if id <= 0 {
		return ErrInvalidID
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	table, err := s.loadLocked()
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}

	i := table.Index(id)
	if i < 0 {
		return ErrNotFound
	}

	if err := s.saveLocked(table.Without(i)); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	s.lastIssued = max(s.lastIssued, table.MaxID())

	return nil
}

// readTable reads and parses the backing file without initializing it.
func (s *CSVStore) readTable() (Table, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrStorage, s.path, err)
	}
	defer f.Close()

	table, err := ReadTable(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}
	storeTableRows.Set(float64(len(table)))

	return table, nil
}

// loadLocked is Load for callers already holding writeMu.
func (s *CSVStore) loadLocked() (Table, error) {
	table, err := s.readTable()
	if !errors.Is(err, fs.ErrNotExist) {
		return table, err
	}

	s.logger.Info("initializing item table", zap.String("path", s.path))
	if err := s.saveLocked(Table{}); err != nil {
		return nil, err
	}
	// A missing file starts a new table; its ids begin again at 1.
	s.lastIssued = 0

	return Table{}, nil
}

// saveLocked writes the table to a temporary file in the same directory and
// renames it over the backing file. Readers see either the old or the new
// content. Callers must hold writeMu.
func (s *CSVStore) saveLocked(table Table) error {
	var buf bytes.Buffer
	if err := WriteTable(&buf, table); err != nil {
		return fmt.Errorf("%w: encoding table: %v", ErrStorage, err)
	}

	if err := writeFileAtomic(s.path, buf.Bytes()); err != nil {
		return fmt.Errorf("%w: writing %s: %v", ErrStorage, s.path, err)
	}
	storeTableRows.Set(float64(len(table)))

	s.logger.Debug("item table saved",
		zap.String("path", s.path),
		zap.Int("rows", len(table)),
	)

	return nil
}

func writeFileAtomic(path string, data []byte) (err error) {
	dir, name := filepath.Split(path)
	if dir == "" {
		dir = "."
	}

	tmp, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	// CreateTemp uses 0600; keep the table readable like a plain os.Create.
	if err = os.Chmod(tmpPath, 0o644); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}

// observe records the outcome and duration of a store operation.
func observe(operation string, start time.Time, err *error) {
	result := "success"
	switch {
	case *err == nil:
	case errors.Is(*err, ErrNotFound):
		result = "not_found"
	default:
		result = "error"
	}

	storeOperationsTotal.WithLabelValues(operation, result).Inc()
	storeOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
