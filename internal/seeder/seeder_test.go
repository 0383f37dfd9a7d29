package seeder

import (
	"bytes"
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/itemstats/internal/config"
	"github.com/vyrodovalexey/itemstats/internal/model"
	"github.com/vyrodovalexey/itemstats/internal/server"
	"github.com/vyrodovalexey/itemstats/internal/store"
)

func startService(t *testing.T) (*httptest.Server, string) {
	t.Helper()

	dataFile := filepath.Join(t.TempDir(), "db.csv")
	cfg := &config.Config{
		ServerPort:        8000,
		LogLevel:          "info",
		ShutdownTimeout:   time.Second,
		DataFile:          dataFile,
		StatsPushInterval: time.Second,
	}
	srv := server.New(cfg, zap.NewNop(), store.NewCSVStore(dataFile, zap.NewNop()))

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, dataFile
}

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:    baseURL,
		Count:      DefaultCount,
		Concurrent: DefaultConcurrent,
		Timeout:    5 * time.Second,
		Seed:       42,
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := testConfig("http://localhost:8000")

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"empty url", func(c *Config) { c.BaseURL = "" }, true},
		{"zero count", func(c *Config) { c.Count = 0 }, true},
		{"zero concurrent", func(c *Config) { c.Concurrent = 0 }, true},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, true},
		{"reset without data file", func(c *Config) { c.Reset = true }, true},
		{"reset with data file", func(c *Config) { c.Reset = true; c.DataFile = "db.csv" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)

			err := cfg.Validate()

			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRunner_Run(t *testing.T) {
	// Arrange
	ts, dataFile := startService(t)
	cfg := testConfig(ts.URL)
	cfg.Reset = true
	cfg.DataFile = dataFile
	var out bytes.Buffer

	runner, err := NewRunner(cfg, &out, zap.NewNop())
	require.NoError(t, err)

	// Act
	report, err := runner.Run(context.Background())

	// Assert
	require.NoError(t, err)
	require.Len(t, report.Created, DefaultCount)
	assert.Equal(t, DefaultCount, report.Total)

	for i, item := range report.Created {
		assert.Equal(t, int64(i+1), item.ID)
		assert.GreaterOrEqual(t, item.Preco, MinPrice)
		assert.LessOrEqual(t, item.Preco, MaxPrice)
		assert.InDelta(t, item.Preco, math.Round(item.Preco*100)/100, 1e-9)
	}
	assert.Equal(t, "Produto 01", report.Created[0].Nome)
	assert.Equal(t, "Produto 35", report.Created[34].Nome)

	require.NotNil(t, report.Maior)
	require.NotNil(t, report.Menor)
	assert.GreaterOrEqual(t, report.Maior.Preco, report.Menor.Preco)
	assert.Equal(t, DefaultCount, len(report.AboveAverage)+len(report.BelowAverage))
	for _, item := range report.AboveAverage {
		assert.GreaterOrEqual(t, item.Preco, report.Media)
	}
	for _, item := range report.BelowAverage {
		assert.Less(t, item.Preco, report.Media)
	}

	require.Len(t, report.ConcurrentIDs, DefaultConcurrent)
	seen := make(map[int64]bool)
	for _, id := range report.ConcurrentIDs {
		assert.False(t, seen[id], "duplicate id %d", id)
		assert.Greater(t, id, int64(DefaultCount))
		seen[id] = true
	}

	assert.Contains(t, out.String(), "Total items stored: 35")
	assert.Contains(t, out.String(), "Average price:")
}

func TestRunner_SamePricesForSameSeed(t *testing.T) {
	// Arrange
	ts1, _ := startService(t)
	ts2, _ := startService(t)
	cfg := testConfig("")
	cfg.Count = 5
	cfg.Concurrent = 1

	prices := func(baseURL string) []float64 {
		c := cfg
		c.BaseURL = baseURL
		runner, err := NewRunner(c, &bytes.Buffer{}, zap.NewNop())
		require.NoError(t, err)
		report, err := runner.Run(context.Background())
		require.NoError(t, err)
		var ps []float64
		for _, item := range report.Created {
			ps = append(ps, item.Preco)
		}
		return ps
	}

	// Act & Assert
	assert.Equal(t, prices(ts1.URL), prices(ts2.URL))
}

func TestRunner_ResetRemovesDataFile(t *testing.T) {
	// Arrange
	dataFile := filepath.Join(t.TempDir(), "db.csv")
	require.NoError(t, os.WriteFile(dataFile, []byte("id,nome,preco\n"), 0o644))

	runner, err := NewRunner(Config{
		BaseURL:    "http://localhost:8000",
		Count:      1,
		Concurrent: 1,
		Timeout:    time.Second,
		Reset:      true,
		DataFile:   dataFile,
	}, &bytes.Buffer{}, zap.NewNop())
	require.NoError(t, err)

	// Act
	err = runner.reset()

	// Assert
	require.NoError(t, err)
	_, statErr := os.Stat(dataFile)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))

	// A second reset on a missing file is not an error.
	assert.NoError(t, runner.reset())
}

func TestRunner_DetectsDuplicateIDs(t *testing.T) {
	// Arrange: a broken service that hands out the same id every time.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":7,"nome":"Item Concorrente","preco":999.99}`))
	}))
	defer ts.Close()

	cfg := testConfig(ts.URL)
	cfg.Concurrent = 3
	runner, err := NewRunner(cfg, &bytes.Buffer{}, zap.NewNop())
	require.NoError(t, err)

	// Act
	report := &Report{}
	err = runner.checkConcurrency(context.Background(), report)

	// Assert
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.Len(t, report.ConcurrentIDs, 3)
}

func TestRunner_CreateRejectedByService(t *testing.T) {
	// Arrange
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	runner, err := NewRunner(testConfig(ts.URL), &bytes.Buffer{}, zap.NewNop())
	require.NoError(t, err)

	// Act
	report, err := runner.Run(context.Background())

	// Assert
	require.Error(t, err)
	assert.Empty(t, report.Created)
}

func TestRunner_EmptyStatsAreNil(t *testing.T) {
	// Arrange
	ts, _ := startService(t)
	runner, err := NewRunner(testConfig(ts.URL), &bytes.Buffer{}, zap.NewNop())
	require.NoError(t, err)

	// Act
	maior, err := runner.fetchItem(context.Background(), "/stats/maior")

	// Assert
	require.NoError(t, err)
	assert.Nil(t, maior)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "none", describe(nil))
	assert.Equal(t, "#3 Caneta - R$2.50", describe(&model.Item{ID: 3, Nome: "Caneta", Preco: 2.5}))
	assert.Equal(t, "", example(nil))
	assert.Equal(t, " (e.g. Caneta - R$2.50)", example([]model.Item{{ID: 3, Nome: "Caneta", Preco: 2.5}}))
}
