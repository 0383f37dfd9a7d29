// Package model defines data structures used throughout the application.
package model

import (
	"errors"
	"strings"
	"time"
)

// Validation errors for Item.
var (
	ErrEmptyName   = errors.New("nome cannot be empty")
	ErrNameTooLong = errors.New("nome cannot exceed 255 characters")
)

// MaxNameLength is the longest accepted item name.
const MaxNameLength = 255

// Item is a single row of the item table.
type Item struct {
	ID    int64   `json:"id"`
	Nome  string  `json:"nome"`
	Preco float64 `json:"preco"`
}

// Validate checks if the Item has valid field values.
// Prices are not range checked: zero and negative values are accepted.
func (i *Item) Validate() error {
	if strings.TrimSpace(i.Nome) == "" {
		return ErrEmptyName
	}

	if len(i.Nome) > MaxNameLength {
		return ErrNameTooLong
	}

	return nil
}

// CreateItemRequest is the body accepted by POST /api/items.
type CreateItemRequest struct {
	Nome  string   `json:"nome"`
	Preco *float64 `json:"preco"`
}

// ErrMissingPrice is returned when a create request omits preco.
var ErrMissingPrice = errors.New("preco is required")

// ToItem validates the request and converts it into an Item without an ID.
func (r *CreateItemRequest) ToItem() (*Item, error) {
	if r.Preco == nil {
		return nil, ErrMissingPrice
	}

	item := &Item{Nome: r.Nome, Preco: *r.Preco}
	if err := item.Validate(); err != nil {
		return nil, err
	}

	return item, nil
}

// MessageResponse acknowledges an operation that returns no entity.
type MessageResponse struct {
	Msg string `json:"msg"`
}

// AverageResponse is returned by the average price endpoint.
type AverageResponse struct {
	Media float64 `json:"media"`
}

// ErrorResponse represents an error response structure.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// StatsMessage is pushed to websocket subscribers of the live stats feed.
type StatsMessage struct {
	Type      string    `json:"type"`
	Count     int       `json:"count"`
	Media     float64   `json:"media"`
	Maior     *Item     `json:"maior,omitempty"`
	Menor     *Item     `json:"menor,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// WebSocket message types.
const (
	WSMessageTypeStats = "stats"
	WSMessageTypeError = "error"
)
