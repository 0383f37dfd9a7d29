package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/vyrodovalexey/itemstats/internal/model"
)

// Column names of the persisted table, in file order.
const (
	ColumnID    = "id"
	ColumnNome  = "nome"
	ColumnPreco = "preco"
)

var tableHeader = []string{ColumnID, ColumnNome, ColumnPreco}

// Table is the ordered set of item rows held in the backing file.
type Table []model.Item

// MaxID returns the largest id in the table, or 0 when it is empty.
func (t Table) MaxID() int64 {
	var maxID int64
	for _, item := range t {
		if item.ID > maxID {
			maxID = item.ID
		}
	}
	return maxID
}

// Index returns the position of the row with the given id, or -1.
func (t Table) Index(id int64) int {
	for i, item := range t {
		if item.ID == id {
			return i
		}
	}
	return -1
}

// Without returns a copy of the table with the row at position i removed.
// The relative order of the remaining rows is kept.
func (t Table) Without(i int) Table {
	out := make(Table, 0, len(t)-1)
	out = append(out, t[:i]...)
	return append(out, t[i+1:]...)
}

// Items returns the rows as a non-nil slice.
func (t Table) Items() []model.Item {
	if t == nil {
		return []model.Item{}
	}
	return []model.Item(t)
}

// ReadTable parses a table from r. The first record must be the
// id,nome,preco header; every row must have exactly three columns, a unique
// positive integer id and a float price.
func ReadTable(r io.Reader) (Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(tableHeader)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: missing header", ErrMalformedTable)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTable, err)
	}
	for i, name := range tableHeader {
		if header[i] != name {
			return nil, fmt.Errorf("%w: column %d is %q, want %q", ErrMalformedTable, i+1, header[i], name)
		}
	}

	table := Table{}
	seen := make(map[int64]struct{})

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedTable, err)
		}

		line, _ := reader.FieldPos(0)
		item, err := parseRow(record)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedTable, line, err)
		}
		if _, dup := seen[item.ID]; dup {
			return nil, fmt.Errorf("%w: line %d: duplicate id %d", ErrMalformedTable, line, item.ID)
		}
		seen[item.ID] = struct{}{}

		table = append(table, item)
	}

	return table, nil
}

func parseRow(record []string) (model.Item, error) {
	id, err := strconv.ParseInt(record[0], 10, 64)
	if err != nil {
		return model.Item{}, fmt.Errorf("parsing %s: %w", ColumnID, err)
	}
	if id <= 0 {
		return model.Item{}, fmt.Errorf("%s must be positive, got %d", ColumnID, id)
	}

	preco, err := strconv.ParseFloat(record[2], 64)
	if err != nil {
		return model.Item{}, fmt.Errorf("parsing %s: %w", ColumnPreco, err)
	}

	return model.Item{ID: id, Nome: record[1], Preco: preco}, nil
}

// WriteTable serializes the header and every row of t to w.
func WriteTable(w io.Writer, t Table) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(tableHeader); err != nil {
		return err
	}

	record := make([]string, len(tableHeader))
	for _, item := range t {
		record[0] = strconv.FormatInt(item.ID, 10)
		record[1] = item.Nome
		record[2] = strconv.FormatFloat(item.Preco, 'f', -1, 64)
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
