package pricing

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/transparentcare/billcheck/internal/money"
)

// DataFormatError means a reference dataset row could not be split into
// exactly (code, price) or carried an invalid price. Loading aborts; no
// partially loaded table is returned.
type DataFormatError struct {
	Row    int
	Reason string
}

func (e *DataFormatError) Error() string {
	return fmt.Sprintf("reference data row %d: %s", e.Row, e.Reason)
}

// ReferenceTable is a static code to price snapshot, loaded once at
// process start and read-only thereafter. It is safe to share across
// concurrent comparisons without locking.
type ReferenceTable struct {
	prices map[string]money.Money
}

// LoadFile loads a reference table from a comma- or tab-delimited file.
func LoadFile(path string) (*ReferenceTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening reference data: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// Load reads a two-column (code, price) dataset. The first row is a
// header and is always skipped; every other row is data. An empty
// dataset is valid and yields an empty table. Duplicate codes resolve
// last-entry-wins with a logged warning.
func Load(r io.Reader) (*ReferenceTable, error) {
	buf := bufio.NewReader(r)

	// Skip UTF-8 BOM if present
	if bom, err := buf.Peek(3); err == nil && len(bom) >= 3 && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		buf.Discard(3)
	}

	delim, err := detectDelimiter(buf)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(buf)
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	table := &ReferenceTable{prices: make(map[string]money.Money)}

	rowNum := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &DataFormatError{Row: rowNum + 1, Reason: err.Error()}
		}
		rowNum++

		// Header row is skipped by convention
		if rowNum == 1 {
			continue
		}

		if len(record) != 2 {
			return nil, &DataFormatError{Row: rowNum, Reason: fmt.Sprintf("expected 2 columns, got %d", len(record))}
		}

		code := strings.TrimSpace(record[0])
		if code == "" {
			return nil, &DataFormatError{Row: rowNum, Reason: "empty code"}
		}

		price, err := money.Parse(record[1])
		if err != nil {
			return nil, &DataFormatError{Row: rowNum, Reason: fmt.Sprintf("invalid price %q", record[1])}
		}

		if _, exists := table.prices[code]; exists {
			slog.Warn("Duplicate code in reference data, last entry wins", "code", code, "row", rowNum)
		}
		table.prices[code] = price
	}

	return table, nil
}

// detectDelimiter peeks at the header row: tab-delimited if it contains
// a tab, comma-delimited otherwise.
func detectDelimiter(buf *bufio.Reader) (rune, error) {
	const peekSize = 4096

	head, err := buf.Peek(peekSize)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("reading reference data: %w", err)
	}

	line := string(head)
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	if strings.ContainsRune(line, '\t') {
		return '\t', nil
	}
	return ',', nil
}

// Lookup returns the reference price for a code value.
func (t *ReferenceTable) Lookup(code string) (money.Money, bool) {
	price, ok := t.prices[code]
	return price, ok
}

// Len returns the number of codes in the table.
func (t *ReferenceTable) Len() int {
	return len(t.prices)
}
