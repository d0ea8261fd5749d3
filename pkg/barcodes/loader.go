// Package barcodes reads the list of asset barcodes to add from a CSV file.
package barcodes

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Stats describes what Load did with the input rows.
type Stats struct {
	Rows     int // rows read
	Blank    int // rows with an empty first column
	Repeated int // rows whose barcode appeared earlier in the file
}

// Load reads barcodes from the first column of a header-less CSV file.
// Values are trimmed, blank rows are skipped, and repeated barcodes are
// kept once, in order of first appearance.
func Load(path string) ([]string, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer f.Close()

	return Read(f)
}

// Read is Load for an already open reader.
func Read(r io.Reader) ([]string, Stats, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var (
		stats    Stats
		barcodes []string
		seen     = make(map[string]struct{})
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("failed to read CSV: %w", err)
		}
		stats.Rows++

		barcode := ""
		if len(record) > 0 {
			barcode = strings.TrimSpace(record[0])
		}
		if stats.Rows == 1 {
			barcode = strings.TrimPrefix(barcode, "\ufeff")
		}
		if barcode == "" {
			stats.Blank++
			continue
		}
		if _, dup := seen[barcode]; dup {
			stats.Repeated++
			continue
		}
		seen[barcode] = struct{}{}
		barcodes = append(barcodes, barcode)
	}
	return barcodes, stats, nil
}
