package ingestion

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/wakala/mpesa-analytics/internal/domain"
)

// ParseCSV parses an M-Pesa transaction export. The first row names the
// columns; their order is free and unknown columns are ignored. comma is the
// field delimiter (',' for .csv, '|' for .psv exports).
//
// Example header:
//
//	transaction_id,sender_phone,receiver_phone,transaction_type,amount,fee,transaction_date,...
func ParseCSV(r io.Reader, comma rune) (*domain.Batch, error) {
	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return domain.NewBatch(nil, nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var rows []domain.RawTransaction
	lineNum := 1

	for {
		lineNum++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		var row domain.RawTransaction
		for i, col := range header {
			if i >= len(record) {
				break
			}
			if err := setField(&row, col, record[i]); err != nil {
				return nil, fmt.Errorf("line %d %w", lineNum, err)
			}
		}
		rows = append(rows, row)
	}

	return domain.NewBatch(header, rows), nil
}
