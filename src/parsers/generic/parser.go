// Package generic parses comma-separated statement exports whose header row
// names the columns. Column order does not matter; header names are matched
// case-insensitively.
package generic

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/username/bankfolio/backend/src/models"
	"github.com/username/bankfolio/backend/src/security/validation"
)

// Recognized header names per field. Exports from different banks label the
// same column differently.
var columnAliases = map[string][]string{
	"date":         {"date", "operation_date", "transaction date"},
	"op_type":      {"type", "op_type", "operation type"},
	"type_display": {"label", "type_display", "category"},
	"details":      {"details", "description", "memo"},
	"amount":       {"amount", "value", "debit/credit"},
}

type GenericParser struct{}

func NewParser() *GenericParser {
	return &GenericParser{}
}

func (p *GenericParser) Parse(file io.Reader) ([]models.RawOperationRow, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	indexes, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read all CSV records: %w", err)
	}

	var rows []models.RawOperationRow
	for _, record := range records {
		if len(record) < len(header) {
			continue
		}
		rows = append(rows, models.RawOperationRow{
			DateText:    field(record, indexes["date"]),
			OpType:      field(record, indexes["op_type"]),
			TypeDisplay: field(record, indexes["type_display"]),
			Details:     field(record, indexes["details"]),
			AmountText:  field(record, indexes["amount"]),
		})
	}
	return rows, nil
}

func mapColumns(header []string) (map[string]int, error) {
	indexes := make(map[string]int, len(columnAliases))
	for field, aliases := range columnAliases {
		indexes[field] = -1
		for i, h := range header {
			name := strings.ToLower(strings.TrimSpace(h))
			for _, alias := range aliases {
				if name == alias {
					indexes[field] = i
				}
			}
		}
		if indexes[field] == -1 {
			return nil, fmt.Errorf("CSV header is missing a %q column (recognized names: %s)", field, strings.Join(aliases, ", "))
		}
	}
	return indexes, nil
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return validation.StripUnprintable(strings.TrimSpace(record[idx]))
}
