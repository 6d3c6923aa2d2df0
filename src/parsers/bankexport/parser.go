// Package bankexport parses semicolon-delimited fixed-column exports, the
// layout most European bank portals produce: date; type; label; details;
// amount. There is no header detection beyond skipping the first row.
package bankexport

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/username/bankfolio/backend/src/models"
	"github.com/username/bankfolio/backend/src/security/validation"
)

const expectedColumns = 5

type BankExportParser struct{}

func NewParser() *BankExportParser {
	return &BankExportParser{}
}

func (p *BankExportParser) Parse(file io.Reader) ([]models.RawOperationRow, error) {
	reader := csv.NewReader(file)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("failed to read export header: %w", err)
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read all export records: %w", err)
	}

	var rows []models.RawOperationRow
	for _, record := range records {
		if len(record) < expectedColumns {
			continue
		}
		rows = append(rows, models.RawOperationRow{
			DateText:    clean(record[0]),
			OpType:      clean(record[1]),
			TypeDisplay: clean(record[2]),
			Details:     clean(record[3]),
			AmountText:  clean(record[4]),
		})
	}
	return rows, nil
}

func clean(s string) string {
	return validation.StripUnprintable(strings.TrimSpace(s))
}
