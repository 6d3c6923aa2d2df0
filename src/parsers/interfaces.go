package parsers

import (
	"io"

	"github.com/username/bankfolio/backend/src/models"
)

// Parser turns one statement export file into raw operation rows. Parsers do
// not normalize amounts or dates; that happens in the import service so a bad
// row can be rejected or triaged individually.
type Parser interface {
	Parse(file io.Reader) ([]models.RawOperationRow, error)
}
