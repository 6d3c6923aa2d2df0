package parsers

import (
	"fmt"

	"github.com/username/bankfolio/backend/src/parsers/bankexport"
	"github.com/username/bankfolio/backend/src/parsers/generic"
)

func GetParser(source string) (Parser, error) {
	switch source {
	case "generic":
		return generic.NewParser(), nil
	case "bankexport":
		return bankexport.NewParser(), nil
	default:
		return nil, fmt.Errorf("no parser available for source: %s", source)
	}
}
