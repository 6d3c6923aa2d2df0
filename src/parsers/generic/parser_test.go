package generic

import (
	"strings"
	"testing"
)

func TestParse_HeaderMapping(t *testing.T) {
	input := strings.Join([]string{
		"Date,Type,Label,Description,Amount",
		`12/03/2024,debit,Groceries,SUPERMARKET,"-45.30"`,
		"13/03/2024,credit,Salary,ACME CORP,2500.00",
	}, "\n")

	rows, err := NewParser().Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	first := rows[0]
	if first.DateText != "12/03/2024" || first.OpType != "debit" || first.TypeDisplay != "Groceries" ||
		first.Details != "SUPERMARKET" || first.AmountText != "-45.30" {
		t.Errorf("first row mismatch: %+v", first)
	}
}

func TestParse_ColumnOrderIrrelevant(t *testing.T) {
	input := strings.Join([]string{
		"amount,details,date,label,type",
		"100,COFFEE,01/02/2024,Food,debit",
	}, "\n")

	rows, err := NewParser().Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if rows[0].AmountText != "100" || rows[0].DateText != "01/02/2024" || rows[0].Details != "COFFEE" {
		t.Errorf("row mismatch: %+v", rows[0])
	}
}

func TestParse_MissingColumn(t *testing.T) {
	input := "Date,Type,Label,Description\n12/03/2024,debit,Groceries,SUPERMARKET"
	_, err := NewParser().Parse(strings.NewReader(input))
	if err == nil {
		t.Fatal("expected error for missing amount column")
	}
	if !strings.Contains(err.Error(), "amount") {
		t.Errorf("error %q does not name the missing column", err)
	}
}

func TestParse_EmptyFile(t *testing.T) {
	if _, err := NewParser().Parse(strings.NewReader("")); err == nil {
		t.Fatal("expected error for empty file")
	}
}
