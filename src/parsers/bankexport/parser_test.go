package bankexport

import (
	"strings"
	"testing"
)

func TestParse_FixedColumns(t *testing.T) {
	input := strings.Join([]string{
		"Date;Type;Label;Details;Amount",
		"12/03/2024;debit;Groceries;SUPERMARKET PARIS;-45,30 €",
		"14/03/2024;credit;Transfer;FROM SAVINGS;200,00 €",
	}, "\n")

	rows, err := NewParser().Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].AmountText != "-45,30 €" {
		t.Errorf("amount text = %q, want raw source text preserved", rows[0].AmountText)
	}
	if rows[1].Details != "FROM SAVINGS" {
		t.Errorf("details = %q", rows[1].Details)
	}
}

func TestParse_ShortRowsSkipped(t *testing.T) {
	input := strings.Join([]string{
		"Date;Type;Label;Details;Amount",
		"12/03/2024;debit;Groceries;SUPERMARKET;-4530",
		"trailing junk",
	}, "\n")

	rows, err := NewParser().Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1 (short row skipped)", len(rows))
	}
}
