package fingerprint

import (
	"regexp"
	"testing"
)

var hexDigest = regexp.MustCompile(`^[0-9a-f]{128}$`)

func TestCompute_Deterministic(t *testing.T) {
	first := Compute("debit", "acct1", "Groceries", "SUPERMARKET", "2024-03-12", 4530)
	second := Compute("debit", "acct1", "Groceries", "SUPERMARKET", "2024-03-12", 4530)
	if first != second {
		t.Errorf("identical inputs produced different digests:\n%s\n%s", first, second)
	}
	if !hexDigest.MatchString(first) {
		t.Errorf("digest %q is not 128 lowercase hex characters", first)
	}
}

func TestCompute_FieldSensitivity(t *testing.T) {
	base := Compute("debit", "acct1", "Groceries", "SUPERMARKET", "2024-03-12", 4530)

	variants := map[string]string{
		"op type":      Compute("credit", "acct1", "Groceries", "SUPERMARKET", "2024-03-12", 4530),
		"account slug": Compute("debit", "acct2", "Groceries", "SUPERMARKET", "2024-03-12", 4530),
		"type display": Compute("debit", "acct1", "Restaurant", "SUPERMARKET", "2024-03-12", 4530),
		"details":      Compute("debit", "acct1", "Groceries", "SUPERMARKEt", "2024-03-12", 4530),
		"date":         Compute("debit", "acct1", "Groceries", "SUPERMARKET", "2024-03-13", 4530),
		"amount":       Compute("debit", "acct1", "Groceries", "SUPERMARKET", "2024-03-12", 4531),
		"amount sign":  Compute("debit", "acct1", "Groceries", "SUPERMARKET", "2024-03-12", -4530),
	}

	for field, digest := range variants {
		if digest == base {
			t.Errorf("changing %s did not change the digest", field)
		}
	}
}

// Two logically distinct rows must not collide when a details string happens
// to contain the field separator. The length prefixes keep the pre-hash
// encodings distinct.
func TestCompute_SeparatorInDetails(t *testing.T) {
	a := Compute("debit", "acct1", "Shops", "A_B", "2024-03-12", 100)
	b := Compute("debit", "acct1", "Shops_A", "B", "2024-03-12", 100)
	if a == b {
		t.Error("rows differing only in separator placement collided")
	}
}

func TestCompute_EmptyFields(t *testing.T) {
	a := Compute("", "", "", "", "", 0)
	b := Compute("", "", "", "", "", 0)
	if a != b {
		t.Error("empty-field digest is not deterministic")
	}
	if !hexDigest.MatchString(a) {
		t.Errorf("digest %q is not 128 lowercase hex characters", a)
	}
}
