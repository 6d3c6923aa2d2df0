package models

// BankAccount owns operations. The slug is the stable identifier that feeds
// the fingerprint; the currency is used only for display formatting.
type BankAccount struct {
	ID       int64  `json:"id"`
	Slug     string `json:"slug"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
}
