package models

// RawOperationRow is one statement row as read from an export file, before
// any normalization. Amount and date are kept as the source text; the import
// service normalizes them and decides new-vs-duplicate.
type RawOperationRow struct {
	OpType      string `json:"op_type"`
	TypeDisplay string `json:"type_display"`
	Details     string `json:"details"`
	AmountText  string `json:"amount_text"`
	DateText    string `json:"date_text"`
}
