package entity

import "time"

// Setting is a named configuration entry. Values are opaque strings; the
// mini-program integration keys are the first consumers.
type Setting struct {
	Key       string    `db:"key" json:"key"`
	Value     string    `db:"value" json:"value"`
	Category  string    `db:"category" json:"category,omitempty"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
