package models

import "time"

// HourlyPrice is one aggregated column for one local hour at a node
type HourlyPrice struct {
	ID        int       `json:"id"`
	Node      string    `json:"node"`
	Market    string    `json:"market"`     // e.g. "RTM5"
	HourStart time.Time `json:"hour_start"` // bucket start, local zone
	Column    string    `json:"column"`     // raw column the mean was taken over, e.g. "MW"
	Value     float64   `json:"value"`
	Valid     bool      `json:"valid"`   // false when no sample in the hour had a value
	Samples   int       `json:"samples"` // raw rows that contributed
}
