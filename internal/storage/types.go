package storage

import (
	"errors"
	"time"
)

var ErrClosed = errors.New("storage closed")

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines delivery log
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// DeliveryRecord is the terminal state of one notification.
// Keep it compact and schema-stable.
type DeliveryRecord struct {
	At          time.Time `json:"at"`
	RunID       string    `json:"run_id"`
	Feed        string    `json:"feed"`
	Kind        string    `json:"kind"`
	Description string    `json:"description"`
	Attempts    int       `json:"attempts"`
	OK          bool      `json:"ok"`
	Error       string    `json:"error,omitempty"`
	TookMS      int64     `json:"took_ms"`
}
