package core

import (
	"time"

	"kioskctl/protocol"
)

// SaleEvent is one REPORT resolved against the catalog
type SaleEvent struct {
	Time     time.Time
	Barcode  string
	Name     string
	Price    Price
	Quantity int
}

// Subtotal is unit price times quantity
func (s SaleEvent) Subtotal() Price {
	return s.Price.Mul(s.Quantity)
}

// AlarmEvent is a device-side fault or tamper message
type AlarmEvent struct {
	Time    time.Time
	Message string
	Extra   []protocol.Field
}

// SyncRequest is a REQ_SYNC received while no sync was waiting for it
type SyncRequest struct {
	Time time.Time
}

// SyncProgress reports rows sent so far in a session
type SyncProgress struct {
	SessionID string
	Sent      int
	Total     int
}
