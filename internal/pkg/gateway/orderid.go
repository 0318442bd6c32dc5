package gateway

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// NewOrderID returns PO + YYYYMMDDHHMMSS + 10 random hex characters.
func NewOrderID(now time.Time) string {
	u := uuid.New()
	return "PO" + now.Format("20060102150405") + hex.EncodeToString(u[:5])
}
