package domain

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// TrackingCodePrefix starts every request tracking code.
const TrackingCodePrefix = "PROV"

// NewTrackingCode returns a code in the form PROV-YYYYMMDD-NNNN.
// Collisions are possible; the store enforces uniqueness.
func NewTrackingCode(now time.Time) string {
	return fmt.Sprintf("%s-%s-%04d", TrackingCodePrefix, now.Format("20060102"), rand.IntN(10000))
}
