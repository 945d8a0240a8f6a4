package booking

import (
	"context"

	"github.com/nekogravitycat/reservation-engine/internal/pkg/interval"
)

// DetectConflicts returns the active bookings in existing that overlap iv,
// skipping excludeID. Back-to-back bookings never conflict.
func DetectConflicts(existing []*Booking, iv interval.Interval, excludeID string) []*Booking {
	var out []*Booking
	for _, b := range existing {
		if b.ID == excludeID && excludeID != "" {
			continue
		}
		if !b.Status.IsActive() {
			continue
		}
		if b.Interval().Overlaps(iv) {
			out = append(out, b)
		}
	}
	return out
}

// FindConflicts loads the resource's active bookings around iv from the
// transaction and returns the full conflicting set.
func FindConflicts(ctx context.Context, tx Tx, resourceID string, iv interval.Interval, excludeID string) ([]*Booking, error) {
	candidates, err := tx.Bookings().ListActiveByResource(ctx, resourceID, iv)
	if err != nil {
		return nil, err
	}
	return DetectConflicts(candidates, iv, excludeID), nil
}
