// Package position implements subscription-position storage (spec §4.7):
// the durable record of how far a subscription has consumed the change
// feed, read on (re)start and saved after delivery.
package position

import "context"

// Storage reads, saves, and deletes a subscription's last-known resume
// token. Save must be atomic (overwrite-on-exists); there are no ordering
// guarantees across subscription ids, and each subscription id is written
// only by its own owning subscription.
type Storage interface {
	// Read returns the persisted position for subscriptionID, or found=false
	// if none has ever been saved.
	Read(ctx context.Context, subscriptionID string) (pos string, found bool, err error)

	// Save overwrites the persisted position for subscriptionID.
	Save(ctx context.Context, subscriptionID string, pos string) error

	// Delete removes the persisted position for subscriptionID. Per spec §3,
	// this is the only way a position record is ever removed — the engine
	// never calls it on its own.
	Delete(ctx context.Context, subscriptionID string) error
}
