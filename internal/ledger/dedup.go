package ledger

import (
	"context"

	"github.com/tazhate/luach/internal/domain"
)

// DedupStore remembers which (occasion, day, channel) deliveries happened.
// Records never expire.
type DedupStore struct {
	kv KV
}

func NewDedupStore(kv KV) *DedupStore {
	return &DedupStore{kv: kv}
}

// Delivered reports whether the delivery was already recorded.
func (d *DedupStore) Delivered(ctx context.Context, occasionID string, absDay int64, ch domain.Channel) (bool, error) {
	_, ok, err := d.kv.Get(ctx, domain.DedupKey(occasionID, absDay, ch))
	return ok, err
}

// Record marks the delivery as done. Call it only after the channel
// accepted the message.
func (d *DedupStore) Record(ctx context.Context, occasionID string, absDay int64, ch domain.Channel) error {
	return d.kv.Put(ctx, domain.DedupKey(occasionID, absDay, ch), "1")
}
