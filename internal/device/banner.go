package device

import (
	"context"
	"time"

	"github.com/tazhate/luach/internal/ledger"
)

const bannerKey = "banner:dismissed"

// Banner tracks whether the user dismissed today's reminder summary. The flag
// holds the solar date it was set on and lapses when that date changes.
type Banner struct {
	kv   ledger.KV
	now  func() time.Time
	zone *time.Location
}

func NewBanner(kv ledger.KV, now func() time.Time, zone *time.Location) *Banner {
	if now == nil {
		now = time.Now
	}
	if zone == nil {
		zone = time.Local
	}
	return &Banner{kv: kv, now: now, zone: zone}
}

func (b *Banner) today() string {
	return b.now().In(b.zone).Format("2006-01-02")
}

// Dismissed reports whether the banner was dismissed today.
func (b *Banner) Dismissed(ctx context.Context) (bool, error) {
	v, ok, err := b.kv.Get(ctx, bannerKey)
	if err != nil || !ok {
		return false, err
	}
	return v == b.today(), nil
}

func (b *Banner) Dismiss(ctx context.Context) error {
	return b.kv.Put(ctx, bannerKey, b.today())
}

// Visible reports whether the summary banner should be shown for a report.
func (b *Banner) Visible(ctx context.Context, rep Report) (bool, error) {
	if rep.Due.Empty() || rep.Permission == PermissionDenied {
		return false, nil
	}
	dismissed, err := b.Dismissed(ctx)
	if err != nil {
		return false, err
	}
	return !dismissed, nil
}
