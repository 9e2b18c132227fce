package membership

import (
	"context"
	"time"
)

// RegistryEntry is a durable first-seen record. Created once per member key;
// never updated or deleted by the pipeline.
type RegistryEntry struct {
	MemberKey     string
	Patient       string
	Type          Type
	StartDate     time.Time
	FirstSeenWeek time.Time
}

// RegistryTx exposes registry operations bound to one transaction.
type RegistryTx interface {
	// InsertIfAbsent records the entry and reports whether it was new.
	// An existing key is left untouched.
	InsertIfAbsent(ctx context.Context, entry RegistryEntry) (bool, error)
}

// RegistryRepository defines persistence for the membership registry. All
// reads and inserts for one run happen inside a single transaction so that
// concurrent uploads of overlapping weeks cannot both count the same signup.
type RegistryRepository interface {
	WithTx(ctx context.Context, fn func(tx RegistryTx) error) error
}
