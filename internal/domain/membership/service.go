package membership

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThinkBeDo/drip-iv-dashboard-sub000/internal/domain/ingest/week"
)

// NewMemberCounts holds per-tier counts of first-time signups in one week.
type NewMemberCounts struct {
	Individual int
	Family     int
	Concierge  int
	Corporate  int
}

// Total sums all tiers.
func (c NewMemberCounts) Total() int {
	return c.Individual + c.Family + c.Concierge + c.Corporate
}

// Registry computes new-member counts for a target week against the durable
// registry. Re-running the same roster against the same week yields zero
// counts on the second run.
type Registry struct {
	repo   RegistryRepository
	logger *slog.Logger
}

// NewRegistry creates a Registry service.
func NewRegistry(repo RegistryRepository, logger *slog.Logger) *Registry {
	return &Registry{repo: repo, logger: logger}
}

// CountNewMembers walks the roster entries and, for each entry whose start
// date falls inside the target week and whose member key has never been
// seen, records it and increments the tier counter. All registry work for
// the run happens in one transaction.
//
// When persist is non-nil it runs inside that transaction, after counting:
// the registry commits only if persist succeeds, so a failed downstream
// write leaves the keys unregistered and a retry of the same upload counts
// them again.
func (r *Registry) CountNewMembers(ctx context.Context, entries []RosterEntry, target week.Window, persist func(NewMemberCounts) error) (NewMemberCounts, error) {
	var counts NewMemberCounts

	err := r.repo.WithTx(ctx, func(tx RegistryTx) error {
		for _, entry := range entries {
			if !target.Contains(entry.StartDate) {
				continue
			}

			inserted, err := tx.InsertIfAbsent(ctx, RegistryEntry{
				MemberKey:     entry.MemberKey(),
				Patient:       entry.Patient,
				Type:          entry.Type,
				StartDate:     entry.StartDate,
				FirstSeenWeek: target.Start,
			})
			if err != nil {
				return fmt.Errorf("register %s: %w", entry.Type, err)
			}
			if !inserted {
				continue
			}

			switch entry.Type {
			case TypeIndividual:
				counts.Individual++
			case TypeFamily:
				counts.Family++
			case TypeConcierge:
				counts.Concierge++
			case TypeCorporate:
				counts.Corporate++
			}
		}

		if persist != nil {
			return persist(counts)
		}
		return nil
	})
	if err != nil {
		return NewMemberCounts{}, err
	}

	if total := counts.Total(); total > 0 {
		r.logger.Info("new memberships registered",
			slog.Int("count", total),
			slog.String("week", target.String()),
		)
	}
	return counts, nil
}
