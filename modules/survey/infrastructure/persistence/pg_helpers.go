// Package persistence implements the survey module's repositories on
// PostgreSQL via pgx. Repositories resolve their querier from context so the
// same code runs inside or outside a transaction.
package persistence

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/orgpulse/orgpulse/modules/survey/domain/aggregates/area"
	"github.com/orgpulse/orgpulse/pkg/composables"
)

// execBatch runs every queued statement and sums the affected rows.
func execBatch(ctx context.Context, q composables.Querier, batch *pgx.Batch) (int, error) {
	if batch.Len() == 0 {
		return 0, nil
	}
	results := q.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()

	total := 0
	for i := 0; i < batch.Len(); i++ {
		tag, err := results.Exec()
		if err != nil {
			return total, err
		}
		total += int(tag.RowsAffected())
	}
	return total, nil
}

func marshalRanks(ranks []area.ThemeRank) ([]byte, error) {
	if ranks == nil {
		ranks = []area.ThemeRank{}
	}
	return json.Marshal(ranks)
}

func unmarshalRanks(raw []byte) ([]area.ThemeRank, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var ranks []area.ThemeRank
	if err := json.Unmarshal(raw, &ranks); err != nil {
		return nil, err
	}
	return ranks, nil
}
