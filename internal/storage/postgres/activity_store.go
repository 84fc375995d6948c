package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"cypher-activity/internal/domain"
	"cypher-activity/internal/storage"
)

// ActivityStore implements storage.ActivityStore using PostgreSQL.
type ActivityStore struct {
	pool *Pool
}

// NewActivityStore creates a new ActivityStore.
func NewActivityStore(pool *Pool) *ActivityStore {
	return &ActivityStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ActivityStore = (*ActivityStore)(nil)

const insertQuery = `
	INSERT INTO activity_events (
		txid, block_height, block_hash, timestamp, contract_id, event_type,
		from_address, to_address, amount, token_id, display_name,
		address_involved, rollback
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`

// InsertBulk adds all events as new rows in one transaction.
func (s *ActivityStore) InsertBulk(ctx context.Context, events []*domain.ActivityEvent) error {
	if len(events) == 0 {
		return nil
	}

	for _, ev := range events {
		if err := storage.ValidateEvent(ev); err != nil {
			return err
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, ev := range events {
		_, err := tx.Exec(ctx, insertQuery,
			ev.TxID,
			ev.BlockHeight,
			ev.BlockHash,
			ev.Timestamp,
			ev.ContractID,
			string(ev.EventType),
			ev.From,
			ev.To,
			ev.Amount,
			ev.TokenID,
			ev.DisplayName,
			ev.AddressInvolved,
			ev.Rollback,
		)
		if err != nil {
			return fmt.Errorf("insert activity event: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// MarkRolledBack flips rollback=true on every row at the block height whose
// rollback is currently false.
func (s *ActivityStore) MarkRolledBack(ctx context.Context, blockHeight int64) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE activity_events
		SET rollback = TRUE
		WHERE block_height = $1 AND rollback = FALSE
	`, blockHeight)
	if err != nil {
		return 0, fmt.Errorf("mark events rolled back: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListRecent retrieves non-rolled-back events, newest first.
func (s *ActivityStore) ListRecent(ctx context.Context, address string, limit int) ([]*domain.ActivityEvent, error) {
	query := `
		SELECT txid, block_height, block_hash, timestamp, contract_id, event_type,
		       from_address, to_address, amount, token_id, display_name,
		       address_involved, rollback
		FROM activity_events
		WHERE rollback = FALSE
	`
	args := []any{}
	if address != "" {
		query += ` AND address_involved @> ARRAY[$1::text]`
		args = append(args, address)
	}
	query += fmt.Sprintf(` ORDER BY timestamp DESC, id DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list activity events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// Summarize groups non-rolled-back events for the address since the given
// instant by event type.
func (s *ActivityStore) Summarize(ctx context.Context, address string, since time.Time) (domain.ActivitySummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT event_type, COUNT(*)
		FROM activity_events
		WHERE rollback = FALSE AND address_involved @> ARRAY[$1::text] AND timestamp >= $2
		GROUP BY event_type
	`, address, since)
	if err != nil {
		return domain.ActivitySummary{}, fmt.Errorf("summarize activity: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.EventType]int64)
	for rows.Next() {
		var eventType string
		var count int64
		if err := rows.Scan(&eventType, &count); err != nil {
			return domain.ActivitySummary{}, fmt.Errorf("scan summary row: %w", err)
		}
		counts[domain.EventType(eventType)] = count
	}
	if err := rows.Err(); err != nil {
		return domain.ActivitySummary{}, fmt.Errorf("iterate summary rows: %w", err)
	}

	return domain.SummaryFromCounts(counts), nil
}

// Ping reports store reachability.
func (s *ActivityStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// scanEvents scans rows into activity events.
func scanEvents(rows pgx.Rows) ([]*domain.ActivityEvent, error) {
	var events []*domain.ActivityEvent

	for rows.Next() {
		var ev domain.ActivityEvent
		var eventType string

		err := rows.Scan(
			&ev.TxID,
			&ev.BlockHeight,
			&ev.BlockHash,
			&ev.Timestamp,
			&ev.ContractID,
			&eventType,
			&ev.From,
			&ev.To,
			&ev.Amount,
			&ev.TokenID,
			&ev.DisplayName,
			&ev.AddressInvolved,
			&ev.Rollback,
		)
		if err != nil {
			return nil, fmt.Errorf("scan activity event row: %w", err)
		}

		ev.EventType = domain.EventType(eventType)
		events = append(events, &ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity event rows: %w", err)
	}

	return events, nil
}
