package sqlite

import (
	"context"
	"fmt"

	"github.com/warp/campus-shop/shop"
)

var logColumns = []string{"table_name", "updated_id", "data_inserted", "timestamp"}

// appendLogs writes one audit row per entry. The log is append-only: no
// statement in this package updates or deletes it.
func (s *Store) appendLogs(ctx context.Context, q querier, table string, id int64, entries []string) error {
	now := s.timestamp()
	for _, entry := range entries {
		l := shop.NewLog()
		if err := shop.Assign(l,
			"table_name", table,
			"updated_id", id,
			"data_inserted", entry,
			"timestamp", now,
		); err != nil {
			return err
		}
		if _, err := insertRow(ctx, q, l, logColumns); err != nil {
			return fmt.Errorf("failed to write audit log: %w", err)
		}
	}
	return nil
}

func scanLog(sc scanner) (*shop.Log, error) {
	var (
		id, updatedID     int64
		table, data, when string
	)
	if err := sc.Scan(&id, &table, &updatedID, &data, &when); err != nil {
		return nil, err
	}
	ts, err := parseTime(when)
	if err != nil {
		return nil, err
	}
	l := shop.NewLog()
	return l, shop.Assign(l,
		"id", id,
		"table_name", table,
		"updated_id", updatedID,
		"data_inserted", data,
		"timestamp", ts,
	)
}

// ListLogs returns the audit log.
func (s *Store) ListLogs(ctx context.Context, limit int) ([]*shop.Log, error) {
	return read(s, func(q querier) ([]*shop.Log, error) {
		order, args := orderBy("id", limit)
		query := "SELECT id, table_name, updated_id, data_inserted, timestamp FROM logs" + order
		return queryAll(ctx, q, query, args, scanLog)
	})
}
