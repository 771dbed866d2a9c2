package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/warp/campus-shop/shop"
)

const masked = "***"

// applyUpdate writes every field set on patch that differs from current
// and records one audit log row per written field. Fields named in clear
// are set to NULL when current still holds a value. The returned names
// are the fields that actually changed; none means nothing was written.
func (s *Store) applyUpdate(ctx context.Context, q querier, id int64, current, patch shop.Record, clear ...string) ([]string, error) {
	table := patch.Schema().Table()

	var (
		sets    []string
		args    []any
		updated []string
		entries []string
	)
	for _, name := range patch.Fields() {
		if name == "id" {
			continue
		}
		v := patch.Value(name)
		if sameValue(current.Value(name), v) {
			continue
		}
		sets = append(sets, name+" = ?")
		args = append(args, dbValue(v))
		updated = append(updated, name)
		entries = append(entries, logEntry(name, v))
	}
	for _, name := range clear {
		if !current.IsSet(name) || patch.IsSet(name) {
			continue
		}
		sets = append(sets, name+" = NULL")
		updated = append(updated, name)
		entries = append(entries, name+"=null")
	}

	if len(updated) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", table, strings.Join(sets, ", "))
	if _, err := q.ExecContext(ctx, query, append(args, id)...); err != nil {
		return nil, fmt.Errorf("failed to update %s %d: %w", table, id, err)
	}

	if err := s.appendLogs(ctx, q, table, id, entries); err != nil {
		return nil, err
	}
	return updated, nil
}

func sameValue(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return a == b
}

func logEntry(name string, v any) string {
	switch val := v.(type) {
	case time.Time:
		return name + "=" + formatTime(val)
	default:
		if name == "password" {
			return name + "=" + masked
		}
		return fmt.Sprintf("%s=%v", name, val)
	}
}
