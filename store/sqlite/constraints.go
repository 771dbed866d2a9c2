package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/warp/campus-shop/shop"
)

// reference declares that field holds the id of a row in table.
type reference struct {
	field string
	table string
}

// checkUnique fails with DuplicateObject when another row of r's table
// already holds the value of one of fields. Rows with id exceptID are
// ignored, so an update may keep its own value. Unset fields are skipped.
func checkUnique(ctx context.Context, q querier, r shop.Record, exceptID int64, fields ...string) error {
	table := r.Schema().Table()
	for _, field := range fields {
		if !r.IsSet(field) {
			continue
		}
		var id int64
		query := fmt.Sprintf("SELECT id FROM %s WHERE %s = ? AND id != ? LIMIT 1", table, field)
		err := q.QueryRowContext(ctx, query, dbValue(r.Value(field)), exceptID).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to check uniqueness of %s.%s: %w", table, field, err)
		}
		return shop.Duplicate(field)
	}
	return nil
}

// checkReferences fails with ForeignKeyNotExisting for the first set
// reference field whose row does not exist.
func checkReferences(ctx context.Context, q querier, r shop.Record, refs ...reference) error {
	for _, ref := range refs {
		id, ok := r.Int(ref.field).Get()
		if !ok {
			continue
		}
		found, err := exists(ctx, q, ref.table, id)
		if err != nil {
			return err
		}
		if !found {
			return shop.MissingReference(ref.field)
		}
	}
	return nil
}

func exists(ctx context.Context, q querier, table string, id int64) (bool, error) {
	var found bool
	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE id = ?)", table)
	if err := q.QueryRowContext(ctx, query, id).Scan(&found); err != nil {
		return false, fmt.Errorf("failed to look up %s %d: %w", table, id, err)
	}
	return found, nil
}

// mustExist fails with ObjectNotFound when the row is missing.
func mustExist(ctx context.Context, q querier, table string, id int64) error {
	found, err := exists(ctx, q, table, id)
	if err != nil {
		return err
	}
	if !found {
		return shop.NotFound(table, id)
	}
	return nil
}

// scanOne maps a single-row query, translating sql.ErrNoRows.
func scanOne[T any](row *sql.Row, table string, id int64, scan func(scanner) (T, error)) (T, error) {
	out, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return out, shop.NotFound(table, id)
	}
	return out, err
}
