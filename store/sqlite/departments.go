package sqlite

import (
	"context"
	"fmt"

	"github.com/warp/campus-shop/shop"
)

var departmentColumns = []string{"name", "budget", "income_base", "income_karma", "expenses"}

const departmentSelect = "SELECT id, name, budget, income_base, income_karma, expenses FROM departments"

func scanDepartment(sc scanner) (*shop.Department, error) {
	var (
		id, budget, incomeBase, incomeKarma, expenses int64
		name                                          string
	)
	if err := sc.Scan(&id, &name, &budget, &incomeBase, &incomeKarma, &expenses); err != nil {
		return nil, err
	}
	d := shop.NewDepartment()
	return d, shop.Assign(d,
		"id", id,
		"name", name,
		"budget", budget,
		"income_base", incomeBase,
		"income_karma", incomeKarma,
		"expenses", expenses,
	)
}

func getDepartment(ctx context.Context, q querier, id int64) (*shop.Department, error) {
	row := q.QueryRowContext(ctx, departmentSelect+" WHERE id = ?", id)
	return scanOne(row, shop.TableDepartments, id, scanDepartment)
}

// InsertDepartment creates a department with zero income and expenses.
func (s *Store) InsertDepartment(ctx context.Context, d *shop.Department) (*shop.Department, error) {
	d = shop.Clone(shop.NewDepartment, d)
	if err := shop.AssertMandatory(d, "name", "budget"); err != nil {
		return nil, err
	}
	if err := shop.AssertForbidden(d, "id", "income_base", "income_karma", "expenses"); err != nil {
		return nil, err
	}
	if err := shop.Assign(d, "income_base", int64(0), "income_karma", int64(0), "expenses", int64(0)); err != nil {
		return nil, err
	}

	return mutate(ctx, s, func(q querier) (*shop.Department, error) {
		if err := checkUnique(ctx, q, d, 0, "name"); err != nil {
			return nil, err
		}
		id, err := insertRow(ctx, q, d, departmentColumns)
		if err != nil {
			return nil, err
		}
		return getDepartment(ctx, q, id)
	})
}

// UpdateDepartment applies the set fields of patch. Income and expenses
// only move through the ledger.
func (s *Store) UpdateDepartment(ctx context.Context, patch *shop.Department) ([]string, error) {
	if err := shop.AssertMandatory(patch, "id"); err != nil {
		return nil, err
	}
	if err := shop.AssertForbidden(patch, "income_base", "income_karma", "expenses"); err != nil {
		return nil, err
	}
	id, _ := patch.Int("id").Get()

	return mutate(ctx, s, func(q querier) ([]string, error) {
		current, err := getDepartment(ctx, q, id)
		if err != nil {
			return nil, err
		}
		if err := checkUnique(ctx, q, patch, id, "name"); err != nil {
			return nil, err
		}
		return s.applyUpdate(ctx, q, id, current, patch)
	})
}

// GetDepartment retrieves a department by ID.
func (s *Store) GetDepartment(ctx context.Context, id int64) (*shop.Department, error) {
	return read(s, func(q querier) (*shop.Department, error) {
		return getDepartment(ctx, q, id)
	})
}

// ListDepartments returns departments, newest first when limit is set.
func (s *Store) ListDepartments(ctx context.Context, limit int) ([]*shop.Department, error) {
	return read(s, func(q querier) ([]*shop.Department, error) {
		order, args := orderBy("id", limit)
		return queryAll(ctx, q, departmentSelect+order, args, scanDepartment)
	})
}

// adjustDepartment moves the running totals of a department.
func adjustDepartment(ctx context.Context, q querier, id, incomeBase, incomeKarma, expenses int64) error {
	_, err := q.ExecContext(ctx, `
		UPDATE departments
		SET income_base = income_base + ?, income_karma = income_karma + ?, expenses = expenses + ?
		WHERE id = ?`, incomeBase, incomeKarma, expenses, id)
	if err != nil {
		return fmt.Errorf("failed to update department %d: %w", id, err)
	}
	return nil
}
