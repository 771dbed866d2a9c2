package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/warp/campus-shop/shop"
)

var productColumns = []string{
	"name", "price", "barcode", "active", "countable", "revocable", "stock", "department_id", "creation_date",
}

const productSelect = `
	SELECT id, name, price, barcode, active, countable, revocable, stock, department_id, creation_date
	FROM products`

func scanProduct(sc scanner) (*shop.Product, error) {
	var (
		id, price, departmentID      int64
		name, created                string
		active, countable, revocable bool
		barcode                      sql.NullString
		stock                        sql.NullInt64
	)
	if err := sc.Scan(&id, &name, &price, &barcode, &active, &countable, &revocable, &stock, &departmentID, &created); err != nil {
		return nil, err
	}
	creationDate, err := parseTime(created)
	if err != nil {
		return nil, err
	}
	p := shop.NewProduct()
	return p, shop.Assign(p,
		"id", id,
		"name", name,
		"price", price,
		"barcode", nullString(barcode),
		"active", active,
		"countable", countable,
		"revocable", revocable,
		"stock", nullInt(stock),
		"department_id", departmentID,
		"creation_date", creationDate,
	)
}

func getProduct(ctx context.Context, q querier, id int64) (*shop.Product, error) {
	row := q.QueryRowContext(ctx, productSelect+" WHERE id = ?", id)
	return scanOne(row, shop.TableProducts, id, scanProduct)
}

// InsertProduct creates a product. Countable products start with stock 0
// unless a stock is given; non-countable products carry no stock.
func (s *Store) InsertProduct(ctx context.Context, p *shop.Product) (*shop.Product, error) {
	p = shop.Clone(shop.NewProduct, p)
	if err := shop.AssertMandatory(p, "name", "price", "department_id"); err != nil {
		return nil, err
	}
	if err := shop.AssertForbidden(p, "id", "creation_date"); err != nil {
		return nil, err
	}
	if err := setDefaults(p, "active", true, "countable", true, "revocable", true); err != nil {
		return nil, err
	}
	if p.Bool("countable").OrElse(true) {
		if err := setDefaults(p, "stock", int64(0)); err != nil {
			return nil, err
		}
	} else if err := shop.AssertForbidden(p, "stock"); err != nil {
		return nil, err
	}

	return mutate(ctx, s, func(q querier) (*shop.Product, error) {
		if err := checkUnique(ctx, q, p, 0, "name", "barcode"); err != nil {
			return nil, err
		}
		if err := checkReferences(ctx, q, p, reference{"department_id", shop.TableDepartments}); err != nil {
			return nil, err
		}
		if err := p.Set("creation_date", s.timestamp()); err != nil {
			return nil, err
		}
		id, err := insertRow(ctx, q, p, productColumns)
		if err != nil {
			return nil, err
		}
		if stock, ok := p.Int("stock").Get(); ok {
			if err := s.recordStock(ctx, q, id, stock); err != nil {
				return nil, err
			}
		}
		return getProduct(ctx, q, id)
	})
}

// UpdateProduct applies the set fields of patch. Turning countable off
// drops the stock; turning it on starts the stock at 0.
func (s *Store) UpdateProduct(ctx context.Context, patch *shop.Product) ([]string, error) {
	patch = shop.Clone(shop.NewProduct, patch)
	if err := shop.AssertMandatory(patch, "id"); err != nil {
		return nil, err
	}
	if err := shop.AssertForbidden(patch, "creation_date"); err != nil {
		return nil, err
	}
	id, _ := patch.Int("id").Get()

	return mutate(ctx, s, func(q querier) ([]string, error) {
		current, err := getProduct(ctx, q, id)
		if err != nil {
			return nil, err
		}

		var clear []string
		countable := patch.Bool("countable").OrElse(current.Bool("countable").OrElse(true))
		if countable {
			if !current.IsSet("stock") {
				if err := setDefaults(patch, "stock", int64(0)); err != nil {
					return nil, err
				}
			}
		} else {
			if err := shop.AssertForbidden(patch, "stock"); err != nil {
				return nil, err
			}
			clear = append(clear, "stock")
		}

		if err := checkUnique(ctx, q, patch, id, "name", "barcode"); err != nil {
			return nil, err
		}
		if err := checkReferences(ctx, q, patch, reference{"department_id", shop.TableDepartments}); err != nil {
			return nil, err
		}

		updated, err := s.applyUpdate(ctx, q, id, current, patch, clear...)
		if err != nil {
			return nil, err
		}
		if stock, ok := patch.Int("stock").Get(); ok && contains(updated, "stock") {
			if err := s.recordStock(ctx, q, id, stock); err != nil {
				return nil, err
			}
		}
		return updated, nil
	})
}

// GetProduct retrieves a product by ID.
func (s *Store) GetProduct(ctx context.Context, id int64) (*shop.Product, error) {
	return read(s, func(q querier) (*shop.Product, error) {
		return getProduct(ctx, q, id)
	})
}

// ListProducts returns products, newest first when limit is set.
func (s *Store) ListProducts(ctx context.Context, limit int) ([]*shop.Product, error) {
	return read(s, func(q querier) ([]*shop.Product, error) {
		order, args := orderBy("id", limit)
		return queryAll(ctx, q, productSelect+order, args, scanProduct)
	})
}

// =============================================================================
// STOCK
// =============================================================================

// adjustStock moves the stock of a countable product by delta and records
// the new level. Non-countable products are left alone.
func (s *Store) adjustStock(ctx context.Context, q querier, productID, delta int64) error {
	var (
		countable bool
		stock     sql.NullInt64
	)
	err := q.QueryRowContext(ctx, "SELECT countable, stock FROM products WHERE id = ?", productID).
		Scan(&countable, &stock)
	if err != nil {
		return fmt.Errorf("failed to load stock of product %d: %w", productID, err)
	}
	if !countable {
		return nil
	}

	next := stock.Int64 + delta
	if _, err := q.ExecContext(ctx, "UPDATE products SET stock = ? WHERE id = ?", next, productID); err != nil {
		return fmt.Errorf("failed to update stock of product %d: %w", productID, err)
	}
	return s.recordStock(ctx, q, productID, next)
}

func (s *Store) recordStock(ctx context.Context, q querier, productID, stock int64) error {
	h := shop.NewStockHistory()
	if err := shop.Assign(h,
		"product_id", productID,
		"new_stock", stock,
		"timestamp", s.timestamp(),
	); err != nil {
		return err
	}
	_, err := insertRow(ctx, q, h, []string{"product_id", "new_stock", "timestamp"})
	return err
}

func scanStockHistory(sc scanner) (*shop.StockHistory, error) {
	var (
		id, productID, stock int64
		when                 string
	)
	if err := sc.Scan(&id, &productID, &stock, &when); err != nil {
		return nil, err
	}
	ts, err := parseTime(when)
	if err != nil {
		return nil, err
	}
	h := shop.NewStockHistory()
	return h, shop.Assign(h,
		"id", id,
		"product_id", productID,
		"new_stock", stock,
		"timestamp", ts,
	)
}

// GetStockHistory lists the recorded stock levels of a product, oldest first.
func (s *Store) GetStockHistory(ctx context.Context, productID int64) ([]*shop.StockHistory, error) {
	return read(s, func(q querier) ([]*shop.StockHistory, error) {
		if err := mustExist(ctx, q, shop.TableProducts, productID); err != nil {
			return nil, err
		}
		return queryAll(ctx, q,
			"SELECT id, product_id, new_stock, timestamp FROM stockhistory WHERE product_id = ? ORDER BY id ASC",
			[]any{productID}, scanStockHistory)
	})
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
