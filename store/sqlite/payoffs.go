package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/warp/campus-shop/shop"
)

var payoffColumns = []string{"department_id", "departmentpurchase_id", "amount", "comment", "revoked", "timestamp"}

const payoffSelect = `
	SELECT id, department_id, departmentpurchase_id, amount, comment, revoked, timestamp
	FROM payoffs`

func scanPayoff(sc scanner) (*shop.Payoff, error) {
	var (
		id, departmentID, amount int64
		purchaseID               sql.NullInt64
		comment, when            string
		revoked                  bool
	)
	if err := sc.Scan(&id, &departmentID, &purchaseID, &amount, &comment, &revoked, &when); err != nil {
		return nil, err
	}
	ts, err := parseTime(when)
	if err != nil {
		return nil, err
	}
	p := shop.NewPayoff()
	return p, shop.Assign(p,
		"id", id,
		"department_id", departmentID,
		"departmentpurchase_id", nullInt(purchaseID),
		"amount", amount,
		"comment", comment,
		"revoked", revoked,
		"timestamp", ts,
	)
}

func getPayoff(ctx context.Context, q querier, id int64) (*shop.Payoff, error) {
	row := q.QueryRowContext(ctx, payoffSelect+" WHERE id = ?", id)
	return scanOne(row, shop.TablePayoffs, id, scanPayoff)
}

// InsertPayoff books a department expense paid out of the bank.
func (s *Store) InsertPayoff(ctx context.Context, p *shop.Payoff) (*shop.Payoff, error) {
	p = shop.Clone(shop.NewPayoff, p)
	if err := shop.AssertMandatory(p, "department_id", "amount", "comment"); err != nil {
		return nil, err
	}
	if err := shop.AssertForbidden(p, "id", "timestamp", "revoked", "departmentpurchase_id"); err != nil {
		return nil, err
	}

	return mutate(ctx, s, func(q querier) (*shop.Payoff, error) {
		if err := checkReferences(ctx, q, p, reference{"department_id", shop.TableDepartments}); err != nil {
			return nil, err
		}
		id, err := s.insertPayoff(ctx, q, p)
		if err != nil {
			return nil, err
		}
		return getPayoff(ctx, q, id)
	})
}

func (s *Store) insertPayoff(ctx context.Context, q querier, p *shop.Payoff) (int64, error) {
	if err := shop.Assign(p, "timestamp", s.timestamp(), "revoked", false); err != nil {
		return 0, err
	}
	id, err := insertRow(ctx, q, p, payoffColumns)
	if err != nil {
		return 0, err
	}

	departmentID, _ := p.Int("department_id").Get()
	amount, _ := p.Int("amount").Get()
	if err := adjustDepartment(ctx, q, departmentID, 0, 0, amount); err != nil {
		return 0, err
	}
	if err := adjustBank(ctx, q, -amount); err != nil {
		return 0, err
	}
	return id, nil
}

// UpdatePayoff changes the comment or revokes a payoff. Revoking returns
// the amount to the bank and the department. A payoff spawned by a
// department purchase also takes back the restocked units.
func (s *Store) UpdatePayoff(ctx context.Context, patch *shop.Payoff) ([]string, error) {
	if err := shop.AssertMandatory(patch, "id"); err != nil {
		return nil, err
	}
	if err := shop.AssertForbidden(patch, "department_id", "amount", "departmentpurchase_id", "timestamp"); err != nil {
		return nil, err
	}
	id, _ := patch.Int("id").Get()

	return mutate(ctx, s, func(q querier) ([]string, error) {
		current, err := getPayoff(ctx, q, id)
		if err != nil {
			return nil, err
		}

		state := shop.RevocationState(current.Bool("revoked").OrElse(false))
		transition, err := shop.NextRevocation(state, patch.Bool("revoked"))
		if err != nil {
			return nil, err
		}

		if transition == shop.TransitionRevoke {
			departmentID, _ := current.Int("department_id").Get()
			amount, _ := current.Int("amount").Get()
			if err := adjustBank(ctx, q, amount); err != nil {
				return nil, err
			}
			if err := adjustDepartment(ctx, q, departmentID, 0, 0, -amount); err != nil {
				return nil, err
			}
			if purchaseID, ok := current.Int("departmentpurchase_id").Get(); ok {
				dp, err := getDepartmentPurchase(ctx, q, purchaseID)
				if err != nil {
					return nil, err
				}
				productID, _ := dp.Int("product_id").Get()
				units, _ := dp.Int("amount").Get()
				if err := s.adjustStock(ctx, q, productID, -units); err != nil {
					return nil, err
				}
			}
		}

		updated, err := s.applyUpdate(ctx, q, id, current, patch)
		if err == nil && transition == shop.TransitionRevoke {
			log.Printf("[Store] Revoked %s %d", shop.TablePayoffs, id)
		}
		return updated, err
	})
}

// GetPayoff retrieves a payoff by ID.
func (s *Store) GetPayoff(ctx context.Context, id int64) (*shop.Payoff, error) {
	return read(s, func(q querier) (*shop.Payoff, error) {
		return getPayoff(ctx, q, id)
	})
}

// ListPayoffs returns payoffs, newest first when limit is set.
func (s *Store) ListPayoffs(ctx context.Context, limit int) ([]*shop.Payoff, error) {
	return read(s, func(q querier) ([]*shop.Payoff, error) {
		order, args := orderBy("id", limit)
		return queryAll(ctx, q, payoffSelect+order, args, scanPayoff)
	})
}

// =============================================================================
// DEPARTMENT PURCHASES
// =============================================================================

var departmentPurchaseColumns = []string{
	"timestamp", "product_id", "department_id", "admin_id", "amount", "price_per_product",
}

const departmentPurchaseSelect = `
	SELECT id, timestamp, product_id, department_id, admin_id, amount, price_per_product
	FROM departmentpurchases`

func scanDepartmentPurchase(sc scanner) (*shop.DepartmentPurchase, error) {
	var (
		id, productID, departmentID, adminID, amount, price int64
		when                                                string
	)
	if err := sc.Scan(&id, &when, &productID, &departmentID, &adminID, &amount, &price); err != nil {
		return nil, err
	}
	ts, err := parseTime(when)
	if err != nil {
		return nil, err
	}
	dp := shop.NewDepartmentPurchase()
	return dp, shop.Assign(dp,
		"id", id,
		"timestamp", ts,
		"product_id", productID,
		"department_id", departmentID,
		"admin_id", adminID,
		"amount", amount,
		"price_per_product", price,
	)
}

func getDepartmentPurchase(ctx context.Context, q querier, id int64) (*shop.DepartmentPurchase, error) {
	row := q.QueryRowContext(ctx, departmentPurchaseSelect+" WHERE id = ?", id)
	return scanOne(row, shop.TableDepartmentPurchases, id, scanDepartmentPurchase)
}

// InsertDepartmentPurchase restocks a product on behalf of a department.
// Every restock books a payoff of amount x price_per_product that links
// back to it.
func (s *Store) InsertDepartmentPurchase(ctx context.Context, dp *shop.DepartmentPurchase) (*shop.DepartmentPurchase, error) {
	dp = shop.Clone(shop.NewDepartmentPurchase, dp)
	if err := shop.AssertMandatory(dp, "product_id", "department_id", "admin_id", "amount", "price_per_product"); err != nil {
		return nil, err
	}
	if err := shop.AssertForbidden(dp, "id", "timestamp"); err != nil {
		return nil, err
	}

	return mutate(ctx, s, func(q querier) (*shop.DepartmentPurchase, error) {
		if err := checkReferences(ctx, q, dp,
			reference{"product_id", shop.TableProducts},
			reference{"department_id", shop.TableDepartments},
			reference{"admin_id", shop.TableConsumers},
		); err != nil {
			return nil, err
		}

		productID, _ := dp.Int("product_id").Get()
		departmentID, _ := dp.Int("department_id").Get()
		amount, _ := dp.Int("amount").Get()
		price, _ := dp.Int("price_per_product").Get()

		product, err := getProduct(ctx, q, productID)
		if err != nil {
			return nil, err
		}

		if err := dp.Set("timestamp", s.timestamp()); err != nil {
			return nil, err
		}
		id, err := insertRow(ctx, q, dp, departmentPurchaseColumns)
		if err != nil {
			return nil, err
		}
		if err := s.adjustStock(ctx, q, productID, amount); err != nil {
			return nil, err
		}

		name, _ := product.Str("name").Get()
		payoff := shop.NewPayoff()
		if err := shop.Assign(payoff,
			"department_id", departmentID,
			"departmentpurchase_id", id,
			"amount", amount*price,
			"comment", fmt.Sprintf("%dx %s", amount, name),
		); err != nil {
			return nil, err
		}
		if _, err := s.insertPayoff(ctx, q, payoff); err != nil {
			return nil, err
		}
		return getDepartmentPurchase(ctx, q, id)
	})
}

// GetDepartmentPurchase retrieves a department purchase by ID.
func (s *Store) GetDepartmentPurchase(ctx context.Context, id int64) (*shop.DepartmentPurchase, error) {
	return read(s, func(q querier) (*shop.DepartmentPurchase, error) {
		return getDepartmentPurchase(ctx, q, id)
	})
}
