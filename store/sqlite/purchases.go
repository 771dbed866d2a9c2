package sqlite

import (
	"context"
	"fmt"
	"log"

	"github.com/warp/campus-shop/shop"
)

var purchaseColumns = []string{
	"consumer_id", "product_id", "amount", "comment", "timestamp", "revoked",
	"paid_base_price_per_product", "paid_karma_per_product",
}

const purchaseSelect = `
	SELECT id, consumer_id, product_id, amount, comment, timestamp, revoked,
		paid_base_price_per_product, paid_karma_per_product
	FROM purchases`

func scanPurchase(sc scanner) (*shop.Purchase, error) {
	var (
		id, consumerID, productID, amount int64
		paidBase, paidKarma               int64
		comment, when                     string
		revoked                           bool
	)
	if err := sc.Scan(&id, &consumerID, &productID, &amount, &comment, &when, &revoked, &paidBase, &paidKarma); err != nil {
		return nil, err
	}
	ts, err := parseTime(when)
	if err != nil {
		return nil, err
	}
	p := shop.NewPurchase()
	return p, shop.Assign(p,
		"id", id,
		"consumer_id", consumerID,
		"product_id", productID,
		"amount", amount,
		"comment", comment,
		"timestamp", ts,
		"revoked", revoked,
		"paid_base_price_per_product", paidBase,
		"paid_karma_per_product", paidKarma,
		"price", amount*(paidBase+paidKarma),
	)
}

func getPurchase(ctx context.Context, q querier, id int64) (*shop.Purchase, error) {
	row := q.QueryRowContext(ctx, purchaseSelect+" WHERE id = ?", id)
	return scanOne(row, shop.TablePurchases, id, scanPurchase)
}

// InsertPurchase books a purchase. The per-product price is fixed at
// insert time from the product price and, when pricing.UseKarma is set,
// the consumer's karma and the price categories. Stock and department
// income move with it; credit follows from the new row.
func (s *Store) InsertPurchase(ctx context.Context, p *shop.Purchase, pricing shop.Pricing) (*shop.Purchase, error) {
	p = shop.Clone(shop.NewPurchase, p)
	if err := shop.AssertMandatory(p, "product_id", "consumer_id", "amount", "comment"); err != nil {
		return nil, err
	}
	if err := shop.AssertForbidden(p, "id", "timestamp", "revoked",
		"paid_base_price_per_product", "paid_karma_per_product", "price"); err != nil {
		return nil, err
	}

	return mutate(ctx, s, func(q querier) (*shop.Purchase, error) {
		if err := checkReferences(ctx, q, p,
			reference{"consumer_id", shop.TableConsumers},
			reference{"product_id", shop.TableProducts},
		); err != nil {
			return nil, err
		}

		consumerID, _ := p.Int("consumer_id").Get()
		productID, _ := p.Int("product_id").Get()
		amount, _ := p.Int("amount").Get()

		product, err := getProduct(ctx, q, productID)
		if err != nil {
			return nil, err
		}
		var karma int64
		if err := q.QueryRowContext(ctx, "SELECT karma FROM consumers WHERE id = ?", consumerID).Scan(&karma); err != nil {
			return nil, fmt.Errorf("failed to load karma of consumer %d: %w", consumerID, err)
		}
		tiers, err := loadTiers(ctx, q)
		if err != nil {
			return nil, err
		}

		base, _ := product.Int("price").Get()
		quote := pricing.Quote(base, karma, tiers)

		if err := shop.Assign(p,
			"timestamp", s.timestamp(),
			"revoked", false,
			"paid_base_price_per_product", quote.Base,
			"paid_karma_per_product", quote.Karma,
		); err != nil {
			return nil, err
		}
		id, err := insertRow(ctx, q, p, purchaseColumns)
		if err != nil {
			return nil, err
		}

		if err := s.adjustStock(ctx, q, productID, -amount); err != nil {
			return nil, err
		}
		departmentID, _ := product.Int("department_id").Get()
		if err := adjustDepartment(ctx, q, departmentID, amount*quote.Base, amount*quote.Karma, 0); err != nil {
			return nil, err
		}
		return getPurchase(ctx, q, id)
	})
}

// UpdatePurchase changes the comment or revokes a purchase. Revoking
// reverses the stock and income the purchase booked.
func (s *Store) UpdatePurchase(ctx context.Context, patch *shop.Purchase) ([]string, error) {
	if err := shop.AssertMandatory(patch, "id"); err != nil {
		return nil, err
	}
	if err := shop.AssertAllowed(patch, "id", "revoked", "comment"); err != nil {
		return nil, err
	}
	id, _ := patch.Int("id").Get()

	return mutate(ctx, s, func(q querier) ([]string, error) {
		current, err := getPurchase(ctx, q, id)
		if err != nil {
			return nil, err
		}

		state := shop.RevocationState(current.Bool("revoked").OrElse(false))
		transition, err := shop.NextRevocation(state, patch.Bool("revoked"))
		if err != nil {
			return nil, err
		}

		if transition == shop.TransitionRevoke {
			productID, _ := current.Int("product_id").Get()
			product, err := getProduct(ctx, q, productID)
			if err != nil {
				return nil, err
			}
			if !product.Bool("revocable").OrElse(false) {
				return nil, shop.ErrNotRevocable
			}

			amount, _ := current.Int("amount").Get()
			base, _ := current.Int("paid_base_price_per_product").Get()
			karma, _ := current.Int("paid_karma_per_product").Get()
			departmentID, _ := product.Int("department_id").Get()

			if err := s.adjustStock(ctx, q, productID, amount); err != nil {
				return nil, err
			}
			if err := adjustDepartment(ctx, q, departmentID, -amount*base, -amount*karma, 0); err != nil {
				return nil, err
			}
		}

		updated, err := s.applyUpdate(ctx, q, id, current, patch)
		if err == nil && transition == shop.TransitionRevoke {
			log.Printf("[Store] Revoked %s %d", shop.TablePurchases, id)
		}
		return updated, err
	})
}

// GetPurchase retrieves a purchase by ID, including its derived price.
func (s *Store) GetPurchase(ctx context.Context, id int64) (*shop.Purchase, error) {
	return read(s, func(q querier) (*shop.Purchase, error) {
		return getPurchase(ctx, q, id)
	})
}

// ListPurchases returns purchases, newest first when limit is set.
func (s *Store) ListPurchases(ctx context.Context, limit int) ([]*shop.Purchase, error) {
	return read(s, func(q querier) ([]*shop.Purchase, error) {
		order, args := orderBy("id", limit)
		return queryAll(ctx, q, purchaseSelect+order, args, scanPurchase)
	})
}

// =============================================================================
// PRICE CATEGORIES
// =============================================================================

func scanPriceCategory(sc scanner) (*shop.PriceCategory, error) {
	var id, lowerBound, percent int64
	if err := sc.Scan(&id, &lowerBound, &percent); err != nil {
		return nil, err
	}
	c := shop.NewPriceCategory()
	return c, shop.Assign(c,
		"id", id,
		"price_lower_bound", lowerBound,
		"additional_percent", percent,
	)
}

// InsertPriceCategory adds a markup tier. Lower bounds are unique.
func (s *Store) InsertPriceCategory(ctx context.Context, c *shop.PriceCategory) (*shop.PriceCategory, error) {
	c = shop.Clone(shop.NewPriceCategory, c)
	if err := shop.AssertMandatory(c, "price_lower_bound", "additional_percent"); err != nil {
		return nil, err
	}
	if err := shop.AssertForbidden(c, "id"); err != nil {
		return nil, err
	}

	return mutate(ctx, s, func(q querier) (*shop.PriceCategory, error) {
		if err := checkUnique(ctx, q, c, 0, "price_lower_bound"); err != nil {
			return nil, err
		}
		id, err := insertRow(ctx, q, c, []string{"price_lower_bound", "additional_percent"})
		if err != nil {
			return nil, err
		}
		return c, c.Set("id", id)
	})
}

// ListPriceCategories returns the markup tiers, newest first when limit is set.
func (s *Store) ListPriceCategories(ctx context.Context, limit int) ([]*shop.PriceCategory, error) {
	return read(s, func(q querier) ([]*shop.PriceCategory, error) {
		order, args := orderBy("id", limit)
		query := "SELECT id, price_lower_bound, additional_percent FROM pricecategories" + order
		return queryAll(ctx, q, query, args, scanPriceCategory)
	})
}

func loadTiers(ctx context.Context, q querier) ([]shop.Tier, error) {
	return queryAll(ctx, q,
		"SELECT price_lower_bound, additional_percent FROM pricecategories ORDER BY price_lower_bound ASC",
		nil, func(sc scanner) (shop.Tier, error) {
			var t shop.Tier
			err := sc.Scan(&t.LowerBound, &t.Percent)
			return t, err
		})
}
