package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/campus-shop/shop"
)

var karmaPricing = shop.Pricing{UseKarma: true}

// =============================================================================
// PURCHASES
// =============================================================================

func TestInsertPurchase_BooksAllBalances(t *testing.T) {
	// GIVEN: A consumer with 5000 credit, a product at 300 with stock 10
	store := newStore(t)
	f := seed(t, store)

	// WHEN: Buying two units without karma pricing
	p := purchase(t, store, f, 2, shop.Pricing{})

	// THEN: Credit, stock and department income move by amount x price
	assert.Equal(t, int64(300), p.Int("paid_base_price_per_product").OrElse(-1))
	assert.Equal(t, int64(0), p.Int("paid_karma_per_product").OrElse(-1))
	assert.Equal(t, int64(600), p.Int("price").OrElse(-1))
	assert.True(t, testNow.Equal(p.Time("timestamp").OrElse(time.Time{})))
	assert.False(t, p.Bool("revoked").OrElse(true))

	assert.Equal(t, int64(4400), credit(t, store, f.consumer))
	assert.Equal(t, shop.Some(int64(8)), stock(t, store, f.product))
	assert.Equal(t, totals{base: 600}, departmentTotals(t, store, f.department))
}

func TestInsertPurchase_KarmaPricing(t *testing.T) {
	// GIVEN: A 20% markup tier starting at 0 and a consumer with karma 0
	store := newStore(t)
	f := seed(t, store)
	ctx := context.Background()

	_, err := store.InsertPriceCategory(ctx, build(t, shop.NewPriceCategory, map[string]any{
		"price_lower_bound": 0, "additional_percent": 20,
	}))
	require.NoError(t, err)

	// WHEN: Buying two units with karma pricing
	p := purchase(t, store, f, 2, karmaPricing)

	// THEN: The karma share is booked separately
	assert.Equal(t, int64(300), p.Int("paid_base_price_per_product").OrElse(-1))
	assert.Equal(t, int64(30), p.Int("paid_karma_per_product").OrElse(-1))
	assert.Equal(t, int64(5000-660), credit(t, store, f.consumer))
	assert.Equal(t, totals{base: 600, karma: 60}, departmentTotals(t, store, f.department))
}

func TestInsertPurchase_KarmaTenPaysBasePrice(t *testing.T) {
	store := newStore(t)
	f := seed(t, store)
	ctx := context.Background()

	_, err := store.InsertPriceCategory(ctx, build(t, shop.NewPriceCategory, map[string]any{
		"price_lower_bound": 0, "additional_percent": 20,
	}))
	require.NoError(t, err)
	_, err = store.UpdateConsumer(ctx, build(t, shop.NewConsumer, map[string]any{"id": f.consumer, "karma": 10}))
	require.NoError(t, err)

	p := purchase(t, store, f, 1, karmaPricing)

	assert.Equal(t, int64(0), p.Int("paid_karma_per_product").OrElse(-1))
}

func TestInsertPurchase_ForbiddenAndMissingFields(t *testing.T) {
	store := newStore(t)
	f := seed(t, store)
	ctx := context.Background()

	tests := []struct {
		name    string
		fields  map[string]any
		wantErr error
		field   string
	}{
		{
			name:    "missing comment",
			fields:  map[string]any{"consumer_id": f.consumer, "product_id": f.product, "amount": 1},
			wantErr: shop.ErrFieldIsNone,
			field:   "comment",
		},
		{
			name: "server assigned timestamp",
			fields: map[string]any{"consumer_id": f.consumer, "product_id": f.product, "amount": 1,
				"comment": "", "timestamp": testNow},
			wantErr: shop.ErrForbiddenField,
			field:   "timestamp",
		},
		{
			name: "paid price",
			fields: map[string]any{"consumer_id": f.consumer, "product_id": f.product, "amount": 1,
				"comment": "", "paid_base_price_per_product": 1},
			wantErr: shop.ErrForbiddenField,
			field:   "paid_base_price_per_product",
		},
		{
			name:    "unknown consumer",
			fields:  map[string]any{"consumer_id": 99, "product_id": f.product, "amount": 1, "comment": ""},
			wantErr: shop.ErrForeignKeyNotExisting,
			field:   "consumer_id",
		},
		{
			name:    "unknown product",
			fields:  map[string]any{"consumer_id": f.consumer, "product_id": 99, "amount": 1, "comment": ""},
			wantErr: shop.ErrForeignKeyNotExisting,
			field:   "product_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.InsertPurchase(ctx, build(t, shop.NewPurchase, tt.fields), shop.Pricing{})
			require.ErrorIs(t, err, tt.wantErr)
			var fe *shop.FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.field, fe.Field)
		})
	}

	// Nothing was booked by the failed attempts
	assert.Equal(t, int64(5000), credit(t, store, f.consumer))
	assert.Equal(t, shop.Some(int64(10)), stock(t, store, f.product))
}

func TestRevokePurchase_RestoresEverything(t *testing.T) {
	// GIVEN: A karma-priced purchase
	store := newStore(t)
	f := seed(t, store)
	ctx := context.Background()

	_, err := store.InsertPriceCategory(ctx, build(t, shop.NewPriceCategory, map[string]any{
		"price_lower_bound": 100, "additional_percent": 20,
	}))
	require.NoError(t, err)

	before := departmentTotals(t, store, f.department)
	p := purchase(t, store, f, 3, karmaPricing)

	// WHEN: Revoking it
	updated, err := store.UpdatePurchase(ctx, revoke(t, shop.NewPurchase, id(t, p)))
	require.NoError(t, err)

	// THEN: Credit, stock and income are back at their previous values
	assert.Equal(t, []string{"revoked"}, updated)
	assert.Equal(t, int64(5000), credit(t, store, f.consumer))
	assert.Equal(t, shop.Some(int64(10)), stock(t, store, f.product))
	assert.Equal(t, before, departmentTotals(t, store, f.department))

	got, err := store.GetPurchase(ctx, id(t, p))
	require.NoError(t, err)
	assert.True(t, got.Bool("revoked").OrElse(false))
}

func TestRevokePurchase_OnlyOnce(t *testing.T) {
	store := newStore(t)
	f := seed(t, store)
	ctx := context.Background()

	p := purchase(t, store, f, 1, shop.Pricing{})
	_, err := store.UpdatePurchase(ctx, revoke(t, shop.NewPurchase, id(t, p)))
	require.NoError(t, err)

	_, err = store.UpdatePurchase(ctx, revoke(t, shop.NewPurchase, id(t, p)))
	assert.ErrorIs(t, err, shop.ErrCanOnlyBeRevokedOnce)

	_, err = store.UpdatePurchase(ctx, build(t, shop.NewPurchase, map[string]any{"id": id(t, p), "revoked": false}))
	assert.ErrorIs(t, err, shop.ErrRevokeIsFinal)

	// The second attempt did not reverse twice
	assert.Equal(t, int64(5000), credit(t, store, f.consumer))
	assert.Equal(t, shop.Some(int64(10)), stock(t, store, f.product))
}

func TestRevokePurchase_NotRevocable(t *testing.T) {
	store := newStore(t)
	f := seed(t, store)
	ctx := context.Background()

	_, err := store.UpdateProduct(ctx, build(t, shop.NewProduct, map[string]any{"id": f.product, "revocable": false}))
	require.NoError(t, err)
	p := purchase(t, store, f, 1, shop.Pricing{})

	_, err = store.UpdatePurchase(ctx, revoke(t, shop.NewPurchase, id(t, p)))
	assert.ErrorIs(t, err, shop.ErrNotRevocable)
	assert.Equal(t, int64(4700), credit(t, store, f.consumer))
}

func TestUpdatePurchase_OnlyRevokedAndComment(t *testing.T) {
	store := newStore(t)
	f := seed(t, store)
	ctx := context.Background()
	p := purchase(t, store, f, 1, shop.Pricing{})

	_, err := store.UpdatePurchase(ctx, build(t, shop.NewPurchase, map[string]any{"id": id(t, p), "amount": 5}))
	assert.ErrorIs(t, err, shop.ErrForbiddenField)

	updated, err := store.UpdatePurchase(ctx, build(t, shop.NewPurchase, map[string]any{"id": id(t, p), "comment": "late"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"comment"}, updated)

	// revoked=false on an active purchase changes nothing
	updated, err = store.UpdatePurchase(ctx, build(t, shop.NewPurchase, map[string]any{"id": id(t, p), "revoked": false}))
	require.NoError(t, err)
	assert.Empty(t, updated)

	_, err = store.UpdatePurchase(ctx, revoke(t, shop.NewPurchase, 99))
	assert.True(t, shop.IsNotFound(err))
}

func TestNonCountableProduct_KeepsNoStock(t *testing.T) {
	store := newStore(t)
	f := seed(t, store)
	ctx := context.Background()

	service, err := store.InsertProduct(ctx, build(t, shop.NewProduct, map[string]any{
		"name": "Printing", "price": 10, "department_id": f.department, "countable": false,
	}))
	require.NoError(t, err)

	p, err := store.InsertPurchase(ctx, build(t, shop.NewPurchase, map[string]any{
		"consumer_id": f.consumer, "product_id": id(t, service), "amount": 4, "comment": "",
	}), shop.Pricing{})
	require.NoError(t, err)
	assert.False(t, stock(t, store, id(t, service)).IsSet())

	_, err = store.UpdatePurchase(ctx, revoke(t, shop.NewPurchase, id(t, p)))
	require.NoError(t, err)
	assert.False(t, stock(t, store, id(t, service)).IsSet())
}

// =============================================================================
// CREDIT INVARIANT
// =============================================================================

func TestCredit_IsDerivedFromHistory(t *testing.T) {
	store := newStore(t)
	f := seed(t, store)
	ctx := context.Background()

	_, err := store.InsertPriceCategory(ctx, build(t, shop.NewPriceCategory, map[string]any{
		"price_lower_bound": 0, "additional_percent": 50,
	}))
	require.NoError(t, err)

	_, err = store.InsertDeposit(ctx, build(t, shop.NewDeposit, map[string]any{
		"consumer_id": f.consumer, "amount": 250, "comment": "top up",
	}))
	require.NoError(t, err)
	purchase(t, store, f, 1, shop.Pricing{})
	p2 := purchase(t, store, f, 2, karmaPricing)
	purchase(t, store, f, 3, karmaPricing)
	_, err = store.UpdatePurchase(ctx, revoke(t, shop.NewPurchase, id(t, p2)))
	require.NoError(t, err)

	deposits, err := store.GetConsumerDeposits(ctx, f.consumer)
	require.NoError(t, err)
	purchases, err := store.GetConsumerPurchases(ctx, f.consumer)
	require.NoError(t, err)
	require.Len(t, purchases, 3)

	var want int64
	for _, d := range deposits {
		want += d.Int("amount").OrElse(0)
	}
	for _, p := range purchases {
		if p.Bool("revoked").OrElse(false) {
			continue
		}
		want -= p.Int("amount").OrElse(0) *
			(p.Int("paid_base_price_per_product").OrElse(0) + p.Int("paid_karma_per_product").OrElse(0))
	}
	assert.Equal(t, want, credit(t, store, f.consumer))
}

// =============================================================================
// DEPOSITS AND PAYOFFS
// =============================================================================

func TestInsertDeposit_RaisesBank(t *testing.T) {
	store := newStore(t)
	f := seed(t, store)
	ctx := context.Background()

	d, err := store.InsertDeposit(ctx, build(t, shop.NewDeposit, map[string]any{
		"consumer_id": f.consumer, "amount": 700, "comment": "",
	}))
	require.NoError(t, err)

	assert.True(t, testNow.Equal(d.Time("timestamp").OrElse(time.Time{})))
	assert.Equal(t, int64(5700), bankCredit(t, store))
	assert.Equal(t, int64(5700), credit(t, store, f.consumer))

	_, err = store.InsertDeposit(ctx, build(t, shop.NewDeposit, map[string]any{
		"consumer_id": 42, "amount": 1, "comment": "",
	}))
	assert.ErrorIs(t, err, shop.ErrForeignKeyNotExisting)
}

func TestPayoff_RevokeLifecycle(t *testing.T) {
	// GIVEN: A payoff of 1200 from the department
	store := newStore(t)
	f := seed(t, store)
	ctx := context.Background()

	p, err := store.InsertPayoff(ctx, build(t, shop.NewPayoff, map[string]any{
		"department_id": f.department, "amount": 1200, "comment": "cleaning",
	}))
	require.NoError(t, err)
	assert.Equal(t, int64(5000-1200), bankCredit(t, store))
	assert.Equal(t, totals{expenses: 1200}, departmentTotals(t, store, f.department))

	// WHEN: revoked=false on an active payoff
	updated, err := store.UpdatePayoff(ctx, build(t, shop.NewPayoff, map[string]any{"id": id(t, p), "revoked": false}))

	// THEN: Nothing changes
	require.NoError(t, err)
	assert.Empty(t, updated)

	// WHEN: Revoking
	updated, err = store.UpdatePayoff(ctx, revoke(t, shop.NewPayoff, id(t, p)))
	require.NoError(t, err)
	assert.Equal(t, []string{"revoked"}, updated)
	assert.Equal(t, int64(5000), bankCredit(t, store))
	assert.Equal(t, totals{}, departmentTotals(t, store, f.department))

	// THEN: Revoking again and un-revoking both fail
	_, err = store.UpdatePayoff(ctx, revoke(t, shop.NewPayoff, id(t, p)))
	assert.ErrorIs(t, err, shop.ErrCanOnlyBeRevokedOnce)
	_, err = store.UpdatePayoff(ctx, build(t, shop.NewPayoff, map[string]any{"id": id(t, p), "revoked": false}))
	assert.ErrorIs(t, err, shop.ErrRevokeIsFinal)
	assert.Equal(t, int64(5000), bankCredit(t, store))
}

func TestPayoff_ForbiddenFields(t *testing.T) {
	store := newStore(t)
	f := seed(t, store)
	ctx := context.Background()

	_, err := store.InsertPayoff(ctx, build(t, shop.NewPayoff, map[string]any{
		"department_id": f.department, "amount": 1, "comment": "", "revoked": true,
	}))
	assert.ErrorIs(t, err, shop.ErrForbiddenField)

	p, err := store.InsertPayoff(ctx, build(t, shop.NewPayoff, map[string]any{
		"department_id": f.department, "amount": 1, "comment": "",
	}))
	require.NoError(t, err)

	_, err = store.UpdatePayoff(ctx, build(t, shop.NewPayoff, map[string]any{"id": id(t, p), "amount": 2}))
	assert.ErrorIs(t, err, shop.ErrForbiddenField)
}

// =============================================================================
// DEPARTMENT PURCHASES
// =============================================================================

func TestDepartmentPurchase_SpawnsPayoff(t *testing.T) {
	// GIVEN: A product with stock 10
	store := newStore(t)
	f := seed(t, store)
	ctx := context.Background()

	// WHEN: Restocking 5 units at 10 each
	dp, err := store.InsertDepartmentPurchase(ctx, build(t, shop.NewDepartmentPurchase, map[string]any{
		"product_id": f.product, "department_id": f.department, "admin_id": f.consumer,
		"amount": 5, "price_per_product": 10,
	}))
	require.NoError(t, err)

	// THEN: Stock rises by 5 and exactly one payoff of 50 is booked
	assert.Equal(t, shop.Some(int64(15)), stock(t, store, f.product))
	assert.Equal(t, totals{expenses: 50}, departmentTotals(t, store, f.department))

	payoffs, err := store.ListPayoffs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, payoffs, 1)
	payoff := payoffs[0]
	assert.Equal(t, int64(50), payoff.Int("amount").OrElse(-1))
	assert.Equal(t, "5x Coffee", payoff.Str("comment").OrElse(""))
	assert.Equal(t, shop.Some(id(t, dp)), payoff.Int("departmentpurchase_id"))

	// WHEN: Revoking the payoff
	_, err = store.UpdatePayoff(ctx, revoke(t, shop.NewPayoff, id(t, payoff)))
	require.NoError(t, err)

	// THEN: Stock and expenses are back
	assert.Equal(t, shop.Some(int64(10)), stock(t, store, f.product))
	assert.Equal(t, totals{}, departmentTotals(t, store, f.department))
	assert.Equal(t, int64(5000), bankCredit(t, store))
}

func TestDepartmentPurchase_MissingFields(t *testing.T) {
	store := newStore(t)
	f := seed(t, store)

	_, err := store.InsertDepartmentPurchase(context.Background(), build(t, shop.NewDepartmentPurchase, map[string]any{
		"product_id": f.product, "department_id": f.department, "amount": 5, "price_per_product": 10,
	}))
	var fe *shop.FieldError
	require.ErrorAs(t, err, &fe)
	assert.ErrorIs(t, err, shop.ErrFieldIsNone)
	assert.Equal(t, "admin_id", fe.Field)
}
