package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/warp/campus-shop/shop"
	"github.com/warp/campus-shop/store/sqlite"
	"golang.org/x/crypto/bcrypt"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var testNow = time.Date(2026, time.March, 10, 14, 30, 0, 0, time.UTC)

// newTestStore opens an in-memory store whose clock reads *now.
func newTestStore(t *testing.T, now *time.Time) *sqlite.Store {
	store, err := sqlite.New(":memory:",
		sqlite.WithClock(func() time.Time { return *now }),
		sqlite.WithPasswordCost(bcrypt.MinCost),
	)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newStore(t *testing.T) *sqlite.Store {
	now := testNow
	return newTestStore(t, &now)
}

func build[T shop.Record](t *testing.T, newFn func() T, m map[string]any) T {
	t.Helper()
	e, err := shop.Build(newFn, m)
	require.NoError(t, err)
	return e
}

func id(t *testing.T, r shop.Record) int64 {
	t.Helper()
	v, ok := r.Int("id").Get()
	require.True(t, ok, "record has no id")
	return v
}

// fixture is a department with one countable product and a consumer who
// has deposited 5000.
type fixture struct {
	department int64
	product    int64
	consumer   int64
}

func seed(t *testing.T, store *sqlite.Store) fixture {
	t.Helper()
	ctx := context.Background()

	dept, err := store.InsertDepartment(ctx, build(t, shop.NewDepartment, map[string]any{
		"name": "Drinks", "budget": 20000,
	}))
	require.NoError(t, err)

	product, err := store.InsertProduct(ctx, build(t, shop.NewProduct, map[string]any{
		"name": "Coffee", "price": 300, "department_id": id(t, dept), "stock": 10,
	}))
	require.NoError(t, err)

	consumer, err := store.InsertConsumer(ctx, build(t, shop.NewConsumer, map[string]any{
		"name": "Alice",
	}))
	require.NoError(t, err)

	_, err = store.InsertDeposit(ctx, build(t, shop.NewDeposit, map[string]any{
		"consumer_id": id(t, consumer), "amount": 5000, "comment": "cash",
	}))
	require.NoError(t, err)

	return fixture{department: id(t, dept), product: id(t, product), consumer: id(t, consumer)}
}

func credit(t *testing.T, store *sqlite.Store, consumerID int64) int64 {
	t.Helper()
	c, err := store.GetConsumer(context.Background(), consumerID)
	require.NoError(t, err)
	return c.Int("credit").OrElse(-1)
}

func stock(t *testing.T, store *sqlite.Store, productID int64) shop.Opt[int64] {
	t.Helper()
	p, err := store.GetProduct(context.Background(), productID)
	require.NoError(t, err)
	return p.Int("stock")
}

type totals struct{ base, karma, expenses int64 }

func departmentTotals(t *testing.T, store *sqlite.Store, departmentID int64) totals {
	t.Helper()
	d, err := store.GetDepartment(context.Background(), departmentID)
	require.NoError(t, err)
	return totals{
		base:     d.Int("income_base").OrElse(-1),
		karma:    d.Int("income_karma").OrElse(-1),
		expenses: d.Int("expenses").OrElse(-1),
	}
}

func bankCredit(t *testing.T, store *sqlite.Store) int64 {
	t.Helper()
	b, err := store.GetBank(context.Background(), 1)
	require.NoError(t, err)
	return b.Int("credit").OrElse(-1)
}

func purchase(t *testing.T, store *sqlite.Store, f fixture, amount int64, pricing shop.Pricing) *shop.Purchase {
	t.Helper()
	p, err := store.InsertPurchase(context.Background(), build(t, shop.NewPurchase, map[string]any{
		"consumer_id": f.consumer, "product_id": f.product, "amount": amount, "comment": "",
	}), pricing)
	require.NoError(t, err)
	return p
}

func revoke[T shop.Record](t *testing.T, newFn func() T, rowID int64) T {
	t.Helper()
	return build(t, newFn, map[string]any{"id": rowID, "revoked": true})
}
