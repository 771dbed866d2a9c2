package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/campus-shop/shop"
)

func TestList_OrderDependsOnLimit(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	for _, name := range []string{"Anton", "Berta", "Caesar"} {
		_, err := store.InsertConsumer(ctx, build(t, shop.NewConsumer, map[string]any{"name": name}))
		require.NoError(t, err)
	}

	names := func(cs []*shop.Consumer) []string {
		var out []string
		for _, c := range cs {
			out = append(out, c.Str("name").OrElse(""))
		}
		return out
	}

	all, err := store.ListConsumers(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Anton", "Berta", "Caesar"}, names(all))

	latest, err := store.ListConsumers(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Caesar", "Berta"}, names(latest))
}

func TestGet_NotFound(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	_, err := store.GetConsumer(ctx, 1)
	assert.True(t, shop.IsNotFound(err))
	_, err = store.GetPurchase(ctx, 1)
	assert.True(t, shop.IsNotFound(err))
	_, err = store.GetBank(ctx, 2)
	assert.True(t, shop.IsNotFound(err))

	var nf *shop.NotFoundError
	_, err = store.GetProduct(ctx, 5)
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, shop.TableProducts, nf.Table)
	assert.Equal(t, int64(5), nf.ID)
}

func TestListBanks_SingleRow(t *testing.T) {
	store := newStore(t)

	banks, err := store.ListBanks(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, banks, 1)
	assert.Equal(t, int64(0), banks[0].Int("credit").OrElse(-1))
}

func TestLogs_OneRowPerChangedField(t *testing.T) {
	store := newStore(t)
	f := seed(t, store)
	ctx := context.Background()

	_, err := store.UpdateConsumer(ctx, build(t, shop.NewConsumer, map[string]any{
		"id": f.consumer, "name": "Alicia", "karma": 3, "active": true, "password": "hunter22",
	}))
	require.NoError(t, err)

	logs, err := store.ListLogs(ctx, 0)
	require.NoError(t, err)

	var entries []string
	for _, l := range logs {
		assert.Equal(t, shop.TableConsumers, l.Str("table_name").OrElse(""))
		assert.Equal(t, shop.Some(f.consumer), l.Int("updated_id"))
		entries = append(entries, l.Str("data_inserted").OrElse(""))
	}
	assert.Equal(t, []string{"name=Alicia", "karma=3", "password=***"}, entries)

	// Nothing changed, nothing logged
	_, err = store.UpdateConsumer(ctx, build(t, shop.NewConsumer, map[string]any{"id": f.consumer, "karma": 3}))
	require.NoError(t, err)
	logs, err = store.ListLogs(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, logs, 3)
}

func TestStockHistory(t *testing.T) {
	store := newStore(t)
	f := seed(t, store)
	ctx := context.Background()

	purchase(t, store, f, 4, shop.Pricing{})
	_, err := store.UpdateProduct(ctx, build(t, shop.NewProduct, map[string]any{"id": f.product, "stock": 20}))
	require.NoError(t, err)

	history, err := store.GetStockHistory(ctx, f.product)
	require.NoError(t, err)

	var levels []int64
	for _, h := range history {
		levels = append(levels, h.Int("new_stock").OrElse(-1))
	}
	assert.Equal(t, []int64{10, 6, 20}, levels)
}

func TestDepartmentStatistics(t *testing.T) {
	// GIVEN: Two products of one department with purchases, one revoked
	store := newStore(t)
	f := seed(t, store)
	ctx := context.Background()

	tea, err := store.InsertProduct(ctx, build(t, shop.NewProduct, map[string]any{
		"name": "Tea bag", "price": 50, "department_id": f.department, "stock": 100,
	}))
	require.NoError(t, err)

	purchase(t, store, f, 2, shop.Pricing{})
	p := purchase(t, store, f, 1, shop.Pricing{})
	_, err = store.UpdatePurchase(ctx, revoke(t, shop.NewPurchase, id(t, p)))
	require.NoError(t, err)
	_, err = store.InsertPurchase(ctx, build(t, shop.NewPurchase, map[string]any{
		"consumer_id": f.consumer, "product_id": id(t, tea), "amount": 5, "comment": "",
	}), shop.Pricing{})
	require.NoError(t, err)

	// WHEN: Aggregating
	stats, err := store.GetDepartmentStatistics(ctx, f.department)
	require.NoError(t, err)

	// THEN: Revoked purchases are left out
	assert.Equal(t, []shop.ProductSales{
		{ProductID: id(t, tea), Name: "Tea bag", Amount: 5},
		{ProductID: f.product, Name: "Coffee", Amount: 2},
	}, stats.TopProducts)

	var want [24]int64
	want[testNow.Hour()] = 2
	assert.Equal(t, want, stats.PurchaseTimes)

	_, err = store.GetDepartmentStatistics(ctx, 99)
	assert.True(t, shop.IsNotFound(err))
}
