package sqlite

import (
	"context"
	"fmt"

	"github.com/warp/campus-shop/shop"
)

var depositColumns = []string{"consumer_id", "amount", "comment", "timestamp"}

const depositSelect = "SELECT id, consumer_id, amount, comment, timestamp FROM deposits"

func scanDeposit(sc scanner) (*shop.Deposit, error) {
	var (
		id, consumerID, amount int64
		comment, when          string
	)
	if err := sc.Scan(&id, &consumerID, &amount, &comment, &when); err != nil {
		return nil, err
	}
	ts, err := parseTime(when)
	if err != nil {
		return nil, err
	}
	d := shop.NewDeposit()
	return d, shop.Assign(d,
		"id", id,
		"consumer_id", consumerID,
		"amount", amount,
		"comment", comment,
		"timestamp", ts,
	)
}

func getDeposit(ctx context.Context, q querier, id int64) (*shop.Deposit, error) {
	row := q.QueryRowContext(ctx, depositSelect+" WHERE id = ?", id)
	return scanOne(row, shop.TableDeposits, id, scanDeposit)
}

// InsertDeposit credits a consumer. The cash goes to the bank.
func (s *Store) InsertDeposit(ctx context.Context, d *shop.Deposit) (*shop.Deposit, error) {
	d = shop.Clone(shop.NewDeposit, d)
	if err := shop.AssertMandatory(d, "consumer_id", "amount", "comment"); err != nil {
		return nil, err
	}
	if err := shop.AssertForbidden(d, "id", "timestamp"); err != nil {
		return nil, err
	}

	return mutate(ctx, s, func(q querier) (*shop.Deposit, error) {
		if err := checkReferences(ctx, q, d, reference{"consumer_id", shop.TableConsumers}); err != nil {
			return nil, err
		}
		if err := d.Set("timestamp", s.timestamp()); err != nil {
			return nil, err
		}
		id, err := insertRow(ctx, q, d, depositColumns)
		if err != nil {
			return nil, err
		}
		amount, _ := d.Int("amount").Get()
		if err := adjustBank(ctx, q, amount); err != nil {
			return nil, err
		}
		return getDeposit(ctx, q, id)
	})
}

// GetDeposit retrieves a deposit by ID.
func (s *Store) GetDeposit(ctx context.Context, id int64) (*shop.Deposit, error) {
	return read(s, func(q querier) (*shop.Deposit, error) {
		return getDeposit(ctx, q, id)
	})
}

// ListDeposits returns deposits, newest first when limit is set.
func (s *Store) ListDeposits(ctx context.Context, limit int) ([]*shop.Deposit, error) {
	return read(s, func(q querier) ([]*shop.Deposit, error) {
		order, args := orderBy("id", limit)
		return queryAll(ctx, q, depositSelect+order, args, scanDeposit)
	})
}

// =============================================================================
// BANK
// =============================================================================

const bankSelect = "SELECT id, name, credit FROM banks"

func scanBank(sc scanner) (*shop.Bank, error) {
	var (
		id, credit int64
		name       string
	)
	if err := sc.Scan(&id, &name, &credit); err != nil {
		return nil, err
	}
	b := shop.NewBank()
	return b, shop.Assign(b, "id", id, "name", name, "credit", credit)
}

// adjustBank moves the credit of the shop's bank row, which mirrors the
// cash flow: deposits raise it, payoffs lower it.
func adjustBank(ctx context.Context, q querier, delta int64) error {
	if _, err := q.ExecContext(ctx, "UPDATE banks SET credit = credit + ? WHERE id = ?", delta, bankID); err != nil {
		return fmt.Errorf("failed to update bank: %w", err)
	}
	return nil
}

// GetBank retrieves a bank by ID.
func (s *Store) GetBank(ctx context.Context, id int64) (*shop.Bank, error) {
	return read(s, func(q querier) (*shop.Bank, error) {
		row := q.QueryRowContext(ctx, bankSelect+" WHERE id = ?", id)
		return scanOne(row, shop.TableBanks, id, scanBank)
	})
}

// ListBanks returns banks, newest first when limit is set.
func (s *Store) ListBanks(ctx context.Context, limit int) ([]*shop.Bank, error) {
	return read(s, func(q querier) ([]*shop.Bank, error) {
		order, args := orderBy("id", limit)
		return queryAll(ctx, q, bankSelect+order, args, scanBank)
	})
}
