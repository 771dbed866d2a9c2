package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/warp/campus-shop/shop"
	"golang.org/x/crypto/bcrypt"
)

var consumerColumns = []string{"name", "active", "karma", "email", "password", "studentnumber"}

// Credit is summed from the ledger rows on every read.
const consumerSelect = `
	SELECT c.id, c.name, c.active, c.karma, c.email, c.studentnumber,
		(SELECT COALESCE(SUM(d.amount), 0) FROM deposits d WHERE d.consumer_id = c.id)
		- (SELECT COALESCE(SUM(p.amount * (p.paid_base_price_per_product + p.paid_karma_per_product)), 0)
			FROM purchases p WHERE p.consumer_id = c.id AND p.revoked = 0),
		EXISTS (SELECT 1 FROM adminroles a WHERE a.consumer_id = c.id),
		c.email IS NOT NULL AND c.password IS NOT NULL
	FROM consumers c`

func scanConsumer(sc scanner) (*shop.Consumer, error) {
	var (
		id, karma, credit        int64
		name                     string
		active, isAdmin, hasCred bool
		email                    sql.NullString
		studentnumber            sql.NullInt64
	)
	if err := sc.Scan(&id, &name, &active, &karma, &email, &studentnumber, &credit, &isAdmin, &hasCred); err != nil {
		return nil, err
	}
	c := shop.NewConsumer()
	return c, shop.Assign(c,
		"id", id,
		"name", name,
		"active", active,
		"karma", karma,
		"email", nullString(email),
		"studentnumber", nullInt(studentnumber),
		"credit", credit,
		"isAdmin", isAdmin,
		"hasCredentials", hasCred,
	)
}

func getConsumer(ctx context.Context, q querier, id int64) (*shop.Consumer, error) {
	row := q.QueryRowContext(ctx, consumerSelect+" WHERE c.id = ?", id)
	return scanOne(row, shop.TableConsumers, id, scanConsumer)
}

// InsertConsumer creates a consumer. Active defaults to true and karma to 0.
// A password is stored as a bcrypt hash.
func (s *Store) InsertConsumer(ctx context.Context, c *shop.Consumer) (*shop.Consumer, error) {
	c = shop.Clone(shop.NewConsumer, c)
	if err := shop.AssertMandatory(c, "name"); err != nil {
		return nil, err
	}
	if err := shop.AssertForbidden(c, "id", "credit", "isAdmin", "hasCredentials"); err != nil {
		return nil, err
	}
	if err := setDefaults(c, "active", true, "karma", int64(0)); err != nil {
		return nil, err
	}

	return mutate(ctx, s, func(q querier) (*shop.Consumer, error) {
		if err := checkUnique(ctx, q, c, 0, "name", "email", "studentnumber"); err != nil {
			return nil, err
		}
		if err := s.hashPassword(c); err != nil {
			return nil, err
		}
		id, err := insertRow(ctx, q, c, consumerColumns)
		if err != nil {
			return nil, err
		}
		return getConsumer(ctx, q, id)
	})
}

// UpdateConsumer applies the set fields of patch to the consumer patch.id.
// Credit and the derived flags cannot be written.
func (s *Store) UpdateConsumer(ctx context.Context, patch *shop.Consumer) ([]string, error) {
	patch = shop.Clone(shop.NewConsumer, patch)
	if err := shop.AssertMandatory(patch, "id"); err != nil {
		return nil, err
	}
	if err := shop.AssertForbidden(patch, "credit", "isAdmin", "hasCredentials"); err != nil {
		return nil, err
	}
	id, _ := patch.Int("id").Get()

	return mutate(ctx, s, func(q querier) ([]string, error) {
		current, err := getConsumer(ctx, q, id)
		if err != nil {
			return nil, err
		}
		if err := checkUnique(ctx, q, patch, id, "name", "email", "studentnumber"); err != nil {
			return nil, err
		}
		if plain, ok := patch.Str("password").Get(); ok {
			unchanged, err := passwordMatches(ctx, q, id, plain)
			if err != nil {
				return nil, err
			}
			if unchanged {
				patch.Unset("password")
			} else if err := s.hashPassword(patch); err != nil {
				return nil, err
			}
		}
		return s.applyUpdate(ctx, q, id, current, patch)
	})
}

func (s *Store) hashPassword(c *shop.Consumer) error {
	plain, ok := c.Str("password").Get()
	if !ok {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), s.passwordCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return c.Set("password", string(hash))
}

func passwordMatches(ctx context.Context, q querier, id int64, plain string) (bool, error) {
	var hash sql.NullString
	if err := q.QueryRowContext(ctx, "SELECT password FROM consumers WHERE id = ?", id).Scan(&hash); err != nil {
		return false, fmt.Errorf("failed to load password: %w", err)
	}
	if !hash.Valid {
		return false, nil
	}
	return bcrypt.CompareHashAndPassword([]byte(hash.String), []byte(plain)) == nil, nil
}

// GetConsumer retrieves a consumer with derived credit and flags.
func (s *Store) GetConsumer(ctx context.Context, id int64) (*shop.Consumer, error) {
	return read(s, func(q querier) (*shop.Consumer, error) {
		return getConsumer(ctx, q, id)
	})
}

// ListConsumers returns consumers with their derived credit.
func (s *Store) ListConsumers(ctx context.Context, limit int) ([]*shop.Consumer, error) {
	return read(s, func(q querier) ([]*shop.Consumer, error) {
		order, args := orderBy("c.id", limit)
		return queryAll(ctx, q, consumerSelect+order, args, scanConsumer)
	})
}

// GetConsumerPurchases lists every purchase of a consumer, revoked ones
// included, oldest first.
func (s *Store) GetConsumerPurchases(ctx context.Context, consumerID int64) ([]*shop.Purchase, error) {
	return read(s, func(q querier) ([]*shop.Purchase, error) {
		if err := mustExist(ctx, q, shop.TableConsumers, consumerID); err != nil {
			return nil, err
		}
		return queryAll(ctx, q, purchaseSelect+" WHERE consumer_id = ? ORDER BY id ASC",
			[]any{consumerID}, scanPurchase)
	})
}

// GetConsumerDeposits lists every deposit of a consumer, oldest first.
func (s *Store) GetConsumerDeposits(ctx context.Context, consumerID int64) ([]*shop.Deposit, error) {
	return read(s, func(q querier) ([]*shop.Deposit, error) {
		if err := mustExist(ctx, q, shop.TableConsumers, consumerID); err != nil {
			return nil, err
		}
		return queryAll(ctx, q, depositSelect+" WHERE consumer_id = ? ORDER BY id ASC",
			[]any{consumerID}, scanDeposit)
	})
}

// =============================================================================
// ADMIN ROLES
// =============================================================================

// SetAdmin grants or withdraws the admin role of a consumer for a
// department. Granting requires email and password. Granting an existing
// role and withdrawing a missing one do nothing.
func (s *Store) SetAdmin(ctx context.Context, consumerID, departmentID int64, admin bool) error {
	return s.withTx(ctx, func(q querier) error {
		consumer, err := getConsumer(ctx, q, consumerID)
		if err != nil {
			return err
		}
		if err := mustExist(ctx, q, shop.TableDepartments, departmentID); err != nil {
			return err
		}

		var found bool
		err = q.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT 1 FROM adminroles WHERE consumer_id = ? AND department_id = ?)",
			consumerID, departmentID).Scan(&found)
		if err != nil {
			return fmt.Errorf("failed to look up admin role: %w", err)
		}

		switch {
		case admin && !found:
			if !consumer.Bool("hasCredentials").OrElse(false) {
				return shop.ErrConsumerNeedsCredentials
			}
			_, err = q.ExecContext(ctx,
				"INSERT INTO adminroles (consumer_id, department_id, timestamp) VALUES (?, ?, ?)",
				consumerID, departmentID, formatTime(s.timestamp()))
		case !admin && found:
			_, err = q.ExecContext(ctx,
				"DELETE FROM adminroles WHERE consumer_id = ? AND department_id = ?",
				consumerID, departmentID)
		}
		if err != nil {
			return fmt.Errorf("failed to set admin role: %w", err)
		}
		return nil
	})
}

func scanAdminRole(sc scanner) (*shop.AdminRole, error) {
	var (
		consumerID, departmentID int64
		when                     string
	)
	if err := sc.Scan(&consumerID, &departmentID, &when); err != nil {
		return nil, err
	}
	ts, err := parseTime(when)
	if err != nil {
		return nil, err
	}
	r := shop.NewAdminRole()
	return r, shop.Assign(r,
		"consumer_id", consumerID,
		"department_id", departmentID,
		"timestamp", ts,
	)
}

// GetAdminroles lists the admin roles of a consumer by department.
func (s *Store) GetAdminroles(ctx context.Context, consumerID int64) ([]*shop.AdminRole, error) {
	return read(s, func(q querier) ([]*shop.AdminRole, error) {
		if err := mustExist(ctx, q, shop.TableConsumers, consumerID); err != nil {
			return nil, err
		}
		return queryAll(ctx, q,
			"SELECT consumer_id, department_id, timestamp FROM adminroles WHERE consumer_id = ? ORDER BY department_id ASC",
			[]any{consumerID}, scanAdminRole)
	})
}
