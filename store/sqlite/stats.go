package sqlite

import (
	"context"

	"github.com/warp/campus-shop/shop"
)

// GetDepartmentStatistics aggregates the non-revoked purchases of the
// department's products: the best-selling products by units and the
// number of purchases per hour of day (UTC).
func (s *Store) GetDepartmentStatistics(ctx context.Context, departmentID int64) (*shop.DepartmentStatistics, error) {
	return read(s, func(q querier) (*shop.DepartmentStatistics, error) {
		department, err := getDepartment(ctx, q, departmentID)
		if err != nil {
			return nil, err
		}

		top, err := queryAll(ctx, q, `
			SELECT p.id, p.name, SUM(pu.amount) AS total
			FROM purchases pu
			JOIN products p ON p.id = pu.product_id
			WHERE p.department_id = ? AND pu.revoked = 0
			GROUP BY p.id, p.name
			ORDER BY total DESC, p.id ASC
			LIMIT ?`,
			[]any{departmentID, shop.MaxTopProducts},
			func(sc scanner) (shop.ProductSales, error) {
				var ps shop.ProductSales
				err := sc.Scan(&ps.ProductID, &ps.Name, &ps.Amount)
				return ps, err
			})
		if err != nil {
			return nil, err
		}

		type bucket struct{ hour, count int64 }
		hours, err := queryAll(ctx, q, `
			SELECT CAST(strftime('%H', pu.timestamp) AS INTEGER) AS hour, COUNT(*)
			FROM purchases pu
			JOIN products p ON p.id = pu.product_id
			WHERE p.department_id = ? AND pu.revoked = 0
			GROUP BY hour`,
			[]any{departmentID},
			func(sc scanner) (bucket, error) {
				var b bucket
				err := sc.Scan(&b.hour, &b.count)
				return b, err
			})
		if err != nil {
			return nil, err
		}

		stats := &shop.DepartmentStatistics{Department: department, TopProducts: top}
		for _, b := range hours {
			if b.hour >= 0 && b.hour < 24 {
				stats.PurchaseTimes[b.hour] = b.count
			}
		}
		return stats, nil
	})
}
