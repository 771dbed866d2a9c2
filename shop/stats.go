package shop

// ProductSales is the number of units of one product sold by a department.
type ProductSales struct {
	ProductID int64  `json:"id"`
	Name      string `json:"name"`
	Amount    int64  `json:"amount"`
}

// DepartmentStatistics aggregates the non-revoked purchases of a
// department's products. PurchaseTimes counts purchases per hour of day.
type DepartmentStatistics struct {
	Department    *Department    `json:"department"`
	TopProducts   []ProductSales `json:"top_products"`
	PurchaseTimes [24]int64      `json:"purchase_times"`
}

// MaxTopProducts caps the top product list.
const MaxTopProducts = 10
