package shop

import "maps"

// Table names. They double as the table_name column of the audit log.
const (
	TableConsumers           = "consumers"
	TableProducts            = "products"
	TableDepartments         = "departments"
	TablePurchases           = "purchases"
	TableDeposits            = "deposits"
	TablePayoffs             = "payoffs"
	TableDepartmentPurchases = "departmentpurchases"
	TablePriceCategories     = "pricecategories"
	TableWorkactivities      = "workactivities"
	TableActivities          = "activities"
	TableActivityFeedbacks   = "activityfeedbacks"
	TableParticipations      = "participations"
	TableAdminRoles          = "adminroles"
	TableBanks               = "banks"
	TableLogs                = "logs"
	TableStockHistory        = "stockhistory"
)

var (
	idField        = Field("id", KindInt, MinValue(1))
	timestampField = Field("timestamp", KindTime)
	commentField   = Field("comment", KindString, MaxLength(64))
	nameField      = Field("name", KindString, MinLength(4), MaxLength(64))
)

func ref(name string) FieldSpec {
	return Field(name, KindInt, MinValue(1))
}

var (
	ConsumerSchema = NewSchema(TableConsumers,
		idField,
		nameField,
		Field("active", KindBool),
		Field("karma", KindInt, MinValue(-10), MaxValue(10)),
		OptionalField("email", KindString, MinLength(3), MaxLength(256)),
		OptionalField("password", KindString, MinLength(6), MaxLength(64)),
		OptionalField("studentnumber", KindInt, MinValue(0)),
		Field("credit", KindInt),
		Field("isAdmin", KindBool),
		Field("hasCredentials", KindBool),
	)

	ProductSchema = NewSchema(TableProducts,
		idField,
		nameField,
		Field("price", KindInt),
		OptionalField("barcode", KindString, MinLength(1), MaxLength(24)),
		Field("active", KindBool),
		Field("countable", KindBool),
		Field("revocable", KindBool),
		OptionalField("stock", KindInt),
		ref("department_id"),
		Field("creation_date", KindTime),
	)

	DepartmentSchema = NewSchema(TableDepartments,
		idField,
		nameField,
		Field("budget", KindInt),
		Field("income_base", KindInt),
		Field("income_karma", KindInt),
		Field("expenses", KindInt),
	)

	PurchaseSchema = NewSchema(TablePurchases,
		idField,
		ref("consumer_id"),
		ref("product_id"),
		Field("amount", KindInt, MinValue(1)),
		commentField,
		timestampField,
		Field("revoked", KindBool),
		Field("paid_base_price_per_product", KindInt),
		Field("paid_karma_per_product", KindInt),
		Field("price", KindInt),
	)

	DepositSchema = NewSchema(TableDeposits,
		idField,
		ref("consumer_id"),
		Field("amount", KindInt),
		commentField,
		timestampField,
	)

	PayoffSchema = NewSchema(TablePayoffs,
		idField,
		ref("department_id"),
		OptionalField("departmentpurchase_id", KindInt, MinValue(1)),
		Field("amount", KindInt),
		Field("comment", KindString, MaxLength(128)),
		Field("revoked", KindBool),
		timestampField,
	)

	DepartmentPurchaseSchema = NewSchema(TableDepartmentPurchases,
		idField,
		timestampField,
		ref("product_id"),
		ref("department_id"),
		ref("admin_id"),
		Field("amount", KindInt, MinValue(1)),
		Field("price_per_product", KindInt),
	)

	BankSchema = NewSchema(TableBanks,
		idField,
		Field("name", KindString, MaxLength(64)),
		Field("credit", KindInt),
	)

	AdminRoleSchema = NewSchema(TableAdminRoles,
		ref("consumer_id"),
		ref("department_id"),
		timestampField,
	)

	LogSchema = NewSchema(TableLogs,
		idField,
		Field("table_name", KindString),
		Field("updated_id", KindInt),
		Field("data_inserted", KindString),
		timestampField,
	)

	PriceCategorySchema = NewSchema(TablePriceCategories,
		idField,
		Field("price_lower_bound", KindInt),
		Field("additional_percent", KindInt, MinValue(0)),
	)

	WorkactivitySchema = NewSchema(TableWorkactivities,
		idField,
		nameField,
	)

	ActivitySchema = NewSchema(TableActivities,
		idField,
		nameField,
		Field("date_time", KindTime),
		Field("deadline", KindTime),
		ref("created_by"),
		Field("creation_date", KindTime),
	)

	ActivityFeedbackSchema = NewSchema(TableActivityFeedbacks,
		idField,
		timestampField,
		ref("consumer_id"),
		ref("activity_id"),
		Field("feedback", KindBool),
	)

	ParticipationSchema = NewSchema(TableParticipations,
		idField,
		timestampField,
		ref("workactivity_id"),
		ref("consumer_id"),
		Field("duration", KindInt, MinValue(1), MaxValue(600)),
	)

	StockHistorySchema = NewSchema(TableStockHistory,
		idField,
		ref("product_id"),
		Field("new_stock", KindInt),
		timestampField,
	)
)

type (
	Consumer           struct{ Entity }
	Product            struct{ Entity }
	Department         struct{ Entity }
	Purchase           struct{ Entity }
	Deposit            struct{ Entity }
	Payoff             struct{ Entity }
	DepartmentPurchase struct{ Entity }
	Bank               struct{ Entity }
	AdminRole          struct{ Entity }
	Log                struct{ Entity }
	PriceCategory      struct{ Entity }
	Workactivity       struct{ Entity }
	Activity           struct{ Entity }
	ActivityFeedback   struct{ Entity }
	Participation      struct{ Entity }
	StockHistory       struct{ Entity }
)

func NewConsumer() *Consumer                     { return &Consumer{newEntity(ConsumerSchema)} }
func NewProduct() *Product                       { return &Product{newEntity(ProductSchema)} }
func NewDepartment() *Department                 { return &Department{newEntity(DepartmentSchema)} }
func NewPurchase() *Purchase                     { return &Purchase{newEntity(PurchaseSchema)} }
func NewDeposit() *Deposit                       { return &Deposit{newEntity(DepositSchema)} }
func NewPayoff() *Payoff                         { return &Payoff{newEntity(PayoffSchema)} }
func NewDepartmentPurchase() *DepartmentPurchase { return &DepartmentPurchase{newEntity(DepartmentPurchaseSchema)} }
func NewBank() *Bank                             { return &Bank{newEntity(BankSchema)} }
func NewAdminRole() *AdminRole                   { return &AdminRole{newEntity(AdminRoleSchema)} }
func NewLog() *Log                               { return &Log{newEntity(LogSchema)} }
func NewPriceCategory() *PriceCategory           { return &PriceCategory{newEntity(PriceCategorySchema)} }
func NewWorkactivity() *Workactivity             { return &Workactivity{newEntity(WorkactivitySchema)} }
func NewActivity() *Activity                     { return &Activity{newEntity(ActivitySchema)} }
func NewActivityFeedback() *ActivityFeedback     { return &ActivityFeedback{newEntity(ActivityFeedbackSchema)} }
func NewParticipation() *Participation           { return &Participation{newEntity(ParticipationSchema)} }
func NewStockHistory() *StockHistory             { return &StockHistory{newEntity(StockHistorySchema)} }

// Build creates an entity with newFn and fills it from m.
func Build[T Record](newFn func() T, m map[string]any) (T, error) {
	e := newFn()
	return e, e.Fill(m)
}

// Clone returns a new entity created with newFn that holds the field
// values of r. Values were validated when r was filled and are copied as is.
func Clone[T Record](newFn func() T, r T) T {
	c := newFn()
	maps.Copy(c.entity().values, r.entity().values)
	return c
}

// Assign sets name/value pairs in order and stops at the first error.
// It is the building block of the per-table row mappings.
func Assign(r Record, pairs ...any) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		name, _ := pairs[i].(string)
		if err := r.Set(name, pairs[i+1]); err != nil {
			return err
		}
	}
	return nil
}
