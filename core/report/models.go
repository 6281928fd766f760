package report

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/bursar/core"
	"github.com/trezcool/bursar/core/expense"
	"github.com/trezcool/bursar/core/fee"
	"github.com/trezcool/bursar/core/ledger"
)

// Bucket groups fee types into report income lines.
type Bucket string

// Income buckets
const (
	BucketTuition   Bucket = "tuition"
	BucketTransport Bucket = "transport"
	BucketFood      Bucket = "food"
	BucketOther     Bucket = "other" // library, lab & other fees
)

var Buckets = []Bucket{BucketTuition, BucketTransport, BucketFood, BucketOther}

func BucketOf(typ fee.Type) Bucket {
	switch typ {
	case fee.TypeTuition:
		return BucketTuition
	case fee.TypeTransport:
		return BucketTransport
	case fee.TypeFood:
		return BucketFood
	}
	return BucketOther
}

// FinancialReport summarises income and expenses over whole days [StartDate, EndDate].
// Every bucket and every expense category is present, zero when nothing matched.
type FinancialReport struct {
	StartDate     core.Date                            `json:"start_date"`
	EndDate       core.Date                            `json:"end_date"`
	Income        map[Bucket]decimal.Decimal           `json:"income"`
	Expenses      map[expense.Category]decimal.Decimal `json:"expenses"`
	TotalIncome   decimal.Decimal                      `json:"total_income"`
	TotalExpenses decimal.Decimal                      `json:"total_expenses"`
	NetProfit     decimal.Decimal                      `json:"net_profit"`
}

type MonthlyAmount struct {
	Month  string          `json:"month"` // e.g. Jan 2025
	Amount decimal.Decimal `json:"amount"`
}

// DashboardSummary is the all-time overview of the school finances.
type DashboardSummary struct {
	TotalStudents       int    `json:"total_students"`
	CurrentAcademicYear string `json:"current_academic_year"`

	TotalFeesDue       decimal.Decimal `json:"total_fees_due"`
	TotalFeesCollected decimal.Decimal `json:"total_fees_collected"`
	PendingFees        decimal.Decimal `json:"pending_fees"`
	OverdueFees        decimal.Decimal `json:"overdue_fees"`

	TransportRevenue  decimal.Decimal `json:"transport_revenue"`
	TransportExpenses decimal.Decimal `json:"transport_expenses"`
	TransportNet      decimal.Decimal `json:"transport_net"`
	FoodRevenue       decimal.Decimal `json:"food_revenue"`
	FoodExpenses      decimal.Decimal `json:"food_expenses"`
	FoodNet           decimal.Decimal `json:"food_net"`

	TotalExpenses decimal.Decimal `json:"total_expenses"`
	NetEarnings   decimal.Decimal `json:"net_earnings"`

	MonthlyRevenue     decimal.Decimal     `json:"monthly_revenue"`
	RecentPayments     []ledger.Collection `json:"recent_payments"`
	MonthlyCollections []MonthlyAmount     `json:"monthly_collections"`

	GeneratedAt time.Time `json:"generated_at"`
}
