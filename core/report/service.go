// Package report aggregates the fee ledger and the expense log into financial reports.
// It only reads; nothing here mutates the ledger.
package report

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/bursar/core"
	"github.com/trezcool/bursar/core/academicyear"
	"github.com/trezcool/bursar/core/expense"
	"github.com/trezcool/bursar/core/fee"
	"github.com/trezcool/bursar/core/ledger"
	"github.com/trezcool/bursar/core/student"
	"github.com/trezcool/bursar/core/user"
)

var (
	NowFunc = time.Now // mockable

	ErrInvalidRange = errors.New("start date must not be after end date")
)

const (
	// DashboardCacheKey holds the cached DashboardSummary.
	DashboardCacheKey = "report:dashboard"

	recentPaymentsLimit = 5
	collectionMonths    = 12
)

type (
	LedgerReader interface {
		SumCollections(ctx context.Context, filter *ledger.QueryFilter, exec ...core.DBExecutor) (map[fee.Type]ledger.Totals, error)
		QueryCollections(ctx context.Context, filter *ledger.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]ledger.Collection, error)
	}

	ExpenseReader interface {
		SumExpenses(ctx context.Context, filter *expense.QueryFilter, exec ...core.DBExecutor) (map[expense.Category]decimal.Decimal, error)
	}

	StudentCounter interface {
		CountStudents(ctx context.Context, filter *student.QueryFilter, exec ...core.DBExecutor) (int, error)
	}

	YearGetter interface {
		GetYear(ctx context.Context, filter academicyear.GetFilter, exec ...core.DBExecutor) (academicyear.AcademicYear, error)
	}

	Service struct {
		ledger   LedgerReader
		expenses ExpenseReader
		students StudentCounter
		years    YearGetter
		cache    core.Cache // optional
		cacheTTL time.Duration
		logger   core.Logger
	}
)

func NewService(
	ledgerReader LedgerReader,
	expenses ExpenseReader,
	students StudentCounter,
	years YearGetter,
	cache core.Cache,
	cacheTTL time.Duration,
	logger core.Logger,
) *Service {
	return &Service{
		ledger:   ledgerReader,
		expenses: expenses,
		students: students,
		years:    years,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// Report summarises the income collected and the expenses incurred from start's day to end's day, both included.
func (svc *Service) Report(ctx context.Context, actor user.User, start, end time.Time) (FinancialReport, error) {
	if err := actor.Authorize(user.PermViewReports); err != nil {
		return FinancialReport{}, err
	}
	from, last := core.Day(start), core.Day(end)
	if from.After(last) {
		return FinancialReport{}, ErrInvalidRange
	}
	to := last.AddDate(0, 0, 1)

	paid, err := svc.ledger.SumCollections(ctx, &ledger.QueryFilter{
		Statuses: []ledger.Status{ledger.StatusPaid},
		PaidFrom: from,
		PaidTo:   to,
	})
	if err != nil {
		return FinancialReport{}, errors.Wrap(err, "summing income")
	}
	spent, err := svc.expenses.SumExpenses(ctx, &expense.QueryFilter{From: from, To: to})
	if err != nil {
		return FinancialReport{}, errors.Wrap(err, "summing expenses")
	}

	rep := FinancialReport{
		StartDate: core.NewDate(from),
		EndDate:   core.NewDate(last),
		Income:    incomeByBucket(paid),
		Expenses:  expensesByCategory(spent),
	}
	rep.TotalIncome = sumIncome(rep.Income)
	rep.TotalExpenses = sumExpenses(rep.Expenses)
	rep.NetProfit = rep.TotalIncome.Sub(rep.TotalExpenses)
	return rep, nil
}

// Dashboard returns the all-time finance overview, served from cache when one is configured.
func (svc *Service) Dashboard(ctx context.Context, actor user.User) (DashboardSummary, error) {
	if err := actor.Authorize(user.PermViewReports); err != nil {
		return DashboardSummary{}, err
	}

	if summary, ok := svc.cachedDashboard(ctx); ok {
		return summary, nil
	}
	summary, err := svc.dashboard(ctx)
	if err != nil {
		return DashboardSummary{}, err
	}
	svc.cacheDashboard(ctx, summary)
	return summary, nil
}

func (svc *Service) dashboard(ctx context.Context) (DashboardSummary, error) {
	now := NowFunc().UTC()
	summary := DashboardSummary{GeneratedAt: now}

	active := true
	count, err := svc.students.CountStudents(ctx, &student.QueryFilter{IsActive: &active})
	if err != nil {
		return DashboardSummary{}, errors.Wrap(err, "counting students")
	}
	summary.TotalStudents = count

	year, err := svc.years.GetYear(ctx, academicyear.GetFilter{Current: true})
	switch errors.Cause(err) {
	case nil:
		summary.CurrentAcademicYear = year.Year
	case academicyear.ErrNotFound:
	default:
		return DashboardSummary{}, errors.Wrap(err, "getting current academic year")
	}

	// amounts owed
	all, err := svc.ledger.SumCollections(ctx, nil)
	if err != nil {
		return DashboardSummary{}, errors.Wrap(err, "summing fee collections")
	}
	owed := ledger.SumTotals(all)
	summary.TotalFeesDue = owed.Due
	// cash taken on partial and overdue entries counts as collected
	summary.TotalFeesCollected = owed.Paid

	pending, err := svc.ledger.SumCollections(ctx, &ledger.QueryFilter{Statuses: []ledger.Status{ledger.StatusPending, ledger.StatusPartial}})
	if err != nil {
		return DashboardSummary{}, errors.Wrap(err, "summing pending fees")
	}
	summary.PendingFees = ledger.SumTotals(pending).Outstanding

	overdue, err := svc.ledger.SumCollections(ctx, &ledger.QueryFilter{Statuses: []ledger.Status{ledger.StatusOverdue}})
	if err != nil {
		return DashboardSummary{}, errors.Wrap(err, "summing overdue fees")
	}
	summary.OverdueFees = ledger.SumTotals(overdue).Outstanding

	// service revenue only counts settled entries
	paid, err := svc.ledger.SumCollections(ctx, &ledger.QueryFilter{Statuses: []ledger.Status{ledger.StatusPaid}})
	if err != nil {
		return DashboardSummary{}, errors.Wrap(err, "summing settled fees")
	}
	income := incomeByBucket(paid)

	spent, err := svc.expenses.SumExpenses(ctx, nil)
	if err != nil {
		return DashboardSummary{}, errors.Wrap(err, "summing expenses")
	}
	expenses := expensesByCategory(spent)
	summary.TotalExpenses = sumExpenses(expenses)
	summary.NetEarnings = summary.TotalFeesCollected.Sub(summary.TotalExpenses)

	summary.TransportRevenue = income[BucketTransport]
	summary.TransportExpenses = expenses[expense.CategoryFuel].Add(expenses[expense.CategoryTransportCost])
	summary.TransportNet = summary.TransportRevenue.Sub(summary.TransportExpenses)
	summary.FoodRevenue = income[BucketFood]
	summary.FoodExpenses = expenses[expense.CategoryFoodCost]
	summary.FoodNet = summary.FoodRevenue.Sub(summary.FoodExpenses)

	// activity
	recent, err := svc.ledger.QueryCollections(ctx,
		&ledger.QueryFilter{Statuses: []ledger.Status{ledger.StatusPaid}, Limit: recentPaymentsLimit},
		[]core.DBOrdering{{Field: "payment_date", Ascending: false}},
	)
	if err != nil {
		return DashboardSummary{}, errors.Wrap(err, "querying recent payments")
	}
	if recent == nil {
		recent = []ledger.Collection{}
	}
	summary.RecentPayments = recent

	months := trailingMonths(now, collectionMonths)
	summary.MonthlyCollections = make([]MonthlyAmount, 0, len(months))
	for _, month := range months {
		collected, err := svc.collectedBetween(ctx, month.from, month.to)
		if err != nil {
			return DashboardSummary{}, errors.Wrapf(err, "summing collections of %s", month.label)
		}
		summary.MonthlyCollections = append(summary.MonthlyCollections, MonthlyAmount{Month: month.label, Amount: collected})
	}
	summary.MonthlyRevenue = summary.MonthlyCollections[len(summary.MonthlyCollections)-1].Amount

	return summary, nil
}

func (svc *Service) collectedBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	paid, err := svc.ledger.SumCollections(ctx, &ledger.QueryFilter{
		Statuses: []ledger.Status{ledger.StatusPaid},
		PaidFrom: from,
		PaidTo:   to,
	})
	if err != nil {
		return decimal.Zero, err
	}
	return ledger.SumTotals(paid).Paid, nil
}

func (svc *Service) cachedDashboard(ctx context.Context) (DashboardSummary, bool) {
	if svc.cache == nil {
		return DashboardSummary{}, false
	}
	data, ok, err := svc.cache.Get(ctx, DashboardCacheKey)
	if err != nil {
		svc.logger.Warn("reading cached dashboard", err)
		return DashboardSummary{}, false
	}
	if !ok {
		return DashboardSummary{}, false
	}
	var summary DashboardSummary
	if err = json.Unmarshal(data, &summary); err != nil {
		svc.logger.Warn("decoding cached dashboard", err)
		return DashboardSummary{}, false
	}
	return summary, true
}

func (svc *Service) cacheDashboard(ctx context.Context, summary DashboardSummary) {
	if svc.cache == nil || svc.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(summary)
	if err != nil {
		svc.logger.Warn("encoding dashboard", err)
		return
	}
	if err = svc.cache.Set(ctx, DashboardCacheKey, data, svc.cacheTTL); err != nil {
		svc.logger.Warn("caching dashboard", err)
	}
}

func incomeByBucket(paid map[fee.Type]ledger.Totals) map[Bucket]decimal.Decimal {
	income := make(map[Bucket]decimal.Decimal, len(Buckets))
	for _, b := range Buckets {
		income[b] = decimal.Zero
	}
	for typ, totals := range paid {
		b := BucketOf(typ)
		income[b] = income[b].Add(totals.Paid)
	}
	return income
}

func expensesByCategory(spent map[expense.Category]decimal.Decimal) map[expense.Category]decimal.Decimal {
	expenses := make(map[expense.Category]decimal.Decimal, len(expense.Categories))
	for _, cat := range expense.Categories {
		expenses[cat] = decimal.Zero
	}
	for cat, amount := range spent {
		expenses[cat] = expenses[cat].Add(amount)
	}
	return expenses
}

func sumIncome(income map[Bucket]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, amount := range income {
		total = total.Add(amount)
	}
	return total
}

func sumExpenses(expenses map[expense.Category]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, amount := range expenses {
		total = total.Add(amount)
	}
	return total
}
