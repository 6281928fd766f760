package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/bursar/core"
	"github.com/trezcool/bursar/core/expense"
)

const expenseColumns = `id, category, description, amount, date, receipt_number, vendor, recorded_by, created_at`

type expenseRow struct {
	ID            string          `db:"id"`
	Category      string          `db:"category"`
	Description   string          `db:"description"`
	Amount        decimal.Decimal `db:"amount"`
	Date          time.Time       `db:"date"`
	ReceiptNumber string          `db:"receipt_number"`
	Vendor        string          `db:"vendor"`
	RecordedBy    null.String     `db:"recorded_by"`
	CreatedAt     time.Time       `db:"created_at"`
}

type expenseRepository struct {
	repository
}

var _ expense.Repository = (*expenseRepository)(nil) // interface compliance check

func NewExpenseRepository(db *sqlx.DB) *expenseRepository {
	return &expenseRepository{repository{db: db}}
}

func (repo expenseRepository) unboil(row expenseRow) expense.Expense {
	return expense.Expense{
		ID:            row.ID,
		Category:      expense.Category(row.Category),
		Description:   row.Description,
		Amount:        row.Amount,
		Date:          core.NewDate(row.Date),
		ReceiptNumber: row.ReceiptNumber,
		Vendor:        row.Vendor,
		RecordedBy:    row.RecordedBy.String,
		CreatedAt:     row.CreatedAt.UTC(),
	}
}

func (repo expenseRepository) CreateExpense(ctx context.Context, exp expense.Expense, exec ...core.DBExecutor) (expense.Expense, error) {
	exp.ID = uuid.New().String()
	row := expenseRow{
		ID:            exp.ID,
		Category:      string(exp.Category),
		Description:   exp.Description,
		Amount:        exp.Amount,
		Date:          exp.Date.Time,
		ReceiptNumber: exp.ReceiptNumber,
		Vendor:        exp.Vendor,
		RecordedBy:    null.NewString(exp.RecordedBy, exp.RecordedBy != ""),
		CreatedAt:     exp.CreatedAt.UTC(),
	}
	q := `INSERT INTO expense (` + expenseColumns + `)
		VALUES (:id, :category, :description, :amount, :date, :receipt_number, :vendor, :recorded_by, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, row); err != nil {
		return expense.Expense{}, errors.Wrap(err, "inserting expense")
	}
	return exp, nil
}

func (repo expenseRepository) filter(filter *expense.QueryFilter) *where {
	w := new(where)
	if filter == nil {
		return w
	}
	if len(filter.Categories) > 0 {
		categories := make([]string, 0, len(filter.Categories))
		for _, c := range filter.Categories {
			categories = append(categories, string(c))
		}
		w.add("category = ANY(?::text[])", pq.Array(categories))
	}
	if !filter.From.IsZero() {
		w.add("date >= ?", filter.From.UTC())
	}
	if !filter.To.IsZero() {
		w.add("date < ?", filter.To.UTC())
	}
	return w
}

func (repo expenseRepository) QueryExpenses(ctx context.Context, filter *expense.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]expense.Expense, error) {
	exe := repo.getExec(exec)
	w := repo.filter(filter)

	var rows []expenseRow
	q := `SELECT ` + expenseColumns + ` FROM expense` + w.String() + orderBy(ordering, "date DESC, created_at DESC")
	if err := sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying expenses")
	}

	expenses := make([]expense.Expense, 0, len(rows))
	for _, row := range rows {
		expenses = append(expenses, repo.unboil(row))
	}
	return expenses, nil
}

func (repo expenseRepository) SumExpenses(ctx context.Context, filter *expense.QueryFilter, exec ...core.DBExecutor) (map[expense.Category]decimal.Decimal, error) {
	exe := repo.getExec(exec)
	w := repo.filter(filter)

	var rows []struct {
		Category string          `db:"category"`
		Total    decimal.Decimal `db:"total"`
	}
	q := `SELECT category, COALESCE(SUM(amount), 0) AS total FROM expense` + w.String() + ` GROUP BY category`
	if err := sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "summing expenses")
	}

	sums := make(map[expense.Category]decimal.Decimal, len(rows))
	for _, row := range rows {
		sums[expense.Category(row.Category)] = row.Total
	}
	return sums, nil
}
