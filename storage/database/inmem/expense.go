package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/trezcool/bursar/core"
	"github.com/trezcool/bursar/core/expense"
)

type expenseRepository struct {
	db *expenseTable
}

var _ expense.Repository = (*expenseRepository)(nil) // interface compliance check

func NewExpenseRepository(db *DB) expense.Repository {
	return &expenseRepository{db: db.expense}
}

func (repo *expenseRepository) CreateExpense(_ context.Context, exp expense.Expense, _ ...core.DBExecutor) (expense.Expense, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	exp.ID = uuid.New().String()
	stored := exp
	repo.db.table[exp.ID] = &stored
	return exp, nil
}

func (repo *expenseRepository) query(filter *expense.QueryFilter) []expense.Expense {
	expenses := make([]expense.Expense, 0)
	for _, exp := range repo.db.table {
		if filter != nil {
			if len(filter.Categories) > 0 && !containsCategory(filter.Categories, exp.Category) {
				continue
			}
			if !filter.From.IsZero() && exp.Date.Before(filter.From) {
				continue
			}
			if !filter.To.IsZero() && !exp.Date.Before(filter.To) {
				continue
			}
		}
		expenses = append(expenses, *exp)
	}
	return expenses
}

func (repo *expenseRepository) QueryExpenses(_ context.Context, filter *expense.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]expense.Expense, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	expenses := repo.query(filter)
	sort.SliceStable(expenses, func(i, j int) bool {
		a, b := expenses[i], expenses[j]
		for _, ord := range ordering {
			if c := compareExpenses(a, b, ord.Field); c != 0 {
				return (c < 0) == ord.Ascending
			}
		}
		if !a.Date.Equal(b.Date.Time) {
			return a.Date.After(b.Date.Time)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return expenses, nil
}

func compareExpenses(a, b expense.Expense, field string) int {
	switch field {
	case "date":
		return compareTimes(a.Date.Time, b.Date.Time)
	case "amount":
		return a.Amount.Cmp(b.Amount)
	case "category":
		return strings.Compare(string(a.Category), string(b.Category))
	case "created_at":
		return compareTimes(a.CreatedAt, b.CreatedAt)
	}
	return 0
}

func (repo *expenseRepository) SumExpenses(_ context.Context, filter *expense.QueryFilter, _ ...core.DBExecutor) (map[expense.Category]decimal.Decimal, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	sums := make(map[expense.Category]decimal.Decimal)
	for _, exp := range repo.query(filter) {
		sum, ok := sums[exp.Category]
		if !ok {
			sum = decimal.Zero
		}
		sums[exp.Category] = sum.Add(exp.Amount)
	}
	return sums, nil
}

func containsCategory(categories []expense.Category, category expense.Category) bool {
	for _, c := range categories {
		if c == category {
			return true
		}
	}
	return false
}
