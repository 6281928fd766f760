// Package expense is the log of school outflows read by the financial reports.
package expense

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/bursar/core"
	"github.com/trezcool/bursar/core/user"
)

var orderingFields = []string{"date", "amount", "category", "created_at"}

type (
	Repository interface {
		CreateExpense(ctx context.Context, exp Expense, exec ...core.DBExecutor) (Expense, error)
		QueryExpenses(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Expense, error)
		// SumExpenses groups the amounts of matching expenses by category.
		// Categories without matching expenses are absent from the result.
		SumExpenses(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) (map[Category]decimal.Decimal, error)
	}

	Service struct {
		repo      Repository
		publisher core.EventPublisher
		logger    core.Logger
		validate  *validator.Validate
	}
)

func NewService(repo Repository, publisher core.EventPublisher, logger core.Logger, validate *validator.Validate) *Service {
	return &Service{repo: repo, publisher: publisher, logger: logger, validate: validate}
}

func (svc *Service) Record(ctx context.Context, actor user.User, ne NewExpense) (Expense, error) {
	if err := actor.Authorize(user.PermManageExpenses); err != nil {
		return Expense{}, err
	}
	if err := ne.Validate(svc.validate); err != nil {
		return Expense{}, err
	}

	exp, err := svc.repo.CreateExpense(ctx, Expense{
		Category:      ne.Category,
		Description:   ne.Description,
		Amount:        ne.Amount,
		Date:          ne.Date,
		ReceiptNumber: ne.ReceiptNumber,
		Vendor:        ne.Vendor,
		RecordedBy:    actor.ID,
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		return Expense{}, errors.Wrap(err, "creating expense")
	}

	core.Notify(ctx, svc.publisher, svc.logger, core.NewEvent(core.EventExpenseRecorded, exp.ID, actor.ID, exp))
	return exp, nil
}

func (svc *Service) Query(ctx context.Context, actor user.User, filter *QueryFilter, ordering []core.DBOrdering) ([]Expense, error) {
	if err := actor.Authorize(user.PermManageExpenses); err != nil {
		return nil, err
	}
	return svc.repo.QueryExpenses(ctx, filter, core.CleanOrdering(ordering, orderingFields...))
}
