package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/bursar/core/expense"
	"github.com/trezcool/bursar/core/user"
)

type expenseApi struct {
	userSvc *user.Service
	svc     *expense.Service
}

func registerExpenseAPI(g *echo.Group, jwt echo.MiddlewareFunc, userSvc *user.Service, svc *expense.Service) {
	api := expenseApi{userSvc: userSvc, svc: svc}

	eg := g.Group("/expenses", jwt)
	eg.GET("", api.query)
	eg.POST("", api.record)
	eg.GET("/categories", api.queryCategories)
}

// Handlers

func (api *expenseApi) query(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	filter := new(expense.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []expense.Expense{})
	}
	if filter.From, err = dateParam(ctx, "date_from"); err != nil {
		return err
	}
	to, err := dateParam(ctx, "date_to")
	if err != nil {
		return err
	}
	if !to.IsZero() {
		filter.To = to.AddDate(0, 0, 1) // whole day
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	expenses, err := api.svc.Query(ctx.Request().Context(), actor, filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying expenses")
	}
	if expenses == nil {
		expenses = []expense.Expense{}
	}
	return ctx.JSON(http.StatusOK, expenses)
}

func (api *expenseApi) record(ctx echo.Context) error {
	var data expense.NewExpense
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewExpense")
	}
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	exp, err := api.svc.Record(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "recording expense")
	}
	return ctx.JSON(http.StatusCreated, exp)
}

func (api *expenseApi) queryCategories(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, expense.Categories)
}
