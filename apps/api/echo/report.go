package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/bursar/core/report"
	"github.com/trezcool/bursar/core/user"
)

type reportApi struct {
	userSvc *user.Service
	svc     *report.Service
}

func registerReportAPI(g *echo.Group, jwt echo.MiddlewareFunc, userSvc *user.Service, svc *report.Service) {
	api := reportApi{userSvc: userSvc, svc: svc}

	rg := g.Group("/reports", jwt)
	rg.GET("/financial", api.financial)
	rg.GET("/dashboard", api.dashboard)
}

// Handlers

func (api *reportApi) financial(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	start, err := dateParam(ctx, "start_date")
	if err != nil {
		return err
	}
	end, err := dateParam(ctx, "end_date")
	if err != nil {
		return err
	}

	// defaults to the current month so far
	monthStart, today := report.MonthToDate(report.NowFunc())
	if start.IsZero() {
		start = monthStart
	}
	if end.IsZero() {
		end = today
	}

	rep, err := api.svc.Report(ctx.Request().Context(), actor, start, end)
	if err != nil {
		return errors.Wrap(err, "building financial report")
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *reportApi) dashboard(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	summary, err := api.svc.Dashboard(ctx.Request().Context(), actor)
	if err != nil {
		return errors.Wrap(err, "building dashboard")
	}
	return ctx.JSON(http.StatusOK, summary)
}
