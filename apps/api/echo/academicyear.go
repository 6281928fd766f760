package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/bursar/core/academicyear"
	"github.com/trezcool/bursar/core/user"
)

type academicYearApi struct {
	userSvc *user.Service
	svc     *academicyear.Service
}

func registerAcademicYearAPI(g *echo.Group, jwt echo.MiddlewareFunc, userSvc *user.Service, svc *academicyear.Service) {
	api := academicYearApi{userSvc: userSvc, svc: svc}

	yg := g.Group("/academic-years", jwt)
	yg.GET("", api.query, adminMiddleware())
	yg.GET("/current", api.current, adminMiddleware())
	yg.POST("", api.create)
	yg.POST("/:id/current", api.setCurrent)
}

// Handlers

func (api *academicYearApi) query(ctx echo.Context) error {
	years, err := api.svc.Query(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying academic years")
	}
	if years == nil {
		years = []academicyear.AcademicYear{}
	}
	return ctx.JSON(http.StatusOK, years)
}

func (api *academicYearApi) current(ctx echo.Context) error {
	year, err := api.svc.Current(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting current academic year")
	}
	return ctx.JSON(http.StatusOK, year)
}

func (api *academicYearApi) create(ctx echo.Context) error {
	var data academicyear.NewAcademicYear
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAcademicYear")
	}
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	year, err := api.svc.Create(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating academic year")
	}
	return ctx.JSON(http.StatusCreated, year)
}

func (api *academicYearApi) setCurrent(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	year, err := api.svc.SetCurrent(ctx.Request().Context(), actor, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "setting current academic year")
	}
	return ctx.JSON(http.StatusOK, year)
}
