package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/bursar/core"
	"github.com/trezcool/bursar/core/fee"
	"github.com/trezcool/bursar/core/ledger"
	"github.com/trezcool/bursar/core/user"
)

type feeApi struct {
	userSvc   *user.Service
	feeSvc    *fee.Service
	ledgerSvc *ledger.Service
}

func registerFeeAPI(g *echo.Group, jwt echo.MiddlewareFunc, userSvc *user.Service, feeSvc *fee.Service, ledgerSvc *ledger.Service) {
	api := feeApi{userSvc: userSvc, feeSvc: feeSvc, ledgerSvc: ledgerSvc}

	fg := g.Group("/fees", jwt)

	// structures
	fg.GET("/structures", api.queryStructures, adminMiddleware())
	fg.POST("/structures", api.defineStructure)
	fg.GET("/structures/:id", api.retrieveStructure, adminMiddleware())
	fg.PUT("/structures/:id", api.correctStructure)

	// ledger
	fg.POST("/generate", api.generate)
	fg.POST("/generate/class", api.generateForClass)
	fg.POST("/overdue", api.markOverdue)
	fg.GET("/collections", api.queryCollections, adminMiddleware())
	fg.GET("/collections/totals", api.collectionTotals, adminMiddleware())
	fg.GET("/collections/:id", api.retrieveCollection, adminMiddleware())
	fg.POST("/collections/:id/payments", api.applyPayment)
}

// Structure handlers

func (api *feeApi) queryStructures(ctx echo.Context) error {
	filter := new(fee.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []fee.Structure{})
	}
	filter.Clean()

	structures, err := api.feeSvc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying fee structures")
	}
	if structures == nil {
		structures = []fee.Structure{}
	}
	return ctx.JSON(http.StatusOK, structures)
}

func (api *feeApi) defineStructure(ctx echo.Context) error {
	var data fee.NewStructure
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStructure")
	}
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	st, err := api.feeSvc.Define(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "defining fee structure")
	}
	return ctx.JSON(http.StatusCreated, st)
}

func (api *feeApi) retrieveStructure(ctx echo.Context) error {
	st, err := api.feeSvc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting fee structure")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *feeApi) correctStructure(ctx echo.Context) error {
	var data fee.Correction
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Correction")
	}
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	st, err := api.feeSvc.Correct(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "correcting fee structure")
	}
	return ctx.JSON(http.StatusOK, st)
}

// Ledger handlers

func (api *feeApi) generate(ctx echo.Context) error {
	var data GenerateRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GenerateRequest")
	}
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	structures := make([]fee.Structure, 0, len(data.StructureIDs))
	for _, id := range data.StructureIDs {
		st, err := api.feeSvc.Get(ctx.Request().Context(), id)
		if err != nil {
			if errors.Cause(err) == fee.ErrNotFound {
				return core.NewValidationError(err, core.FieldError{Field: "fee_structure_ids", Error: err.Error()})
			}
			return errors.Wrap(err, "getting fee structure")
		}
		structures = append(structures, st)
	}

	cols, err := api.ledgerSvc.Generate(ctx.Request().Context(), actor, data.StudentIDs, structures, data.DueDate.Time)
	if err != nil {
		return errors.Wrap(err, "generating fee collections")
	}
	return ctx.JSON(http.StatusCreated, cols)
}

func (api *feeApi) generateForClass(ctx echo.Context) error {
	var data ledger.ClassGeneration
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ClassGeneration")
	}
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	cols, err := api.ledgerSvc.GenerateForClass(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "generating class fee collections")
	}
	return ctx.JSON(http.StatusCreated, cols)
}

func (api *feeApi) markOverdue(ctx echo.Context) error {
	var data MarkOverdueRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MarkOverdueRequest")
	}
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	asOf := data.AsOf.Time
	if asOf.IsZero() {
		asOf = ledger.NowFunc()
	}
	count, err := api.ledgerSvc.MarkOverdue(ctx.Request().Context(), actor, asOf)
	if err != nil {
		return errors.Wrap(err, "marking overdue fee collections")
	}
	return ctx.JSON(http.StatusOK, MarkOverdueResponse{Count: count})
}

func (api *feeApi) bindCollectionFilter(ctx echo.Context) (*ledger.QueryFilter, error) {
	filter := new(ledger.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return nil, err
	}
	filter.Clean()

	var err error
	if filter.PaidFrom, err = dateParam(ctx, "paid_from"); err != nil {
		return nil, err
	}
	paidTo, err := dateParam(ctx, "paid_to")
	if err != nil {
		return nil, err
	}
	if !paidTo.IsZero() {
		filter.PaidTo = paidTo.AddDate(0, 0, 1) // whole day
	}
	return filter, nil
}

func (api *feeApi) queryCollections(ctx echo.Context) error {
	filter, err := api.bindCollectionFilter(ctx)
	if err != nil {
		if _, ok := errors.Cause(err).(*core.ValidationError); ok {
			return err
		}
		return ctx.JSON(http.StatusOK, []ledger.Collection{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	cols, err := api.ledgerSvc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying fee collections")
	}
	if cols == nil {
		cols = []ledger.Collection{}
	}
	return ctx.JSON(http.StatusOK, cols)
}

func (api *feeApi) collectionTotals(ctx echo.Context) error {
	filter, err := api.bindCollectionFilter(ctx)
	if err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}

	totals, err := api.ledgerSvc.Totals(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "summing fee collections")
	}
	return ctx.JSON(http.StatusOK, totals)
}

func (api *feeApi) retrieveCollection(ctx echo.Context) error {
	col, err := api.ledgerSvc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting fee collection")
	}
	return ctx.JSON(http.StatusOK, col)
}

func (api *feeApi) applyPayment(ctx echo.Context) error {
	var data ledger.Payment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Payment")
	}
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	col, err := api.ledgerSvc.ApplyPayment(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "applying payment")
	}
	return ctx.JSON(http.StatusOK, col)
}

type (
	GenerateRequest struct {
		StudentIDs   []string  `json:"student_ids"`
		StructureIDs []string  `json:"fee_structure_ids"`
		DueDate      core.Date `json:"due_date"`
	}

	MarkOverdueRequest struct {
		AsOf core.Date `json:"as_of"` // defaults to today
	}

	MarkOverdueResponse struct {
		Count int `json:"count"`
	}
)
