package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/bursar/core/user"
)

type userApi struct {
	svc  *user.Service
	auth authConfig
}

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth authConfig, svc *user.Service) {
	api := userApi{svc: svc, auth: auth}

	// tokens are issued by the admin CLI; the API only refreshes them
	ug := g.Group("/users", jwt)
	ug.GET("/me", api.me)
	ug.POST("/token-refresh", api.refreshToken)
	ug.GET("", api.query, adminMiddleware())
	ug.POST("", api.create, adminMiddleware())
	ug.GET("/roles", api.queryRoles, adminMiddleware())
	ug.PUT("/:username/roles", api.setRoles, adminMiddleware())
}

// Handlers

func (api *userApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.auth, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}

func (api *userApi) query(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.User{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}

	usr, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

func (api *userApi) setRoles(ctx echo.Context) error {
	var data SetRolesRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetRolesRequest")
	}
	if data.Roles == nil {
		data.Roles = []string{}
	}

	usr, err := api.svc.SetRoles(ctx.Request().Context(), ctx.Param("username"), data.Roles)
	if err != nil {
		return errors.Wrap(err, "setting user roles")
	}
	return ctx.JSON(http.StatusOK, usr)
}

type (
	TokenResponse struct {
		Token string `json:"token"`
	}

	SetRolesRequest struct {
		Roles []string `json:"roles"`
	}
)
