package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/kat-co/vala"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/bursar/core"
	"github.com/trezcool/bursar/core/academicyear"
	"github.com/trezcool/bursar/core/expense"
	"github.com/trezcool/bursar/core/fee"
	"github.com/trezcool/bursar/core/ledger"
	"github.com/trezcool/bursar/core/report"
	"github.com/trezcool/bursar/core/student"
	"github.com/trezcool/bursar/core/user"
)

type (
	Deps struct {
		Conf       *core.Config
		Logger     core.Logger
		Translator ut.Translator
		UserSvc    *user.Service
		StudentSvc *student.Service
		YearSvc    *academicyear.Service
		FeeSvc     *fee.Service
		LedgerSvc  *ledger.Service
		ExpenseSvc *expense.Service
		ReportSvc  *report.Service
	}

	Server struct {
		deps      *Deps
		app       *echo.Echo
		auth      authConfig
		errors    chan error
		shutdown  chan os.Signal
		scheduler *overdueScheduler
	}
)

func NewServer(deps *Deps) (*Server, error) {
	err := vala.BeginValidation().Validate(
		vala.IsNotNil(deps.Conf, "Conf"),
		vala.IsNotNil(deps.Logger, "Logger"),
		vala.IsNotNil(deps.Translator, "Translator"),
		vala.IsNotNil(deps.UserSvc, "UserSvc"),
		vala.IsNotNil(deps.StudentSvc, "StudentSvc"),
		vala.IsNotNil(deps.YearSvc, "YearSvc"),
		vala.IsNotNil(deps.FeeSvc, "FeeSvc"),
		vala.IsNotNil(deps.LedgerSvc, "LedgerSvc"),
		vala.IsNotNil(deps.ExpenseSvc, "ExpenseSvc"),
		vala.IsNotNil(deps.ReportSvc, "ReportSvc"),
	).Check()
	if err != nil {
		return nil, err
	}

	s := &Server{
		deps:     deps,
		app:      echo.New(),
		auth:     newAuthConfig(deps.Conf),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)

	if deps.Conf.Server.OverdueScheduler {
		s.scheduler = newOverdueScheduler(deps.LedgerSvc, deps.Logger, deps.Conf.Server.OverdueHour)
	}
	s.setup()
	return s, nil
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.App.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.App.Debug || conf.App.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.App.Debug
	s.app.Server.ReadTimeout = conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = conf.Server.WriteTimeout

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(s.auth.jwt)

	registerUserAPI(v1, jwt, s.auth, s.deps.UserSvc)
	registerStudentAPI(v1, jwt, s.deps.StudentSvc)
	registerAcademicYearAPI(v1, jwt, s.deps.UserSvc, s.deps.YearSvc)
	registerFeeAPI(v1, jwt, s.deps.UserSvc, s.deps.FeeSvc, s.deps.LedgerSvc)
	registerExpenseAPI(v1, jwt, s.deps.UserSvc, s.deps.ExpenseSvc)
	registerReportAPI(v1, jwt, s.deps.UserSvc, s.deps.ReportSvc)
}

func (s *Server) Start() {
	if s.scheduler != nil {
		go s.scheduler.run()
	}
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

// Errors receives the error that made the server stop listening.
func (s *Server) Errors() <-chan error {
	return s.errors
}

// ShutdownSignal receives SIGINT/SIGTERM, and the signal raised by a core shutdown error.
func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already signaled
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.scheduler != nil {
		s.scheduler.stop()
	}
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	if s.scheduler != nil {
		s.scheduler.stop()
	}
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.App.Name+" API!")
}
