// Package testutil builds in-memory fixtures shared by the test suites.
package testutil

import (
	"context"
	"io/ioutil"
	"log"
	"strconv"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trezcool/bursar/core"
	"github.com/trezcool/bursar/core/academicyear"
	"github.com/trezcool/bursar/core/expense"
	"github.com/trezcool/bursar/core/fee"
	"github.com/trezcool/bursar/core/ledger"
	"github.com/trezcool/bursar/core/report"
	"github.com/trezcool/bursar/core/student"
	"github.com/trezcool/bursar/core/user"
	cachesvc "github.com/trezcool/bursar/services/cache"
	eventsvc "github.com/trezcool/bursar/services/events"
	logsvc "github.com/trezcool/bursar/services/logger"
	inmemdb "github.com/trezcool/bursar/storage/database/inmem"
)

// NewConfig returns the app config in test mode, backed by memory.
func NewConfig() *core.Config {
	conf := core.NewConfig()
	conf.App.Debug = false
	conf.App.TestMode = true
	conf.Database.Storage = "memory"
	conf.Server.OverdueScheduler = false
	conf.Kafka.Brokers = nil
	conf.RedisURL = ""
	return conf
}

func NewLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(log.New(ioutil.Discard, "", 0), conf)
	logger.Enable(false)
	return logger
}

// NewValidator returns a validator with every custom validation registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

// Env wires every service on a fresh in-memory database.
type Env struct {
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	Events     *eventsvc.Recorder
	Cache      *cachesvc.MemoryCache

	DB          *inmemdb.DB
	Users       user.Repository
	Students    student.Repository
	Years       academicyear.Repository
	Structures  fee.Repository
	Collections ledger.Repository
	Expenses    expense.Repository

	UserSvc    *user.Service
	StudentSvc *student.Service
	YearSvc    *academicyear.Service
	FeeSvc     *fee.Service
	LedgerSvc  *ledger.Service
	ExpenseSvc *expense.Service
	ReportSvc  *report.Service
}

func Setup(t *testing.T, opts ...ledger.Options) *Env {
	t.Helper()

	conf := NewConfig()
	validate, translator := NewValidator()
	env := &Env{
		Conf:       conf,
		Logger:     NewLogger(conf),
		Validate:   validate,
		Translator: translator,
		Events:     new(eventsvc.Recorder),
		Cache:      cachesvc.NewMemoryCache(),
		DB:         inmemdb.Open(),
	}
	env.Users = inmemdb.NewUserRepository(env.DB)
	env.Students = inmemdb.NewStudentRepository(env.DB)
	env.Years = inmemdb.NewAcademicYearRepository(env.DB)
	env.Structures = inmemdb.NewFeeStructureRepository(env.DB)
	env.Collections = inmemdb.NewCollectionRepository(env.DB)
	env.Expenses = inmemdb.NewExpenseRepository(env.DB)

	ledgerOpts := ledger.OptionsFromConfig(conf)
	if len(opts) > 0 {
		ledgerOpts = opts[0]
	}

	// mirrors the server: events are recorded and drop the cached dashboard
	publisher := eventsvc.Multi{env.Events, eventsvc.NewCacheInvalidator(env.Cache, report.DashboardCacheKey)}

	env.UserSvc = user.NewService(env.Users, validate)
	env.StudentSvc = student.NewService(env.Students, validate)
	env.YearSvc = academicyear.NewService(env.DB, env.Years, validate)
	env.FeeSvc = fee.NewService(env.Structures, env.Students, publisher, env.Logger, validate)
	env.LedgerSvc = ledger.NewService(env.DB, env.Collections, env.FeeSvc, env.Students, publisher, env.Logger, validate, ledgerOpts)
	env.ExpenseSvc = expense.NewService(env.Expenses, publisher, env.Logger, validate)
	env.ReportSvc = report.NewService(env.Collections, env.Expenses, env.Students, env.Years, env.Cache, time.Minute, env.Logger)
	return env
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	if roles == nil {
		roles = []string{}
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateClass(t *testing.T, repo student.Repository, name, section string) student.Class {
	t.Helper()

	class, err := repo.CreateClass(context.Background(), student.Class{Name: name, Section: section})
	if err != nil {
		t.Fatalf("CreateClass() failed: %v", err)
	}
	return class
}

func CreateStudent(t *testing.T, repo student.Repository, number, name, classID string, transport, food bool) student.Student {
	t.Helper()

	std, err := repo.CreateStudent(context.Background(), student.Student{
		StudentNumber:     number,
		Name:              name,
		ClassID:           classID,
		IsTransportUser:   transport,
		IsFoodServiceUser: food,
		IsActive:          true,
		EnrolledAt:        time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return std
}

func CreateYear(t *testing.T, repo academicyear.Repository, year string, isCurrent bool) academicyear.AcademicYear {
	t.Helper()

	startYear, err := strconv.Atoi(year[:4])
	if err != nil {
		t.Fatalf("CreateYear() failed: %v", err)
	}
	ay, err := repo.CreateYear(context.Background(), academicyear.AcademicYear{
		Year:      year,
		StartDate: core.NewDate(time.Date(startYear, time.September, 1, 0, 0, 0, 0, time.UTC)),
		EndDate:   core.NewDate(time.Date(startYear+1, time.June, 30, 0, 0, 0, 0, time.UTC)),
		IsCurrent: isCurrent,
	})
	if err != nil {
		t.Fatalf("CreateYear() failed: %v", err)
	}
	return ay
}

func CreateStructure(t *testing.T, repo fee.Repository, classID string, typ fee.Type, amount string, mandatory bool, year string) fee.Structure {
	t.Helper()

	now := time.Now().UTC()
	st, err := repo.CreateStructure(context.Background(), fee.Structure{
		ClassID:      classID,
		Type:         typ,
		Amount:       Dec(amount),
		IsMandatory:  mandatory,
		AcademicYear: year,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("CreateStructure() failed: %v", err)
	}
	return st
}

func CreateExpense(t *testing.T, repo expense.Repository, category expense.Category, amount string, date time.Time) expense.Expense {
	t.Helper()

	exp, err := repo.CreateExpense(context.Background(), expense.Expense{
		Category:    category,
		Description: string(category),
		Amount:      Dec(amount),
		Date:        core.NewDate(date),
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateExpense() failed: %v", err)
	}
	return exp
}

// Dec parses a decimal literal; it panics on malformed input.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
