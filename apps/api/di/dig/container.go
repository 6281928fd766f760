package dig_container

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/bursar/apps/api/echo"
	"github.com/trezcool/bursar/core"
	"github.com/trezcool/bursar/core/academicyear"
	"github.com/trezcool/bursar/core/expense"
	"github.com/trezcool/bursar/core/fee"
	"github.com/trezcool/bursar/core/ledger"
	"github.com/trezcool/bursar/core/report"
	"github.com/trezcool/bursar/core/student"
	"github.com/trezcool/bursar/core/user"
	cachesvc "github.com/trezcool/bursar/services/cache"
	emailsvc "github.com/trezcool/bursar/services/email"
	eventsvc "github.com/trezcool/bursar/services/events"
	logsvc "github.com/trezcool/bursar/services/logger"
	"github.com/trezcool/bursar/storage/database"
	inmemdb "github.com/trezcool/bursar/storage/database/inmem"
	sqlxrepos "github.com/trezcool/bursar/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Storage holds the repositories of the configured storage backend.
type Storage struct {
	dig.Out

	DB          *sqlx.DB // nil with in-memory storage
	Tx          core.TxRunner
	Users       user.Repository
	Students    student.Repository
	Years       academicyear.Repository
	Structures  fee.Repository
	Collections ledger.Repository
	Expenses    expense.Repository
}

type ServerParams struct {
	dig.In

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

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.App.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.App.Debug)
	return logger
}

func newStorage(conf *core.Config, loggerParam DBLoggerParam) Storage {
	if conf.Database.UseMemory() {
		db := inmemdb.Open()
		return Storage{
			Tx:          db,
			Users:       inmemdb.NewUserRepository(db),
			Students:    inmemdb.NewStudentRepository(db),
			Years:       inmemdb.NewAcademicYearRepository(db),
			Structures:  inmemdb.NewFeeStructureRepository(db),
			Collections: inmemdb.NewCollectionRepository(db),
			Expenses:    inmemdb.NewExpenseRepository(db),
		}
	}

	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return Storage{
		DB:          db,
		Tx:          database.NewTxRunner(db),
		Users:       sqlxrepos.NewUserRepository(db),
		Students:    sqlxrepos.NewStudentRepository(db),
		Years:       sqlxrepos.NewAcademicYearRepository(db),
		Structures:  sqlxrepos.NewFeeStructureRepository(db),
		Collections: sqlxrepos.NewCollectionRepository(db),
		Expenses:    sqlxrepos.NewExpenseRepository(db),
	}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.App.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

// newEventPublisher drops the cached dashboard on every event, streams events to Kafka
// when brokers are configured, and mails a digest of them when notification recipients are.
func newEventPublisher(conf *core.Config, mailSvc core.EmailService, cache core.Cache, logger core.Logger) eventsvc.Multi {
	publishers := eventsvc.Multi{eventsvc.NewCacheInvalidator(cache, report.DashboardCacheKey)}
	if len(conf.Kafka.Brokers) > 0 {
		kafkaPub, err := eventsvc.NewKafkaPublisher(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("setting up kafka publisher: %v", err), err)
		}
		publishers = append(publishers, kafkaPub)
	}
	if len(conf.App.NotifyEmails) > 0 {
		publishers = append(publishers, eventsvc.NewMailDigest(conf, mailSvc))
	}
	return publishers
}

func newCache(conf *core.Config, logger core.Logger) core.Cache {
	if conf.RedisURL == "" {
		return cachesvc.NewMemoryCache()
	}
	cache, err := cachesvc.NewRedisCache(conf.RedisURL)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up redis cache: %v", err), err)
	}
	return cache
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newFeeService(
	repo fee.Repository,
	students student.Repository,
	publisher core.EventPublisher,
	logger core.Logger,
	validate *validator.Validate,
) *fee.Service {
	return fee.NewService(repo, students, publisher, logger, validate)
}

func newLedgerService(
	conf *core.Config,
	db core.TxRunner,
	repo ledger.Repository,
	feeSvc *fee.Service,
	students student.Repository,
	publisher core.EventPublisher,
	logger core.Logger,
	validate *validator.Validate,
) *ledger.Service {
	return ledger.NewService(db, repo, feeSvc, students, publisher, logger, validate, ledger.OptionsFromConfig(conf))
}

func newReportService(
	conf *core.Config,
	collections ledger.Repository,
	expenses expense.Repository,
	students student.Repository,
	years academicyear.Repository,
	cache core.Cache,
	logger core.Logger,
) *report.Service {
	ttl := conf.Report.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return report.NewService(collections, expenses, students, years, cache, ttl, logger)
}

func newServer(p ServerParams) (*echoapi.Server, error) {
	return echoapi.NewServer(&echoapi.Deps{
		Conf:       p.Conf,
		Logger:     p.Logger,
		Translator: p.Translator,
		UserSvc:    p.UserSvc,
		StudentSvc: p.StudentSvc,
		YearSvc:    p.YearSvc,
		FeeSvc:     p.FeeSvc,
		LedgerSvc:  p.LedgerSvc,
		ExpenseSvc: p.ExpenseSvc,
		ReportSvc:  p.ReportSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStorage))
	must(c.Provide(newEmailService))
	must(c.Provide(newEventPublisher))
	must(c.Provide(func(m eventsvc.Multi) core.EventPublisher { return m }))
	must(c.Provide(newCache))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))
	must(c.Provide(user.NewService))
	must(c.Provide(student.NewService))
	must(c.Provide(academicyear.NewService))
	must(c.Provide(newFeeService))
	must(c.Provide(newLedgerService))
	must(c.Provide(expense.NewService))
	must(c.Provide(newReportService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
