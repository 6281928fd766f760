// Package ledger keeps the fee collections: one obligation per student and fee structure,
// and the payments recorded against them.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/bursar/core"
	"github.com/trezcool/bursar/core/fee"
	"github.com/trezcool/bursar/core/student"
	"github.com/trezcool/bursar/core/user"
)

var (
	NowFunc = time.Now // mockable

	ErrNotFound = errors.New("fee collection not found")

	errDueDateRequired = errors.New("due date is required")
	errUnknownStudents = errors.New("unknown students")

	orderingFields = []string{"due_date", "payment_date", "amount_due", "amount_paid", "payment_status", "created_at"}
)

const defaultBatchSize = 500

type (
	Repository interface {
		// CreateCollections inserts the entries, skipping (StudentID, FeeStructureID) pairs already present.
		// It returns the inserted entries only.
		CreateCollections(ctx context.Context, cols []Collection, exec ...core.DBExecutor) ([]Collection, error)
		// GetCollection locks the row until the end of the transaction when forUpdate is set.
		GetCollection(ctx context.Context, id string, forUpdate bool, exec ...core.DBExecutor) (Collection, error)
		UpdateCollection(ctx context.Context, col Collection, exec ...core.DBExecutor) (Collection, error)
		QueryCollections(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Collection, error)
		// SumCollections groups the totals of matching entries by fee type.
		// Fee types without matching entries are absent from the result.
		SumCollections(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) (map[fee.Type]Totals, error)
		// MarkOverdue flags pending and partial entries due before asOf and not fully paid.
		MarkOverdue(ctx context.Context, asOf, now time.Time, exec ...core.DBExecutor) (int, error)
	}

	StructureLookup interface {
		Lookup(ctx context.Context, classID, academicYear string) ([]fee.Structure, error)
	}

	StudentDirectory interface {
		QueryStudents(ctx context.Context, filter *student.QueryFilter, exec ...core.DBExecutor) ([]student.Student, error)
	}

	Options struct {
		// BatchSize bounds the number of entries inserted per transaction by Generate.
		BatchSize int
		// AllowOverpayment lets a payment exceed the amount due.
		AllowOverpayment bool
	}

	Service struct {
		db         core.TxRunner
		repo       Repository
		structures StructureLookup
		students   StudentDirectory
		publisher  core.EventPublisher
		logger     core.Logger
		validate   *validator.Validate
		opts       Options
	}
)

func NewService(
	db core.TxRunner,
	repo Repository,
	structures StructureLookup,
	students StudentDirectory,
	publisher core.EventPublisher,
	logger core.Logger,
	validate *validator.Validate,
	opts Options,
) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	return &Service{
		db:         db,
		repo:       repo,
		structures: structures,
		students:   students,
		publisher:  publisher,
		logger:     logger,
		validate:   validate,
		opts:       opts,
	}
}

// OptionsFromConfig reads the ledger options of the app config.
func OptionsFromConfig(conf *core.Config) Options {
	return Options{
		BatchSize:        conf.Ledger.GenerateBatchSize,
		AllowOverpayment: conf.Ledger.AllowOverpayment,
	}
}

func newCollection(studentID string, st fee.Structure, dueDate core.Date, now time.Time) Collection {
	return Collection{
		StudentID:      studentID,
		FeeStructureID: st.ID,
		FeeType:        st.Type,
		AcademicYear:   st.AcademicYear,
		AmountDue:      st.Amount,
		AmountPaid:     decimal.Zero,
		Status:         StatusPending,
		DueDate:        dueDate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Generate issues one entry per (student, structure) pair that is not already in the ledger.
// Calling it again with the same input creates nothing; only the newly created entries are returned.
func (svc *Service) Generate(ctx context.Context, actor user.User, studentIDs []string, structures []fee.Structure, dueDate time.Time) ([]Collection, error) {
	if err := actor.Authorize(user.PermManageFees); err != nil {
		return nil, err
	}
	if dueDate.IsZero() {
		return nil, core.NewValidationError(errDueDateRequired, core.FieldError{Field: "due_date", Error: errDueDateRequired.Error()})
	}
	studentIDs = uniqueStrings(studentIDs)
	if len(studentIDs) == 0 || len(structures) == 0 {
		return []Collection{}, nil
	}

	found, err := svc.students.QueryStudents(ctx, &student.QueryFilter{IDs: studentIDs})
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	if len(found) != len(studentIDs) {
		return nil, core.NewValidationError(errUnknownStudents, core.FieldError{Field: "students", Error: errUnknownStudents.Error()})
	}

	now := NowFunc().UTC()
	due := core.NewDate(dueDate)
	cols := make([]Collection, 0, len(studentIDs)*len(structures))
	for _, id := range studentIDs {
		for _, st := range structures {
			cols = append(cols, newCollection(id, st, due, now))
		}
	}
	return svc.generate(ctx, actor, cols)
}

// GenerateForClass issues the entries of every active student of a class for an academic year.
// Mandatory structures apply to every student; optional transport and food structures only to
// students who opted in to the service; other optional structures are skipped.
func (svc *Service) GenerateForClass(ctx context.Context, actor user.User, g ClassGeneration) ([]Collection, error) {
	if err := actor.Authorize(user.PermManageFees); err != nil {
		return nil, err
	}
	if err := g.Validate(svc.validate); err != nil {
		return nil, err
	}

	structures, err := svc.structures.Lookup(ctx, g.ClassID, g.AcademicYear)
	if err != nil {
		return nil, errors.Wrap(err, "looking up fee structures")
	}
	active := true
	students, err := svc.students.QueryStudents(ctx, &student.QueryFilter{ClassID: g.ClassID, IsActive: &active})
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}

	now := NowFunc().UTC()
	cols := make([]Collection, 0, len(students)*len(structures))
	for _, std := range students {
		for _, st := range structures {
			if appliesTo(st, std) {
				cols = append(cols, newCollection(std.ID, st, g.DueDate, now))
			}
		}
	}
	return svc.generate(ctx, actor, cols)
}

func appliesTo(st fee.Structure, std student.Student) bool {
	if st.IsMandatory {
		return true
	}
	switch st.Type {
	case fee.TypeTransport:
		return std.IsTransportUser
	case fee.TypeFood:
		return std.IsFoodServiceUser
	}
	return false
}

func (svc *Service) generate(ctx context.Context, actor user.User, cols []Collection) ([]Collection, error) {
	created := make([]Collection, 0, len(cols))
	for start := 0; start < len(cols); start += svc.opts.BatchSize {
		end := start + svc.opts.BatchSize
		if end > len(cols) {
			end = len(cols)
		}
		batch := cols[start:end]

		var inserted []Collection
		err := svc.db.RunInTx(ctx, func(exec core.DBExecutor) error {
			var err error
			inserted, err = svc.repo.CreateCollections(ctx, batch, exec)
			return err
		})
		if err != nil {
			return created, errors.Wrapf(err, "creating fee collections %d-%d", start, end)
		}
		created = append(created, inserted...)
	}

	if len(created) > 0 {
		ids := make([]string, 0, len(created))
		structureIDs := make([]string, 0)
		seen := make(map[string]bool)
		for _, col := range created {
			ids = append(ids, col.ID)
			if !seen[col.FeeStructureID] {
				seen[col.FeeStructureID] = true
				structureIDs = append(structureIDs, col.FeeStructureID)
			}
		}
		// one run may span several structures, so it gets its own key
		core.Notify(ctx, svc.publisher, svc.logger, core.NewEvent(core.EventFeesGenerated, uuid.New().String(), actor.ID,
			map[string]interface{}{"count": len(created), "collection_ids": ids, "fee_structure_ids": structureIDs}))
	}
	return created, nil
}

// ApplyPayment records a payment against an entry.
// The paid amount replaces the previous one; the payment date and collecting staff are stamped on every call.
func (svc *Service) ApplyPayment(ctx context.Context, actor user.User, id string, p Payment) (Collection, error) {
	if err := actor.Authorize(user.PermCollectFees); err != nil {
		return Collection{}, err
	}
	if err := p.Validate(svc.validate); err != nil {
		return Collection{}, err
	}

	var col Collection
	err := svc.db.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if col, err = svc.repo.GetCollection(ctx, id, true /* forUpdate */, exec); err != nil {
			return err
		}
		if !svc.opts.AllowOverpayment && p.AmountPaid.GreaterThan(col.AmountDue) {
			msg := fmt.Sprintf("cannot exceed the amount due (%s)", col.AmountDue.StringFixed(2))
			return core.NewValidationError(errors.New(msg), core.FieldError{Field: "amount_paid", Error: msg})
		}

		now := NowFunc().UTC()
		col.Status = DeriveStatus(col.Status, p.AmountPaid, col.AmountDue, col.DueDate.Time, now)
		col.AmountPaid = p.AmountPaid
		col.Method = p.Method
		col.ReceiptNumber = p.ReceiptNumber
		col.Notes = p.Notes
		col.PaymentDate = &now
		col.CollectedBy = actor.ID
		col.UpdatedAt = now

		col, err = svc.repo.UpdateCollection(ctx, col, exec)
		return errors.Wrap(err, "updating fee collection")
	})
	if err != nil {
		return Collection{}, err
	}

	core.Notify(ctx, svc.publisher, svc.logger, core.NewEvent(core.EventPaymentRecorded, col.ID, actor.ID, col))
	return col, nil
}

// MarkOverdue flags the unpaid entries due before asOf's day. It is safe to run repeatedly.
func (svc *Service) MarkOverdue(ctx context.Context, actor user.User, asOf time.Time) (int, error) {
	if err := actor.Authorize(user.PermManageFees); err != nil {
		return 0, err
	}

	var count int
	err := svc.db.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		count, err = svc.repo.MarkOverdue(ctx, core.Day(asOf), NowFunc().UTC(), exec)
		return err
	})
	if err != nil {
		return 0, errors.Wrap(err, "marking overdue fee collections")
	}

	if count > 0 {
		core.Notify(ctx, svc.publisher, svc.logger, core.NewEvent(core.EventFeesMarkedOverdue, core.Day(asOf).Format(core.DateLayout), actor.ID,
			map[string]interface{}{"count": count}))
	}
	return count, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Collection, error) {
	return svc.repo.GetCollection(ctx, id, false)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Collection, error) {
	return svc.repo.QueryCollections(ctx, filter, core.CleanOrdering(ordering, orderingFields...))
}

// Totals sums due, paid and outstanding amounts over the matching entries.
func (svc *Service) Totals(ctx context.Context, filter *QueryFilter) (Totals, error) {
	byType, err := svc.repo.SumCollections(ctx, filter)
	if err != nil {
		return Totals{}, errors.Wrap(err, "summing fee collections")
	}
	return SumTotals(byType), nil
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	unique := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		unique = append(unique, v)
	}
	return unique
}
