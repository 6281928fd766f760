// Package fee is the fee structure registry: the priced fee categories each class owes per academic year.
package fee

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/bursar/core"
	"github.com/trezcool/bursar/core/student"
	"github.com/trezcool/bursar/core/user"
)

var (
	ErrNotFound           = errors.New("fee structure not found")
	ErrDuplicateStructure = errors.New("a fee structure of this type already exists for this class and academic year")
)

type (
	Repository interface {
		// CreateStructure returns ErrDuplicateStructure if (ClassID, Type, AcademicYear) is taken.
		CreateStructure(ctx context.Context, st Structure, exec ...core.DBExecutor) (Structure, error)
		GetStructure(ctx context.Context, id string, exec ...core.DBExecutor) (Structure, error)
		// QueryStructures returns matching structures in insertion order.
		QueryStructures(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) ([]Structure, error)
		UpdateStructure(ctx context.Context, st Structure, exec ...core.DBExecutor) (Structure, error)
	}

	ClassGetter interface {
		GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (student.Class, error)
	}

	Service struct {
		repo      Repository
		classes   ClassGetter
		publisher core.EventPublisher
		logger    core.Logger
		validate  *validator.Validate
	}
)

func NewService(
	repo Repository,
	classes ClassGetter,
	publisher core.EventPublisher,
	logger core.Logger,
	validate *validator.Validate,
) *Service {
	return &Service{
		repo:      repo,
		classes:   classes,
		publisher: publisher,
		logger:    logger,
		validate:  validate,
	}
}

// Define registers a new fee structure.
func (svc *Service) Define(ctx context.Context, actor user.User, ns NewStructure) (Structure, error) {
	if err := actor.Authorize(user.PermManageFees); err != nil {
		return Structure{}, err
	}
	if err := ns.Validate(svc.validate); err != nil {
		return Structure{}, err
	}
	if _, err := svc.classes.GetClass(ctx, ns.ClassID); err != nil {
		if errors.Cause(err) == student.ErrClassNotFound {
			return Structure{}, core.NewValidationError(err, core.FieldError{Field: "class_id", Error: err.Error()})
		}
		return Structure{}, errors.Wrap(err, "getting class")
	}

	isMandatory := true
	if ns.IsMandatory != nil {
		isMandatory = *ns.IsMandatory
	}
	now := time.Now().UTC()
	st, err := svc.repo.CreateStructure(ctx, Structure{
		ClassID:      ns.ClassID,
		Type:         ns.Type,
		Amount:       ns.Amount,
		IsMandatory:  isMandatory,
		AcademicYear: ns.AcademicYear,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Cause(err) == ErrDuplicateStructure {
			return Structure{}, ErrDuplicateStructure
		}
		return Structure{}, errors.Wrap(err, "creating fee structure")
	}

	core.Notify(ctx, svc.publisher, svc.logger, core.NewEvent(core.EventStructureDefined, st.ID, actor.ID, st))
	return st, nil
}

// Lookup returns the structures of a class for an academic year, in insertion order.
func (svc *Service) Lookup(ctx context.Context, classID, academicYear string) ([]Structure, error) {
	return svc.repo.QueryStructures(ctx, &QueryFilter{ClassID: classID, AcademicYear: academicYear})
}

func (svc *Service) Get(ctx context.Context, id string) (Structure, error) {
	return svc.repo.GetStructure(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter) ([]Structure, error) {
	return svc.repo.QueryStructures(ctx, filter)
}

// Correct changes a structure's amount and/or mandatory flag.
func (svc *Service) Correct(ctx context.Context, actor user.User, id string, c Correction) (Structure, error) {
	if err := actor.Authorize(user.PermManageFees); err != nil {
		return Structure{}, err
	}
	if err := c.Validate(svc.validate); err != nil {
		return Structure{}, err
	}

	st, err := svc.repo.GetStructure(ctx, id)
	if err != nil {
		return Structure{}, err
	}
	if c.Amount != nil {
		st.Amount = *c.Amount
	}
	if c.IsMandatory != nil {
		st.IsMandatory = *c.IsMandatory
	}
	st.UpdatedAt = time.Now().UTC()

	if st, err = svc.repo.UpdateStructure(ctx, st); err != nil {
		return Structure{}, errors.Wrap(err, "updating fee structure")
	}

	core.Notify(ctx, svc.publisher, svc.logger, core.NewEvent(core.EventStructureCorrected, st.ID, actor.ID, st))
	return st, nil
}
