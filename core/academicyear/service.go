// Package academicyear manages school years; exactly one of them may be flagged current.
package academicyear

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/bursar/core"
	"github.com/trezcool/bursar/core/user"
)

var (
	ErrNotFound   = errors.New("academic year not found")
	ErrYearExists = errors.New("this academic year already exists")
)

type (
	Repository interface {
		CreateYear(ctx context.Context, year AcademicYear, exec ...core.DBExecutor) (AcademicYear, error)
		GetYear(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (AcademicYear, error)
		QueryYears(ctx context.Context, exec ...core.DBExecutor) ([]AcademicYear, error)
		// ClearCurrent unflags the current year, if any.
		ClearCurrent(ctx context.Context, exec ...core.DBExecutor) error
		MarkCurrent(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service struct {
		db       core.TxRunner
		repo     Repository
		validate *validator.Validate
	}
)

func NewService(db core.TxRunner, repo Repository, validate *validator.Validate) *Service {
	return &Service{db: db, repo: repo, validate: validate}
}

func (svc *Service) Create(ctx context.Context, actor user.User, ny NewAcademicYear) (AcademicYear, error) {
	if err := actor.Authorize(user.PermManageYears); err != nil {
		return AcademicYear{}, err
	}
	if err := ny.Validate(svc.validate); err != nil {
		return AcademicYear{}, err
	}

	var year AcademicYear
	err := svc.db.RunInTx(ctx, func(exec core.DBExecutor) error {
		if ny.IsCurrent {
			if err := svc.repo.ClearCurrent(ctx, exec); err != nil {
				return errors.Wrap(err, "clearing current year")
			}
		}
		var err error
		year, err = svc.repo.CreateYear(ctx, AcademicYear{
			Year:      ny.Year,
			StartDate: ny.StartDate,
			EndDate:   ny.EndDate,
			IsCurrent: ny.IsCurrent,
		}, exec)
		return err
	})
	if err != nil {
		if errors.Cause(err) == ErrYearExists {
			return AcademicYear{}, core.NewValidationError(ErrYearExists, core.FieldError{Field: "year", Error: ErrYearExists.Error()})
		}
		return AcademicYear{}, errors.Wrap(err, "creating academic year")
	}
	return year, nil
}

// SetCurrent flags the year as the current one, unflagging the previous current year in the same transaction.
func (svc *Service) SetCurrent(ctx context.Context, actor user.User, id string) (AcademicYear, error) {
	if err := actor.Authorize(user.PermManageYears); err != nil {
		return AcademicYear{}, err
	}

	var year AcademicYear
	err := svc.db.RunInTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if year, err = svc.repo.GetYear(ctx, GetFilter{ID: id}, exec); err != nil {
			return err
		}
		if year.IsCurrent {
			return nil
		}
		if err = svc.repo.ClearCurrent(ctx, exec); err != nil {
			return errors.Wrap(err, "clearing current year")
		}
		if err = svc.repo.MarkCurrent(ctx, id, exec); err != nil {
			return errors.Wrap(err, "marking current year")
		}
		year.IsCurrent = true
		return nil
	})
	return year, err
}

// Current returns ErrNotFound when no year is flagged current.
func (svc *Service) Current(ctx context.Context) (AcademicYear, error) {
	return svc.repo.GetYear(ctx, GetFilter{Current: true})
}

func (svc *Service) Get(ctx context.Context, id string) (AcademicYear, error) {
	return svc.repo.GetYear(ctx, GetFilter{ID: id})
}

func (svc *Service) Query(ctx context.Context) ([]AcademicYear, error) {
	return svc.repo.QueryYears(ctx)
}
