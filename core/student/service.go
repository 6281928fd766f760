package student

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/bursar/core"
)

var (
	ErrNotFound      = errors.New("student not found")
	ErrClassNotFound = errors.New("class not found")
	ErrNumberExists  = errors.New("a student with this number already exists")
	ErrClassExists   = errors.New("this class already exists")
)

type (
	Repository interface {
		CreateClass(ctx context.Context, class Class, exec ...core.DBExecutor) (Class, error)
		GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (Class, error)
		QueryClasses(ctx context.Context, exec ...core.DBExecutor) ([]Class, error)
		CreateStudent(ctx context.Context, std Student, exec ...core.DBExecutor) (Student, error)
		GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (Student, error)
		QueryStudents(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) ([]Student, error)
		CountStudents(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) (int, error)
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
	}
)

func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, validate: validate}
}

func (svc *Service) CreateClass(ctx context.Context, nc NewClass) (Class, error) {
	if err := nc.Validate(svc.validate); err != nil {
		return Class{}, err
	}
	class, err := svc.repo.CreateClass(ctx, Class{Name: nc.Name, Section: nc.Section})
	if errors.Cause(err) == ErrClassExists {
		return Class{}, core.NewValidationError(ErrClassExists, core.FieldError{Field: "name", Error: ErrClassExists.Error()})
	}
	return class, errors.Wrap(err, "creating class")
}

func (svc *Service) QueryClasses(ctx context.Context) ([]Class, error) {
	return svc.repo.QueryClasses(ctx)
}

func (svc *Service) Enroll(ctx context.Context, ns NewStudent) (Student, error) {
	if err := ns.Validate(svc.validate); err != nil {
		return Student{}, err
	}
	if _, err := svc.repo.GetClass(ctx, ns.ClassID); err != nil {
		if errors.Cause(err) == ErrClassNotFound {
			return Student{}, core.NewValidationError(err, core.FieldError{Field: "class_id", Error: err.Error()})
		}
		return Student{}, errors.Wrap(err, "getting class")
	}

	std, err := svc.repo.CreateStudent(ctx, Student{
		StudentNumber:     ns.StudentNumber,
		Name:              ns.Name,
		ClassID:           ns.ClassID,
		IsTransportUser:   ns.IsTransportUser,
		IsFoodServiceUser: ns.IsFoodServiceUser,
		IsActive:          true,
		EnrolledAt:        time.Now().UTC(),
	})
	if errors.Cause(err) == ErrNumberExists {
		return Student{}, core.NewValidationError(ErrNumberExists, core.FieldError{Field: "student_number", Error: ErrNumberExists.Error()})
	}
	return std, errors.Wrap(err, "creating student")
}

func (svc *Service) Get(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter) ([]Student, error) {
	return svc.repo.QueryStudents(ctx, filter)
}

// CountActive returns the number of students currently enrolled.
func (svc *Service) CountActive(ctx context.Context) (int, error) {
	active := true
	return svc.repo.CountStudents(ctx, &QueryFilter{IsActive: &active})
}
