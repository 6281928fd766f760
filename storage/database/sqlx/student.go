package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/bursar/core"
	"github.com/trezcool/bursar/core/student"
)

const (
	classColumns   = `id, name, section`
	studentColumns = `id, student_number, name, class_id, is_transport_user, is_food_service_user, is_active, enrolled_at`
)

type studentRow struct {
	ID                string    `db:"id"`
	StudentNumber     string    `db:"student_number"`
	Name              string    `db:"name"`
	ClassID           string    `db:"class_id"`
	IsTransportUser   bool      `db:"is_transport_user"`
	IsFoodServiceUser bool      `db:"is_food_service_user"`
	IsActive          bool      `db:"is_active"`
	EnrolledAt        time.Time `db:"enrolled_at"`
}

type studentRepository struct {
	repository
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *sqlx.DB) *studentRepository {
	return &studentRepository{repository{db: db}}
}

func (repo studentRepository) boil(std student.Student) studentRow {
	return studentRow{
		ID:                std.ID,
		StudentNumber:     std.StudentNumber,
		Name:              std.Name,
		ClassID:           std.ClassID,
		IsTransportUser:   std.IsTransportUser,
		IsFoodServiceUser: std.IsFoodServiceUser,
		IsActive:          std.IsActive,
		EnrolledAt:        std.EnrolledAt.UTC(),
	}
}

func (repo studentRepository) unboil(row studentRow) student.Student {
	return student.Student{
		ID:                row.ID,
		StudentNumber:     row.StudentNumber,
		Name:              row.Name,
		ClassID:           row.ClassID,
		IsTransportUser:   row.IsTransportUser,
		IsFoodServiceUser: row.IsFoodServiceUser,
		IsActive:          row.IsActive,
		EnrolledAt:        row.EnrolledAt.UTC(),
	}
}

func (repo studentRepository) CreateClass(ctx context.Context, class student.Class, exec ...core.DBExecutor) (student.Class, error) {
	class.ID = uuid.New().String()
	q := `INSERT INTO school_class (` + classColumns + `) VALUES (:id, :name, :section)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, class); err != nil {
		if isUniqueViolation(err) {
			return student.Class{}, student.ErrClassExists
		}
		return student.Class{}, errors.Wrap(err, "inserting class")
	}
	return class, nil
}

func (repo studentRepository) GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (student.Class, error) {
	if _, err := uuid.Parse(id); err != nil {
		return student.Class{}, student.ErrClassNotFound
	}
	exe := repo.getExec(exec)
	var class student.Class
	q := `SELECT ` + classColumns + ` FROM school_class WHERE id = ?`
	if err := sqlx.GetContext(ctx, exe, &class, exe.Rebind(q), id); err != nil {
		return student.Class{}, trapNoRowsErr(err, student.ErrClassNotFound, "finding class")
	}
	return class, nil
}

func (repo studentRepository) QueryClasses(ctx context.Context, exec ...core.DBExecutor) ([]student.Class, error) {
	classes := make([]student.Class, 0)
	q := `SELECT ` + classColumns + ` FROM school_class ORDER BY name, section`
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &classes, q); err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	return classes, nil
}

func (repo studentRepository) CreateStudent(ctx context.Context, std student.Student, exec ...core.DBExecutor) (student.Student, error) {
	std.ID = uuid.New().String()
	q := `INSERT INTO student (` + studentColumns + `)
		VALUES (:id, :student_number, :name, :class_id, :is_transport_user, :is_food_service_user, :is_active, :enrolled_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, repo.boil(std)); err != nil {
		if isUniqueViolation(err) {
			return student.Student{}, student.ErrNumberExists
		}
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return std, nil
}

func (repo studentRepository) GetStudent(ctx context.Context, id string, exec ...core.DBExecutor) (student.Student, error) {
	if _, err := uuid.Parse(id); err != nil {
		return student.Student{}, student.ErrNotFound
	}
	exe := repo.getExec(exec)
	var row studentRow
	q := `SELECT ` + studentColumns + ` FROM student WHERE id = ?`
	if err := sqlx.GetContext(ctx, exe, &row, exe.Rebind(q), id); err != nil {
		return student.Student{}, trapNoRowsErr(err, student.ErrNotFound, "finding student")
	}
	return repo.unboil(row), nil
}

func (repo studentRepository) filter(filter *student.QueryFilter) *where {
	w := new(where)
	if filter == nil {
		return w
	}
	if filter.ClassID != "" {
		if _, err := uuid.Parse(filter.ClassID); err != nil {
			w.add("FALSE")
			return w
		}
		w.add("class_id = ?", filter.ClassID)
	}
	if filter.IDs != nil {
		ids := make([]string, 0, len(filter.IDs))
		for _, id := range filter.IDs {
			if _, err := uuid.Parse(id); err == nil {
				ids = append(ids, id)
			}
		}
		w.add("id = ANY(?::uuid[])", pq.Array(ids))
	}
	if filter.IsActive != nil {
		w.add("is_active = ?", *filter.IsActive)
	}
	return w
}

func (repo studentRepository) QueryStudents(ctx context.Context, filter *student.QueryFilter, exec ...core.DBExecutor) ([]student.Student, error) {
	exe := repo.getExec(exec)
	w := repo.filter(filter)

	var rows []studentRow
	q := `SELECT ` + studentColumns + ` FROM student` + w.String() + ` ORDER BY name, student_number`
	if err := sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}

	students := make([]student.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, repo.unboil(row))
	}
	return students, nil
}

func (repo studentRepository) CountStudents(ctx context.Context, filter *student.QueryFilter, exec ...core.DBExecutor) (int, error) {
	exe := repo.getExec(exec)
	w := repo.filter(filter)

	var count int
	q := `SELECT COUNT(*) FROM student` + w.String()
	if err := sqlx.GetContext(ctx, exe, &count, exe.Rebind(q), w.args...); err != nil {
		return 0, errors.Wrap(err, "counting students")
	}
	return count, nil
}
