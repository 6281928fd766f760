package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/bursar/core"
	"github.com/trezcool/bursar/core/academicyear"
)

const academicYearColumns = `id, year, start_date, end_date, is_current`

type academicYearRow struct {
	ID        string    `db:"id"`
	Year      string    `db:"year"`
	StartDate time.Time `db:"start_date"`
	EndDate   time.Time `db:"end_date"`
	IsCurrent bool      `db:"is_current"`
}

type academicYearRepository struct {
	repository
}

var _ academicyear.Repository = (*academicYearRepository)(nil) // interface compliance check

func NewAcademicYearRepository(db *sqlx.DB) *academicYearRepository {
	return &academicYearRepository{repository{db: db}}
}

func (repo academicYearRepository) unboil(row academicYearRow) academicyear.AcademicYear {
	return academicyear.AcademicYear{
		ID:        row.ID,
		Year:      row.Year,
		StartDate: core.NewDate(row.StartDate),
		EndDate:   core.NewDate(row.EndDate),
		IsCurrent: row.IsCurrent,
	}
}

func (repo academicYearRepository) CreateYear(ctx context.Context, year academicyear.AcademicYear, exec ...core.DBExecutor) (academicyear.AcademicYear, error) {
	year.ID = uuid.New().String()
	row := academicYearRow{
		ID:        year.ID,
		Year:      year.Year,
		StartDate: year.StartDate.Time,
		EndDate:   year.EndDate.Time,
		IsCurrent: year.IsCurrent,
	}
	q := `INSERT INTO academic_year (` + academicYearColumns + `) VALUES (:id, :year, :start_date, :end_date, :is_current)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, row); err != nil {
		if isUniqueViolation(err) {
			return academicyear.AcademicYear{}, academicyear.ErrYearExists
		}
		return academicyear.AcademicYear{}, errors.Wrap(err, "inserting academic year")
	}
	return year, nil
}

func (repo academicYearRepository) GetYear(ctx context.Context, filter academicyear.GetFilter, exec ...core.DBExecutor) (academicyear.AcademicYear, error) {
	exe := repo.getExec(exec)
	w := new(where)
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return academicyear.AcademicYear{}, academicyear.ErrNotFound
		}
		w.add("id = ?", filter.ID)
	case filter.Year != "":
		w.add("year = ?", filter.Year)
	case filter.Current:
		w.add("is_current")
	default:
		return academicyear.AcademicYear{}, academicyear.ErrNotFound
	}

	var row academicYearRow
	q := `SELECT ` + academicYearColumns + ` FROM academic_year` + w.String() + ` LIMIT 1`
	if err := sqlx.GetContext(ctx, exe, &row, exe.Rebind(q), w.args...); err != nil {
		return academicyear.AcademicYear{}, trapNoRowsErr(err, academicyear.ErrNotFound, "finding academic year")
	}
	return repo.unboil(row), nil
}

func (repo academicYearRepository) QueryYears(ctx context.Context, exec ...core.DBExecutor) ([]academicyear.AcademicYear, error) {
	var rows []academicYearRow
	q := `SELECT ` + academicYearColumns + ` FROM academic_year ORDER BY start_date DESC`
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying academic years")
	}
	years := make([]academicyear.AcademicYear, 0, len(rows))
	for _, row := range rows {
		years = append(years, repo.unboil(row))
	}
	return years, nil
}

func (repo academicYearRepository) ClearCurrent(ctx context.Context, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx, `UPDATE academic_year SET is_current = FALSE WHERE is_current`)
	return errors.Wrap(err, "clearing current academic year")
}

func (repo academicYearRepository) MarkCurrent(ctx context.Context, id string, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	res, err := exe.ExecContext(ctx, exe.Rebind(`UPDATE academic_year SET is_current = TRUE WHERE id = ?`), id)
	if err != nil {
		return errors.Wrap(err, "marking current academic year")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return academicyear.ErrNotFound
	}
	return nil
}
