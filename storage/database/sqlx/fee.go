package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/bursar/core"
	"github.com/trezcool/bursar/core/fee"
)

const feeStructureColumns = `id, class_id, fee_type, amount, is_mandatory, academic_year, created_at, updated_at`

type feeStructureRow struct {
	ID           string          `db:"id"`
	ClassID      string          `db:"class_id"`
	Type         string          `db:"fee_type"`
	Amount       decimal.Decimal `db:"amount"`
	IsMandatory  bool            `db:"is_mandatory"`
	AcademicYear string          `db:"academic_year"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

type feeStructureRepository struct {
	repository
}

var _ fee.Repository = (*feeStructureRepository)(nil) // interface compliance check

func NewFeeStructureRepository(db *sqlx.DB) *feeStructureRepository {
	return &feeStructureRepository{repository{db: db}}
}

func (repo feeStructureRepository) boil(st fee.Structure) feeStructureRow {
	return feeStructureRow{
		ID:           st.ID,
		ClassID:      st.ClassID,
		Type:         string(st.Type),
		Amount:       st.Amount,
		IsMandatory:  st.IsMandatory,
		AcademicYear: st.AcademicYear,
		CreatedAt:    st.CreatedAt.UTC(),
		UpdatedAt:    st.UpdatedAt.UTC(),
	}
}

func (repo feeStructureRepository) unboil(row feeStructureRow) fee.Structure {
	return fee.Structure{
		ID:           row.ID,
		ClassID:      row.ClassID,
		Type:         fee.Type(row.Type),
		Amount:       row.Amount,
		IsMandatory:  row.IsMandatory,
		AcademicYear: row.AcademicYear,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
}

func (repo feeStructureRepository) CreateStructure(ctx context.Context, st fee.Structure, exec ...core.DBExecutor) (fee.Structure, error) {
	st.ID = uuid.New().String()
	q := `INSERT INTO fee_structure (` + feeStructureColumns + `)
		VALUES (:id, :class_id, :fee_type, :amount, :is_mandatory, :academic_year, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, repo.boil(st)); err != nil {
		if isUniqueViolation(err) {
			return fee.Structure{}, fee.ErrDuplicateStructure
		}
		return fee.Structure{}, errors.Wrap(err, "inserting fee structure")
	}
	return st, nil
}

func (repo feeStructureRepository) GetStructure(ctx context.Context, id string, exec ...core.DBExecutor) (fee.Structure, error) {
	if _, err := uuid.Parse(id); err != nil {
		return fee.Structure{}, fee.ErrNotFound
	}
	exe := repo.getExec(exec)
	var row feeStructureRow
	q := `SELECT ` + feeStructureColumns + ` FROM fee_structure WHERE id = ?`
	if err := sqlx.GetContext(ctx, exe, &row, exe.Rebind(q), id); err != nil {
		return fee.Structure{}, trapNoRowsErr(err, fee.ErrNotFound, "finding fee structure")
	}
	return repo.unboil(row), nil
}

func (repo feeStructureRepository) QueryStructures(ctx context.Context, filter *fee.QueryFilter, exec ...core.DBExecutor) ([]fee.Structure, error) {
	exe := repo.getExec(exec)
	w := new(where)
	if filter != nil {
		if filter.ClassID != "" {
			if _, err := uuid.Parse(filter.ClassID); err != nil {
				return []fee.Structure{}, nil
			}
			w.add("class_id = ?", filter.ClassID)
		}
		if filter.AcademicYear != "" {
			w.add("academic_year = ?", filter.AcademicYear)
		}
		if filter.Type != "" {
			w.add("fee_type = ?", string(filter.Type))
		}
	}

	var rows []feeStructureRow
	q := `SELECT ` + feeStructureColumns + ` FROM fee_structure` + w.String() + ` ORDER BY created_at, id`
	if err := sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying fee structures")
	}

	structures := make([]fee.Structure, 0, len(rows))
	for _, row := range rows {
		structures = append(structures, repo.unboil(row))
	}
	return structures, nil
}

func (repo feeStructureRepository) UpdateStructure(ctx context.Context, st fee.Structure, exec ...core.DBExecutor) (fee.Structure, error) {
	q := `UPDATE fee_structure SET amount = :amount, is_mandatory = :is_mandatory, updated_at = :updated_at WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, repo.boil(st))
	if err != nil {
		return fee.Structure{}, errors.Wrap(err, "updating fee structure")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fee.Structure{}, fee.ErrNotFound
	}
	return st, nil
}
