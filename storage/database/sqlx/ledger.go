package sqlxrepos

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/bursar/core"
	"github.com/trezcool/bursar/core/fee"
	"github.com/trezcool/bursar/core/ledger"
)

const collectionColumns = `id, student_id, fee_structure_id, fee_type, academic_year, amount_due, amount_paid,
	payment_status, payment_method, due_date, payment_date, receipt_number, collected_by, notes, created_at, updated_at`

type collectionRow struct {
	ID             string          `db:"id"`
	StudentID      string          `db:"student_id"`
	FeeStructureID string          `db:"fee_structure_id"`
	FeeType        string          `db:"fee_type"`
	AcademicYear   string          `db:"academic_year"`
	AmountDue      decimal.Decimal `db:"amount_due"`
	AmountPaid     decimal.Decimal `db:"amount_paid"`
	Status         string          `db:"payment_status"`
	Method         string          `db:"payment_method"`
	DueDate        time.Time       `db:"due_date"`
	PaymentDate    null.Time       `db:"payment_date"`
	ReceiptNumber  string          `db:"receipt_number"`
	CollectedBy    null.String     `db:"collected_by"`
	Notes          string          `db:"notes"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

type totalsRow struct {
	FeeType string          `db:"fee_type"`
	Count   int             `db:"count"`
	Due     decimal.Decimal `db:"due"`
	Paid    decimal.Decimal `db:"paid"`
}

type collectionRepository struct {
	repository
}

var _ ledger.Repository = (*collectionRepository)(nil) // interface compliance check

func NewCollectionRepository(db *sqlx.DB) *collectionRepository {
	return &collectionRepository{repository{db: db}}
}

func (repo collectionRepository) boil(col ledger.Collection) collectionRow {
	return collectionRow{
		ID:             col.ID,
		StudentID:      col.StudentID,
		FeeStructureID: col.FeeStructureID,
		FeeType:        string(col.FeeType),
		AcademicYear:   col.AcademicYear,
		AmountDue:      col.AmountDue,
		AmountPaid:     col.AmountPaid,
		Status:         string(col.Status),
		Method:         string(col.Method),
		DueDate:        col.DueDate.Time,
		PaymentDate:    null.TimeFromPtr(col.PaymentDate),
		ReceiptNumber:  col.ReceiptNumber,
		CollectedBy:    null.NewString(col.CollectedBy, col.CollectedBy != ""),
		Notes:          col.Notes,
		CreatedAt:      col.CreatedAt.UTC(),
		UpdatedAt:      col.UpdatedAt.UTC(),
	}
}

func (repo collectionRepository) unboil(row collectionRow) ledger.Collection {
	col := ledger.Collection{
		ID:             row.ID,
		StudentID:      row.StudentID,
		FeeStructureID: row.FeeStructureID,
		FeeType:        fee.Type(row.FeeType),
		AcademicYear:   row.AcademicYear,
		AmountDue:      row.AmountDue,
		AmountPaid:     row.AmountPaid,
		Status:         ledger.Status(row.Status),
		Method:         ledger.Method(row.Method),
		DueDate:        core.NewDate(row.DueDate),
		ReceiptNumber:  row.ReceiptNumber,
		CollectedBy:    row.CollectedBy.String,
		Notes:          row.Notes,
		CreatedAt:      row.CreatedAt.UTC(),
		UpdatedAt:      row.UpdatedAt.UTC(),
	}
	if row.PaymentDate.Valid {
		paid := row.PaymentDate.Time.UTC()
		col.PaymentDate = &paid
	}
	return col
}

func (repo collectionRepository) CreateCollections(ctx context.Context, cols []ledger.Collection, exec ...core.DBExecutor) ([]ledger.Collection, error) {
	if len(cols) == 0 {
		return []ledger.Collection{}, nil
	}
	exe := repo.getExec(exec)

	values := make([]string, 0, len(cols))
	args := make([]interface{}, 0, len(cols)*16)
	for i := range cols {
		cols[i].ID = uuid.New().String()
		row := repo.boil(cols[i])
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			row.ID, row.StudentID, row.FeeStructureID, row.FeeType, row.AcademicYear, row.AmountDue, row.AmountPaid,
			row.Status, row.Method, row.DueDate, row.PaymentDate, row.ReceiptNumber, row.CollectedBy, row.Notes,
			row.CreatedAt, row.UpdatedAt)
	}

	q := `INSERT INTO fee_collection (` + collectionColumns + `) VALUES ` + strings.Join(values, ", ") +
		` ON CONFLICT (student_id, fee_structure_id) DO NOTHING RETURNING id`
	var ids []string
	if err := sqlx.SelectContext(ctx, exe, &ids, exe.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "inserting fee collections")
	}

	inserted := make(map[string]bool, len(ids))
	for _, id := range ids {
		inserted[id] = true
	}
	created := make([]ledger.Collection, 0, len(ids))
	for _, col := range cols {
		if inserted[col.ID] {
			created = append(created, col)
		}
	}
	return created, nil
}

func (repo collectionRepository) GetCollection(ctx context.Context, id string, forUpdate bool, exec ...core.DBExecutor) (ledger.Collection, error) {
	if _, err := uuid.Parse(id); err != nil {
		return ledger.Collection{}, ledger.ErrNotFound
	}
	exe := repo.getExec(exec)

	q := `SELECT ` + collectionColumns + ` FROM fee_collection WHERE id = ?`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	var row collectionRow
	if err := sqlx.GetContext(ctx, exe, &row, exe.Rebind(q), id); err != nil {
		return ledger.Collection{}, trapNoRowsErr(err, ledger.ErrNotFound, "finding fee collection")
	}
	return repo.unboil(row), nil
}

func (repo collectionRepository) UpdateCollection(ctx context.Context, col ledger.Collection, exec ...core.DBExecutor) (ledger.Collection, error) {
	q := `UPDATE fee_collection SET amount_paid = :amount_paid, payment_status = :payment_status,
		payment_method = :payment_method, payment_date = :payment_date, receipt_number = :receipt_number,
		collected_by = :collected_by, notes = :notes, updated_at = :updated_at
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), q, repo.boil(col))
	if err != nil {
		return ledger.Collection{}, errors.Wrap(err, "updating fee collection")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ledger.Collection{}, ledger.ErrNotFound
	}
	return col, nil
}

func (repo collectionRepository) filter(filter *ledger.QueryFilter) *where {
	w := new(where)
	if filter == nil {
		return w
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		w.add("payment_status = ANY(?::text[])", pq.Array(statuses))
	}
	if filter.ClassID != "" {
		if _, err := uuid.Parse(filter.ClassID); err != nil {
			w.add("FALSE")
		} else {
			w.add("student_id IN (SELECT id FROM student WHERE class_id = ?)", filter.ClassID)
		}
	}
	if filter.StudentID != "" {
		if _, err := uuid.Parse(filter.StudentID); err != nil {
			w.add("FALSE")
		} else {
			w.add("student_id = ?", filter.StudentID)
		}
	}
	if filter.AcademicYear != "" {
		w.add("academic_year = ?", filter.AcademicYear)
	}
	if len(filter.FeeTypes) > 0 {
		types := make([]string, 0, len(filter.FeeTypes))
		for _, t := range filter.FeeTypes {
			types = append(types, string(t))
		}
		w.add("fee_type = ANY(?::text[])", pq.Array(types))
	}
	if !filter.PaidFrom.IsZero() {
		w.add("payment_date >= ?", filter.PaidFrom.UTC())
	}
	if !filter.PaidTo.IsZero() {
		w.add("payment_date < ?", filter.PaidTo.UTC())
	}
	return w
}

func (repo collectionRepository) QueryCollections(ctx context.Context, filter *ledger.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]ledger.Collection, error) {
	exe := repo.getExec(exec)
	w := repo.filter(filter)

	q := `SELECT ` + collectionColumns + ` FROM fee_collection` + w.String() + orderBy(ordering, "created_at, id")
	if filter != nil && filter.Limit > 0 {
		q += ` LIMIT ` + strconv.Itoa(filter.Limit)
	}

	var rows []collectionRow
	if err := sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "querying fee collections")
	}
	cols := make([]ledger.Collection, 0, len(rows))
	for _, row := range rows {
		cols = append(cols, repo.unboil(row))
	}
	return cols, nil
}

func (repo collectionRepository) SumCollections(ctx context.Context, filter *ledger.QueryFilter, exec ...core.DBExecutor) (map[fee.Type]ledger.Totals, error) {
	exe := repo.getExec(exec)
	w := repo.filter(filter)

	q := `SELECT fee_type, COUNT(*) AS count, COALESCE(SUM(amount_due), 0) AS due, COALESCE(SUM(amount_paid), 0) AS paid
		FROM fee_collection` + w.String() + ` GROUP BY fee_type`
	var rows []totalsRow
	if err := sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(q), w.args...); err != nil {
		return nil, errors.Wrap(err, "summing fee collections")
	}

	totals := make(map[fee.Type]ledger.Totals, len(rows))
	for _, row := range rows {
		totals[fee.Type(row.FeeType)] = ledger.Totals{
			Count:       row.Count,
			Due:         row.Due,
			Paid:        row.Paid,
			Outstanding: row.Due.Sub(row.Paid),
		}
	}
	return totals, nil
}

func (repo collectionRepository) MarkOverdue(ctx context.Context, asOf, now time.Time, exec ...core.DBExecutor) (int, error) {
	exe := repo.getExec(exec)
	q := `UPDATE fee_collection SET payment_status = ?, updated_at = ?
		WHERE payment_status IN (?, ?) AND due_date < ? AND amount_paid < amount_due`
	res, err := exe.ExecContext(ctx, exe.Rebind(q),
		string(ledger.StatusOverdue), now.UTC(),
		string(ledger.StatusPending), string(ledger.StatusPartial), asOf.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "marking overdue fee collections")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "counting overdue fee collections")
	}
	return int(n), nil
}
