package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/trezcool/bursar/core"
	"github.com/trezcool/bursar/core/fee"
	"github.com/trezcool/bursar/core/ledger"
)

type collectionRepository struct {
	db       *collectionTable
	students *studentTable
}

var _ ledger.Repository = (*collectionRepository)(nil) // interface compliance check

func NewCollectionRepository(db *DB) ledger.Repository {
	return &collectionRepository{db: db.collection, students: db.student}
}

func copyCollection(col ledger.Collection) ledger.Collection {
	if col.PaymentDate != nil {
		paid := *col.PaymentDate
		col.PaymentDate = &paid
	}
	return col
}

func (repo *collectionRepository) CreateCollections(_ context.Context, cols []ledger.Collection, _ ...core.DBExecutor) ([]ledger.Collection, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	type pair struct{ studentID, structureID string }
	existing := make(map[pair]bool, len(repo.db.table))
	for _, col := range repo.db.table {
		existing[pair{col.StudentID, col.FeeStructureID}] = true
	}

	created := make([]ledger.Collection, 0, len(cols))
	for _, col := range cols {
		key := pair{col.StudentID, col.FeeStructureID}
		if existing[key] {
			continue
		}
		existing[key] = true

		col.ID = uuid.New().String()
		stored := copyCollection(col)
		repo.db.table[col.ID] = &stored
		repo.db.order = append(repo.db.order, col.ID)
		created = append(created, col)
	}
	return created, nil
}

// GetCollection ignores forUpdate: callers already hold the DB transaction lock.
func (repo *collectionRepository) GetCollection(_ context.Context, id string, _ bool, _ ...core.DBExecutor) (ledger.Collection, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if col, ok := repo.db.table[id]; ok {
		return copyCollection(*col), nil
	}
	return ledger.Collection{}, ledger.ErrNotFound
}

func (repo *collectionRepository) UpdateCollection(_ context.Context, col ledger.Collection, _ ...core.DBExecutor) (ledger.Collection, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored, ok := repo.db.table[col.ID]
	if !ok {
		return ledger.Collection{}, ledger.ErrNotFound
	}
	stored.AmountPaid = col.AmountPaid
	stored.Status = col.Status
	stored.Method = col.Method
	stored.PaymentDate = col.PaymentDate
	stored.ReceiptNumber = col.ReceiptNumber
	stored.CollectedBy = col.CollectedBy
	stored.Notes = col.Notes
	stored.UpdatedAt = col.UpdatedAt
	*stored = copyCollection(*stored)
	return copyCollection(*stored), nil
}

// classStudents returns the IDs of the students of the class. Must be called without holding the students lock.
func (repo *collectionRepository) classStudents(classID string) map[string]bool {
	repo.students.RLock()
	defer repo.students.RUnlock()

	ids := make(map[string]bool)
	for _, std := range repo.students.table {
		if std.ClassID == classID {
			ids[std.ID] = true
		}
	}
	return ids
}

type collectionMatcher struct {
	filter   *ledger.QueryFilter
	students map[string]bool
}

func (repo *collectionRepository) matcher(filter *ledger.QueryFilter) collectionMatcher {
	m := collectionMatcher{filter: filter}
	if filter != nil && filter.ClassID != "" {
		m.students = repo.classStudents(filter.ClassID)
	}
	return m
}

func (m collectionMatcher) match(col ledger.Collection) bool {
	filter := m.filter
	if filter == nil {
		return true
	}
	if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, col.Status) {
		return false
	}
	if m.students != nil && !m.students[col.StudentID] {
		return false
	}
	if filter.StudentID != "" && col.StudentID != filter.StudentID {
		return false
	}
	if filter.AcademicYear != "" && col.AcademicYear != filter.AcademicYear {
		return false
	}
	if len(filter.FeeTypes) > 0 && !containsFeeType(filter.FeeTypes, col.FeeType) {
		return false
	}
	if !filter.PaidFrom.IsZero() && (col.PaymentDate == nil || col.PaymentDate.Before(filter.PaidFrom)) {
		return false
	}
	if !filter.PaidTo.IsZero() && (col.PaymentDate == nil || !col.PaymentDate.Before(filter.PaidTo)) {
		return false
	}
	return true
}

func (repo *collectionRepository) QueryCollections(_ context.Context, filter *ledger.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]ledger.Collection, error) {
	m := repo.matcher(filter)

	repo.db.RLock()
	defer repo.db.RUnlock()

	cols := make([]ledger.Collection, 0)
	for _, id := range repo.db.order {
		col := repo.db.table[id]
		if m.match(*col) {
			cols = append(cols, copyCollection(*col))
		}
	}

	if len(ordering) > 0 {
		sort.SliceStable(cols, func(i, j int) bool {
			for _, ord := range ordering {
				if c := compareCollections(cols[i], cols[j], ord.Field); c != 0 {
					// NULLs come first in ascending order and last in descending order
					return (c < 0) == ord.Ascending
				}
			}
			return false
		})
	}
	if filter != nil && filter.Limit > 0 && len(cols) > filter.Limit {
		cols = cols[:filter.Limit]
	}
	return cols, nil
}

func compareCollections(a, b ledger.Collection, field string) int {
	switch field {
	case "due_date":
		return compareTimes(a.DueDate.Time, b.DueDate.Time)
	case "payment_date":
		switch {
		case a.PaymentDate == nil && b.PaymentDate == nil:
			return 0
		case a.PaymentDate == nil:
			return -1
		case b.PaymentDate == nil:
			return 1
		}
		return compareTimes(*a.PaymentDate, *b.PaymentDate)
	case "amount_due":
		return a.AmountDue.Cmp(b.AmountDue)
	case "amount_paid":
		return a.AmountPaid.Cmp(b.AmountPaid)
	case "payment_status":
		return strings.Compare(string(a.Status), string(b.Status))
	case "created_at":
		return compareTimes(a.CreatedAt, b.CreatedAt)
	}
	return 0
}

func (repo *collectionRepository) SumCollections(_ context.Context, filter *ledger.QueryFilter, _ ...core.DBExecutor) (map[fee.Type]ledger.Totals, error) {
	m := repo.matcher(filter)

	repo.db.RLock()
	defer repo.db.RUnlock()

	totals := make(map[fee.Type]ledger.Totals)
	for _, col := range repo.db.table {
		if !m.match(*col) {
			continue
		}
		t, ok := totals[col.FeeType]
		if !ok {
			t = ledger.Totals{Due: decimal.Zero, Paid: decimal.Zero, Outstanding: decimal.Zero}
		}
		totals[col.FeeType] = t.Add(ledger.Totals{
			Count:       1,
			Due:         col.AmountDue,
			Paid:        col.AmountPaid,
			Outstanding: col.Outstanding(),
		})
	}
	return totals, nil
}

func (repo *collectionRepository) MarkOverdue(_ context.Context, asOf, now time.Time, _ ...core.DBExecutor) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	count := 0
	for _, col := range repo.db.table {
		if col.Status != ledger.StatusPending && col.Status != ledger.StatusPartial {
			continue
		}
		if !col.DueDate.Before(asOf) || !col.AmountPaid.LessThan(col.AmountDue) {
			continue
		}
		col.Status = ledger.StatusOverdue
		col.UpdatedAt = now
		count++
	}
	return count, nil
}

func containsStatus(statuses []ledger.Status, status ledger.Status) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func containsFeeType(types []fee.Type, typ fee.Type) bool {
	for _, t := range types {
		if t == typ {
			return true
		}
	}
	return false
}
