package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/bursar/core"
	"github.com/trezcool/bursar/core/fee"
)

type feeStructureRepository struct {
	db *feeStructureTable
}

var _ fee.Repository = (*feeStructureRepository)(nil) // interface compliance check

func NewFeeStructureRepository(db *DB) fee.Repository {
	return &feeStructureRepository{db: db.feeStructure}
}

func (repo *feeStructureRepository) CreateStructure(_ context.Context, st fee.Structure, _ ...core.DBExecutor) (fee.Structure, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, s := range repo.db.table {
		if s.ClassID == st.ClassID && s.Type == st.Type && s.AcademicYear == st.AcademicYear {
			return fee.Structure{}, fee.ErrDuplicateStructure
		}
	}
	st.ID = uuid.New().String()
	stored := st
	repo.db.table[st.ID] = &stored
	repo.db.order = append(repo.db.order, st.ID)
	return st, nil
}

func (repo *feeStructureRepository) GetStructure(_ context.Context, id string, _ ...core.DBExecutor) (fee.Structure, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if st, ok := repo.db.table[id]; ok {
		return *st, nil
	}
	return fee.Structure{}, fee.ErrNotFound
}

func (repo *feeStructureRepository) QueryStructures(_ context.Context, filter *fee.QueryFilter, _ ...core.DBExecutor) ([]fee.Structure, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	structures := make([]fee.Structure, 0)
	for _, id := range repo.db.order {
		st := repo.db.table[id]
		if filter != nil {
			if filter.ClassID != "" && st.ClassID != filter.ClassID {
				continue
			}
			if filter.AcademicYear != "" && st.AcademicYear != filter.AcademicYear {
				continue
			}
			if filter.Type != "" && st.Type != filter.Type {
				continue
			}
		}
		structures = append(structures, *st)
	}
	return structures, nil
}

func (repo *feeStructureRepository) UpdateStructure(_ context.Context, st fee.Structure, _ ...core.DBExecutor) (fee.Structure, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored, ok := repo.db.table[st.ID]
	if !ok {
		return fee.Structure{}, fee.ErrNotFound
	}
	stored.Amount = st.Amount
	stored.IsMandatory = st.IsMandatory
	stored.UpdatedAt = st.UpdatedAt
	return *stored, nil
}
