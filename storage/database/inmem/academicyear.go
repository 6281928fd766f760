package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/bursar/core"
	"github.com/trezcool/bursar/core/academicyear"
)

type academicYearRepository struct {
	db *academicYearTable
}

var _ academicyear.Repository = (*academicYearRepository)(nil) // interface compliance check

func NewAcademicYearRepository(db *DB) academicyear.Repository {
	return &academicYearRepository{db: db.academicYear}
}

func (repo *academicYearRepository) CreateYear(_ context.Context, year academicyear.AcademicYear, _ ...core.DBExecutor) (academicyear.AcademicYear, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, y := range repo.db.table {
		if y.Year == year.Year {
			return academicyear.AcademicYear{}, academicyear.ErrYearExists
		}
	}
	year.ID = uuid.New().String()
	stored := year
	repo.db.table[year.ID] = &stored
	return year, nil
}

func (repo *academicYearRepository) GetYear(_ context.Context, filter academicyear.GetFilter, _ ...core.DBExecutor) (academicyear.AcademicYear, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, year := range repo.db.table {
		switch {
		case filter.ID != "":
			if year.ID == filter.ID {
				return *year, nil
			}
		case filter.Year != "":
			if year.Year == filter.Year {
				return *year, nil
			}
		case filter.Current:
			if year.IsCurrent {
				return *year, nil
			}
		}
	}
	return academicyear.AcademicYear{}, academicyear.ErrNotFound
}

func (repo *academicYearRepository) QueryYears(_ context.Context, _ ...core.DBExecutor) ([]academicyear.AcademicYear, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	years := make([]academicyear.AcademicYear, 0, len(repo.db.table))
	for _, year := range repo.db.table {
		years = append(years, *year)
	}
	sort.Slice(years, func(i, j int) bool { return years[i].StartDate.After(years[j].StartDate.Time) })
	return years, nil
}

func (repo *academicYearRepository) ClearCurrent(_ context.Context, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, year := range repo.db.table {
		year.IsCurrent = false
	}
	return nil
}

func (repo *academicYearRepository) MarkCurrent(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	year, ok := repo.db.table[id]
	if !ok {
		return academicyear.ErrNotFound
	}
	year.IsCurrent = true
	return nil
}
