// Package inmemdb implements the domain repositories in process memory.
// It backs the test suite and the "memory" storage setting.
package inmemdb

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/bursar/core"
	"github.com/trezcool/bursar/core/academicyear"
	"github.com/trezcool/bursar/core/expense"
	"github.com/trezcool/bursar/core/fee"
	"github.com/trezcool/bursar/core/ledger"
	"github.com/trezcool/bursar/core/student"
	"github.com/trezcool/bursar/core/user"
)

type (
	DB struct {
		tx sync.Mutex

		user         *userTable
		class        *classTable
		student      *studentTable
		academicYear *academicYearTable
		feeStructure *feeStructureTable
		collection   *collectionTable
		expense      *expenseTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	classTable struct {
		sync.RWMutex
		table map[string]*student.Class
	}

	studentTable struct {
		sync.RWMutex
		table map[string]*student.Student
	}

	academicYearTable struct {
		sync.RWMutex
		table map[string]*academicyear.AcademicYear
	}

	feeStructureTable struct {
		sync.RWMutex
		table map[string]*fee.Structure
		order []string // insertion order
	}

	collectionTable struct {
		sync.RWMutex
		table map[string]*ledger.Collection
		order []string // insertion order
	}

	expenseTable struct {
		sync.RWMutex
		table map[string]*expense.Expense
	}
)

var _ core.TxRunner = (*DB)(nil) // interface compliance check

func Open() *DB {
	return &DB{
		user:         &userTable{table: make(map[string]*user.User)},
		class:        &classTable{table: make(map[string]*student.Class)},
		student:      &studentTable{table: make(map[string]*student.Student)},
		academicYear: &academicYearTable{table: make(map[string]*academicyear.AcademicYear)},
		feeStructure: &feeStructureTable{table: make(map[string]*fee.Structure)},
		collection:   &collectionTable{table: make(map[string]*ledger.Collection)},
		expense:      &expenseTable{table: make(map[string]*expense.Expense)},
	}
}

// RunInTx serializes units of work. There is no rollback: writes done by fn before an error are kept.
func (db *DB) RunInTx(_ context.Context, fn func(exec core.DBExecutor) error) error {
	db.tx.Lock()
	defer db.tx.Unlock()
	return fn(nil)
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}
