package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/bursar/core"
	"github.com/trezcool/bursar/core/student"
)

type studentRepository struct {
	classes  *classTable
	students *studentTable
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{classes: db.class, students: db.student}
}

func (repo *studentRepository) CreateClass(_ context.Context, class student.Class, _ ...core.DBExecutor) (student.Class, error) {
	repo.classes.Lock()
	defer repo.classes.Unlock()

	for _, c := range repo.classes.table {
		if strings.EqualFold(c.Name, class.Name) && strings.EqualFold(c.Section, class.Section) {
			return student.Class{}, student.ErrClassExists
		}
	}
	class.ID = uuid.New().String()
	stored := class
	repo.classes.table[class.ID] = &stored
	return class, nil
}

func (repo *studentRepository) GetClass(_ context.Context, id string, _ ...core.DBExecutor) (student.Class, error) {
	repo.classes.RLock()
	defer repo.classes.RUnlock()

	if class, ok := repo.classes.table[id]; ok {
		return *class, nil
	}
	return student.Class{}, student.ErrClassNotFound
}

func (repo *studentRepository) QueryClasses(_ context.Context, _ ...core.DBExecutor) ([]student.Class, error) {
	repo.classes.RLock()
	defer repo.classes.RUnlock()

	classes := make([]student.Class, 0, len(repo.classes.table))
	for _, class := range repo.classes.table {
		classes = append(classes, *class)
	}
	sort.Slice(classes, func(i, j int) bool {
		if classes[i].Name != classes[j].Name {
			return classes[i].Name < classes[j].Name
		}
		return classes[i].Section < classes[j].Section
	})
	return classes, nil
}

func (repo *studentRepository) CreateStudent(_ context.Context, std student.Student, _ ...core.DBExecutor) (student.Student, error) {
	repo.classes.RLock()
	_, classExists := repo.classes.table[std.ClassID]
	repo.classes.RUnlock()
	if !classExists {
		return student.Student{}, student.ErrClassNotFound
	}

	repo.students.Lock()
	defer repo.students.Unlock()

	for _, s := range repo.students.table {
		if s.StudentNumber == std.StudentNumber {
			return student.Student{}, student.ErrNumberExists
		}
	}
	std.ID = uuid.New().String()
	stored := std
	repo.students.table[std.ID] = &stored
	return std, nil
}

func (repo *studentRepository) GetStudent(_ context.Context, id string, _ ...core.DBExecutor) (student.Student, error) {
	repo.students.RLock()
	defer repo.students.RUnlock()

	if std, ok := repo.students.table[id]; ok {
		return *std, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) query(filter *student.QueryFilter) []student.Student {
	var ids map[string]bool
	if filter != nil && filter.IDs != nil {
		ids = make(map[string]bool, len(filter.IDs))
		for _, id := range filter.IDs {
			ids[id] = true
		}
	}

	students := make([]student.Student, 0)
	for _, std := range repo.students.table {
		if filter != nil {
			if filter.ClassID != "" && std.ClassID != filter.ClassID {
				continue
			}
			if ids != nil && !ids[std.ID] {
				continue
			}
			if filter.IsActive != nil && std.IsActive != *filter.IsActive {
				continue
			}
		}
		students = append(students, *std)
	}
	return students
}

func (repo *studentRepository) QueryStudents(_ context.Context, filter *student.QueryFilter, _ ...core.DBExecutor) ([]student.Student, error) {
	repo.students.RLock()
	defer repo.students.RUnlock()

	students := repo.query(filter)
	sort.Slice(students, func(i, j int) bool {
		if students[i].Name != students[j].Name {
			return students[i].Name < students[j].Name
		}
		return students[i].StudentNumber < students[j].StudentNumber
	})
	return students, nil
}

func (repo *studentRepository) CountStudents(_ context.Context, filter *student.QueryFilter, _ ...core.DBExecutor) (int, error) {
	repo.students.RLock()
	defer repo.students.RUnlock()
	return len(repo.query(filter)), nil
}
