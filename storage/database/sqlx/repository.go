// Package sqlxrepos implements the domain repositories on PostgreSQL with sqlx.
package sqlxrepos

import (
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/bursar/core"
)

const pgUniqueViolation = "23505"

type repository struct {
	db *sqlx.DB
}

// getExec returns the transaction handed over by the service, if any.
func (repo repository) getExec(svcExec []core.DBExecutor) sqlx.ExtContext {
	if len(svcExec) > 0 && svcExec[0] != nil {
		if exec, ok := svcExec[0].(sqlx.ExtContext); ok {
			return exec
		}
	}
	return repo.db
}

// trapNoRowsErr maps psql "no rows" err to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func isUniqueViolation(err error) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && pqErr.Code == pgUniqueViolation
}

// where accumulates AND-ed conditions using `?` bind vars.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// orderBy renders the ordering, falling back to def. Fields must have been cleaned by the service.
func orderBy(ordering []core.DBOrdering, def string) string {
	if len(ordering) == 0 {
		return " ORDER BY " + def
	}
	orderList := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if ord.Ascending {
			orderList = append(orderList, ord.String()+" NULLS FIRST")
		} else {
			orderList = append(orderList, ord.String()+" NULLS LAST")
		}
	}
	orderList = append(orderList, def)
	return " ORDER BY " + strings.Join(orderList, ", ")
}
