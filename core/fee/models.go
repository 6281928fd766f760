package fee

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trezcool/bursar/core"
)

type Type string

// Fee types
const (
	TypeTuition   Type = "tuition"
	TypeTransport Type = "transport"
	TypeFood      Type = "food"
	TypeLibrary   Type = "library"
	TypeLab       Type = "lab"
	TypeOther     Type = "other"
)

var Types = []Type{TypeTuition, TypeTransport, TypeFood, TypeLibrary, TypeLab, TypeOther}

func (t Type) Valid() bool {
	for _, typ := range Types {
		if t == typ {
			return true
		}
	}
	return false
}

// Structure prices one fee type for a class over an academic year.
type Structure struct {
	ID           string          `json:"id"`
	ClassID      string          `json:"class_id"`
	Type         Type            `json:"fee_type"`
	Amount       decimal.Decimal `json:"amount"`
	IsMandatory  bool            `json:"is_mandatory"`
	AcademicYear string          `json:"academic_year"`
	CreatedAt    time.Time       `json:"created_at"` // UTC
	UpdatedAt    time.Time       `json:"updated_at"` // UTC
}

type NewStructure struct {
	ClassID      string          `json:"class_id" validate:"required"`
	Type         Type            `json:"fee_type" validate:"required,oneof=tuition transport food library lab other"`
	Amount       decimal.Decimal `json:"amount" validate:"decimal_gt0,money"`
	IsMandatory  *bool           `json:"is_mandatory"` // defaults to true
	AcademicYear string          `json:"academic_year" validate:"required,academic_year"`
}

func (ns *NewStructure) Validate(validate *validator.Validate) error {
	ns.ClassID = core.CleanString(ns.ClassID)
	ns.Type = Type(core.CleanString(string(ns.Type), true /* lower */))
	ns.AcademicYear = core.CleanString(ns.AcademicYear)
	return validate.Struct(ns)
}

// Correction is an administrative fix of a structure's price terms.
// Ledger entries already issued from the structure keep their amounts.
type Correction struct {
	Amount      *decimal.Decimal `json:"amount" validate:"omitempty,decimal_gt0,money"`
	IsMandatory *bool            `json:"is_mandatory"`
}

func (c *Correction) Validate(validate *validator.Validate) error {
	return validate.Struct(c)
}

type QueryFilter struct {
	ClassID      string `query:"class_id"`
	AcademicYear string `query:"academic_year"`
	Type         Type   `query:"fee_type"`
}

func (qf *QueryFilter) Clean() {
	qf.ClassID = core.CleanString(qf.ClassID)
	qf.AcademicYear = core.CleanString(qf.AcademicYear)
	qf.Type = Type(core.CleanString(string(qf.Type), true /* lower */))
}
