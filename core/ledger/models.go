package ledger

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trezcool/bursar/core"
	"github.com/trezcool/bursar/core/fee"
)

type Status string

// Payment statuses
const (
	StatusPending Status = "pending"
	StatusPartial Status = "partial"
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"
)

type Method string

// Payment methods
const (
	MethodCash         Method = "cash"
	MethodBankTransfer Method = "bank_transfer"
	MethodOnline       Method = "online"
	MethodCheque       Method = "cheque"
)

// Collection is a ledger entry: what one student owes for one fee structure, and what has been paid against it.
type Collection struct {
	ID             string          `json:"id"`
	StudentID      string          `json:"student_id"`
	FeeStructureID string          `json:"fee_structure_id"`
	FeeType        fee.Type        `json:"fee_type"`
	AcademicYear   string          `json:"academic_year"`
	AmountDue      decimal.Decimal `json:"amount_due"`
	AmountPaid     decimal.Decimal `json:"amount_paid"`
	Status         Status          `json:"payment_status"`
	Method         Method          `json:"payment_method"`
	DueDate        core.Date       `json:"due_date"`
	PaymentDate    *time.Time      `json:"payment_date"`
	ReceiptNumber  string          `json:"receipt_number"`
	CollectedBy    string          `json:"collected_by"`
	Notes          string          `json:"notes"`
	CreatedAt      time.Time       `json:"created_at"` // UTC
	UpdatedAt      time.Time       `json:"updated_at"` // UTC
}

func (c Collection) Outstanding() decimal.Decimal {
	return c.AmountDue.Sub(c.AmountPaid)
}

// DeriveStatus computes the status of an entry after a payment of paid against due.
// When nothing is paid, pending and overdue entries keep their status while
// paid and partial ones fall back to pending, or overdue once past due.
func DeriveStatus(prev Status, paid, due decimal.Decimal, dueDate, now time.Time) Status {
	switch {
	case paid.GreaterThanOrEqual(due):
		return StatusPaid
	case paid.IsPositive():
		return StatusPartial
	}
	if prev == StatusPending || prev == StatusOverdue {
		return prev
	}
	if core.Day(dueDate).Before(core.Day(now)) {
		return StatusOverdue
	}
	return StatusPending
}

// Payment replaces the paid amount of an entry; it is not added to the previous amount.
type Payment struct {
	AmountPaid    decimal.Decimal `json:"amount_paid" validate:"decimal_gte0,money"`
	Method        Method          `json:"payment_method" validate:"required,oneof=cash bank_transfer online cheque"`
	ReceiptNumber string          `json:"receipt_number" validate:"max=50"`
	Notes         string          `json:"notes"`
}

func (p *Payment) Validate(validate *validator.Validate) error {
	p.Method = Method(core.CleanString(string(p.Method), true /* lower */))
	p.ReceiptNumber = core.CleanString(p.ReceiptNumber)
	p.Notes = core.CleanString(p.Notes)
	return validate.Struct(p)
}

// ClassGeneration asks for the ledger entries of a whole class for an academic year.
type ClassGeneration struct {
	ClassID      string    `json:"class_id" validate:"required"`
	AcademicYear string    `json:"academic_year" validate:"required,academic_year"`
	DueDate      core.Date `json:"due_date" validate:"required"`
}

func (g *ClassGeneration) Validate(validate *validator.Validate) error {
	g.ClassID = core.CleanString(g.ClassID)
	g.AcademicYear = core.CleanString(g.AcademicYear)
	return validate.Struct(g)
}

type QueryFilter struct {
	Statuses     []Status   `query:"status"`
	ClassID      string     `query:"class_id"`
	StudentID    string     `query:"student_id"`
	AcademicYear string     `query:"academic_year"`
	FeeTypes     []fee.Type `query:"fee_type"`
	PaidFrom     time.Time  // inclusive
	PaidTo       time.Time  // exclusive
	Limit        int
}

func (qf *QueryFilter) Clean() {
	qf.ClassID = core.CleanString(qf.ClassID)
	qf.StudentID = core.CleanString(qf.StudentID)
	qf.AcademicYear = core.CleanString(qf.AcademicYear)
}

// Totals sums amounts over a set of entries.
type Totals struct {
	Count       int             `json:"count"`
	Due         decimal.Decimal `json:"due"`
	Paid        decimal.Decimal `json:"paid"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

func (t Totals) Add(o Totals) Totals {
	return Totals{
		Count:       t.Count + o.Count,
		Due:         t.Due.Add(o.Due),
		Paid:        t.Paid.Add(o.Paid),
		Outstanding: t.Outstanding.Add(o.Outstanding),
	}
}

// SumTotals folds per fee type totals into one.
func SumTotals(byType map[fee.Type]Totals) Totals {
	total := Totals{Due: decimal.Zero, Paid: decimal.Zero, Outstanding: decimal.Zero}
	for _, t := range byType {
		total = total.Add(t)
	}
	return total
}
