package academicyear

import (
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/bursar/core"
)

type AcademicYear struct {
	ID        string    `json:"id"`
	Year      string    `json:"year"` // e.g. 2024-2025
	StartDate core.Date `json:"start_date"`
	EndDate   core.Date `json:"end_date"`
	IsCurrent bool      `json:"is_current"`
}

type NewAcademicYear struct {
	Year      string    `json:"year" validate:"required,academic_year"`
	StartDate core.Date `json:"start_date" validate:"required"`
	EndDate   core.Date `json:"end_date" validate:"required"`
	IsCurrent bool      `json:"is_current"`
}

var errEndBeforeStart = errors.New("end date must be after start date")

func (ny *NewAcademicYear) Validate(validate *validator.Validate) error {
	ny.Year = core.CleanString(ny.Year)
	if err := validate.Struct(ny); err != nil {
		return err
	}
	if !ny.EndDate.After(ny.StartDate.Time) {
		return core.NewValidationError(errEndBeforeStart, core.FieldError{Field: "end_date", Error: errEndBeforeStart.Error()})
	}
	return nil
}

type GetFilter struct {
	ID      string
	Year    string
	Current bool
}
