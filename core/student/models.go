// Package student is the student directory the fee ledger bills against.
package student

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/bursar/core"
)

type Class struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Section string `json:"section"`
}

func (c Class) String() string {
	if c.Section == "" {
		return c.Name
	}
	return c.Name + " - " + c.Section
}

type Student struct {
	ID                string    `json:"id"`
	StudentNumber     string    `json:"student_number"`
	Name              string    `json:"name"`
	ClassID           string    `json:"class_id"`
	IsTransportUser   bool      `json:"is_transport_user"`
	IsFoodServiceUser bool      `json:"is_food_service_user"`
	IsActive          bool      `json:"is_active"`
	EnrolledAt        time.Time `json:"enrolled_at"` // UTC
}

type NewClass struct {
	Name    string `json:"name" validate:"required,max=100"`
	Section string `json:"section" validate:"max=10"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Section = core.CleanString(nc.Section)
	return validate.Struct(nc)
}

type NewStudent struct {
	StudentNumber     string `json:"student_number" validate:"required,max=20"`
	Name              string `json:"name" validate:"required"`
	ClassID           string `json:"class_id" validate:"required,uuid"`
	IsTransportUser   bool   `json:"is_transport_user"`
	IsFoodServiceUser bool   `json:"is_food_service_user"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.StudentNumber = core.CleanString(ns.StudentNumber)
	ns.Name = core.CleanString(ns.Name)
	return validate.Struct(ns)
}

type QueryFilter struct {
	ClassID  string `query:"class_id"`
	IDs      []string
	IsActive *bool `query:"is_active"`
}
