package expense

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trezcool/bursar/core"
)

type Category string

// Expense categories
const (
	CategoryFuel          Category = "fuel"
	CategoryMaintenance   Category = "maintenance"
	CategorySupplies      Category = "supplies"
	CategoryUtilities     Category = "utilities"
	CategorySalary        Category = "salary"
	CategoryFoodCost      Category = "food_cost"
	CategoryTransportCost Category = "transport_cost"
	CategoryOther         Category = "other"
)

var Categories = []Category{
	CategoryFuel,
	CategoryMaintenance,
	CategorySupplies,
	CategoryUtilities,
	CategorySalary,
	CategoryFoodCost,
	CategoryTransportCost,
	CategoryOther,
}

type Expense struct {
	ID            string          `json:"id"`
	Category      Category        `json:"category"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	Date          core.Date       `json:"date"`
	ReceiptNumber string          `json:"receipt_number"`
	Vendor        string          `json:"vendor"`
	RecordedBy    string          `json:"recorded_by"`
	CreatedAt     time.Time       `json:"created_at"` // UTC
}

type NewExpense struct {
	Category      Category        `json:"category" validate:"required,oneof=fuel maintenance supplies utilities salary food_cost transport_cost other"`
	Description   string          `json:"description" validate:"required,max=255"`
	Amount        decimal.Decimal `json:"amount" validate:"decimal_gt0,money"`
	Date          core.Date       `json:"date" validate:"required"`
	ReceiptNumber string          `json:"receipt_number" validate:"max=50"`
	Vendor        string          `json:"vendor" validate:"max=100"`
}

func (ne *NewExpense) Validate(validate *validator.Validate) error {
	ne.Category = Category(core.CleanString(string(ne.Category), true /* lower */))
	ne.Description = core.CleanString(ne.Description)
	ne.ReceiptNumber = core.CleanString(ne.ReceiptNumber)
	ne.Vendor = core.CleanString(ne.Vendor)
	return validate.Struct(ne)
}

type QueryFilter struct {
	Categories []Category `query:"category"`
	From       time.Time  // inclusive
	To         time.Time  // exclusive
}
