package core_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/bursar/core"
	"github.com/trezcool/bursar/tests"
)

func TestValidAcademicYear(t *testing.T) {
	tests := []struct {
		year string
		want bool
	}{
		{"2024-2025", true},
		{"1999-2000", true},
		{"2024-2026", false},
		{"2025-2024", false},
		{"2024/2025", false},
		{"2024", false},
		{" 2024-2025", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.year, func(t *testing.T) {
			assert.Equal(t, tt.want, core.ValidAcademicYear(tt.year))
		})
	}
}

func TestInitValidators(t *testing.T) {
	validate, translator := testutil.NewValidator()

	type form struct {
		Code   string          `json:"code" validate:"required,alphanum_"`
		Amount decimal.Decimal `json:"amount" validate:"decimal_gt0"`
		Paid   decimal.Decimal `json:"paid" validate:"decimal_gte0"`
		Year   string          `json:"year" validate:"academic_year"`
		Due    core.Date       `json:"due" validate:"required"`
	}

	t.Run("valid", func(t *testing.T) {
		err := validate.Struct(form{
			Code:   "fee_1",
			Amount: decimal.RequireFromString("0.01"),
			Paid:   decimal.Zero,
			Year:   "2024-2025",
			Due:    core.NewDate(time.Now()),
		})
		assert.NoError(t, err)
	})

	t.Run("invalid", func(t *testing.T) {
		err := validate.Struct(form{
			Code:   "fee-1",
			Amount: decimal.Zero,
			Paid:   decimal.RequireFromString("-1"),
			Year:   "2024-2026",
		})
		verrs, ok := err.(validator.ValidationErrors)
		require.True(t, ok, "want validation errors, got %v", err)

		got := make(map[string]string)
		for _, fe := range verrs {
			got[fe.Field()] = fe.Translate(translator)
		}
		assert.Equal(t, map[string]string{
			"code":   "only alphanumeric characters and underscores are allowed",
			"amount": "must be a number greater than zero",
			"paid":   "must be a number greater than or equal to zero",
			"year":   "must be of form YYYY-YYYY, spanning two consecutive years",
			"due":    "this field is required",
		}, got)
	})
}

func TestMoneyValidation(t *testing.T) {
	validate, translator := testutil.NewValidator()

	type form struct {
		Amount decimal.Decimal `json:"amount" validate:"decimal_gte0,money"`
	}

	tests := []struct {
		amount string
		valid  bool
	}{
		{"0", true},
		{"1000", true},
		{"999.99", true},
		{"12.5", true},
		{"12.500", true},
		{"999.999", false},
		{"0.001", false},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			err := validate.Struct(form{Amount: decimal.RequireFromString(tt.amount)})
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			verrs, ok := err.(validator.ValidationErrors)
			require.True(t, ok, "want validation errors, got %v", err)
			assert.Equal(t, "must have at most 2 decimal places", verrs[0].Translate(translator))
		})
	}
}

func TestDate_JSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "day", in: `"2024-09-30"`, want: "2024-09-30"},
		{name: "timestamp", in: `"2024-09-30T23:30:00-02:00"`, want: "2024-10-01"},
		{name: "null", in: `null`, want: ""},
		{name: "garbage", in: `"30/09/2024"`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d core.Date
			err := json.Unmarshal([]byte(tt.in), &d)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.want == "" {
				assert.True(t, d.IsZero())
				return
			}
			assert.Equal(t, tt.want, d.String())
			assert.Equal(t, time.UTC, d.Location())
		})
	}

	data, err := json.Marshal(struct {
		Due  core.Date `json:"due"`
		Paid core.Date `json:"paid"`
	}{Due: core.NewDate(time.Date(2024, time.February, 29, 22, 0, 0, 0, time.UTC))})
	require.NoError(t, err)
	assert.JSONEq(t, `{"due": "2024-02-29", "paid": null}`, string(data))
}

func TestDay(t *testing.T) {
	late := time.Date(2024, time.March, 1, 1, 30, 0, 0, time.FixedZone("CAT", 2*3600))
	assert.Equal(t, time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC), core.Day(late))
}
