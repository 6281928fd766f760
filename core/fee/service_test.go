package fee_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/bursar/core"
	"github.com/trezcool/bursar/core/fee"
	"github.com/trezcool/bursar/core/user"
	"github.com/trezcool/bursar/tests"
)

func TestService_Define(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	class := testutil.CreateClass(t, env.Students, "Grade 1", "A")

	valid := fee.NewStructure{
		ClassID:      class.ID,
		Type:         " Tuition ",
		Amount:       testutil.Dec("1500.50"),
		AcademicYear: "2024-2025",
	}

	t.Run("permission denied", func(t *testing.T) {
		teacher := user.User{IsActive: true, Roles: []string{user.RoleTeacher}}
		_, err := env.FeeSvc.Define(ctx, teacher, valid)
		assert.Equal(t, core.ErrForbidden, err)
	})

	t.Run("invalid", func(t *testing.T) {
		bad := valid
		bad.Type = "uniform"
		bad.Amount = decimal.Zero
		_, err := env.FeeSvc.Define(ctx, user.System, bad)
		verrs, ok := errors.Cause(err).(validator.ValidationErrors)
		require.True(t, ok, "want validation errors, got %v", err)
		assert.Len(t, verrs, 2)
	})

	t.Run("sub-cent amount", func(t *testing.T) {
		bad := valid
		bad.Amount = testutil.Dec("0.001")
		_, err := env.FeeSvc.Define(ctx, user.System, bad)
		verrs, ok := errors.Cause(err).(validator.ValidationErrors)
		require.True(t, ok, "want validation errors, got %v", err)
		if assert.Len(t, verrs, 1) {
			assert.Equal(t, "amount", verrs[0].Field())
			assert.Equal(t, "money", verrs[0].Tag())
		}
	})

	t.Run("unknown class", func(t *testing.T) {
		bad := valid
		bad.ClassID = "nope"
		_, err := env.FeeSvc.Define(ctx, user.System, bad)
		verr, ok := errors.Cause(err).(*core.ValidationError)
		require.True(t, ok, "want a validation error, got %v", err)
		assert.Equal(t, "class_id", verr.Fields[0].Field)
	})

	st, err := env.FeeSvc.Define(ctx, user.System, valid)
	require.NoError(t, err)
	assert.Equal(t, fee.TypeTuition, st.Type)
	assert.True(t, st.IsMandatory)
	assert.True(t, st.Amount.Equal(testutil.Dec("1500.5")))
	assert.Equal(t, []string{core.EventStructureDefined}, env.Events.Types())

	_, err = env.FeeSvc.Define(ctx, user.System, valid)
	assert.Equal(t, fee.ErrDuplicateStructure, err)

	optional := false
	transport := valid
	transport.Type = fee.TypeTransport
	transport.IsMandatory = &optional
	st, err = env.FeeSvc.Define(ctx, user.System, transport)
	require.NoError(t, err)
	assert.False(t, st.IsMandatory)

	// same type, other year
	next := valid
	next.AcademicYear = "2025-2026"
	_, err = env.FeeSvc.Define(ctx, user.System, next)
	require.NoError(t, err)

	found, err := env.FeeSvc.Lookup(ctx, class.ID, "2024-2025")
	require.NoError(t, err)
	if assert.Len(t, found, 2) {
		assert.Equal(t, fee.TypeTuition, found[0].Type)
		assert.Equal(t, fee.TypeTransport, found[1].Type)
	}
}

func TestService_Correct(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	class := testutil.CreateClass(t, env.Students, "Grade 2", "")
	st := testutil.CreateStructure(t, env.Structures, class.ID, fee.TypeFood, "200", true, "2024-2025")

	_, err := env.FeeSvc.Correct(ctx, user.System, "nope", fee.Correction{})
	assert.Equal(t, fee.ErrNotFound, errors.Cause(err))

	negative := testutil.Dec("-1")
	_, err = env.FeeSvc.Correct(ctx, user.System, st.ID, fee.Correction{Amount: &negative})
	_, ok := errors.Cause(err).(validator.ValidationErrors)
	assert.True(t, ok, "want validation errors, got %v", err)

	amount := testutil.Dec("250")
	got, err := env.FeeSvc.Correct(ctx, user.System, st.ID, fee.Correction{Amount: &amount})
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(amount))
	assert.True(t, got.IsMandatory)

	optional := false
	got, err = env.FeeSvc.Correct(ctx, user.System, st.ID, fee.Correction{IsMandatory: &optional})
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(amount))
	assert.False(t, got.IsMandatory)

	assert.Equal(t, []string{core.EventStructureCorrected, core.EventStructureCorrected}, env.Events.Types())
}
