package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/bursar/core"
	"github.com/trezcool/bursar/core/fee"
	"github.com/trezcool/bursar/core/ledger"
	"github.com/trezcool/bursar/core/user"
	"github.com/trezcool/bursar/tests"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDeriveStatus(t *testing.T) {
	due := testutil.Dec("100")
	dueDate := day(2024, time.September, 30)
	before := day(2024, time.September, 15)
	after := day(2024, time.October, 2)

	tests := []struct {
		name string
		prev ledger.Status
		paid string
		now  time.Time
		want ledger.Status
	}{
		{name: "full payment", prev: ledger.StatusPending, paid: "100", now: before, want: ledger.StatusPaid},
		{name: "overpayment", prev: ledger.StatusOverdue, paid: "120", now: after, want: ledger.StatusPaid},
		{name: "part payment", prev: ledger.StatusPending, paid: "40", now: before, want: ledger.StatusPartial},
		{name: "part payment past due", prev: ledger.StatusOverdue, paid: "40", now: after, want: ledger.StatusPartial},
		{name: "nothing paid on pending", prev: ledger.StatusPending, paid: "0", now: after, want: ledger.StatusPending},
		{name: "nothing paid on overdue", prev: ledger.StatusOverdue, paid: "0", now: before, want: ledger.StatusOverdue},
		{name: "refund before due date", prev: ledger.StatusPaid, paid: "0", now: before, want: ledger.StatusPending},
		{name: "refund past due", prev: ledger.StatusPartial, paid: "0", now: after, want: ledger.StatusOverdue},
		{name: "refund on due date", prev: ledger.StatusPaid, paid: "0", now: dueDate.Add(20 * time.Hour), want: ledger.StatusPending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ledger.DeriveStatus(tt.prev, testutil.Dec(tt.paid), due, dueDate, tt.now)
			assert.Equal(t, tt.want, got)
		})
	}
}

// countingRepo counts the insert batches.
type countingRepo struct {
	ledger.Repository
	batches []int
}

func (r *countingRepo) CreateCollections(ctx context.Context, cols []ledger.Collection, exec ...core.DBExecutor) ([]ledger.Collection, error) {
	r.batches = append(r.batches, len(cols))
	return r.Repository.CreateCollections(ctx, cols, exec...)
}

func TestService_Generate(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()
	bursar := user.User{ID: "bursar", IsActive: true, Roles: []string{user.RoleAdminBursar}}
	teacher := user.User{ID: "teacher", IsActive: true, Roles: []string{user.RoleTeacher}}

	repo := &countingRepo{Repository: env.Collections}
	svc := ledger.NewService(env.DB, repo, env.FeeSvc, env.Students, env.Events, env.Logger, env.Validate, ledger.Options{BatchSize: 2})

	class := testutil.CreateClass(t, env.Students, "Grade 2", "")
	var ids []string
	for _, number := range []string{"S1", "S2", "S3"} {
		ids = append(ids, testutil.CreateStudent(t, env.Students, number, number, class.ID, false, false).ID)
	}
	tuition := testutil.CreateStructure(t, env.Structures, class.ID, fee.TypeTuition, "250", true, "2024-2025")
	due := day(2024, time.September, 30)

	t.Run("permission denied", func(t *testing.T) {
		_, err := svc.Generate(ctx, teacher, ids, []fee.Structure{tuition}, due)
		assert.Equal(t, core.ErrForbidden, err)
	})

	t.Run("due date required", func(t *testing.T) {
		_, err := svc.Generate(ctx, bursar, ids, []fee.Structure{tuition}, time.Time{})
		verr, ok := errors.Cause(err).(*core.ValidationError)
		require.True(t, ok, "want a validation error, got %v", err)
		assert.Equal(t, "due_date", verr.Fields[0].Field)
	})

	t.Run("unknown students", func(t *testing.T) {
		_, err := svc.Generate(ctx, bursar, []string{ids[0], "ghost"}, []fee.Structure{tuition}, due)
		verr, ok := errors.Cause(err).(*core.ValidationError)
		require.True(t, ok, "want a validation error, got %v", err)
		assert.Equal(t, "students", verr.Fields[0].Field)
	})

	t.Run("nothing to generate", func(t *testing.T) {
		cols, err := svc.Generate(ctx, bursar, nil, []fee.Structure{tuition}, due)
		require.NoError(t, err)
		assert.Empty(t, cols)
		assert.Empty(t, repo.batches)
	})

	t.Run("batched", func(t *testing.T) {
		// duplicate ids are collapsed
		cols, err := svc.Generate(ctx, bursar, append(ids, ids[0]), []fee.Structure{tuition}, due)
		require.NoError(t, err)
		require.Len(t, cols, 3)
		assert.Equal(t, []int{2, 1}, repo.batches)

		for _, col := range cols {
			assert.NotEmpty(t, col.ID)
			assert.Equal(t, ledger.StatusPending, col.Status)
			assert.Equal(t, fee.TypeTuition, col.FeeType)
			assert.Equal(t, "2024-2025", col.AcademicYear)
			assert.True(t, col.AmountDue.Equal(testutil.Dec("250")))
			assert.True(t, col.AmountPaid.IsZero())
			assert.Equal(t, "2024-09-30", col.DueDate.String())
		}
		assert.Equal(t, []string{core.EventFeesGenerated}, env.Events.Types())
	})

	t.Run("idempotent", func(t *testing.T) {
		cols, err := svc.Generate(ctx, bursar, ids, []fee.Structure{tuition}, due)
		require.NoError(t, err)
		assert.Empty(t, cols)
		// no event for an empty run
		assert.Len(t, env.Events.Types(), 1)

		all, err := svc.Query(ctx, nil, nil)
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})
}

func TestService_GenerateForClass(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()

	class := testutil.CreateClass(t, env.Students, "Grade 3", "A")
	walker := testutil.CreateStudent(t, env.Students, "S1", "Walker", class.ID, false, false)
	rider := testutil.CreateStudent(t, env.Students, "S2", "Rider", class.ID, true, false)
	eater := testutil.CreateStudent(t, env.Students, "S3", "Eater", class.ID, false, true)
	testutil.CreateStructure(t, env.Structures, class.ID, fee.TypeTuition, "1000", true, "2024-2025")
	testutil.CreateStructure(t, env.Structures, class.ID, fee.TypeTransport, "300", false, "2024-2025")
	testutil.CreateStructure(t, env.Structures, class.ID, fee.TypeFood, "200", false, "2024-2025")
	testutil.CreateStructure(t, env.Structures, class.ID, fee.TypeLibrary, "50", false, "2024-2025")
	testutil.CreateStructure(t, env.Structures, class.ID, fee.TypeLab, "75", true, "2024-2025")
	testutil.CreateStructure(t, env.Structures, class.ID, fee.TypeTuition, "1100", true, "2025-2026")

	t.Run("invalid request", func(t *testing.T) {
		_, err := env.LedgerSvc.GenerateForClass(ctx, user.System, ledger.ClassGeneration{ClassID: class.ID, AcademicYear: "2024"})
		_, ok := errors.Cause(err).(validator.ValidationErrors)
		assert.True(t, ok, "want validation errors, got %v", err)
	})

	cols, err := env.LedgerSvc.GenerateForClass(ctx, user.System, ledger.ClassGeneration{
		ClassID:      class.ID,
		AcademicYear: "2024-2025",
		DueDate:      core.NewDate(day(2024, time.October, 15)),
	})
	require.NoError(t, err)

	got := make(map[string][]fee.Type)
	for _, col := range cols {
		got[col.StudentID] = append(got[col.StudentID], col.FeeType)
	}
	assert.ElementsMatch(t, []fee.Type{fee.TypeTuition, fee.TypeLab}, got[walker.ID])
	assert.ElementsMatch(t, []fee.Type{fee.TypeTuition, fee.TypeLab, fee.TypeTransport}, got[rider.ID])
	assert.ElementsMatch(t, []fee.Type{fee.TypeTuition, fee.TypeLab, fee.TypeFood}, got[eater.ID])

	// one event for the whole run, keyed by the run rather than by any of its structures
	require.Len(t, env.Events.Events, 1)
	evt := env.Events.Events[0]
	assert.Equal(t, core.EventFeesGenerated, evt.Type)
	_, err = uuid.Parse(evt.Key)
	assert.NoError(t, err)
	data, ok := evt.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 8, data["count"])
	structureIDs, _ := data["fee_structure_ids"].([]string)
	assert.Len(t, structureIDs, 4)
	assert.NotContains(t, structureIDs, evt.Key)
}

func TestService_ApplyPayment(t *testing.T) {
	ctx := context.Background()
	bursar := user.User{ID: "bursar", IsActive: true, Roles: []string{user.RoleAdminBursar}}

	defer func() { ledger.NowFunc = time.Now }()
	ledger.NowFunc = func() time.Time { return day(2024, time.September, 10).Add(9 * time.Hour) }

	newEntry := func(t *testing.T, env *testutil.Env) ledger.Collection {
		class := testutil.CreateClass(t, env.Students, "Grade 4", "")
		std := testutil.CreateStudent(t, env.Students, "S1", "Amani", class.ID, false, false)
		st := testutil.CreateStructure(t, env.Structures, class.ID, fee.TypeTuition, "1000", true, "2024-2025")
		cols, err := env.LedgerSvc.Generate(ctx, bursar, []string{std.ID}, []fee.Structure{st}, day(2024, time.September, 30))
		require.NoError(t, err)
		require.Len(t, cols, 1)
		return cols[0]
	}

	t.Run("payments replace the paid amount", func(t *testing.T) {
		env := testutil.Setup(t)
		entry := newEntry(t, env)

		col, err := env.LedgerSvc.ApplyPayment(ctx, bursar, entry.ID, ledger.Payment{AmountPaid: testutil.Dec("400"), Method: " CASH ", ReceiptNumber: "R-1"})
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusPartial, col.Status)
		assert.Equal(t, ledger.MethodCash, col.Method)
		assert.Equal(t, bursar.ID, col.CollectedBy)
		require.NotNil(t, col.PaymentDate)
		assert.Equal(t, ledger.NowFunc().UTC(), *col.PaymentDate)

		col, err = env.LedgerSvc.ApplyPayment(ctx, bursar, entry.ID, ledger.Payment{AmountPaid: testutil.Dec("1000"), Method: ledger.MethodBankTransfer})
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusPaid, col.Status)
		assert.True(t, col.AmountPaid.Equal(testutil.Dec("1000")))
		assert.True(t, col.Outstanding().IsZero())

		col, err = env.LedgerSvc.ApplyPayment(ctx, bursar, entry.ID, ledger.Payment{AmountPaid: testutil.Dec("0"), Method: ledger.MethodCash})
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusPending, col.Status)

		assert.Equal(t, []string{core.EventFeesGenerated, core.EventPaymentRecorded, core.EventPaymentRecorded, core.EventPaymentRecorded}, env.Events.Types())
	})

	t.Run("overpayment", func(t *testing.T) {
		env := testutil.Setup(t)
		entry := newEntry(t, env)

		_, err := env.LedgerSvc.ApplyPayment(ctx, bursar, entry.ID, ledger.Payment{AmountPaid: testutil.Dec("1000.01"), Method: ledger.MethodCash})
		verr, ok := errors.Cause(err).(*core.ValidationError)
		require.True(t, ok, "want a validation error, got %v", err)
		assert.Equal(t, []core.FieldError{{Field: "amount_paid", Error: "cannot exceed the amount due (1000.00)"}}, verr.Fields)

		got, err := env.LedgerSvc.Get(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusPending, got.Status)
		assert.Nil(t, got.PaymentDate)
	})

	t.Run("overpayment allowed", func(t *testing.T) {
		env := testutil.Setup(t, ledger.Options{AllowOverpayment: true})
		entry := newEntry(t, env)

		col, err := env.LedgerSvc.ApplyPayment(ctx, bursar, entry.ID, ledger.Payment{AmountPaid: testutil.Dec("1200"), Method: ledger.MethodCash})
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusPaid, col.Status)
		assert.True(t, col.Outstanding().Equal(testutil.Dec("-200")))
	})

	t.Run("invalid payments", func(t *testing.T) {
		env := testutil.Setup(t)
		entry := newEntry(t, env)

		_, err := env.LedgerSvc.ApplyPayment(ctx, bursar, entry.ID, ledger.Payment{AmountPaid: testutil.Dec("-5"), Method: "barter"})
		verrs, ok := errors.Cause(err).(validator.ValidationErrors)
		require.True(t, ok, "want validation errors, got %v", err)
		assert.Len(t, verrs, 2)

		_, err = env.LedgerSvc.ApplyPayment(ctx, bursar, "nope", ledger.Payment{AmountPaid: testutil.Dec("5"), Method: ledger.MethodCash})
		assert.Equal(t, ledger.ErrNotFound, errors.Cause(err))

		teacher := user.User{ID: "teacher", IsActive: true, Roles: []string{user.RoleTeacher}}
		_, err = env.LedgerSvc.ApplyPayment(ctx, teacher, entry.ID, ledger.Payment{AmountPaid: testutil.Dec("5"), Method: ledger.MethodCash})
		assert.Equal(t, core.ErrForbidden, err)
	})

	t.Run("sub-cent amounts", func(t *testing.T) {
		env := testutil.Setup(t)
		entry := newEntry(t, env)

		_, err := env.LedgerSvc.ApplyPayment(ctx, bursar, entry.ID, ledger.Payment{AmountPaid: testutil.Dec("999.999"), Method: ledger.MethodCash})
		verrs, ok := errors.Cause(err).(validator.ValidationErrors)
		require.True(t, ok, "want validation errors, got %v", err)
		if assert.Len(t, verrs, 1) {
			assert.Equal(t, "amount_paid", verrs[0].Field())
			assert.Equal(t, "money", verrs[0].Tag())
		}

		got, err := env.LedgerSvc.Get(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusPending, got.Status)
		assert.True(t, got.AmountPaid.IsZero())

		col, err := env.LedgerSvc.ApplyPayment(ctx, bursar, entry.ID, ledger.Payment{AmountPaid: testutil.Dec("999.990"), Method: ledger.MethodCash})
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusPartial, col.Status)
	})
}

func TestService_Generate_amountDueIsFixed(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()

	class := testutil.CreateClass(t, env.Students, "Grade 6", "")
	std := testutil.CreateStudent(t, env.Students, "S1", "Amani", class.ID, false, false)
	st, err := env.FeeSvc.Define(ctx, user.System, fee.NewStructure{
		ClassID: class.ID, Type: fee.TypeTuition, Amount: testutil.Dec("1000"), AcademicYear: "2024-2025",
	})
	require.NoError(t, err)

	cols, err := env.LedgerSvc.Generate(ctx, user.System, []string{std.ID}, []fee.Structure{st}, day(2024, time.September, 30))
	require.NoError(t, err)
	require.Len(t, cols, 1)
	assert.True(t, cols[0].AmountDue.Equal(testutil.Dec("1000")))

	raised := testutil.Dec("1250")
	_, err = env.FeeSvc.Correct(ctx, user.System, st.ID, fee.Correction{Amount: &raised})
	require.NoError(t, err)

	got, err := env.LedgerSvc.Get(ctx, cols[0].ID)
	require.NoError(t, err)
	assert.True(t, got.AmountDue.Equal(testutil.Dec("1000")), "issued entry keeps its amount, got %s", got.AmountDue)

	// new students are billed at the corrected amount
	late := testutil.CreateStudent(t, env.Students, "S2", "Baraka", class.ID, false, false)
	corrected, err := env.FeeSvc.Get(ctx, st.ID)
	require.NoError(t, err)
	cols, err = env.LedgerSvc.Generate(ctx, user.System, []string{std.ID, late.ID}, []fee.Structure{corrected}, day(2024, time.September, 30))
	require.NoError(t, err)
	require.Len(t, cols, 1)
	assert.Equal(t, late.ID, cols[0].StudentID)
	assert.True(t, cols[0].AmountDue.Equal(raised))

	got, err = env.LedgerSvc.Get(ctx, got.ID)
	require.NoError(t, err)
	assert.True(t, got.AmountDue.Equal(testutil.Dec("1000")))
}

func TestService_MarkOverdue(t *testing.T) {
	env := testutil.Setup(t)
	ctx := context.Background()

	class := testutil.CreateClass(t, env.Students, "Grade 5", "")
	a := testutil.CreateStudent(t, env.Students, "S1", "A", class.ID, false, false)
	b := testutil.CreateStudent(t, env.Students, "S2", "B", class.ID, false, false)
	c := testutil.CreateStudent(t, env.Students, "S3", "C", class.ID, false, false)
	st := testutil.CreateStructure(t, env.Structures, class.ID, fee.TypeTuition, "100", true, "2024-2025")

	cols, err := env.LedgerSvc.Generate(ctx, user.System, []string{a.ID, b.ID, c.ID}, []fee.Structure{st}, day(2024, time.September, 30))
	require.NoError(t, err)
	byStudent := make(map[string]ledger.Collection)
	for _, col := range cols {
		byStudent[col.StudentID] = col
	}
	_, err = env.LedgerSvc.ApplyPayment(ctx, user.System, byStudent[b.ID].ID, ledger.Payment{AmountPaid: testutil.Dec("30"), Method: ledger.MethodCash})
	require.NoError(t, err)
	_, err = env.LedgerSvc.ApplyPayment(ctx, user.System, byStudent[c.ID].ID, ledger.Payment{AmountPaid: testutil.Dec("100"), Method: ledger.MethodCash})
	require.NoError(t, err)

	// nothing is late on the due date itself
	count, err := env.LedgerSvc.MarkOverdue(ctx, user.System, day(2024, time.September, 30).Add(23*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	count, err = env.LedgerSvc.MarkOverdue(ctx, user.System, day(2024, time.October, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = env.LedgerSvc.MarkOverdue(ctx, user.System, day(2024, time.October, 2))
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	overdue, err := env.LedgerSvc.Query(ctx, &ledger.QueryFilter{Statuses: []ledger.Status{ledger.StatusOverdue}}, nil)
	require.NoError(t, err)
	var late []string
	for _, col := range overdue {
		late = append(late, col.StudentID)
	}
	assert.ElementsMatch(t, []string{a.ID, b.ID}, late)

	totals, err := env.LedgerSvc.Totals(ctx, &ledger.QueryFilter{Statuses: []ledger.Status{ledger.StatusOverdue}})
	require.NoError(t, err)
	assert.Equal(t, 2, totals.Count)
	assert.True(t, totals.Outstanding.Equal(testutil.Dec("170")))
}
