package tests

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/bursar/core"
	"github.com/trezcool/bursar/core/expense"
	"github.com/trezcool/bursar/core/fee"
	"github.com/trezcool/bursar/core/ledger"
	"github.com/trezcool/bursar/core/report"
	"github.com/trezcool/bursar/core/user"
	"github.com/trezcool/bursar/tests"
)

func Test_expenseApi(t *testing.T) {
	app, env := setup(t)

	bursar := testutil.CreateUser(t, env.Users, "Bursar", "bursar", "bursar@test.cd", []string{user.RoleAdminBursar}, true)
	teacher := testutil.CreateUser(t, env.Users, "Teacher", "teacher", "teacher@test.cd", []string{user.RoleTeacher}, true)
	token := getToken(t, env.Conf, bursar)

	fuel := expense.NewExpense{
		Category:    expense.CategoryFuel,
		Description: "Bus diesel",
		Amount:      testutil.Dec("120.50"),
		Date:        core.NewDate(time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)),
		Vendor:      "Total",
	}

	t.Run("permission denied", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/expenses", getToken(t, env.Conf, teacher), marchallObj(t, fuel))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)
	})

	t.Run("invalid data", func(t *testing.T) {
		bad := fuel
		bad.Category = "parties"
		bad.Amount = testutil.Dec("-1")
		req, rec := newAuthRequest(http.MethodPost, "/v1/expenses", token, marchallObj(t, bad))
		app.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var fields map[string]string
		decode(t, rec, &fields)
		assert.Contains(t, fields, "category")
		assert.Equal(t, "must be a number greater than zero", fields["amount"])
	})

	var recorded expense.Expense
	t.Run("record", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/expenses", token, marchallObj(t, fuel))
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)
		decode(t, rec, &recorded)
		assert.Equal(t, bursar.ID, recorded.RecordedBy)
		assert.Equal(t, "2024-03-10", recorded.Date.String())
		assert.Equal(t, []string{core.EventExpenseRecorded}, env.Events.Types())
	})

	t.Run("query", func(t *testing.T) {
		food := testutil.CreateExpense(t, env.Expenses, expense.CategoryFoodCost, "80", time.Date(2024, time.April, 2, 0, 0, 0, 0, time.UTC))

		req, rec := newAuthRequest(http.MethodGet, "/v1/expenses", token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, food, recorded)}, rec)

		v := url.Values{"date_from": {"2024-03-01"}, "date_to": {"2024-03-10"}}
		req, rec = newAuthRequest(http.MethodGet, "/v1/expenses?"+v.Encode(), token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, recorded)}, rec)

		v = url.Values{"category": {string(expense.CategoryFoodCost)}}
		req, rec = newAuthRequest(http.MethodGet, "/v1/expenses?"+v.Encode(), token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, food)}, rec)

		v = url.Values{"ordering": {"amount"}}
		req, rec = newAuthRequest(http.MethodGet, "/v1/expenses?"+v.Encode(), token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, food, recorded)}, rec)
	})
}

func Test_reportApi(t *testing.T) {
	app, env := setup(t)

	bursar := testutil.CreateUser(t, env.Users, "Bursar", "bursar", "bursar@test.cd", []string{user.RoleAdminBursar}, true)
	teacher := testutil.CreateUser(t, env.Users, "Teacher", "teacher", "teacher@test.cd", []string{user.RoleTeacher}, true)
	token := getToken(t, env.Conf, bursar)

	class := testutil.CreateClass(t, env.Students, "Grade 5", "A")
	std := testutil.CreateStudent(t, env.Students, "S001", "Amani", class.ID, true, false)
	testutil.CreateYear(t, env.Years, "2024-2025", true)
	tuition := testutil.CreateStructure(t, env.Structures, class.ID, fee.TypeTuition, "1000", true, "2024-2025")
	transport := testutil.CreateStructure(t, env.Structures, class.ID, fee.TypeTransport, "300", false, "2024-2025")

	cols, err := env.LedgerSvc.Generate(context.Background(), bursar, []string{std.ID}, []fee.Structure{tuition, transport}, time.Now().AddDate(0, 1, 0))
	require.NoError(t, err)
	require.Len(t, cols, 2)
	for _, col := range cols {
		_, err = env.LedgerSvc.ApplyPayment(context.Background(), bursar, col.ID, ledger.Payment{AmountPaid: col.AmountDue, Method: ledger.MethodCash})
		require.NoError(t, err)
	}
	testutil.CreateExpense(t, env.Expenses, expense.CategoryFuel, "100", time.Now())

	today := time.Now().UTC().Format(core.DateLayout)

	t.Run("permission denied", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/reports/dashboard", getToken(t, env.Conf, teacher))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)
	})

	t.Run("current month by default", func(t *testing.T) {
		defer func() { report.NowFunc = time.Now }()
		report.NowFunc = func() time.Time { return time.Date(2025, time.January, 20, 15, 0, 0, 0, time.UTC) }

		req, rec := newAuthRequest(http.MethodGet, "/v1/reports/financial", token)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var rep report.FinancialReport
		decode(t, rec, &rep)
		assert.Equal(t, "2025-01-01", rep.StartDate.String())
		assert.Equal(t, "2025-01-20", rep.EndDate.String())

		v := url.Values{"start_date": {"2024-12-15"}}
		req, rec = newAuthRequest(http.MethodGet, "/v1/reports/financial?"+v.Encode(), token)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		decode(t, rec, &rep)
		assert.Equal(t, "2024-12-15", rep.StartDate.String())
		assert.Equal(t, "2025-01-20", rep.EndDate.String())
	})

	t.Run("invalid date", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/reports/financial?end_date=20/01/2025", token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"end_date": "invalid date, expected YYYY-MM-DD"}),
		}, rec)
	})

	t.Run("inverted range", func(t *testing.T) {
		v := url.Values{"start_date": {today}, "end_date": {"2000-01-01"}}
		req, rec := newAuthRequest(http.MethodGet, "/v1/reports/financial?"+v.Encode(), token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"end_date": report.ErrInvalidRange.Error()}),
		}, rec)
	})

	t.Run("financial", func(t *testing.T) {
		v := url.Values{"start_date": {today}, "end_date": {today}}
		req, rec := newAuthRequest(http.MethodGet, "/v1/reports/financial?"+v.Encode(), token)
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var rep report.FinancialReport
		decode(t, rec, &rep)
		assert.True(t, rep.Income[report.BucketTuition].Equal(testutil.Dec("1000")))
		assert.True(t, rep.Income[report.BucketTransport].Equal(testutil.Dec("300")))
		assert.True(t, rep.Income[report.BucketFood].IsZero())
		assert.True(t, rep.Expenses[expense.CategoryFuel].Equal(testutil.Dec("100")))
		assert.True(t, rep.NetProfit.Equal(testutil.Dec("1200")), rep.NetProfit.String())
	})

	t.Run("dashboard", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/reports/dashboard", token)
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var summary report.DashboardSummary
		decode(t, rec, &summary)
		assert.Equal(t, 1, summary.TotalStudents)
		assert.Equal(t, "2024-2025", summary.CurrentAcademicYear)
		assert.True(t, summary.TotalFeesCollected.Equal(testutil.Dec("1300")))
		assert.True(t, summary.TransportNet.Equal(testutil.Dec("200")), summary.TransportNet.String())
		assert.Len(t, summary.RecentPayments, 2)
		assert.Len(t, summary.MonthlyCollections, 12)
		assert.True(t, summary.MonthlyRevenue.Equal(testutil.Dec("1300")))
	})
}
