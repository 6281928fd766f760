package tests

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/bursar/core"
	"github.com/trezcool/bursar/core/academicyear"
	"github.com/trezcool/bursar/core/student"
	"github.com/trezcool/bursar/core/user"
	"github.com/trezcool/bursar/tests"
)

func Test_studentApi(t *testing.T) {
	app, env := setup(t)

	bursar := testutil.CreateUser(t, env.Users, "Bursar", "bursar", "bursar@test.cd", []string{user.RoleAdminBursar}, true)
	teacher := testutil.CreateUser(t, env.Users, "Teacher", "teacher", "teacher@test.cd", []string{user.RoleTeacher}, true)
	token := getToken(t, env.Conf, bursar)

	t.Run("Admin required", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/classes", getToken(t, env.Conf, teacher))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)
	})

	var class student.Class
	t.Run("create class", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/classes", token, marchallObj(t, student.NewClass{Name: " Grade 5 ", Section: "B"}))
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)
		decode(t, rec, &class)
		assert.Equal(t, "Grade 5", class.Name)
		assert.Equal(t, "Grade 5 - B", class.String())

		req, rec = newAuthRequest(http.MethodPost, "/v1/classes", token, marchallObj(t, student.NewClass{Name: "grade 5", Section: "b"}))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"name": student.ErrClassExists.Error()}),
		}, rec)
	})

	var amani student.Student
	t.Run("enroll", func(t *testing.T) {
		body := marchallObj(t, student.NewStudent{StudentNumber: "S001", Name: "Amani", ClassID: class.ID, IsTransportUser: true})
		req, rec := newAuthRequest(http.MethodPost, "/v1/students", token, body)
		app.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)
		decode(t, rec, &amani)
		assert.True(t, amani.IsActive)
		assert.True(t, amani.IsTransportUser)
		assert.False(t, amani.IsFoodServiceUser)

		req, rec = newAuthRequest(http.MethodPost, "/v1/students", token, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"student_number": student.ErrNumberExists.Error()}),
		}, rec)
	})

	t.Run("query & retrieve", func(t *testing.T) {
		other := testutil.CreateClass(t, env.Students, "Grade 6", "")
		testutil.CreateStudent(t, env.Students, "S002", "Baraka", other.ID, false, false)

		v := url.Values{"class_id": {class.ID}}
		req, rec := newAuthRequest(http.MethodGet, "/v1/students?"+v.Encode(), token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, amani)}, rec)

		req, rec = newAuthRequest(http.MethodGet, "/v1/students/"+amani.ID, token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, amani)}, rec)

		req, rec = newAuthRequest(http.MethodGet, "/v1/students/nope", token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: student.ErrNotFound.Error()})}, rec)
	})
}

func Test_academicYearApi(t *testing.T) {
	app, env := setup(t)

	owner := testutil.CreateUser(t, env.Users, "Owner", "owner", "owner@test.cd", []string{user.RoleAdminOwner}, true)
	bursar := testutil.CreateUser(t, env.Users, "Bursar", "bursar", "bursar@test.cd", []string{user.RoleAdminBursar}, true)
	token := getToken(t, env.Conf, owner)

	newYear := func(year string, start int, current bool) academicyear.NewAcademicYear {
		return academicyear.NewAcademicYear{
			Year:      year,
			StartDate: core.NewDate(time.Date(start, time.September, 1, 0, 0, 0, 0, time.UTC)),
			EndDate:   core.NewDate(time.Date(start+1, time.June, 30, 0, 0, 0, 0, time.UTC)),
			IsCurrent: current,
		}
	}

	t.Run("bursars cannot manage years", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/academic-years", getToken(t, env.Conf, bursar), marchallObj(t, newYear("2024-2025", 2024, true)))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)
	})

	t.Run("no current year yet", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/academic-years/current", token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: academicyear.ErrNotFound.Error()})}, rec)
	})

	t.Run("end before start", func(t *testing.T) {
		bad := newYear("2024-2025", 2024, false)
		bad.EndDate = bad.StartDate
		req, rec := newAuthRequest(http.MethodPost, "/v1/academic-years", token, marchallObj(t, bad))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"end_date": "end date must be after start date"}),
		}, rec)
	})

	var y24, y25 academicyear.AcademicYear
	t.Run("create", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/academic-years", token, marchallObj(t, newYear("2024-2025", 2024, true)))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)
		decode(t, rec, &y24)
		assert.True(t, y24.IsCurrent)

		req, rec = newAuthRequest(http.MethodPost, "/v1/academic-years", token, marchallObj(t, newYear("2025-2026", 2025, false)))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)
		decode(t, rec, &y25)
		assert.False(t, y25.IsCurrent)

		req, rec = newAuthRequest(http.MethodPost, "/v1/academic-years", token, marchallObj(t, newYear("2025-2026", 2025, false)))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"year": academicyear.ErrYearExists.Error()}),
		}, rec)
	})

	t.Run("set current", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/academic-years/"+y25.ID+"/current", token)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		y24.IsCurrent = false
		y25.IsCurrent = true
		req, rec = newAuthRequest(http.MethodGet, "/v1/academic-years", token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t, y25, y24)}, rec)

		req, rec = newAuthRequest(http.MethodGet, "/v1/academic-years/current", token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, y25)}, rec)
	})
}
