package user

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/bursar/core"
)

func TestUser_Can(t *testing.T) {
	owner := User{IsActive: true, Roles: []string{RoleAdminOwner}}
	bursar := User{IsActive: true, Roles: []string{RoleAdminBursar}}
	teacher := User{IsActive: true, Roles: []string{RoleTeacher}}
	retired := User{IsActive: false, Roles: []string{RoleAdminOwner}}
	mixed := User{IsActive: true, Roles: []string{RoleStudent, RoleAdminBursar}}

	tests := []struct {
		name string
		usr  User
		want map[Permission]bool
	}{
		{name: "owner", usr: owner, want: map[Permission]bool{
			PermManageFees: true, PermCollectFees: true, PermManageExpenses: true, PermViewReports: true, PermManageYears: true,
		}},
		{name: "bursar", usr: bursar, want: map[Permission]bool{
			PermManageFees: true, PermCollectFees: true, PermManageExpenses: true, PermViewReports: true, PermManageYears: false,
		}},
		{name: "teacher", usr: teacher, want: map[Permission]bool{}},
		{name: "deactivated", usr: retired, want: map[Permission]bool{}},
		{name: "mixed roles", usr: mixed, want: map[Permission]bool{
			PermManageFees: true, PermCollectFees: true, PermManageExpenses: true, PermViewReports: true,
		}},
		{name: "system", usr: System, want: map[Permission]bool{
			PermManageFees: true, PermCollectFees: true, PermManageExpenses: true, PermViewReports: true, PermManageYears: true,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, perm := range AllPermissions {
				want := tt.want[perm]
				assert.Equal(t, want, tt.usr.Can(perm), perm)
				if want {
					assert.NoError(t, tt.usr.Authorize(perm))
				} else {
					assert.Equal(t, core.ErrForbidden, tt.usr.Authorize(perm))
				}
			}
		})
	}
}

func Test_isKnownRole(t *testing.T) {
	for _, role := range AllRoles {
		assert.True(t, isKnownRole(role), role)
	}
	assert.False(t, isKnownRole("admin:janitor"))
	assert.False(t, isKnownRole(""))
}
