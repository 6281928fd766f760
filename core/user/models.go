package user

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/bursar/core"
)

// Roles
const (
	// Admin
	RoleAdmin          = "admin:"
	RoleAdminOwner     = "admin:owner"
	RoleAdminPrincipal = "admin:principal"
	RoleAdminBursar    = "admin:bursar"

	// Teacher
	RoleTeacher = "teacher:"

	// Student
	RoleStudent = "student:"
)

// Permissions
const (
	PermManageFees     Permission = "fees:manage"   // define & correct structures, generate and age ledger entries
	PermCollectFees    Permission = "fees:collect"  // record payments
	PermManageExpenses Permission = "expenses:manage"
	PermViewReports    Permission = "reports:view"
	PermManageYears    Permission = "years:manage"
)

var (
	AdminRoles   = []string{RoleAdmin, RoleAdminOwner, RoleAdminPrincipal, RoleAdminBursar}
	TeacherRoles = []string{RoleTeacher}
	StudentRoles = []string{RoleStudent}
	AllRoles     = getAllRoles()

	AllPermissions = []Permission{PermManageFees, PermCollectFees, PermManageExpenses, PermViewReports, PermManageYears}

	rolePermissions = map[string][]Permission{
		RoleAdmin:          AllPermissions,
		RoleAdminOwner:     AllPermissions,
		RoleAdminPrincipal: AllPermissions,
		RoleAdminBursar:    {PermManageFees, PermCollectFees, PermManageExpenses, PermViewReports},
	}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Admin", Value: RoleAdmin},
		{Name: "Admin Bursar", Value: RoleAdminBursar},
		{Name: "Admin Principal", Value: RoleAdminPrincipal},
		{Name: "Admin Owner", Value: RoleAdminOwner},
	}

	// System acts on behalf of scheduled jobs and the admin CLI.
	// It has no ID so audit columns referencing staff stay NULL.
	System = User{Name: "System", Username: "system", IsActive: true, Roles: []string{RoleAdminOwner}}
)

func getAllRoles() []string {
	all := make([]string, 0, len(AdminRoles)+len(TeacherRoles)+len(StudentRoles))
	all = append(all, AdminRoles...)
	all = append(all, TeacherRoles...)
	all = append(all, StudentRoles...)
	return all
}

type (
	Permission string

	Role struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}

	User struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Username  string    `json:"username"`
		Email     string    `json:"email"`
		IsActive  bool      `json:"is_active"`
		Roles     []string  `json:"roles"`
		CreatedAt time.Time `json:"created_at"` // UTC
		UpdatedAt time.Time `json:"updated_at"` // UTC
	}
)

func (u User) RoleStartsWith(prefix string) bool {
	for _, role := range u.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (u User) IsAdmin() bool {
	return u.RoleStartsWith(RoleAdmin)
}

// Can reports whether an active user holds perm through any of their roles.
func (u User) Can(perm Permission) bool {
	if !u.IsActive {
		return false
	}
	for _, role := range u.Roles {
		for _, p := range rolePermissions[role] {
			if p == perm {
				return true
			}
		}
	}
	return false
}

// Authorize returns core.ErrForbidden unless the user holds perm.
func (u User) Authorize(perm Permission) error {
	if u.Can(perm) {
		return nil
	}
	return core.ErrForbidden
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name     string   `json:"name" validate:"required"`
	Username string   `json:"username" validate:"required,min=3,alphanum_"`
	Email    string   `json:"email" validate:"omitempty,email"`
	Roles    []string `json:"roles" validate:"omitempty,all_roles"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	return validate.Struct(nu)
}

type GetFilter struct {
	ID              string
	Username        string
	UsernameOrEmail []string
}

type QueryFilter struct {
	Search   string   `query:"search"`
	Roles    []string `query:"role"`
	IsActive *bool    `query:"is_active"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
