package models

import "strings"

// Role determines which LMS operations a user may trigger.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// Roles lists every role in ascending privilege.
var Roles = []Role{RoleStudent, RoleTeacher, RoleAdmin}

// ParseRole normalizes Canvas and client role names. Instructors, faculty and
// TAs act as teachers; anything unrecognized gets the least privilege.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin", "administrator", "accountadmin":
		return RoleAdmin
	case "teacher", "faculty", "instructor", "ta", "teacherenrollment", "taenrollment":
		return RoleTeacher
	default:
		return RoleStudent
	}
}
