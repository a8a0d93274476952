package domain

import "time"

// Role differentiates students from teachers.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

// Valid reports whether the role is one the backend accepts.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleTeacher
}

// SessionToken is the bearer credential issued by the backend.
// Subject and ExpiresAt are decoded locally and only serve as hints;
// the server stays the authority on both.
type SessionToken struct {
	Raw       string
	Subject   string
	Role      Role
	ExpiresAt *time.Time
}
