package users

// Roles recognised by the backend. Branch is required for HODs and scopes
// both approval visibility and digest recipients.
const (
	RoleOrganiser = "organiser"
	RoleHOD       = "hod"
	RoleStudent   = "student"
)

// User is a registered account.
type User struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
	Branch       string `json:"branch,omitempty"`
}

// ValidRole reports whether role is one of the recognised roles.
func ValidRole(role string) bool {
	switch role {
	case RoleOrganiser, RoleHOD, RoleStudent:
		return true
	}
	return false
}
