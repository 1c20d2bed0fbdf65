package rbac

import "errors"

// Role names are carried in tokens; renaming one logs every desk out.
const (
	RoleAgent      = "agent"
	RoleSupervisor = "supervisor"
	RoleAdmin      = "admin"
)

var ErrForbidden = errors.New("rbac: forbidden")

// Valid reports whether role is one the service issues tokens for.
func Valid(role string) bool {
	switch role {
	case RoleAgent, RoleSupervisor, RoleAdmin:
		return true
	}
	return false
}

func IsAdmin(role string) bool { return role == RoleAdmin }

// CanActForOthers reports whether role may read another agent's desk.
func CanActForOthers(role string) bool { return role == RoleSupervisor || role == RoleAdmin }

// TargetAgent picks the desk a read applies to. An empty or own requested id
// means the caller's desk; anyone else's needs a supervisor or admin.
func TargetAgent(callerID, role, requested string) (string, error) {
	if requested == "" || requested == callerID {
		return callerID, nil
	}
	if !CanActForOthers(role) {
		return "", ErrForbidden
	}
	return requested, nil
}
