package entity

// Roles reconocidos por el motor.
const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

// Actor usuario que ejecuta un comando, con la sucursal a la que pertenece.
type Actor struct {
	UserID   string
	BranchID string
	Role     string
}

// CanActFor indica si el actor puede operar en nombre de la sucursal.
// El administrador opera en cualquiera.
func (a Actor) CanActFor(branchID string) bool {
	if a.Role == RoleAdmin {
		return true
	}
	return a.BranchID != "" && a.BranchID == branchID
}
