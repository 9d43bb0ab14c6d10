package models

type Role string

const (
	RoleCustomer Role = "customer"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleOperator, RoleAdmin:
		return true
	}
	return false
}

// Actor is the authenticated caller. An empty Role means the identity
// provider has not resolved it yet.
type Actor struct {
	ID   string
	Role Role
}
