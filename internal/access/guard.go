package access

import (
	"fmt"
	"strings"

	"github.com/BearBump/WasteTrack/internal/models"
)

const (
	LoginPath = "/login"

	// UndefinedScope is what the portal router puts into a role param it
	// failed to fill. It is a routing error, not an access attempt.
	UndefinedScope = "undefined"
)

type Verdict string

const (
	VerdictPending  Verdict = "pending"
	VerdictAllow    Verdict = "allow"
	VerdictDeny     Verdict = "deny"
	VerdictRedirect Verdict = "redirect"
)

type Decision struct {
	Verdict    Verdict
	Message    string
	RedirectTo string
}

// Session is what the identity provider has resolved so far.
type Session struct {
	Loaded bool
	Actor  *models.Actor
}

// Scope is the role-scoped target of a request. Role is empty for routes
// that are not role-scoped.
type Scope struct {
	Role string
	Path string
}

func HomePath(r models.Role) string {
	return "/" + string(r)
}

// Authorize is a pure decision; callers perform the navigation/response.
func Authorize(s Session, scope Scope) Decision {
	if !s.Loaded {
		return Decision{Verdict: VerdictPending}
	}
	if s.Actor == nil {
		return Decision{Verdict: VerdictRedirect, RedirectTo: LoginPath}
	}
	role := s.Actor.Role
	if role == "" {
		return Decision{Verdict: VerdictPending}
	}
	home := HomePath(role)

	switch scope.Role {
	case UndefinedScope:
		return Decision{Verdict: VerdictRedirect, RedirectTo: home}
	case "", string(role):
		return Decision{Verdict: VerdictAllow}
	}

	if underNamespace(scope.Path, home) {
		return Decision{Verdict: VerdictAllow}
	}
	return Decision{
		Verdict: VerdictDeny,
		Message: fmt.Sprintf("this area is restricted to the %s role; your workspace is %s", scope.Role, home),
	}
}

func underNamespace(path, home string) bool {
	return path == home || strings.HasPrefix(path, home+"/")
}

// CanReadOrder: staff read every order, customers only their own.
func CanReadOrder(a models.Actor, o *models.Order) bool {
	if o == nil {
		return false
	}
	switch a.Role {
	case models.RoleAdmin, models.RoleOperator:
		return true
	case models.RoleCustomer:
		return a.ID != "" && o.CustomerID == a.ID
	}
	return false
}
