package auth

import (
	"context"
	"fmt"

	"github.com/erazemk/zahtevki/internal/db"
	"github.com/erazemk/zahtevki/internal/model"
	"github.com/erazemk/zahtevki/internal/store"
)

// Actor is the authenticated user performing an action. EmployeeID is
// zero when the user is not linked to an employee.
type Actor struct {
	UserID     int64
	Username   string
	Role       string
	EmployeeID int64
}

// HasRole reports whether the actor's role is at least role.
func (a Actor) HasRole(role string) bool {
	return model.RoleAtLeast(a.Role, role)
}

// IsAdmin reports whether the actor is an administrator.
func (a Actor) IsAdmin() bool {
	return a.Role == model.RoleAdmin
}

// ActorFor loads the actor for a user, including the linked employee.
func ActorFor(ctx context.Context, q db.Querier, u *model.User) (Actor, error) {
	a := Actor{UserID: u.ID, Username: u.Username, Role: u.Role}

	emp, err := store.GetEmployeeByUser(ctx, q, u.ID)
	if err != nil {
		return a, fmt.Errorf("loading actor employee: %w", err)
	}
	if emp != nil {
		a.EmployeeID = emp.ID
	}
	return a, nil
}
