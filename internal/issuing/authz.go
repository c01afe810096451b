package issuing

import (
	"context"

	"github.com/aarondl/null/v8"

	"github.com/erazemk/zahtevki/internal/apperr"
	"github.com/erazemk/zahtevki/internal/auth"
	"github.com/erazemk/zahtevki/internal/db"
	"github.com/erazemk/zahtevki/internal/model"
	"github.com/erazemk/zahtevki/internal/store"
)

// IsDepartmentHead reports whether the actor manages the department or
// one of its ancestors.
func IsDepartmentHead(ctx context.Context, q db.Querier, actor auth.Actor, deptID null.Int64) (bool, error) {
	if actor.EmployeeID == 0 || !deptID.Valid {
		return false, nil
	}
	chain, err := store.DepartmentChain(ctx, q, deptID.Int64)
	if err != nil {
		return false, err
	}
	for _, d := range chain {
		if d.ManagerID.Valid && d.ManagerID.Int64 == actor.EmployeeID {
			return true, nil
		}
	}
	return false, nil
}

// checkEmployeeScope allows the actor to raise requests for the employee
// only if the actor's department is the employee's department or one of
// its ancestors.
func checkEmployeeScope(ctx context.Context, q db.Querier, actor auth.Actor, emp *model.Employee) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.EmployeeID == 0 {
		return apperr.Authorization("user %s is not linked to an employee", actor.Username)
	}
	self, err := store.GetEmployee(ctx, q, actor.EmployeeID)
	if err != nil {
		return err
	}
	if self == nil || !self.DepartmentID.Valid || !emp.DepartmentID.Valid {
		return apperr.Authorization("you can only request items for employees of your department")
	}

	chain, err := store.DepartmentChain(ctx, q, emp.DepartmentID.Int64)
	if err != nil {
		return err
	}
	for _, d := range chain {
		if d.ID == self.DepartmentID.Int64 {
			return nil
		}
	}
	return apperr.Authorization("you can only request items for employees of your department")
}

// checkCanModify allows the requester, a head of the request's department
// and admins to change or cancel a request.
func checkCanModify(ctx context.Context, q db.Querier, actor auth.Actor, r *model.Request) error {
	if actor.IsAdmin() || r.RequestedBy == actor.UserID {
		return nil
	}
	head, err := IsDepartmentHead(ctx, q, actor, r.DepartmentID)
	if err != nil {
		return err
	}
	if !head {
		return apperr.Authorization("only the requester or a department head can change request %s", r.Name)
	}
	return nil
}
