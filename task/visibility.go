package task

// Visible reports whether actor may read t. Admins see every task; everyone
// else sees only tasks of their own department.
func Visible(actor Actor, t *Task) bool {
	if actor.IsAdmin {
		return true
	}
	return actor.DepartmentID != 0 && t.DepartmentID == actor.DepartmentID
}

// ScopeFor returns the department restriction to apply to list queries run on
// behalf of actor, or nil when the actor sees every department.
func ScopeFor(actor Actor) *int64 {
	if actor.IsAdmin {
		return nil
	}
	dept := actor.DepartmentID
	return &dept
}
