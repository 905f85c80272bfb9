package entities

// PermissionPrefix namespaces every needs list permission string
const PermissionPrefix = "needs_list."

// Permission names accepted by the lifecycle operations
const (
	PermCreate         = PermissionPrefix + "create"
	PermSubmit         = PermissionPrefix + "submit"
	PermReviewStart    = PermissionPrefix + "review_start"
	PermReviewComments = PermissionPrefix + "review_comments"
	PermApprove        = PermissionPrefix + "approve"
	PermReject         = PermissionPrefix + "reject"
	PermReturn         = PermissionPrefix + "return"
	PermEscalate       = PermissionPrefix + "escalate"
	PermExecute        = PermissionPrefix + "execute"
	PermCancel         = PermissionPrefix + "cancel"
	PermEditLines      = PermissionPrefix + "edit_lines"
)

// PermissionChecker answers capability questions for a caller. The engine
// never resolves identity-provider roles itself.
type PermissionChecker interface {
	HasPermission(permission string) bool
}

// PermissionSet is a resolved set of permission strings
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from permission strings
func NewPermissionSet(permissions ...string) PermissionSet {
	set := make(PermissionSet, len(permissions))
	for _, p := range permissions {
		set[p] = struct{}{}
	}
	return set
}

// HasPermission implements PermissionChecker
func (s PermissionSet) HasPermission(permission string) bool {
	_, ok := s[permission]
	return ok
}

// Actor is the opaque caller identity plus its resolved capabilities
type Actor struct {
	ID          string
	Permissions PermissionChecker
	Roles       []string
}

// Can reports whether the actor holds a permission
func (a Actor) Can(permission string) bool {
	return a.Permissions != nil && a.Permissions.HasPermission(permission)
}

// HasRole reports whether the actor holds a role string
func (a Actor) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}
