package controllers

const (
	RoleAdmin       = "admin"
	RoleCoordinator = "coordinator"
	RoleTrainer     = "trainer"
)

var allowedRoles = map[string]struct{}{
	RoleAdmin:       {},
	RoleCoordinator: {},
	RoleTrainer:     {},
}

func IsValidRole(role string) bool {
	_, ok := allowedRoles[role]
	return ok
}
