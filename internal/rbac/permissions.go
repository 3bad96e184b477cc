package rbac

// Permission keys checked by the API handlers. The matrix decides which role
// types hold them; these constants only name the keys.
const (
	PermRolesManage       = "rbac.roles.manage"
	PermPermissionsManage = "rbac.permissions.manage"
	PermLicitacionCreate  = "licitaciones.create"
	PermLicitacionRead    = "licitaciones.read"
	PermLicitacionAdvance = "licitaciones.advance"
)
