package policy

import (
	"fmt"

	"bus-stop-inventory/internal/model"
)

type Capability string

const (
	StopsRead         Capability = "stops:read"
	StopsWrite        Capability = "stops:write"
	StopsInspect      Capability = "stops:inspect"
	StopsDelete       Capability = "stops:delete"
	PhotosRead        Capability = "photos:read"
	PhotosWrite       Capability = "photos:write"
	ReportsRead       Capability = "reports:read"
	ReportsExport     Capability = "reports:export"
	AuditRead         Capability = "audit:read"
	UsersManage       Capability = "users:manage"
	DirectoriesManage Capability = "directories:manage"
	AuthSession       Capability = "auth:session"
)

var (
	everyone = []model.Role{model.RoleAdmin, model.RoleInspector, model.RoleViewer}
	editors  = []model.Role{model.RoleAdmin, model.RoleInspector}
	admins   = []model.Role{model.RoleAdmin}
)

// table is the single source of truth for who may do what.
var table = map[Capability][]model.Role{
	StopsRead:         everyone,
	PhotosRead:        everyone,
	ReportsRead:       everyone,
	ReportsExport:     everyone,
	AuthSession:       everyone,
	StopsWrite:        editors,
	StopsInspect:      editors,
	PhotosWrite:       editors,
	StopsDelete:       admins,
	UsersManage:       admins,
	DirectoriesManage: admins,
	AuditRead:         admins,
}

// Allows reports whether role holds capability. Unknown capabilities are
// denied to everyone.
func Allows(role model.Role, capability Capability) bool {
	for _, r := range table[capability] {
		if r == role {
			return true
		}
	}
	return false
}

// Authorize returns model.ErrForbidden unless the identity holds capability.
func Authorize(identity *model.Identity, capability Capability) error {
	if identity == nil {
		return model.ErrUnauthorized
	}
	if !Allows(identity.Role, capability) {
		return fmt.Errorf("%w: role %s lacks %s", model.ErrForbidden, identity.Role, capability)
	}
	return nil
}

// Capabilities lists what role may do, in table order of declaration.
func Capabilities(role model.Role) []Capability {
	all := []Capability{
		StopsRead, StopsWrite, StopsInspect, StopsDelete,
		PhotosRead, PhotosWrite,
		ReportsRead, ReportsExport, AuditRead,
		UsersManage, DirectoriesManage, AuthSession,
	}

	var granted []Capability
	for _, c := range all {
		if Allows(role, c) {
			granted = append(granted, c)
		}
	}
	return granted
}
