package intent

import (
	"github.com/RichardoC/lms-chat/internal/models"
	"github.com/RichardoC/lms-chat/internal/tools"
)

// PermissionGuard recognizes requests for operations a role may not use,
// whichever selector is active. It matches against the whole catalog, so a
// student asking to create a course is refused rather than misrouted to a
// read.
type PermissionGuard struct {
	defs []*tools.Definition
}

func NewPermissionGuard(catalog *tools.Catalog) *PermissionGuard {
	var defs []*tools.Definition
	for _, def := range catalog.All() {
		if !def.Internal {
			defs = append(defs, def)
		}
	}
	return &PermissionGuard{defs: defs}
}

// Check returns the best matching tool name and false when role lacks it.
func (g *PermissionGuard) Check(input string, role models.Role) (string, bool) {
	best, ok := bestMatch(input, nil, g.defs)
	if !ok || tools.Permitted(role).Has(best.def.Name) {
		return "", true
	}
	return best.def.Name, false
}
