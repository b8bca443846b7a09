package controllers

import (
	"github.com/gorilla/mux"

	"github.com/rzbill/auditstack/internal/runtime"
	auditsvc "github.com/rzbill/auditstack/internal/services/audit"
	logpkg "github.com/rzbill/auditstack/pkg/log"
)

// ControllerRegistry manages all HTTP controllers.
type ControllerRegistry struct {
	general *GeneralController
	audit   *AuditController
}

// NewControllerRegistry creates a new controller registry.
func NewControllerRegistry(rt *runtime.Runtime, svc *auditsvc.Service, logger logpkg.Logger) *ControllerRegistry {
	return &ControllerRegistry{
		general: NewGeneralController(rt),
		audit:   NewAuditController(svc, logger),
	}
}

// RegisterAllRoutes registers all controller routes with the given router.
func (r *ControllerRegistry) RegisterAllRoutes(router *mux.Router) {
	r.general.RegisterRoutes(router)
	r.audit.RegisterRoutes(router)
}
