package worker

import (
	"github.com/spec-kit/classroom-client/internal/service"
)

// StartSessionAudit registers the session audit handlers.
func StartSessionAudit(audit *service.SessionAudit) {
	if audit == nil {
		return
	}
	audit.RegisterHandlers()
}
