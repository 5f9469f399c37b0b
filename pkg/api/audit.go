package api

import (
	"context"
	"net/http"
	"time"

	"github.com/platinummonkey/gatekeeper/pkg/async"
	"github.com/platinummonkey/gatekeeper/pkg/audit"
	"github.com/platinummonkey/gatekeeper/pkg/authz"
	"github.com/platinummonkey/gatekeeper/pkg/observability"
)

// auditWriteTimeout bounds one background audit insert.
const auditWriteTimeout = 5 * time.Second

// auditSink fans successful mutations out to the audit recorder,
// fire-and-forget. A nil recorder makes every emit a no-op, so handlers
// never need to check whether auditing is enabled.
type auditSink struct {
	recorder audit.Recorder
	logger   *observability.Logger
}

// emit records one audit event in the background. The actor and request id
// are taken from the request context.
func (a *auditSink) emit(r *http.Request, event *audit.Event) {
	if a.recorder == nil {
		return
	}

	if actorID, ok := observability.GetActorID(r.Context()); ok {
		event.ActorID = &actorID
	}
	event.RequestID = observability.GetRequestID(r.Context())
	event.Timestamp = time.Now().UTC()
	if event.Status == "" {
		event.Status = audit.StatusSuccess
	}

	async.SafeGo(r.Context(), a.logger, auditWriteTimeout, "audit write", func(ctx context.Context) error {
		return a.recorder.Record(ctx, event)
	})
}

// scopeFields converts an org scope to audit event pointers.
func scopeFields(scope authz.OrgContext) (*string, *int64) {
	orgType := string(scope.Type)
	orgID := int64(scope.ID)
	return &orgType, &orgID
}

func userField(userID authz.UserID) *int64 {
	v := int64(userID)
	return &v
}
