package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/taskflow/taskcore/internal/api/middleware"
	"github.com/taskflow/taskcore/internal/auth"
)

// resolveOwnerID returns the ownerId a task/conversation operation should
// run under. A user credential may only act as itself; a service
// credential (e.g. RecurrenceWorker re-entering TaskCore) carries the
// target owner in the path and is trusted because Authenticate already
// checked it against the allow-list — this is the "writes on behalf of an
// arbitrary user id" contract the service-credential role exists for.
func resolveOwnerID(r *http.Request) (string, error) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		return "", fmt.Errorf("missing actor")
	}
	pathUserID := mux.Vars(r)["userId"]

	switch actor.Role {
	case auth.RoleUser:
		if pathUserID != "" && pathUserID != actor.UserID {
			return "", fmt.Errorf("user credential may not act as another user")
		}
		return actor.UserID, nil
	case auth.RoleService:
		if pathUserID == "" {
			return "", fmt.Errorf("userId is required in the path for a service credential")
		}
		return pathUserID, nil
	default:
		return "", fmt.Errorf("unrecognized actor role")
	}
}
