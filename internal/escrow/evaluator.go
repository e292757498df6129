package escrow

import (
	"fmt"

	"github.com/ravlo/cardvault/internal/models"
)

// Result is the outcome of a state-machine evaluation. Denials carry a
// human-readable reason that the web layer may surface verbatim.
type Result struct {
	Valid  bool
	Reason string
}

func allow() Result {
	return Result{Valid: true}
}

func deny(format string, args ...any) Result {
	return Result{Valid: false, Reason: fmt.Sprintf(format, args...)}
}

// Action names a business operation that maps onto an underlying transition.
type Action string

const (
	ActionCheckIn           Action = "CHECK_IN"
	ActionStartVerification Action = "START_VERIFICATION"
	ActionPassVerification  Action = "PASS_VERIFICATION"
	ActionFailVerification  Action = "FAIL_VERIFICATION"
	ActionRequestRelease    Action = "REQUEST_RELEASE"
	ActionApproveRelease    Action = "APPROVE_RELEASE"
	ActionExtendSession     Action = "EXTEND_SESSION"
	ActionCloseSession      Action = "CLOSE_SESSION"
)

// actionTargets maps plain actions to their target status. EXTEND_SESSION and
// CLOSE_SESSION are special-cased in CanPerformAction instead.
var actionTargets = map[Action]models.SessionStatus{
	ActionCheckIn:           models.SessionCheckedIn,
	ActionStartVerification: models.SessionVerificationInProgress,
	ActionPassVerification:  models.SessionVerificationPassed,
	ActionFailVerification:  models.SessionVerificationFailed,
	ActionRequestRelease:    models.SessionReleaseRequested,
	ActionApproveRelease:    models.SessionReleaseApproved,
}

// CanTransition reports whether the requested status change is legal. Pure
// and deterministic; it never touches persistence.
//
// A dispute (target DISPUTED) may be raised from any non-terminal status by
// any role, bypassing the static table. Every other target must appear in
// the table for the current status, and when a role is supplied the edge's
// permission entry must contain it. Pass role "" to skip the role check
// (trusted internal callers).
func CanTransition(current, target models.SessionStatus, role models.Role) Result {
	if current.Terminal() {
		return deny("session is %s; no further transitions are permitted", current)
	}

	if target == models.SessionDisputed {
		return allow()
	}

	targets, ok := transitions[current]
	if !ok {
		return deny("unknown session status %q", current)
	}

	found := false
	for _, t := range targets {
		if t == target {
			found = true
			break
		}
	}
	if !found {
		return deny("cannot transition from %s to %s; allowed targets: %v", current, target, targets)
	}

	if role != "" {
		roles, ok := permissions[edge{current, target}]
		if !ok {
			return deny("transition %s -> %s is not permitted for any role", current, target)
		}
		for _, r := range roles {
			if r == role {
				return allow()
			}
		}
		return deny("role %s may not transition %s -> %s; allowed roles: %v", role, current, target, roles)
	}

	return allow()
}

// CanPerformAction maps a named business action onto the underlying
// transition check.
//
// Two actions carry extra guards:
//   - EXTEND_SESSION is only legal from EXPIRED (it re-books the session).
//   - CLOSE_SESSION is legal from any non-terminal status but restricted to
//     MERCHANT/ADMIN roles; like disputes it bypasses the static table.
func CanPerformAction(current models.SessionStatus, action Action, role models.Role) Result {
	switch action {
	case ActionExtendSession:
		if current != models.SessionExpired {
			return deny("only expired sessions can be extended (current status: %s)", current)
		}
		return CanTransition(models.SessionExpired, models.SessionBooked, role)

	case ActionCloseSession:
		if current.Terminal() {
			return deny("session is %s; no further transitions are permitted", current)
		}
		if role != "" && role != models.RoleMerchant && role != models.RoleAdmin {
			return deny("role %s may not close sessions; allowed roles: [%s %s]", role, models.RoleMerchant, models.RoleAdmin)
		}
		return allow()
	}

	target, ok := actionTargets[action]
	if !ok {
		return deny("unknown action %q", action)
	}
	return CanTransition(current, target, role)
}
