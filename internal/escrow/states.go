// Package escrow implements the transactional integrity layer of a mediated
// trade: the session state machine, its role permissions, pure guard
// predicates, and the only service allowed to mutate session status.
//
// Legality of a status change is described by static data (transition and
// permission tables) consulted by pure functions, so the whole decision layer
// is unit-testable without persistence.
package escrow

import "github.com/ravlo/cardvault/internal/models"

// transitions defines the permitted lifecycle changes. The key is the current
// status, the value the legal target statuses.
//
// DISPUTED is deliberately absent as a target: a dispute may be raised from
// any non-terminal status, and that rule lives in CanTransition as the single
// source of truth rather than being duplicated per row here.
var transitions = map[models.SessionStatus][]models.SessionStatus{
	models.SessionCreated: {
		models.SessionBooked,
		models.SessionCancelled,
	},
	models.SessionBooked: {
		models.SessionCheckinPending,
		models.SessionCancelled,
		models.SessionExpired,
	},
	models.SessionCheckinPending: {
		models.SessionCheckedIn,
		models.SessionCancelled,
		models.SessionExpired,
	},
	models.SessionCheckedIn: {
		models.SessionVerificationInProgress,
		models.SessionCancelled,
	},
	models.SessionVerificationInProgress: {
		models.SessionVerificationPassed,
		models.SessionVerificationFailed,
	},
	models.SessionVerificationPassed: {
		models.SessionReleaseRequested,
		models.SessionCancelled,
	},
	models.SessionVerificationFailed: {
		models.SessionVerificationInProgress,
		models.SessionCancelled,
	},
	models.SessionReleaseRequested: {
		models.SessionReleaseApproved,
		models.SessionCancelled,
	},
	models.SessionReleaseApproved: {
		models.SessionCompleted,
	},
	models.SessionDisputed: {
		models.SessionReleaseApproved,
		models.SessionCompleted,
		models.SessionCancelled,
	},
	models.SessionExpired: {
		models.SessionBooked,
		models.SessionCancelled,
	},
	models.SessionCompleted: {},
	models.SessionCancelled: {},
}

type edge struct {
	from, to models.SessionStatus
}

// permissions maps each transition edge to the roles allowed to perform it.
// An edge listed in transitions but absent here is denied for every caller
// that supplies a role.
var permissions = map[edge][]models.Role{
	{models.SessionCreated, models.SessionBooked}:    {models.RoleBuyer, models.RoleMerchant, models.RoleAdmin},
	{models.SessionCreated, models.SessionCancelled}: {models.RoleBuyer, models.RoleMerchant, models.RoleAdmin},

	{models.SessionBooked, models.SessionCheckinPending}: {models.RoleBuyer, models.RoleSeller, models.RoleMerchant, models.RoleAdmin},
	{models.SessionBooked, models.SessionCancelled}:      {models.RoleMerchant, models.RoleAdmin},
	{models.SessionBooked, models.SessionExpired}:        {models.RoleSystem, models.RoleMerchant, models.RoleAdmin},

	{models.SessionCheckinPending, models.SessionCheckedIn}: {models.RoleMerchant, models.RoleAdmin},
	{models.SessionCheckinPending, models.SessionCancelled}: {models.RoleMerchant, models.RoleAdmin},
	{models.SessionCheckinPending, models.SessionExpired}:   {models.RoleSystem, models.RoleMerchant, models.RoleAdmin},

	{models.SessionCheckedIn, models.SessionVerificationInProgress}: {models.RoleMerchant, models.RoleAdmin},
	{models.SessionCheckedIn, models.SessionCancelled}:              {models.RoleMerchant, models.RoleAdmin},

	{models.SessionVerificationInProgress, models.SessionVerificationPassed}: {models.RoleMerchant, models.RoleModerator, models.RoleAdmin},
	{models.SessionVerificationInProgress, models.SessionVerificationFailed}: {models.RoleMerchant, models.RoleModerator, models.RoleAdmin},

	{models.SessionVerificationPassed, models.SessionReleaseRequested}: {models.RoleSeller, models.RoleMerchant, models.RoleAdmin},
	{models.SessionVerificationPassed, models.SessionCancelled}:        {models.RoleMerchant, models.RoleAdmin},

	{models.SessionVerificationFailed, models.SessionVerificationInProgress}: {models.RoleMerchant, models.RoleAdmin},
	{models.SessionVerificationFailed, models.SessionCancelled}:              {models.RoleMerchant, models.RoleAdmin},

	{models.SessionReleaseRequested, models.SessionReleaseApproved}: {models.RoleModerator, models.RoleAdmin},
	{models.SessionReleaseRequested, models.SessionCancelled}:       {models.RoleModerator, models.RoleAdmin},

	{models.SessionReleaseApproved, models.SessionCompleted}: {models.RoleSystem, models.RoleMerchant, models.RoleAdmin},

	{models.SessionDisputed, models.SessionReleaseApproved}: {models.RoleModerator, models.RoleAdmin},
	{models.SessionDisputed, models.SessionCompleted}:       {models.RoleModerator, models.RoleAdmin},
	{models.SessionDisputed, models.SessionCancelled}:       {models.RoleModerator, models.RoleAdmin},

	{models.SessionExpired, models.SessionBooked}:    {models.RoleMerchant, models.RoleAdmin},
	{models.SessionExpired, models.SessionCancelled}: {models.RoleMerchant, models.RoleAdmin},
}

// AllowedTargets returns the static targets reachable from the given status.
// The returned slice is a copy. DISPUTED is not included; see CanTransition.
func AllowedTargets(from models.SessionStatus) []models.SessionStatus {
	targets, ok := transitions[from]
	if !ok {
		return nil
	}
	out := make([]models.SessionStatus, len(targets))
	copy(out, targets)
	return out
}

// AllowedRoles returns the roles permitted on the given edge. The returned
// slice is a copy.
func AllowedRoles(from, to models.SessionStatus) []models.Role {
	roles, ok := permissions[edge{from, to}]
	if !ok {
		return nil
	}
	out := make([]models.Role, len(roles))
	copy(out, roles)
	return out
}
