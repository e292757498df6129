package escrow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ravlo/cardvault/internal/common"
	"github.com/ravlo/cardvault/internal/dbx"
	"github.com/ravlo/cardvault/internal/logging"
	"github.com/ravlo/cardvault/internal/models"
	"github.com/ravlo/cardvault/internal/repositories/repomanager"
	"github.com/ravlo/cardvault/internal/token"
)

// DedupGuard cheaply rejects a duplicate of an in-flight request before any
// DB work. Advisory only; see the idempotency package.
type DedupGuard interface {
	Begin(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// TransitionService is the only component allowed to mutate session status.
// Every transition re-reads the session under a row lock, re-validates
// against the state machine, and commits the status update together with one
// audit row — both or neither.
type TransitionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	tokens      *token.Generator
	dedup       DedupGuard
	now         func() time.Time
}

// NewTransitionService constructs a TransitionService. dedup may be nil to
// disable request deduplication.
func NewTransitionService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger, dedup DedupGuard) *TransitionService {
	s := &TransitionService{
		db:          db,
		repomanager: m,
		logger:      logger,
		dedup:       dedup,
		now:         time.Now,
	}
	s.tokens = token.NewGenerator(token.CheckerFunc(
		func(ctx context.Context, t string) (bool, error) {
			return m.Sessions(db).QRTokenExists(ctx, t)
		}))
	return s
}

// TransitionStatus moves the session to target on behalf of actor, appending
// one audit row in the same transaction. On a state-machine denial nothing is
// written and the returned error wraps common.ErrInvalidTransition or
// common.ErrUnauthorized with the evaluator's reason.
//
// The session row is locked before evaluation, so when two callers race for
// the same edge exactly one commits; the loser re-reads the already-moved
// status and gets an InvalidTransition denial.
func (s *TransitionService) TransitionStatus(ctx context.Context, sessionID string, target models.SessionStatus,
	actor models.Actor, metadata map[string]string, prov *models.Provenance) error {

	dedupKey := fmt.Sprintf("transition:%s:%s", sessionID, target)
	if s.dedup != nil {
		ok, err := s.dedup.Begin(ctx, dedupKey)
		if err != nil {
			// The guard is advisory; a broken redis must not block trades.
			s.logger.Warn(ctx, "dedup guard unavailable", "key", dedupKey, "error", err)
		} else if !ok {
			return fmt.Errorf("%w: transition %s for session %s already in flight", common.ErrDuplicateRequest, target, sessionID)
		}
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		sessionRepo := s.repomanager.Sessions(tx)

		session, err := sessionRepo.GetForUpdate(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("load session %s: %w", sessionID, err)
		}

		// Evaluate on the locked row's current status, never on a
		// value read before the lock was granted.
		if res := CanTransition(session.Status, target, ""); !res.Valid {
			return fmt.Errorf("%w: %s", common.ErrInvalidTransition, res.Reason)
		}
		if res := CanTransition(session.Status, target, actor.Role); !res.Valid {
			return fmt.Errorf("%w: %s", common.ErrUnauthorized, res.Reason)
		}

		now := s.now()
		if err := sessionRepo.UpdateStatus(ctx, sessionID, target, now); err != nil {
			return fmt.Errorf("update status: %w", err)
		}

		entry := &models.EscrowAuditLog{
			ID:              uuid.NewString(),
			SessionID:       sessionID,
			ActionType:      fmt.Sprintf("TRANSITION_%s_TO_%s", session.Status, target),
			PerformedByID:   actor.ID,
			PerformedByRole: actor.Role,
			OldStatus:       sql.NullString{String: string(session.Status), Valid: true},
			NewStatus:       sql.NullString{String: string(target), Valid: true},
			Metadata:        metadata,
			CreatedAt:       now,
		}
		applyProvenance(entry, prov)

		// Strict path: an audit failure rolls the status change back.
		if err := s.repomanager.AuditLogs(tx).Insert(ctx, entry); err != nil {
			return fmt.Errorf("audit insert: %w", err)
		}
		return nil
	})

	if err != nil && s.dedup != nil {
		if relErr := s.dedup.Release(ctx, dedupKey); relErr != nil {
			s.logger.Warn(ctx, "dedup key release failed", "key", dedupKey, "error", relErr)
		}
		return err
	}
	if err == nil {
		s.logger.Info(ctx, "session transitioned",
			"session_id", sessionID, "target", target, "actor_id", actor.ID, "actor_role", actor.Role)
	}
	return err
}

// CreateAuditEvent records a non-transition action (a message posted, a photo
// uploaded). Best-effort by design: a failed audit write is logged and
// swallowed so it cannot break the business operation it documents. This is a
// deliberate asymmetry from the strict transition path.
func (s *TransitionService) CreateAuditEvent(ctx context.Context, sessionID, actionType string,
	actor models.Actor, metadata map[string]string, prov *models.Provenance) {

	entry := &models.EscrowAuditLog{
		ID:              uuid.NewString(),
		SessionID:       sessionID,
		ActionType:      actionType,
		PerformedByID:   actor.ID,
		PerformedByRole: actor.Role,
		Metadata:        metadata,
		CreatedAt:       s.now(),
	}
	applyProvenance(entry, prov)

	if err := s.repomanager.AuditLogs(s.db).Insert(ctx, entry); err != nil {
		s.logger.Warn(ctx, "audit event write failed",
			"session_id", sessionID, "action", actionType, "error", err)
	}
}

// IsSessionExpired reports whether the session sat past its deadline without
// check-in. Expiry is a derived predicate; the actual transition into EXPIRED
// happens cooperatively via ExpireIfDue.
func (s *TransitionService) IsSessionExpired(session *models.EscrowSession) bool {
	if session.Status != models.SessionBooked && session.Status != models.SessionCheckinPending {
		return false
	}
	return session.ExpiresAt.Valid && s.now().After(session.ExpiresAt.Time)
}

// ExpireIfDue checks the expiry predicate and, when due, funnels the change
// through TransitionStatus so the audit-atomicity guarantee holds. A
// concurrent caller winning the same expiry is not an error.
func (s *TransitionService) ExpireIfDue(ctx context.Context, sessionID string) (bool, error) {
	session, err := s.repomanager.Sessions(s.db).GetByID(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	if !s.IsSessionExpired(session) {
		return false, nil
	}

	err = s.TransitionStatus(ctx, sessionID, models.SessionExpired,
		models.Actor{ID: "system", Role: models.RoleSystem},
		map[string]string{"expired_at": session.ExpiresAt.Time.UTC().Format(time.RFC3339)}, nil)
	if err != nil {
		if errors.Is(err, common.ErrInvalidTransition) || errors.Is(err, common.ErrDuplicateRequest) {
			// Someone else moved the session first.
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ExpireDueSessions expires up to limit due sessions and returns how many
// actually moved. Used by the sweeper binary; safe to run concurrently with
// request-path callers because every change goes through TransitionStatus.
func (s *TransitionService) ExpireDueSessions(ctx context.Context, limit int) (int, error) {
	ids, err := s.repomanager.Sessions(s.db).SelectDueForExpiry(ctx, s.now(), limit)
	if err != nil {
		return 0, fmt.Errorf("select due sessions: %w", err)
	}

	expired := 0
	for _, id := range ids {
		moved, err := s.ExpireIfDue(ctx, id)
		if err != nil {
			s.logger.Error(ctx, "expiry failed", "session_id", id, "error", err)
			continue
		}
		if moved {
			expired++
		}
	}
	return expired, nil
}

// IssueCheckInToken assigns a fresh unique QR token to the session and
// records a best-effort audit event. The token authorizes physical check-in
// at the shop.
func (s *TransitionService) IssueCheckInToken(ctx context.Context, sessionID string, actor models.Actor) (string, error) {
	tok, err := s.tokens.UniqueToken(ctx)
	if err != nil {
		return "", err
	}
	if err := s.repomanager.Sessions(s.db).SetQRToken(ctx, sessionID, tok); err != nil {
		return "", fmt.Errorf("set qr token: %w", err)
	}

	s.CreateAuditEvent(ctx, sessionID, "QR_TOKEN_ISSUED", actor, nil, nil)
	return tok, nil
}

func applyProvenance(entry *models.EscrowAuditLog, prov *models.Provenance) {
	if prov == nil {
		return
	}
	if prov.IPAddress != "" {
		entry.IPAddress = sql.NullString{String: prov.IPAddress, Valid: true}
	}
	if prov.UserAgent != "" {
		entry.UserAgent = sql.NullString{String: prov.UserAgent, Valid: true}
	}
}
