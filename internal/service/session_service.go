package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tillcore/internal/dto"
	"tillcore/internal/model"
	"tillcore/internal/repository"
	"tillcore/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// JobDispatcher is the slice of worker.Dispatcher the session service needs.
// Kept as an interface so tests can record enqueues without Redis.
type JobDispatcher interface {
	EnqueueAdjustment(ctx context.Context, payload worker.AdjustmentJobPayload) error
	EnqueueEmail(ctx context.Context, payload worker.EmailJobPayload) error
}

type SessionService interface {
	Open(ctx context.Context, openedBy uuid.UUID, req dto.OpenSessionRequest) (*dto.SessionResponse, error)
	Close(ctx context.Context, sessionID uuid.UUID, closedBy uuid.UUID, req dto.CloseSessionRequest) (*dto.SessionResponse, error)
	Resolve(ctx context.Context, sessionID uuid.UUID, resolvedBy uuid.UUID, req dto.ResolveSessionRequest) (*dto.SessionResponse, error)
	// Get is read-only; callers use it to refresh the version after a
	// conflict before deciding whether to retry.
	Get(ctx context.Context, sessionID uuid.UUID) (*dto.SessionResponse, error)
	GetActive(ctx context.Context, registerID string) (*dto.SessionResponse, error)
	History(ctx context.Context, page, limit int) ([]dto.SessionResponse, int64, error)
}

type sessionService struct {
	repo       repository.SessionRepository
	ledger     repository.LedgerRepository
	dispatcher JobDispatcher
	alertEmail string
}

func NewSessionService(repo repository.SessionRepository, ledger repository.LedgerRepository, dispatcher JobDispatcher, alertEmail string) SessionService {
	return &sessionService{repo: repo, ledger: ledger, dispatcher: dispatcher, alertEmail: alertEmail}
}

// ── Open ──────────────────────────────────────────────────────────────────────

func (s *sessionService) Open(ctx context.Context, openedBy uuid.UUID, req dto.OpenSessionRequest) (*dto.SessionResponse, error) {
	opening, err := model.NewTenderAmounts(req.OpeningBalances)
	if err != nil {
		return nil, err
	}

	session := &model.RegisterSession{
		RegisterID:      req.RegisterID,
		OpenedBy:        openedBy,
		OpenedAt:        time.Now().UTC(),
		OpeningBalances: opening,
		Status:          model.StatusOpen,
		Version:         1,
	}
	// Exclusivity lives in the database: the partial unique index makes the
	// insert itself the atomic check-and-create for this register.
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, err
	}

	log.Info().
		Str("session_id", session.ID.String()).
		Str("register_id", session.RegisterID).
		Msg("register session opened")
	return buildSessionResponse(session), nil
}

// ── Close ─────────────────────────────────────────────────────────────────────

func (s *sessionService) Close(ctx context.Context, sessionID uuid.UUID, closedBy uuid.UUID, req dto.CloseSessionRequest) (*dto.SessionResponse, error) {
	closing, err := model.NewTenderAmounts(req.ClosingBalances)
	if err != nil {
		return nil, err
	}

	session, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Terminal() {
		return nil, fmt.Errorf("%w: session is %s", model.ErrInvalidState, session.Status)
	}
	if session.Status != model.StatusOpen {
		return nil, fmt.Errorf("%w: session is %s", model.ErrSessionNotOpen, session.Status)
	}
	if session.Version != req.ExpectedVersion {
		return nil, &model.VersionConflict{CurrentVersion: session.Version}
	}

	// Single bounded snapshot read: every delta timestamped at or before the
	// close instant. Expected balances freeze now — later deltas never touch
	// a reconciled session.
	closedAt := time.Now().UTC()
	deltas, err := s.ledger.GetDeltasSince(ctx, session.ID, session.OpenedAt, closedAt)
	if err != nil {
		return nil, fmt.Errorf("ledger snapshot: %w", err)
	}

	expected := ComputeExpected(session.OpeningBalances, deltas)
	disc := ComputeDiscrepancies(closing, expected)

	status := model.StatusDiscrepancyPending
	if disc.AllZero() {
		status = model.StatusClosedBalanced
	}

	session.ClosedBy = &closedBy
	session.ClosedAt = &closedAt
	session.ClosingBalances = closing
	session.ExpectedBalances = expected
	session.Discrepancies = disc
	session.Status = status
	session.Version = req.ExpectedVersion + 1

	if err := s.updateVersioned(ctx, session, req.ExpectedVersion); err != nil {
		return nil, err
	}

	log.Info().
		Str("session_id", session.ID.String()).
		Str("status", string(status)).
		Int64("total_discrepancy", int64(TotalDiscrepancy(disc))).
		Msg("register session closed")

	if status == model.StatusDiscrepancyPending {
		s.sendDiscrepancyAlert(ctx, session)
	}
	return buildSessionResponse(session), nil
}

// ── Resolve ───────────────────────────────────────────────────────────────────

func (s *sessionService) Resolve(ctx context.Context, sessionID uuid.UUID, resolvedBy uuid.UUID, req dto.ResolveSessionRequest) (*dto.SessionResponse, error) {
	action := model.ResolutionAction(req.Action)
	if !model.ValidResolutionAction(action) {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidAction, req.Action)
	}

	session, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != model.StatusDiscrepancyPending {
		return nil, fmt.Errorf("%w: session is %s", model.ErrInvalidState, session.Status)
	}
	if session.Version != req.ExpectedVersion {
		return nil, &model.VersionConflict{CurrentVersion: session.Version}
	}

	resolvedAt := time.Now().UTC()
	notes := req.Notes
	session.ResolutionAction = &action
	session.ResolutionNotes = &notes
	session.ResolvedBy = &resolvedBy
	session.ResolvedAt = &resolvedAt
	session.Status = model.StatusResolved
	session.Version = req.ExpectedVersion + 1

	if err := s.updateVersioned(ctx, session, req.ExpectedVersion); err != nil {
		return nil, err
	}

	log.Info().
		Str("session_id", session.ID.String()).
		Str("action", string(action)).
		Msg("discrepancy resolved")

	// write_off records one AdjustmentRequested per nonzero tender
	// discrepancy. The CAS above already decided the single winner, so
	// duplicate emission cannot happen.
	if action == model.ResolutionWriteOff {
		s.requestAdjustments(ctx, session, resolvedBy)
	}
	return buildSessionResponse(session), nil
}

// ── Reads ─────────────────────────────────────────────────────────────────────

func (s *sessionService) Get(ctx context.Context, sessionID uuid.UUID) (*dto.SessionResponse, error) {
	session, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return buildSessionResponse(session), nil
}

func (s *sessionService) GetActive(ctx context.Context, registerID string) (*dto.SessionResponse, error) {
	session, err := s.repo.FindOpenByRegister(ctx, registerID)
	if err != nil {
		return nil, err
	}
	return buildSessionResponse(session), nil
}

func (s *sessionService) History(ctx context.Context, page, limit int) ([]dto.SessionResponse, int64, error) {
	sessions, total, err := s.repo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}
	resp := make([]dto.SessionResponse, len(sessions))
	for i := range sessions {
		resp[i] = *buildSessionResponse(&sessions[i])
	}
	return resp, total, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// updateVersioned runs the CAS write and, on a lost race, re-fetches so the
// caller gets the version to retry against.
func (s *sessionService) updateVersioned(ctx context.Context, session *model.RegisterSession, expectedVersion int) error {
	err := s.repo.UpdateVersioned(ctx, session, expectedVersion)
	if err == nil {
		return nil
	}
	if errors.Is(err, model.ErrVersionConflict) {
		if current, ferr := s.repo.FindByID(ctx, session.ID); ferr == nil {
			return &model.VersionConflict{CurrentVersion: current.Version}
		}
	}
	return err
}

// requestAdjustments writes the correcting-entry instructions for a write-off.
// The session is already RESOLVED at this point, so the rows are recorded
// synchronously — the instruction must not depend on Redis being up. Only a
// failed insert goes to the queue, where the worker retries it.
func (s *sessionService) requestAdjustments(ctx context.Context, session *model.RegisterSession, resolvedBy uuid.UUID) {
	for _, t := range model.PaymentMethods() {
		amount := session.Discrepancies[t]
		if amount == 0 {
			continue
		}
		adj := &model.LedgerAdjustment{
			SessionID:   session.ID,
			Tender:      t,
			Amount:      amount,
			RequestedBy: resolvedBy,
			Status:      "pending",
		}
		if err := s.ledger.RecordAdjustment(ctx, adj); err != nil {
			log.Error().Err(err).
				Str("session_id", session.ID.String()).
				Str("tender", string(t)).
				Msg("failed to record ledger adjustment, queueing for retry")
			payload := worker.AdjustmentJobPayload{
				SessionID:   session.ID,
				Tender:      t,
				Amount:      amount,
				RequestedBy: resolvedBy,
			}
			if qErr := s.dispatcher.EnqueueAdjustment(ctx, payload); qErr != nil {
				log.Error().Err(qErr).
					Str("session_id", session.ID.String()).
					Str("tender", string(t)).
					Msg("failed to enqueue ledger adjustment retry")
			}
		}
	}
}

func (s *sessionService) sendDiscrepancyAlert(ctx context.Context, session *model.RegisterSession) {
	if s.alertEmail == "" {
		return
	}
	total := TotalDiscrepancy(session.Discrepancies)
	payload := worker.EmailJobPayload{
		ToEmail: s.alertEmail,
		Subject: fmt.Sprintf("Till discrepancy on register %s", session.RegisterID),
		Body: fmt.Sprintf(
			"Session %s closed with a pending discrepancy.\nNet difference: %d cents (%s).\nPlease review and resolve.",
			session.ID, total, ClassifySeverity(total, session.ExpectedBalances.Total()),
		),
	}
	if err := s.dispatcher.EnqueueEmail(ctx, payload); err != nil {
		log.Error().Err(err).Str("session_id", session.ID.String()).Msg("failed to enqueue discrepancy alert")
	}
}

func buildSessionResponse(s *model.RegisterSession) *dto.SessionResponse {
	resp := &dto.SessionResponse{
		ID:              s.ID.String(),
		RegisterID:      s.RegisterID,
		Status:          string(s.Status),
		Version:         s.Version,
		OpenedBy:        s.OpenedBy.String(),
		OpenedAt:        s.OpenedAt.UTC().Format(time.RFC3339),
		OpeningBalances: s.OpeningBalances,
	}

	if s.ClosedBy != nil {
		by := s.ClosedBy.String()
		resp.ClosedBy = &by
	}
	if s.ClosedAt != nil {
		at := s.ClosedAt.UTC().Format(time.RFC3339)
		resp.ClosedAt = &at
	}

	if s.ExpectedBalances != nil && s.ClosingBalances != nil && s.Discrepancies != nil {
		total := TotalDiscrepancy(s.Discrepancies)
		expectedTotal := s.ExpectedBalances.Total()
		resp.Reconciliation = &dto.ReconciliationReport{
			ExpectedBalances: s.ExpectedBalances,
			ClosingBalances:  s.ClosingBalances,
			Discrepancies:    s.Discrepancies,
			TotalDiscrepancy: total,
			DeviationPct:     DeviationPercent(total, expectedTotal),
			Severity:         ClassifySeverity(total, expectedTotal),
		}
	}

	if s.ResolutionAction != nil && s.ResolvedBy != nil && s.ResolvedAt != nil {
		notes := ""
		if s.ResolutionNotes != nil {
			notes = *s.ResolutionNotes
		}
		resp.Resolution = &dto.ResolutionResponse{
			Action:     string(*s.ResolutionAction),
			Notes:      notes,
			ResolvedBy: s.ResolvedBy.String(),
			ResolvedAt: s.ResolvedAt.UTC().Format(time.RFC3339),
		}
	}
	return resp
}
