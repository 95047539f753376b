package worker

// adjustment_worker.go
// Retry path for write-off instructions. Resolve records correcting entries
// synchronously; a job lands on QueueAdjustments only when that insert failed,
// and this worker keeps retrying it until it sticks or the DLQ takes it.

import (
	"context"
	"encoding/json"

	"tillcore/internal/model"
	"tillcore/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const maxAdjustmentAttempts = 3

// AdjustmentJobPayload is the AdjustmentRequested event envelope. One job is
// emitted per nonzero tender discrepancy.
type AdjustmentJobPayload struct {
	SessionID   uuid.UUID           `json:"session_id"`
	Tender      model.PaymentMethod `json:"tender"`
	Amount      model.Money         `json:"amount"`
	RequestedBy uuid.UUID           `json:"requested_by"`
	Attempts    int                 `json:"attempts"`
}

// AdjustmentWorker hands adjustment instructions to the ledger boundary.
type AdjustmentWorker struct {
	ledger repository.LedgerRepository
}

func NewAdjustmentWorker(ledger repository.LedgerRepository) *AdjustmentWorker {
	return &AdjustmentWorker{ledger: ledger}
}

// Process records the adjustment; on failure the job is re-enqueued up to
// maxAdjustmentAttempts, then moved to the DLQ.
func (w *AdjustmentWorker) Process(ctx context.Context, rdb *redis.Client, raw json.RawMessage) {
	var payload AdjustmentJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("adjustment_worker: invalid payload")
		return
	}

	adj := &model.LedgerAdjustment{
		SessionID:   payload.SessionID,
		Tender:      payload.Tender,
		Amount:      payload.Amount,
		RequestedBy: payload.RequestedBy,
		Status:      "pending",
	}
	if err := w.ledger.RecordAdjustment(ctx, adj); err != nil {
		payload.Attempts++
		log.Error().Err(err).
			Str("session_id", payload.SessionID.String()).
			Str("tender", string(payload.Tender)).
			Int("attempts", payload.Attempts).
			Msg("adjustment_worker: failed to record adjustment")

		if payload.Attempts >= maxAdjustmentAttempts {
			SendToDLQ(ctx, rdb, QueueAdjustments, "adjustment", raw, err.Error(), payload.Attempts)
			return
		}
		data, mErr := json.Marshal(Job{Type: "adjustment", Payload: mustMarshal(payload)})
		if mErr != nil {
			log.Error().Err(mErr).Msg("adjustment_worker: re-enqueue marshal failed")
			return
		}
		if pErr := rdb.LPush(ctx, QueueAdjustments, data).Err(); pErr != nil {
			log.Error().Err(pErr).Msg("adjustment_worker: re-enqueue failed")
		}
		return
	}

	log.Info().
		Str("session_id", payload.SessionID.String()).
		Str("tender", string(payload.Tender)).
		Int64("amount", int64(payload.Amount)).
		Msg("adjustment_worker: ledger adjustment recorded")
}

func mustMarshal(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return data
}
