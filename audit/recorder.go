package audit

import (
	"context"
	"time"

	"github.com/modelgate/modelgate/telemetry"
)

// DefaultRecordTimeout bounds how long a caller waits for the ledger.
// Deployment decisions must not hang on a slow disk.
const DefaultRecordTimeout = 2 * time.Second

// Sink is where the recorder writes entries
type Sink interface {
	Append(entry Entry) (Entry, error)
}

// Recorder writes audit entries on behalf of decision paths. A failed
// or slow write is logged and dropped; the decision that triggered it
// always stands. Callers that need the write result use the ledger
// directly.
type Recorder struct {
	sink    Sink
	timeout time.Duration
	logger  *telemetry.Logger
}

// NewRecorder creates a recorder over the given sink
func NewRecorder(sink Sink, timeout time.Duration) *Recorder {
	if timeout <= 0 {
		timeout = DefaultRecordTimeout
	}
	return &Recorder{
		sink:    sink,
		timeout: timeout,
		logger:  telemetry.NewLogger("audit-recorder"),
	}
}

// Record appends the entry, waiting at most the configured timeout.
// Failures never propagate to the caller.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	done := make(chan error, 1)
	go func() {
		_, err := r.sink.Append(entry)
		done <- err
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			r.logger.LogAuditFailure(ctx, entry.ModelID, string(entry.Action), err)
		}
	case <-timer.C:
		r.logger.WithContext(ctx).Error().
			Str("model_id", entry.ModelID).
			Str("action", string(entry.Action)).
			Dur("timeout", r.timeout).
			Msg("audit write timed out, decision stands")
	case <-ctx.Done():
		r.logger.LogAuditFailure(ctx, entry.ModelID, string(entry.Action), ctx.Err())
	}
}
