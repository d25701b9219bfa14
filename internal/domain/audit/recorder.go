package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"staffdesk/internal/requestctx"
)

// Fanout writes each entry to every sink and joins their failures.
type Fanout []Sink

func (f Fanout) Write(ctx context.Context, entry Entry) error {
	var errs []error
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.Write(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder is the entry point used by domain services. Record never fails:
// sink errors are logged and dropped.
type Recorder struct {
	sink    Sink
	timeout time.Duration
	now     func() time.Time
}

func NewRecorder(sink Sink) *Recorder {
	return &Recorder{sink: sink, timeout: 5 * time.Second, now: time.Now}
}

func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if r == nil || r.sink == nil {
		return
	}
	if entry.RequestID == "" {
		entry.RequestID = requestctx.GetRequestID(ctx)
	}
	if entry.IP == "" {
		entry.IP = requestctx.GetClientIP(ctx)
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = r.now().UTC()
	}

	// The business transaction has already committed; a cancelled request
	// must not drop its audit trail.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()
	if err := r.sink.Write(writeCtx, entry); err != nil {
		slog.Warn("audit record failed",
			"action", entry.Action,
			"entityType", entry.EntityType,
			"entityId", entry.EntityID,
			"requestId", entry.RequestID,
			"err", err,
		)
	}
}
