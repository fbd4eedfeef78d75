package notify

import (
	"context"
	"net/mail"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/quizai/quizai/internal/core"
	"github.com/quizai/quizai/internal/metrics"
)

const defaultSendTimeout = 30 * time.Second

// Dispatcher sends messages on background goroutines. Callers never wait on
// delivery; Wait drains in-flight sends at shutdown.
type Dispatcher struct {
	Sender        Sender
	Logger        *logging.Logger
	PublicURL     string
	SubjectPrefix string
	Timeout       time.Duration

	mu       sync.Mutex
	draining bool
	wg       sync.WaitGroup
}

// NotifyGraded queues the result email for a graded submission. Submissions
// without a contact address are ignored.
func (d *Dispatcher) NotifyGraded(ctx context.Context, room *core.Room, sub *core.Submission) {
	if d == nil || sub == nil || sub.StudentEmail == "" {
		return
	}
	msg, err := GradeMessage(d.SubjectPrefix, d.PublicURL, room, sub)
	if err != nil {
		d.logError("Failed to render grade email", zap.String("submission_id", sub.ID), zap.Error(err))
		return
	}
	d.Deliver(ctx, msg)
}

// SendCode queues a verification or password reset code.
func (d *Dispatcher) SendCode(ctx context.Context, kind Kind, to mail.Address, code string, ttl time.Duration) {
	if d == nil {
		return
	}
	msg, err := CodeMessage(kind, to, code, ttl)
	if err != nil {
		d.logError("Failed to render code email", zap.String("kind", string(kind)), zap.Error(err))
		return
	}
	d.Deliver(ctx, msg)
}

// Deliver sends msg in the background. Cancellation of ctx does not stop
// the send; it is detached and bounded by the dispatcher timeout.
func (d *Dispatcher) Deliver(ctx context.Context, msg Message) {
	if d == nil || d.Sender == nil || !msg.HasRecipient() {
		return
	}

	// Add happens under mu so it never overlaps the Wait that drains.
	d.mu.Lock()
	if d.draining {
		d.mu.Unlock()
		d.logWarn("Dispatcher is draining; email dropped",
			zap.String("kind", string(msg.Kind)),
			zap.String("to", msg.To.Address))
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	detached := context.WithoutCancel(ctx)
	go func() {
		defer d.wg.Done()

		sendCtx, cancel := context.WithTimeout(detached, d.timeout())
		defer cancel()

		err := d.Sender.Send(sendCtx, msg)
		metrics.RecordNotification(string(msg.Kind), err == nil)
		if err != nil {
			d.logError("Email delivery failed",
				zap.String("kind", string(msg.Kind)),
				zap.String("sender", d.Sender.Name()),
				zap.String("to", msg.To.Address),
				zap.Error(err))
			return
		}
		d.logDebug("Email sent",
			zap.String("kind", string(msg.Kind)),
			zap.String("to", msg.To.Address))
	}()
}

// Wait stops accepting new deliveries and blocks until in-flight sends
// finish or ctx is done. Deliveries after Wait are dropped and logged.
func (d *Dispatcher) Wait(ctx context.Context) error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	d.draining = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) timeout() time.Duration {
	if d.Timeout > 0 {
		return d.Timeout
	}
	return defaultSendTimeout
}

func (d *Dispatcher) logError(msg string, fields ...zap.Field) {
	if d.Logger != nil {
		d.Logger.Error(msg, fields...)
	}
}

func (d *Dispatcher) logWarn(msg string, fields ...zap.Field) {
	if d.Logger != nil {
		d.Logger.Warn(msg, fields...)
	}
}

func (d *Dispatcher) logDebug(msg string, fields ...zap.Field) {
	if d.Logger != nil {
		d.Logger.Debug(msg, fields...)
	}
}
