// Package outbox delivers queued digest messages.
package outbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tazhate/luach/internal/domain"
	"github.com/tazhate/luach/internal/metrics"
)

// SchemeEmail is the scheme of bare email-address recipients.
const SchemeEmail = "email"

// Transport delivers messages for one recipient scheme.
type Transport interface {
	Scheme() string
	Send(ctx context.Context, m *domain.OutgoingMessage) error
}

type Store interface {
	ListPendingMessages(ctx context.Context, after int64, limit int) ([]*domain.OutgoingMessage, error)
	MarkMessageSent(ctx context.Context, id string, at time.Time) error
	MarkMessageFailed(ctx context.Context, id string, cause error) error
}

// Stats counts the outcome of one dispatch round.
type Stats struct {
	Sent     int
	Failed   int
	Deferred int // no transport registered for the recipient
}

type Dispatcher struct {
	store      Store
	transports map[string]Transport
	batch      int
	metrics    *metrics.Metrics
	log        logrus.FieldLogger
}

func NewDispatcher(store Store, m *metrics.Metrics, log logrus.FieldLogger, transports ...Transport) *Dispatcher {
	d := &Dispatcher{
		store:      store,
		transports: make(map[string]Transport),
		batch:      50,
		metrics:    m,
		log:        log,
	}
	for _, t := range transports {
		d.Register(t)
	}
	return d
}

func (d *Dispatcher) Register(t Transport) {
	d.transports[t.Scheme()] = t
}

// Scheme returns the transport scheme of a recipient: "telegram" for
// "telegram:42", SchemeEmail for a bare address.
func Scheme(recipient string) string {
	if i := strings.Index(recipient, ":"); i > 0 && !strings.Contains(recipient[:i], "@") {
		return strings.ToLower(recipient[:i])
	}
	return SchemeEmail
}

// Address strips the scheme from a recipient.
func Address(recipient string) string {
	if Scheme(recipient) == SchemeEmail {
		return recipient
	}
	return recipient[strings.Index(recipient, ":")+1:]
}

// Dispatch sends up to one batch of pending messages. Messages whose scheme
// has no transport stay queued for an external mailer and are paged past, so
// they never hold back deliverable ones queued behind them.
func (d *Dispatcher) Dispatch(ctx context.Context) (Stats, error) {
	var st Stats
	var cursor int64
	for st.Sent+st.Failed < d.batch {
		msgs, err := d.store.ListPendingMessages(ctx, cursor, d.batch)
		if err != nil {
			return st, fmt.Errorf("list pending: %w", err)
		}
		if len(msgs) == 0 {
			return st, nil
		}

		for _, m := range msgs {
			if err := ctx.Err(); err != nil {
				return st, err
			}
			cursor = m.Seq

			t, ok := d.transports[Scheme(m.Recipient)]
			if !ok {
				st.Deferred++
				continue
			}
			if err := d.deliver(ctx, t, m, &st); err != nil {
				return st, err
			}
			if st.Sent+st.Failed == d.batch {
				return st, nil
			}
		}
	}
	return st, nil
}

func (d *Dispatcher) deliver(ctx context.Context, t Transport, m *domain.OutgoingMessage, st *Stats) error {
	log := d.log.WithFields(logrus.Fields{"message_id": m.ID, "user_id": m.UserID})

	if sendErr := t.Send(ctx, m); sendErr != nil {
		st.Failed++
		d.metrics.MessagesDispatched.WithLabelValues("failed").Inc()
		log.WithError(sendErr).Error("message delivery failed")
		if err := d.store.MarkMessageFailed(ctx, m.ID, sendErr); err != nil {
			return fmt.Errorf("mark failed %s: %w", m.ID, err)
		}
		return nil
	}

	st.Sent++
	d.metrics.MessagesDispatched.WithLabelValues("sent").Inc()
	if err := d.store.MarkMessageSent(ctx, m.ID, time.Now()); err != nil {
		return fmt.Errorf("mark sent %s: %w", m.ID, err)
	}
	return nil
}
