// internal/app/dispatcher.go
package app

import (
	"hatm_bot/internal/domain/group"
	"hatm_bot/internal/domain/hatm"
	"hatm_bot/internal/domain/user"

	"github.com/sirupsen/logrus"
)

// Notifier renders and delivers user-facing messages for the facts the core
// operations produce. Implemented by the Telegram infra layer.
type Notifier interface {
	JuzsAssigned(u *user.User, h *hatm.Hatm, g *group.Group, juzs []*hatm.JuzAssignment) error
	HatmCompleted(u *user.User, h *hatm.Hatm, g *group.Group) error
	DebtsCreated(u *user.User, juzs []*hatm.JuzAssignment) error
	PendingReminder(u *user.User, h *hatm.Hatm, juzs []*hatm.JuzAssignment, daysLeft int) error
}

// Dispatcher is the outbox between core operations and message delivery:
// boundary code enqueues notification facts after the core transaction has
// committed, and a single worker goroutine delivers them. Delivery failures
// are logged and never propagate back into request handling.
type Dispatcher struct {
	notifier Notifier
	log      *logrus.Entry
	queue    chan func()
	done     chan struct{}
}

func NewDispatcher(n Notifier, log *logrus.Entry, buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = 64
	}
	return &Dispatcher{
		notifier: n,
		log:      log,
		queue:    make(chan func(), buffer),
		done:     make(chan struct{}),
	}
}

// Start launches the delivery worker.
func (d *Dispatcher) Start() {
	go func() {
		defer close(d.done)
		for job := range d.queue {
			job()
		}
	}()
	d.log.Info("Notification dispatcher started")
}

// Stop drains the queue and waits for in-flight deliveries.
func (d *Dispatcher) Stop() {
	close(d.queue)
	<-d.done
	d.log.Info("Notification dispatcher stopped")
}

func (d *Dispatcher) enqueue(job func()) {
	select {
	case d.queue <- job:
	default:
		// Notifications are fire-and-forget; dropping beats blocking a
		// request handler on a full queue.
		d.log.Warn("Notification queue full, dropping message")
	}
}

func (d *Dispatcher) NotifyJuzsAssigned(u *user.User, h *hatm.Hatm, g *group.Group, juzs []*hatm.JuzAssignment) {
	d.enqueue(func() {
		if err := d.notifier.JuzsAssigned(u, h, g, juzs); err != nil {
			d.log.WithError(err).WithField("user_id", u.ID).Error("Failed to deliver assignment notification")
		}
	})
}

func (d *Dispatcher) NotifyHatmCompleted(u *user.User, h *hatm.Hatm, g *group.Group) {
	d.enqueue(func() {
		if err := d.notifier.HatmCompleted(u, h, g); err != nil {
			d.log.WithError(err).WithField("user_id", u.ID).Error("Failed to deliver completion notification")
		}
	})
}

func (d *Dispatcher) NotifyDebtsCreated(u *user.User, juzs []*hatm.JuzAssignment) {
	d.enqueue(func() {
		if err := d.notifier.DebtsCreated(u, juzs); err != nil {
			d.log.WithError(err).WithField("user_id", u.ID).Error("Failed to deliver debt notification")
		}
	})
}

func (d *Dispatcher) NotifyPendingReminder(u *user.User, h *hatm.Hatm, juzs []*hatm.JuzAssignment, daysLeft int) {
	d.enqueue(func() {
		if err := d.notifier.PendingReminder(u, h, juzs, daysLeft); err != nil {
			d.log.WithError(err).WithField("user_id", u.ID).Error("Failed to deliver reminder")
		}
	})
}
