// Package dispatch routes incoming events to their side effects: updating
// the session's active-job set and log buffer, invalidating cached list
// views, and surfacing user-facing notifications.
package dispatch

import (
	"log/slog"

	"github.com/seantiz/foundry/internal/model"
	"github.com/seantiz/foundry/internal/session"
)

// View names used for cache invalidation.
const (
	ViewJobs   = "jobs"
	ViewModels = "models"
)

// Invalidator evicts a cached list view so the next read refetches it.
type Invalidator interface {
	Invalidate(view string)
}

// Notifier surfaces a user-facing notification. Delivery is fire and forget;
// a failing notifier must not affect event processing.
type Notifier interface {
	Notify(message string)
}

// Dispatcher applies the side effects of each received event.
type Dispatcher struct {
	session  *session.Session
	views    Invalidator
	notifier Notifier
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher operating on the given session.
func NewDispatcher(s *session.Session, views Invalidator, notifier Notifier, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		session:  s,
		views:    views,
		notifier: notifier,
		logger:   logger,
	}
}

// Handle dispatches one event by type. Unknown types are ignored so that new
// producer event types never break existing subscribers. A fault while
// handling one event is contained and must not block subsequent events.
func (d *Dispatcher) Handle(ev model.Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic handling event", "type", ev.Type, "panic", r)
		}
	}()

	switch ev.Type {
	case model.EventJobCompleted:
		data, err := ev.Completion()
		if err != nil {
			d.logger.Warn("dropping event", "type", ev.Type, "error", err)
			return
		}
		d.views.Invalidate(ViewJobs)
		d.notify("Training job " + data.Name + " completed")

	case model.EventExportCompleted:
		data, err := ev.Completion()
		if err != nil {
			d.logger.Warn("dropping event", "type", ev.Type, "error", err)
			return
		}
		d.session.Remove("export-" + data.Name)
		d.views.Invalidate(ViewModels)
		d.notify("Export of " + data.Name + " completed")

	case model.EventCalibrationCompleted:
		data, err := ev.Completion()
		if err != nil {
			d.logger.Warn("dropping event", "type", ev.Type, "error", err)
			return
		}
		d.session.Remove("calibrate-" + data.Name)
		d.views.Invalidate(ViewModels)
		d.notify("Calibration of " + data.Name + " completed")

	case model.EventLogUpdate:
		data, err := ev.LogUpdate()
		if err != nil {
			d.logger.Warn("dropping event", "type", ev.Type, "error", err)
			return
		}
		d.session.Append(data.Lines)

	default:
		d.logger.Debug("ignoring unknown event type", "type", ev.Type)
	}
}

// notify delivers a notification without letting a misbehaving notifier
// disturb registry or log state.
func (d *Dispatcher) notify(message string) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic in notifier", "panic", r)
		}
	}()
	d.notifier.Notify(message)
}
