package main

import (
	"go.uber.org/zap"

	"github.com/nhle/workpresence/internal/model"
	"github.com/nhle/workpresence/internal/realtime"
	"github.com/nhle/workpresence/internal/worker"
)

// pushBody is the payload shape the worker expects from the push service.
type pushBody struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

var kindTitles = map[model.NotificationKind]string{
	model.NotificationTodo:        "New Todo",
	model.NotificationTicket:      "Ticket Update",
	model.NotificationEvent:       "New Event",
	model.NotificationHoliday:     "Holiday",
	model.NotificationLeave:       "Leave Request",
	model.NotificationLeaveStatus: "Leave Status",
}

// lifecycle installs and activates the worker.
func lifecycle(inbox chan<- worker.Message) error {
	for _, t := range []worker.MessageType{worker.MessageInstall, worker.MessageActivate} {
		msg, err := worker.NewMessage(t, nil)
		if err != nil {
			return err
		}
		inbox <- msg
	}
	return nil
}

// pushMessage converts a realtime notification into the push message the
// worker would receive from the push service.
func pushMessage(ev realtime.NotificationEvent) (worker.Message, error) {
	return worker.NewMessage(worker.MessagePush, pushBody{
		Title: kindTitles[ev.Kind],
		Body:  ev.Message,
		URL:   ev.URL,
		Tag:   ev.ID,
	})
}

// newRelay returns the notification listener that stands in for the push
// transport. Only a device holding a push subscription gets pushes; without
// one the notification stays in the in-app feed.
func newRelay(inbox chan<- worker.Message, subscribed func() bool, logger *zap.Logger) func(realtime.NotificationEvent) {
	return func(ev realtime.NotificationEvent) {
		if !subscribed() {
			return
		}
		msg, err := pushMessage(ev)
		if err != nil {
			logger.Warn("encoding push message", zap.Error(err))
			return
		}
		select {
		case inbox <- msg:
		default:
			logger.Debug("worker inbox full, dropping push", zap.String("kind", string(ev.Kind)))
		}
	}
}
