// Package notifier provides desktop notifications for finished pipeline runs
package notifier

import (
	"fmt"
	"strings"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/colonise/forge/internal/engine"
	"github.com/colonise/forge/pkg/logger"
)

// Sender delivers one desktop notification.
type Sender func(title, message string) error

// Config represents notification configuration
type Config struct {
	Enabled bool
	// Sound beeps on failure in addition to the notification.
	Sound bool
}

// PipelineNotifier announces the outcome of pipeline runs.
type PipelineNotifier struct {
	enabled bool
	sound   bool
	logger  logger.Logger
	send    Sender
	beep    func() error
}

// New creates a notifier backed by the platform notification service.
func New(config Config, log logger.Logger) *PipelineNotifier {
	if log == nil {
		log = logger.NewNop()
	}
	return &PipelineNotifier{
		enabled: config.Enabled,
		sound:   config.Sound,
		logger:  log,
		send: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
		beep: func() error {
			return beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration)
		},
	}
}

// WithSender replaces the notification transport.
func (n *PipelineNotifier) WithSender(send Sender) *PipelineNotifier {
	n.send = send
	n.beep = func() error { return nil }
	return n
}

// NotifySuccess announces a pipeline that finished successfully.
func (n *PipelineNotifier) NotifySuccess(pipeline string, duration time.Duration) {
	if !n.enabled {
		return
	}
	n.deliver("✅ forge", fmt.Sprintf("'%s' finished after %s", pipeline, engine.FormatDuration(duration)))
}

// NotifyFailure announces a pipeline that failed.
func (n *PipelineNotifier) NotifyFailure(pipeline string, err error) {
	if !n.enabled {
		return
	}
	n.deliver("❌ forge", fmt.Sprintf("'%s' failed: %s", pipeline, firstLine(err)))
	if n.sound {
		if err := n.beep(); err != nil {
			n.logger.Debug("Failed to play sound", logger.WithField("error", err))
		}
	}
}

// OnEvent implements engine.Observer, notifying when the root node of a run
// finishes.
func (n *PipelineNotifier) OnEvent(e engine.Event) {
	if e.Type != engine.EventFinished || len(e.Path) != 1 {
		return
	}
	if e.Err != nil {
		n.NotifyFailure(e.Task, e.Err)
		return
	}
	n.NotifySuccess(e.Task, e.Duration)
}

func (n *PipelineNotifier) deliver(title, message string) {
	if err := n.send(title, message); err != nil {
		// Headless machines have no notification service.
		n.logger.Debug("Failed to send notification", logger.WithField("error", err))
	}
}

func firstLine(err error) string {
	message := err.Error()
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		message = message[:i]
	}
	return message
}
