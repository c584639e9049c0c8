package events

import "github.com/rs/zerolog"

// LogEmitter is a bus subscriber that renders lifecycle events as structured
// log records.
type LogEmitter struct {
	log zerolog.Logger
}

// NewLogEmitter creates a log-emitting subscriber.
func NewLogEmitter(log zerolog.Logger) *LogEmitter {
	return &LogEmitter{log: log}
}

// Notify implements Subscriber.
func (l *LogEmitter) Notify(e Event) {
	var ev *zerolog.Event
	switch e.Type {
	case EventClaimMissed:
		ev = l.log.Debug()
	case EventJobFailed, EventWatchUnexpected:
		ev = l.log.Error()
	default:
		ev = l.log.Info()
	}

	ev = ev.Str("event", string(e.Type))
	for key, value := range e.Data {
		ev = ev.Interface(key, value)
	}
	ev.Msg("queue event")
}
