package common

import "github.com/bobmcallan/tamreport/internal/models"

// LogObserver forwards pipeline events to a Logger
type LogObserver struct {
	logger *Logger
}

// NewLogObserver creates an observer writing to logger
func NewLogObserver(logger *Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

// Observe logs the event at a level matching its kind
func (o *LogObserver) Observe(ev models.Event) {
	e := o.logger.Info()
	switch ev.Level {
	case models.EventLevelDebug:
		e = o.logger.Debug()
	case models.EventLevelWarn:
		e = o.logger.Warn()
	case models.EventLevelError:
		e = o.logger.Error()
	}
	e = e.Str("component", ev.Component).Str("stage", ev.Stage)
	if ev.Customer != "" {
		e = e.Str("customer", ev.Customer)
	}
	for k, v := range ev.Fields {
		e = e.Interface(k, v)
	}
	e.Msg(ev.Message)
}
