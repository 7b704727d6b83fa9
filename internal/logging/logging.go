// Package logging provides the dual-channel logging the teacher's
// internal/logger package sketched with bare fmt.Printf: a structured NDJSON
// event sink for the audit trail named in spec §6, and a human-facing
// "pretty" renderer for local CLI runs, which tracks stage progress itself
// rather than through Event.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Event is one line of the append-only NDJSON events log. StageStart and
// StageEnd write one for a stage's entry and exit respectively.
type Event struct {
	Type    string         `json:"type"`
	Event   string         `json:"event"`
	Service string         `json:"service"`
	Level   string         `json:"level"`
	Fields  map[string]any `json:"-"`
}

// EventLogger writes Events as NDJSON to a size-rotated file.
type EventLogger struct {
	log     *logrus.Logger
	service string
}

// NewEventLogger opens (creating if necessary) the rotated NDJSON sink at
// path, matching the teacher's pattern of a package-level structured logger
// distinct from the human-facing progress view.
func NewEventLogger(path, service string, maxSizeMB, maxBackups int) *EventLogger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00", FieldMap: logrus.FieldMap{
		logrus.FieldKeyTime: "ts",
		logrus.FieldKeyMsg:  "event",
		logrus.FieldKeyLevel: "level",
	}})
	if path != "" {
		l.SetOutput(&lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			Compress:   true,
		})
	} else {
		l.SetOutput(os.Stdout)
	}
	return &EventLogger{log: l, service: service}
}

func (e *EventLogger) emit(level logrus.Level, eventType, event string, fields map[string]any) {
	entry := e.log.WithFields(logrus.Fields{
		"type":    eventType,
		"service": e.service,
	})
	for k, v := range fields {
		entry = entry.WithField(k, v)
	}
	entry.Log(level, event)
}

func (e *EventLogger) StageStart(stage string, fields map[string]any) {
	e.emit(logrus.InfoLevel, "stage_start", stage, fields)
}

func (e *EventLogger) StageEnd(stage string, fields map[string]any) {
	e.emit(logrus.InfoLevel, "stage_end", stage, fields)
}

func (e *EventLogger) Warn(event string, fields map[string]any) {
	e.emit(logrus.WarnLevel, "warning", event, fields)
}

func (e *EventLogger) Error(event string, err error, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	e.emit(logrus.ErrorLevel, "error", event, fields)
}

func (e *EventLogger) Info(event string, fields map[string]any) {
	e.emit(logrus.InfoLevel, "info", event, fields)
}
