package logger

import (
	"context"

	"github.com/rs/zerolog"
)

// LogRequest logs a completed collaborator HTTP call at a level matching its status
func LogRequest(log Logger, method, url string, statusCode int, durationMs int64) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": durationMs,
	}

	switch {
	case statusCode >= 500:
		log.ErrorWithFields("HTTP request server error", fields)
	case statusCode >= 400:
		log.WarnWithFields("HTTP request client error", fields)
	default:
		log.DebugWithFields("HTTP request completed", fields)
	}
}

// LogScan logs the start of a discovery pass over one source
func LogScan(log Logger, source, query string) {
	log.WithFields(map[string]interface{}{
		"source": source,
		"query":  query,
	}).Info("Checking for new chapter")
}

// LogChapter logs the outcome of counting one chapter
func LogChapter(log Logger, chapter, pages, count int, err error) {
	l := log.WithFields(map[string]interface{}{
		"chapter": chapter,
		"pages":   pages,
		"count":   count,
	})
	if err != nil {
		l.WithError(err).Error("Chapter count failed")
		return
	}
	l.Info("Chapter counted")
}

// LogRateLimit logs rate limiting events
func LogRateLimit(log Logger, endpoint string, retryAfterSeconds int) {
	log.WithFields(map[string]interface{}{
		"endpoint":    endpoint,
		"retry_after": retryAfterSeconds,
		"action":      "rate_limited",
	}).Warn("Rate limit reached, backing off")
}

// LogComponentStart logs when a component starts
func LogComponentStart(log Logger, component string, settings map[string]interface{}) {
	l := log.WithField("component", component)
	if len(settings) > 0 {
		l = l.WithFields(settings)
	}
	l.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(log Logger, component string, reason string) {
	log.WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// Nop returns a logger that discards everything
func Nop() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                              {}
func (n *nopLogger) Info(msg string)                                               {}
func (n *nopLogger) Warn(msg string)                                               {}
func (n *nopLogger) Error(msg string)                                              {}
func (n *nopLogger) Fatal(msg string)                                              {}
func (n *nopLogger) WithField(key string, value interface{}) Logger                { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger               { return n }
func (n *nopLogger) WithError(err error) Logger                                    { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                        { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{})     {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})      {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})      {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{})     {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{})     {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                                   { z := zerolog.Nop(); return &z }
