package logger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs a finished HTTP request at a level matching its status
func LogRequest(l Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}

	switch {
	case statusCode >= 500:
		l.ErrorWithFields("HTTP request server error", fields)
	case statusCode >= 400:
		l.WarnWithFields("HTTP request client error", fields)
	default:
		l.DebugWithFields("HTTP request completed", fields)
	}
}

// LogRetry logs a transient failure that is about to be retried
func LogRetry(l Logger, url string, attempt int, delay time.Duration, err error) {
	l.WithError(err).WarnWithFields("Request failed, backing off", map[string]interface{}{
		"url":     url,
		"attempt": attempt,
		"delay":   delay,
	})
}

// LogDownload logs the outcome of one file download
func LogDownload(l Logger, path, url string, skipped bool, err error) {
	log := l.WithFields(map[string]interface{}{
		"path": path,
		"url":  url,
	})

	switch {
	case err != nil:
		log.WithError(err).Error("Download failed")
	case skipped:
		log.Debug("Download skipped, file exists")
	default:
		log.Debug("Download completed")
	}
}

// LogCreatorStart logs the beginning of one creator's sync pass
func LogCreatorStart(l Logger, platform, creatorID, name string) {
	l.InfoWithFields("Syncing creator", map[string]interface{}{
		"platform": platform,
		"creator":  creatorID,
		"name":     name,
	})
}

// LogCreatorDone logs the counters of one finished creator
func LogCreatorDone(l Logger, creatorID string, synced, failed, files int, took time.Duration) {
	l.InfoWithFields("Creator done", map[string]interface{}{
		"creator":  creatorID,
		"synced":   synced,
		"failed":   failed,
		"files":    files,
		"duration": took.Round(time.Millisecond),
	})
}

// LogPostFailure logs a post that could not be archived
func LogPostFailure(l Logger, sourceLink, stage string, err error) {
	l.WithError(err).ErrorWithFields("Post failed", map[string]interface{}{
		"source": sourceLink,
		"stage":  stage,
	})
}

// LogProgress logs how far a phase has come
func LogProgress(l Logger, phase string, done, total int) {
	percentage := 0.0
	if total > 0 {
		percentage = float64(done) / float64(total) * 100
	}

	l.DebugWithFields("Progress", map[string]interface{}{
		"phase":      phase,
		"done":       done,
		"total":      total,
		"percentage": fmt.Sprintf("%.1f%%", percentage),
	})
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger {
	nop := zerolog.Nop()
	return &nop
}
