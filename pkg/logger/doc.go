// Package logger provides the structured logging interface used by every
// stage of the archiving pipeline.
//
// It wraps zerolog with:
//   - colored console output with four-letter level tags
//   - an optional JSON log file written alongside the console
//   - child loggers carrying fields (WithField, WithFields, WithError)
//   - domain helpers for requests, retries, downloads and creator passes
//
// There is no package-level logger. Build one with New and hand it to the
// components that need it:
//
//	log, err := logger.New(&cfg.Logging)
//	if err != nil {
//	    return err
//	}
//	log.WithField("creator", "mofu").Info("Syncing creator")
//
// Tests use NewTestLogger to capture messages, or NewNopLogger to discard them.
package logger
