// Package logging provides structured logging using uber/zap.
//
// This package offers two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Logs go to stderr by default so that commands writing coverage JSON to
// stdout stay pipeable.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("converting coverage", zap.Int("bundles", 3))
//	logger.Warn("could not load source map", zap.String("url", u), zap.Error(err))
package logging
