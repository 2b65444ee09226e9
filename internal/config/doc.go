// Package config provides 12-factor configuration management for ottr.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Chrome: browser binary, headless mode, coverage collection, run timeout
//   - Coverage: conversion stages, include/exclude globs, output file
//   - SourceMap: remote source map fetching
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s\n", cfg.Server.Addr())
//
// Environment Variables:
//   - PORT, HOST
//   - CHROME_BINARY, CHROME_HEADLESS, CHROME_COVERAGE, CHROME_TIMEOUT
//   - COVERAGE_INFER_NON_COVERED, COVERAGE_INTERPOLATE_LINES
//   - COVERAGE_INCLUDE, COVERAGE_EXCLUDE, COVERAGE_OUTPUT (comma separated globs)
//   - SOURCEMAP_FETCH, SOURCEMAP_TIMEOUT, SOURCEMAP_RETRIES
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
