// Command ottr runs browser tests in Chrome and reports their coverage.
//
// Subcommands:
//   - serve: run the server test pages report to
//   - run <url>: open a test page in Chrome, wait for its tests and write the
//     coverage of every script it loaded
//   - convert <file|dir>: convert raw Chrome coverage to Istanbul coverage
//   - version
//
// Configuration:
//   - Environment variables (see internal/config)
//   - CLI flags (override env vars)
//
// Usage:
//
//	ottr run http://localhost:8080/test.html -o coverage/coverage-final.json
//	ottr convert chrome-coverage.json.gz -o - --summary yaml
//	ottr serve --port 7777 --dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
