// Package http implements the REST API of the ottr server.
//
// Routes live under /_ottr/api so they do not collide with the application
// under test:
//   - GET /sessions, POST /session, GET /session/:id: test session state
//   - POST /log: console calls posted outside the socket
//   - POST /coverage: convert raw Chrome coverage and accumulate it
//   - GET /coverage, DELETE /coverage, GET /coverage/summary
//
// Liveness and health are served at / and /health.
package http
