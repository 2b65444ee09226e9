// Package ws receives test page events over a WebSocket.
//
// Test pages connect to /_ottr/socket and post JSON events:
//
//	{"type": "tests",   "session": "s1", "args": [{"adds": {"path": "/math.test.js"}}]}
//	{"type": "console", "session": "s1", "test": "adds", "args": ["log", "ok 1 - adds"]}
//	{"type": "done",    "session": "s1", "test": "adds"}
//	{"type": "fail",    "session": "s1", "test": "adds", "args": ["expected 2"]}
//
// Console lines are recorded as test output; a line starting with "not ok"
// fails the test. A fail event without a test fails the whole session. A
// "ping" is answered with a "pong", and malformed events with an "error".
//
// Example Usage:
//
//	handler := ws.NewHandler(store, console.NewLogger(logger), metrics, logger)
//	router.GET(ws.Path, handler.HandleConnection)
package ws
