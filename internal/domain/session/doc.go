// Package session tracks browser test sessions.
//
// A session is created when the runner opens a test page and is fed by the
// events the page posts over the event socket: the tests it declares, their
// console output, and done or fail notifications. Status is recomputed on
// every read:
//   - error "tests failed" once any test has an error
//   - done once every registered test is done
//   - error NoTestsError when a page registers zero tests
//
// Example Usage:
//
//	store := session.NewStore()
//	id := store.Create()
//	store.SetTests(id, map[string]session.Test{"adds": {}})
//	store.AppendOutput(id, "adds", "ok 1 - adds")
//	store.Done(id, "adds")
//	s, _ := store.Get(id) // s.Done == true
package session
