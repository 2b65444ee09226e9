// Package console captures browser console output.
//
// A Tap sits in front of a Console and hands every call to a Sink first, so
// test output can be recorded (and "not ok" lines detected) before the
// message is printed. The Chrome runner feeds Runtime.consoleAPICalled
// events into a Tap; the event socket does the same for messages posted by
// test pages.
package console
