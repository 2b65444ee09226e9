// Package chrome runs test pages in Chrome and collects their JavaScript
// coverage.
//
// A Runner launches the browser through chromedp, enables the Runtime,
// Debugger and Profiler domains and starts precise block coverage before the
// first navigation, so every script the tab loads is tracked. Console calls
// and uncaught exceptions are forwarded to a console.Console.
//
// Finish takes the coverage, fetches each script's source, flattens Chrome's
// nested block ranges with DisjointRanges and converts the result with a
// coverage.Converter into the shared coverage.Accumulator.
//
//	runner, err := chrome.NewRunner(ctx, url, chrome.Options{Headless: true, Coverage: true},
//		converter, acc, logger)
//	...
//	files, err := runner.Finish(ctx)
package chrome
