/*
Package tracing provides request tracing for the ottr server.

# Overview

Every HTTP request gets a span. Spans carry a trace ID that follows the
request into the coverage converter and the Chrome runner through the
request context, so their log lines can be joined with the request that
caused them. Finished spans are logged by a background collector.

# Usage

	tracer := tracing.New("ottr", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	// In a handler
	logger.Info("converted", tracing.Fields(c.Request.Context())...)

Trace context is propagated with the X-Trace-ID and X-Span-ID headers.
*/
package tracing
