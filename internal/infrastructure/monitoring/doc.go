/*
Package monitoring provides metrics collection for ottr.

# Overview

This package implements Prometheus-based metrics on a private registry,
tracking HTTP requests, coverage conversions, test sessions, the event
socket and browser console traffic.

# Features

- HTTP request metrics (latency, throughput, size) labelled by route
- Conversion metrics (bundles by source-mapped outcome, dropped ranges, duration)
- Session metrics (running, created)
- WebSocket connection and message metrics
- Console messages by level
- Go runtime, process and uptime metrics

# Usage

	metrics := monitoring.NewMetrics()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Report conversions
	converter, _ := coverage.NewConverter(resolver, opts, logger, coverage.WithRecorder(metrics))

# Metrics Endpoint

	router.GET("/metrics", gin.WrapH(metrics.Handler()))
*/
package monitoring
