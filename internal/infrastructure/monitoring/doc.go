/*
Package monitoring provides metrics collection for the preview service.

# Overview

This package implements Prometheus-based metrics on a private registry,
tracking HTTP requests, sessions, renders, bridge traffic and WebSocket
connections. Every method is safe on a nil *Metrics.

# Usage

	metrics := monitoring.NewMetrics()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Time a render
	timer := monitoring.NewTimer(metrics, "headless")
	err := surface.Load(frame)
	timer.Stop(err)

# Metrics Endpoint

	router.GET("/metrics", gin.WrapH(metrics.Handler()))
*/
package monitoring
