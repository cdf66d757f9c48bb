// Package monitoring provides Prometheus metrics for the application kernel.
//
// Metric families:
//   - HTTP: request counts and latency per route template
//   - Places: load attempts, load latency, hot-reload events per place
//   - Lifecycle: start hook and module stop outcomes
//   - Dispatch: procedure calls per interface and method
//   - WebSocket: live connections and message counts
//
// Each Metrics value owns its registry, so tests can create as many
// collectors as they like. All Record methods tolerate a nil receiver.
//
// Example Usage:
//
//	metrics := monitoring.NewMetrics()
//	router.Use(monitoring.Middleware(metrics))
//	router.GET("/metrics", gin.WrapH(metrics.Handler()))
package monitoring
