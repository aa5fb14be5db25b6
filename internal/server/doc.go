// Package server exposes the derived playlist and current weather over HTTP.
//
// # Routes
//
//   - GET /api/playlist[?id=] : the derived playlist (blank id uses the configured default)
//   - GET /api/weather?latitude=&longitude=[&timezone=auto][&units=metric] : current weather
//   - GET /healthz : liveness
//   - GET /metrics : Prometheus metrics
//
// # Errors
//
// Failures are written as {"error": kind, "message": text}, with the status chosen by [StatusFor]:
// configuration 412, not_found 404, invalid_input 400, upstream_rejected and upstream_malformed 502,
// upstream_unavailable 503.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [Middleware] wraps handlers in
// reverse order (last added executes first). The [BasicRouter] implementation uses [http.ServeMux]
// internally with method filtering.
//
// Every request passes through [RequestID], [Logging] and [Recover].
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes.
package server
