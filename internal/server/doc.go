// Package server exposes the local proxy HTTP API that front-ends talk to
// instead of the upstream directly.
//
// # Why a local proxy
//
// The upstream API requires a bearer token and has no CORS allowance for
// local tooling. Running a small localhost server keeps the token in one
// process and gives UIs a stable, minimal JSON surface: bootstrap, progress
// submission, preference editing, and auth lifecycle.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
// [Middleware] wraps handlers in reverse order (last added executes first),
// following the standard Go pattern. [BasicRouter] uses [http.ServeMux]
// internally with method filtering.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib
// handler interface and adds Routes, so a handler encapsulates its own route
// definitions. [APIHandler] serves the whole /api surface.
package server
