// Package api implements the HTTP REST API and WebSocket server for procwarden.
//
// This package provides:
//   - REST endpoints to start, list, inspect and stop supervised processes
//   - the flat legacy GET routes (/start/{pool}, /status, /stop/{pid}, ...)
//   - a WebSocket hub broadcasting lifecycle events
//   - optional JWT bearer authentication with ticket-based WebSocket auth
//   - the middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// Handlers translate HTTP requests into calls on the process.Manager and the
// launcher. They never touch processes directly. Lifecycle events reach
// WebSocket clients through HubSink, registered with the events dispatcher.
//
// # Security
//
// Authentication is disabled when no JWT secret is configured. When enabled,
// every process and audit route requires an HS256 bearer token, and WebSocket
// connections use single-use tickets so the token never appears in a URL.
package api
