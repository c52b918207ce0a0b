// Package controller contains HTTP middlewares and helper handlers used by the
// status server.
//
// Provided middlewares:
//   - WithLogger: Attaches a request-scoped logger and request ID to the context and logs access info.
//
// Provided helpers:
//   - WriteJSON, WriteError: Encode responses and map error kinds to status codes.
//   - PprofMux: Returns a ServeMux exposing net/http/pprof handlers.
package controller
