// Package client talks to the Sekure backing store.
//
// # Overview
//
// Client is the transport-agnostic contract used by the services layer.
// HTTPClient implements it over the REST API described in internal/api,
// attaching the bearer access token obtained at login to every request.
//
// # Error Handling
//
// HTTP statuses are mapped back onto the sentinels in internal/common, so
// callers match errors with errors.Is regardless of transport:
//
//	transport failure, 502-504  -> common.ErrNetworkFailure
//	400                         -> common.ErrInvalidInput
//	401                         -> common.ErrorUnauthorized
//	404                         -> common.ErrorNotFound
//	409                         -> common.ErrAlreadyExists
//
// Share lookups map 404, 403 and 410 to ErrShareInvalid, ErrShareDenied and
// ErrShareExpired instead.
package client
