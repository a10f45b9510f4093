// Package middleware groups the HTTP middleware of the Fiber application.
//
//   - rayid: tags every request with a ray id, echoed in the X-Ray-ID header
//     and attached to request logs.
//   - auth: API key validation for operational routes, and HTTP basic
//     authentication against the users of the source database named in the
//     route for /essync routes.
package middleware
