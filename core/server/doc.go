// Package server holds the HTTP server configuration.
//
// The main application entry point starts the Fiber app; this package only
// defines the listen port, the API key guarding operational routes and the
// request body limit.
package server
