// Package logger builds the zap loggers used by the server and the CLI.
//
// Level accepts debug, info, warn and error; Format accepts json and console.
// Request handlers attach the request id with WithRayID so that every line
// of one request can be correlated:
//
//	log, _ := logger.New(&cfg.Log)
//	l := logger.WithRayID(log, c)
//	l.Error("Synchronization failed", zap.String("database", db), zap.Error(err))
package logger
