// Package logging provides structured logging for procwarden.
//
// It wraps log/slog so every component logs with the same handler, level
// and default fields (service, version).
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	mgr.SetLogger(logger.Component("process"))
//	logger.Info("listening", "port", 8080)
//
// Child output lines are never logged; they may contain pool credentials.
package logging
