// Package logging provides structured logging for Gadget Core.
//
// It wraps log/slog so every component logs through the same handler with
// the service and version fields attached.
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
//	logger.Info("listening", "port", 3000)
//	logger.Error("database ping failed", "error", err)
//
// Never log passwords, password digests, or bearer tokens.
package logging
