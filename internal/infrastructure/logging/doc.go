// Package logging provides structured logging for the bridge.
//
// This package wraps Go's standard log/slog package so every component logs
// with the same handler, level and default fields (service, version).
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
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Component("discovery").Info("manifest resolved", "device", name)
//
// Never log MQTT passwords or InfluxDB tokens.
package logging
