package config

import (
	"fmt"
	"log/slog"
	"strings"
)

const (
	BackendORT = "onnxruntime"
)

const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatNone  = "none"
)

// NormalizeBackend maps the --backend value onto the one backend this
// harness drives. Callers treat an error as a warning.
func NormalizeBackend(raw string) (string, error) {
	backend := strings.ToLower(strings.TrimSpace(raw))
	switch backend {
	case "", BackendORT, "ort", "onnx":
		return BackendORT, nil
	default:
		return "", fmt.Errorf("unsupported backend %q (expected %s|ort)", raw, BackendORT)
	}
}

func NormalizeFormat(raw string) (string, error) {
	format := strings.ToLower(strings.TrimSpace(raw))
	switch format {
	case "":
		return FormatTable, nil
	case FormatTable, FormatJSON, FormatNone:
		return format, nil
	default:
		return "", fmt.Errorf("invalid format %q (expected %s|%s|%s)", raw, FormatTable, FormatJSON, FormatNone)
	}
}

// ParseLogLevel converts a textual log level to a slog.Level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}
