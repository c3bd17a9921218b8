package datarecording

import (
	"fmt"
	"strings"
)

// RecorderConfig selects and configures a recorder backend.
type RecorderConfig struct {
	// Type is "sqlite" (the default) or "clickhouse".
	Type string

	// Path is the SQLite file to create.
	Path string

	// ConnStr is the ClickHouse DSN.
	ConnStr string

	// BatchSize is the number of buffered entries that triggers a flush on
	// ClickHouse. Zero picks the default.
	BatchSize int
}

// NewWithConfig creates the recorder cfg describes.
func NewWithConfig(cfg RecorderConfig) (DataRecorder, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "sqlite", "sqlite3":
		return New(cfg.Path)
	case "clickhouse":
		return NewClickHouse(cfg.ConnStr, cfg.BatchSize)
	default:
		return nil, fmt.Errorf("unknown recorder type %q", cfg.Type)
	}
}

// ParseTarget turns a command-line recording target into a config. DSNs
// starting with "clickhouse://" select ClickHouse, anything else is a
// SQLite path.
func ParseTarget(target string) RecorderConfig {
	if strings.HasPrefix(target, "clickhouse://") {
		return RecorderConfig{Type: "clickhouse", ConnStr: target}
	}

	return RecorderConfig{Type: "sqlite", Path: target}
}
