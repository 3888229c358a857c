// Package backend builds the store the API server runs on from the
// DATA_BACKEND setting.
package backend

import (
	"context"
	"fmt"
	"strings"

	"finman/internal/amqp"
	"finman/internal/config"
	"finman/internal/ports"
)

// Backend is everything the server reads and writes through.
type Backend interface {
	ports.TransactionStore
	ports.BudgetStore
	ports.PreferencesStore
	ports.CategoryLister
	Ping(ctx context.Context) error
}

type CleanupFunc func() error

// BackendResult is a ready backend. Publisher is nil unless the sqlite
// backend reached a broker, and Cleanup is nil when nothing needs closing.
type BackendResult struct {
	Backend   Backend
	Publisher *amqp.Client
	Cleanup   CleanupFunc
}

type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// BackendTypes lists the accepted DATA_BACKEND values.
var BackendTypes = []BackendType{SQLiteBackend, MemoryBackend}

// ParseBackendType accepts a DATA_BACKEND value in any case.
func ParseBackendType(s string) (BackendType, error) {
	bt := BackendType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range BackendTypes {
		if bt == known {
			return bt, nil
		}
	}
	return "", fmt.Errorf("unknown backend %q, want one of %v", s, BackendTypes)
}

type Config struct {
	Type BackendType

	SQLiteDBPath string
	// AMQP settings are only honoured by the sqlite backend.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// DataDirectory holds seed_categories.txt for the memory backend.
	DataDirectory string
}

func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	bt, err := ParseBackendType(appConfig.DataBackend)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Type:          bt,
		SQLiteDBPath:  appConfig.SQLiteDBPath,
		AMQPURL:       appConfig.AMQPURL,
		AMQPExchange:  appConfig.AMQPExchange,
		AMQPQueue:     appConfig.AMQPQueue,
		DataDirectory: appConfig.SeedDir,
	}, nil
}

func (c Config) Validate() error {
	if _, err := ParseBackendType(string(c.Type)); err != nil {
		return err
	}
	if c.Type == SQLiteBackend && c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for sqlite backend")
	}
	return nil
}
