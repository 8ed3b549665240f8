package rules

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
)

const DefaultName = "rules.json"

type BackendConfig struct {
	Kind              string
	Name              string
	FSRoot            string
	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3ForcePathStyle  bool
}

// NewBackend builds a memory, file or S3 backend. SQL-backed rule sets are
// wired by the caller through NewSQLBackend because they need a database.
func NewBackend(ctx context.Context, cfg BackendConfig) (Backend, error) {
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = DefaultName
	}

	kind := strings.ToLower(strings.TrimSpace(cfg.Kind))
	switch kind {
	case "", "file", "filesystem", "fs", "local":
		return NewFileBackend(cfg.FSRoot, name)
	case "memory", "mem":
		return &MemoryBackend{}, nil
	case "s3", "r2":
		return NewS3Backend(ctx, S3Config{
			Bucket:          cfg.S3Bucket,
			Key:             name,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			ForcePathStyle:  cfg.S3ForcePathStyle,
		})
	default:
		return nil, fmt.Errorf("unsupported rules backend: %s", kind)
	}
}

// MemoryBackend keeps the rule set in process memory.
type MemoryBackend struct {
	mu   sync.Mutex
	data []byte
}

func (m *MemoryBackend) Read(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, ErrNotFound
	}
	return append([]byte(nil), m.data...), nil
}

func (m *MemoryBackend) Write(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	return nil
}

// RuleSetStore is the storage a SQLBackend delegates to.
type RuleSetStore interface {
	GetRuleSet(ctx context.Context, name string) ([]byte, error)
	PutRuleSet(ctx context.Context, name string, payload []byte) error
}

// SQLBackend stores the rule set as a named row.
type SQLBackend struct {
	store RuleSetStore
	name  string
}

func NewSQLBackend(store RuleSetStore, name string) *SQLBackend {
	if strings.TrimSpace(name) == "" {
		name = DefaultName
	}
	return &SQLBackend{store: store, name: name}
}

func (b *SQLBackend) Read(ctx context.Context) ([]byte, error) {
	data, err := b.store.GetRuleSet(ctx, b.name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return data, err
}

func (b *SQLBackend) Write(ctx context.Context, data []byte) error {
	return b.store.PutRuleSet(ctx, b.name, data)
}
