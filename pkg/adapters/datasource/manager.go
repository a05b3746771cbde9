package datasource

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-joins/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-joins/pkg/logging"
	"github.com/ekaya-inc/ekaya-joins/pkg/models"
	"github.com/ekaya-inc/ekaya-joins/pkg/retry"
)

const healthCheckTimeout = 5 * time.Second

// Manager resolves configured sources by name and keeps one open reader per source.
// Readers are opened on first use and reopened when a health check fails.
type Manager struct {
	mu      sync.Mutex
	sources map[string]Source
	readers map[string]TableReader
	maxRows int
	logger  *zap.Logger
}

// NewManager validates the configured sources. maxRows caps every table read;
// zero leaves reads uncapped.
func NewManager(sources []Source, maxRows int, logger *zap.Logger) (*Manager, error) {
	byName := make(map[string]Source, len(sources))
	for _, src := range sources {
		if src.Name == "" {
			return nil, errors.New("datasource name is required")
		}
		if _, dup := byName[src.Name]; dup {
			return nil, fmt.Errorf("duplicate datasource name %q", src.Name)
		}
		if !IsRegistered(src.Type) {
			return nil, fmt.Errorf("datasource %q: unsupported type %q", src.Name, src.Type)
		}
		byName[src.Name] = src
	}

	return &Manager{
		sources: byName,
		readers: make(map[string]TableReader),
		maxRows: maxRows,
		logger:  logger.Named("datasource"),
	}, nil
}

// Sources returns the configured sources sorted by name.
func (m *Manager) Sources() []Source {
	result := make([]Source, 0, len(m.sources))
	for _, src := range m.sources {
		result = append(result, src)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// ReadTable loads a table from the named source. The limit is clamped to the
// manager's row cap. Unknown sources return apperrors.ErrUnknownDatasource.
func (m *Manager) ReadTable(ctx context.Context, source, table string, limit int) (*models.Dataset, error) {
	if m.maxRows > 0 && (limit <= 0 || limit > m.maxRows) {
		limit = m.maxRows
	}

	reader, err := m.reader(ctx, source)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	ds, err := reader.ReadTable(ctx, table, limit)
	if err != nil {
		m.logger.Warn("table read failed",
			zap.String("source", source),
			zap.String("table", table),
			zap.String("error", logging.SanitizeError(err)),
		)
		return nil, fmt.Errorf("read %s.%s: %w", source, table, err)
	}

	m.logger.Debug("table read",
		zap.String("source", source),
		zap.String("table", table),
		zap.Int("rows", ds.RowCount()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return ds, nil
}

func (m *Manager) reader(ctx context.Context, name string) (TableReader, error) {
	src, ok := m.sources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownDatasource, name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.readers[name]; ok {
		healthCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		err := retry.Do(healthCtx, retry.TransientConfig(), func() error {
			return existing.TestConnection(healthCtx)
		})
		cancel()
		if err == nil {
			return existing, nil
		}

		m.logger.Warn("connection unhealthy, reopening",
			zap.String("source", name),
			zap.String("error", logging.SanitizeError(err)),
		)
		_ = existing.Close()
		delete(m.readers, name)
	}

	factory := GetFactory(src.Type)
	if factory == nil {
		return nil, fmt.Errorf("datasource %q: unsupported type %q", name, src.Type)
	}

	reader, err := factory(ctx, src.DSN, m.logger)
	if err != nil {
		m.logger.Error("failed to open datasource",
			zap.String("source", name),
			zap.String("type", src.Type),
			zap.String("dsn", logging.SanitizeConnectionString(src.DSN)),
			zap.String("error", logging.SanitizeError(err)),
		)
		return nil, fmt.Errorf("open datasource %q: %s", name, logging.SanitizeError(err))
	}

	m.readers[name] = reader
	m.logger.Info("datasource opened", zap.String("source", name), zap.String("type", src.Type))
	return reader, nil
}

// Close closes every open reader.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for name, reader := range m.readers {
		if err := reader.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
		delete(m.readers, name)
	}
	return errors.Join(errs...)
}
