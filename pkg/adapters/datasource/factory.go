package datasource

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// IntrospectorFactory creates introspectors from the registry.
type IntrospectorFactory interface {
	// NewIntrospector opens an introspector for cfg.Type.
	NewIntrospector(ctx context.Context, cfg ConnectionConfig) (Introspector, error)

	// ListTypes returns info for all registered adapter types.
	ListTypes() []AdapterInfo
}

type registryFactory struct {
	logger *zap.Logger
}

// NewIntrospectorFactory returns a factory that uses the global registry.
func NewIntrospectorFactory(logger *zap.Logger) IntrospectorFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &registryFactory{logger: logger}
}

func (f *registryFactory) NewIntrospector(ctx context.Context, cfg ConnectionConfig) (Introspector, error) {
	factory := GetFactory(cfg.Type)
	if factory == nil {
		return nil, fmt.Errorf("unsupported datasource type: %s (adapter not registered)", cfg.Type)
	}
	return factory(ctx, cfg, f.logger.Named(cfg.Type))
}

func (f *registryFactory) ListTypes() []AdapterInfo {
	return RegisteredAdapters()
}

// Ensure registryFactory implements IntrospectorFactory at compile time.
var _ IntrospectorFactory = (*registryFactory)(nil)
