package audit

import (
	"context"
	"fmt"

	"brokerage-gateway/domain/repository"
	"brokerage-gateway/infrastructure/logger"
)

// Factory opens one audit destination. close releases it on shutdown and may be nil.
type Factory func(ctx context.Context) (sink repository.IAuditSink, close func(), err error)

// Build opens the named sinks. A destination that fails to open is skipped
// with a warning so the gateway still starts; an unknown name is a
// configuration error. When nothing could be opened the log sink is used.
func Build(ctx context.Context, names []string, factories map[string]Factory) (*FanOut, []func(), error) {
	var sinks []Named
	var closers []func()
	seen := map[string]bool{}
	for _, name := range names {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		factory, ok := factories[name]
		if !ok {
			return nil, closers, fmt.Errorf("unknown audit sink %q", name)
		}
		sink, closeFn, err := factory(ctx)
		if err != nil {
			logger.GetLogger().WithFields(map[string]interface{}{
				"sink":  name,
				"error": err.Error(),
			}).Warn("Audit sink not available - continuing without it")
			continue
		}
		sinks = append(sinks, Named{Name: name, Sink: sink})
		if closeFn != nil {
			closers = append(closers, closeFn)
		}
	}
	if len(sinks) == 0 {
		sinks = append(sinks, Named{Name: "log", Sink: LogSink{}})
	}
	return NewFanOut(sinks...), closers, nil
}
