package adapters

import (
	"fmt"
	"sync"
)

// Factory manages sender instances per counterpart
type Factory struct {
	mu      sync.RWMutex
	configs map[string]CounterpartConfig
	senders map[string]MessageSender
}

// NewFactory creates a factory for the configured counterparts
func NewFactory(configs ...CounterpartConfig) *Factory {
	byName := make(map[string]CounterpartConfig, len(configs))
	for _, c := range configs {
		byName[c.Name] = c
	}
	return &Factory{
		configs: byName,
		senders: make(map[string]MessageSender),
	}
}

// Get returns the sender for a counterpart, creating it on first use
func (f *Factory) Get(name string) (MessageSender, error) {
	f.mu.RLock()
	sender, exists := f.senders[name]
	f.mu.RUnlock()

	if exists {
		return sender, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// Double-check after acquiring write lock
	if sender, exists := f.senders[name]; exists {
		return sender, nil
	}

	config, ok := f.configs[name]
	if !ok {
		return nil, fmt.Errorf("unknown counterpart %q", name)
	}

	switch config.Type {
	case SenderMLLP:
		sender = NewMLLPSender(config)
	case SenderHTTP:
		sender = NewHTTPSender(config)
	default:
		return nil, fmt.Errorf("unsupported sender type %q", config.Type)
	}

	f.senders[name] = sender
	return sender, nil
}

// CloseAll closes every sender
func (f *Factory) CloseAll() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	for name, sender := range f.senders {
		if err := sender.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close sender %s: %w", name, err))
		}
		delete(f.senders, name)
	}

	if len(errs) > 0 {
		return fmt.Errorf("encountered %d errors while closing senders", len(errs))
	}

	return nil
}
