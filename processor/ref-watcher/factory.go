package refwatcher

import (
	"fmt"

	"github.com/c360studio/semstreams/component"
)

// RegistryInterface defines the minimal interface needed for registration.
type RegistryInterface interface {
	RegisterWithConfig(component.RegistrationConfig) error
}

// Register registers the ref-watcher processor component with the given registry.
func Register(registry RegistryInterface) error {
	if registry == nil {
		return fmt.Errorf("registry cannot be nil")
	}
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "ref-watcher",
		Factory:     NewComponent,
		Schema:      refWatcherSchema,
		Type:        "processor",
		Protocol:    "nats",
		Domain:      "chat",
		Description: "Redmine reference resolver for chat messages",
		Version:     "0.1.0",
	})
}
