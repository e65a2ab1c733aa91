package refwatcher

import (
	"fmt"

	"github.com/c360studio/semstreams/component"
)

// Config holds configuration for the ref-watcher processor component.
type Config struct {
	Ports *component.PortConfig `json:"ports" schema:"type:ports,description:Port configuration,category:basic"`

	// InboundSubject carries ChatMessage payloads from the chat gateway.
	InboundSubject string `json:"inbound_subject" schema:"type:string,description:Subject for inbound chat messages,category:basic,default:chat.message.in"`

	// ReplySubject receives Reply payloads.
	ReplySubject string `json:"reply_subject" schema:"type:string,description:Subject for reply lines,category:basic,default:chat.message.out"`

	// QueueGroup shares the inbound subject between instances. Empty means
	// every instance sees every message.
	QueueGroup string `json:"queue_group" schema:"type:string,description:NATS queue group,category:advanced,default:trackref"`

	// BotNick is used in help text.
	BotNick string `json:"bot_nick" schema:"type:string,description:Bot nick shown in help,category:basic,default:trackref"`

	// ConfigPath is the trackref config file read when no snapshot source is
	// attached. Empty means the user and project config files.
	ConfigPath string `json:"config_path" schema:"type:string,description:Tracker config file,category:advanced"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.InboundSubject == "" {
		return fmt.Errorf("inbound_subject is required")
	}
	if c.ReplySubject == "" {
		return fmt.Errorf("reply_subject is required")
	}
	if c.InboundSubject == c.ReplySubject {
		return fmt.Errorf("inbound_subject and reply_subject must differ")
	}
	return nil
}

// DefaultConfig returns default configuration for the ref-watcher component.
func DefaultConfig() Config {
	inputDefs := []component.PortDefinition{
		{
			Name:        "chat.in",
			Type:        "nats",
			Subject:     "chat.message.in",
			Required:    true,
			Description: "Chat messages from the chat gateway",
		},
	}

	outputDefs := []component.PortDefinition{
		{
			Name:        "chat.out",
			Type:        "nats",
			Subject:     "chat.message.out",
			Required:    true,
			Description: "Reply lines for the chat gateway to post",
		},
	}

	return Config{
		Ports: &component.PortConfig{
			Inputs:  inputDefs,
			Outputs: outputDefs,
		},
		InboundSubject: "chat.message.in",
		ReplySubject:   "chat.message.out",
		QueueGroup:     "trackref",
		BotNick:        "trackref",
	}
}
