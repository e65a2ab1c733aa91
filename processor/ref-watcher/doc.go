// Package refwatcher provides a NATS consumer component that watches chat
// messages for tracker references and answers reference queries.
//
// # Overview
//
// Chat gateways publish every channel message to the inbound subject as a
// ChatMessage. The component resolves the references it finds and publishes
// one Reply per output line to the reply subject, where the gateway posts it
// back to the channel.
//
// # Modes
//
//   - Passive: a public message not addressed to the bot. Every reference in
//     the text is resolved in order. If any of them fails the whole message is
//     dropped and nothing is said, so a half-broken lookup never adds noise.
//   - Query: an addressed "redmineinfo <ref>". Exactly one line comes back,
//     the answer or an explanation of why there is none.
//   - Help: an addressed "help redmine_urls [general|queries]".
//
// Other addressed text and passive private messages are ignored.
//
// # Usage
//
// Register the factory, then build the component with a connected
// natsclient.Client:
//
//	registry := component.NewRegistry()
//	if err := refwatcher.Register(registry); err != nil { ... }
//	comp, err := refwatcher.NewComponent(rawConfig, component.Dependencies{NATSClient: client})
//
// Without SetSnapshotSource, Start loads tracker settings from config_path
// (or the layered trackref config files).
//
// # Configuration
//
// The component reads a fresh resolve.Snapshot for every message, so changes
// to the channel map or fetch settings apply from the next message on.
package refwatcher
