// Package channelmap maps chat channels to the base URL of the tracker
// instance that serves them.
package channelmap

import (
	"fmt"
	"net/url"
	"strings"
)

// Mapping is an ordered list of "channel:URL" entries, for example
// "#puppet:http://projects.example.com". Base URLs carry no trailing slash;
// that is left to whoever writes the configuration.
type Mapping []string

// Resolve returns the base URL of the first entry for channel.
func Resolve(channel string, mapping Mapping) (string, bool) {
	if channel == "" {
		return "", false
	}
	prefix := channel + ":"
	for _, entry := range mapping {
		if strings.HasPrefix(entry, prefix) {
			return entry[len(prefix):], true
		}
	}
	return "", false
}

// Validate checks that every entry names a channel and an absolute http(s)
// URL.
func Validate(mapping Mapping) error {
	for i, entry := range mapping {
		channel, rawURL, ok := strings.Cut(entry, ":")
		if !ok || channel == "" {
			return fmt.Errorf("channel_map[%d]: expected \"channel:URL\", got %q", i, entry)
		}
		u, err := url.Parse(rawURL)
		if err != nil {
			return fmt.Errorf("channel_map[%d]: invalid URL: %w", i, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("channel_map[%d]: URL must be http or https, got %q", i, rawURL)
		}
		if u.Host == "" {
			return fmt.Errorf("channel_map[%d]: URL has no host: %q", i, rawURL)
		}
	}
	return nil
}

// Channels returns the channel part of each entry, in order.
func (m Mapping) Channels() []string {
	channels := make([]string, 0, len(m))
	for _, entry := range m {
		if channel, _, ok := strings.Cut(entry, ":"); ok {
			channels = append(channels, channel)
		}
	}
	return channels
}
