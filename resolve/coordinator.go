// Package resolve turns one reference token into a verified tracker URL and
// title, or into a message explaining why it could not.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360studio/trackref/channelmap"
	"github.com/c360studio/trackref/metrics"
	"github.com/c360studio/trackref/reference"
	"github.com/c360studio/trackref/verify"
)

// DefaultRevisionProject is the repository slug used in revision URLs when
// configuration names none.
const DefaultRevisionProject = "puppet"

const (
	msgChannelNotConfigured = "I don't know about Redmine URLs for this channel"
	msgUnrecognized         = "I'm afraid I don't understand '%s' or I can't find a page for it.  Sorry."
	msgRemoteStatus         = "%s returned %d %s - I can't find a page for '%s'.  Sorry."
	msgLookupFailed         = "%s %s - An error occurred while I was trying to look up the URL.  Sorry."
)

// Snapshot is the read-only configuration one resolution runs against. The
// caller builds a fresh one per call so reconfiguration shows up on the next
// resolution.
type Snapshot struct {
	ChannelMap channelmap.Mapping
	HTTP       verify.HTTPConfig
	Rules      verify.Rules

	// RevisionProject is the repository slug for revision URLs.
	RevisionProject string
	// RevisionProjects overrides RevisionProject per channel.
	RevisionProjects map[string]string
}

// ProjectFor returns the revision slug for channel.
func (s Snapshot) ProjectFor(channel string) string {
	if p := s.RevisionProjects[channel]; p != "" {
		return p
	}
	if s.RevisionProject != "" {
		return s.RevisionProject
	}
	return DefaultRevisionProject
}

// Outcome is the visible result of resolving one token.
type Outcome struct {
	Ref  string
	Kind reference.Kind

	// URL and Title are set on success; Title may still be empty.
	URL      string
	Title    string
	HasTitle bool

	// Err and Message are set on failure. Message is safe to show in chat.
	Err     error
	Message string
}

// OK reports whether the reference resolved.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// PageVerifier is the part of verify.Verifier the coordinator needs.
type PageVerifier interface {
	Verify(ctx context.Context, target string, kind reference.Kind, cfg verify.HTTPConfig, rules verify.Rules) verify.Result
}

// Coordinator runs resolve-and-verify for passive scanning and explicit
// queries alike.
type Coordinator struct {
	verifier PageVerifier
	logger   *slog.Logger
}

// NewCoordinator creates a coordinator.
func NewCoordinator(verifier PageVerifier, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{verifier: verifier, logger: logger}
}

// ResolveAndVerify resolves token in channel against snap.
func (c *Coordinator) ResolveAndVerify(ctx context.Context, token, channel string, snap Snapshot) Outcome {
	out := c.resolve(ctx, token, channel, snap)
	metrics.RecordResolve(out.Kind.String(), string(Classify(out.Err)))
	return out
}

func (c *Coordinator) resolve(ctx context.Context, token, channel string, snap Snapshot) Outcome {
	out := Outcome{Ref: token}

	base, ok := channelmap.Resolve(channel, snap.ChannelMap)
	if !ok {
		c.logger.Debug("No tracker for channel", "channel", channel, "ref", token)
		out.Err = ErrChannelNotConfigured
		out.Message = msgChannelNotConfigured
		return out
	}

	target, ref, err := reference.Build(token, base, snap.ProjectFor(channel))
	if err != nil {
		c.logger.Debug("Unrecognized reference", "ref", token, "error", err)
		out.Err = err
		out.Message = fmt.Sprintf(msgUnrecognized, token)
		return out
	}
	out.Kind = ref.Kind

	c.logger.Debug("Verifying reference", "ref", token, "kind", ref.Kind, "url", target)
	start := time.Now()
	res := c.verifier.Verify(ctx, target, ref.Kind, snap.HTTP, snap.Rules)
	metrics.ObserveFetch(ref.Kind.String(), time.Since(start).Seconds())

	if !res.OK() {
		c.logger.Warn("Reference lookup failed",
			"ref", token,
			"url", target,
			"class", Classify(res.Err),
			"error", res.Err)
		out.Err = res.Err
		out.Message = failureMessage(token, target, res.Err)
		return out
	}

	out.URL = target
	out.Title = res.Title
	out.HasTitle = res.HasTitle
	return out
}

// failureMessage describes a verification failure without leaking raw error
// text into chat.
func failureMessage(token, target string, err error) string {
	var (
		statusErr *verify.StatusError
		fetchErr  *verify.FetchError
		parseErr  *verify.ParseError
	)
	switch {
	case errors.As(err, &statusErr):
		return fmt.Sprintf(msgRemoteStatus, target, statusErr.Code, statusErr.Status, token)
	case errors.As(err, &fetchErr):
		return fmt.Sprintf(msgLookupFailed, target, fetchErr.Summary())
	case errors.As(err, &parseErr):
		return fmt.Sprintf(msgLookupFailed, target, "could not be read")
	default:
		return fmt.Sprintf(msgLookupFailed, target, "failed")
	}
}
