package refwatcher

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/c360studio/trackref/metrics"
	"github.com/c360studio/trackref/reference"
	"github.com/c360studio/trackref/resolve"
)

// QueryCommand is the addressed command that looks up one reference.
const QueryCommand = "redmineinfo"

const (
	msgPrivateQuery = "I can't do redmineinfo in private yet"
	msgQueryUsage   = "Usage: redmineinfo <ref>, e.g. redmineinfo #93"
)

// Handling modes, also used as metric labels.
const (
	modePassive = "passive"
	modeQuery   = "query"
	modeHelp    = "help"
	modeIgnored = "ignored"
)

// addresseePattern picks the nick a passive line is directed at ("bob: ...").
var addresseePattern = regexp.MustCompile(`^(\S+)[:,]`)

// Resolver resolves one reference token. *resolve.Coordinator implements it.
type Resolver interface {
	ResolveAndVerify(ctx context.Context, token, channel string, snap resolve.Snapshot) resolve.Outcome
}

// Handler applies the passive and query policies to chat messages.
type Handler struct {
	resolver Resolver
	botNick  string
	logger   *slog.Logger
}

// NewHandler creates a new handler.
func NewHandler(resolver Resolver, botNick string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{resolver: resolver, botNick: botNick, logger: logger}
}

// Handle returns the reply lines for msg, resolved against snap. A nil
// result means the bot stays quiet.
func (h *Handler) Handle(ctx context.Context, msg *ChatMessage, snap resolve.Snapshot) []string {
	mode, lines := h.dispatch(ctx, msg, snap)
	metrics.RecordMessage(mode)
	if len(lines) > 0 {
		metrics.RecordReplies(mode, len(lines))
	}
	return lines
}

func (h *Handler) dispatch(ctx context.Context, msg *ChatMessage, snap resolve.Snapshot) (string, []string) {
	if !msg.Addressed {
		if !msg.Public {
			return modeIgnored, nil
		}
		return modePassive, h.passive(ctx, msg, snap)
	}

	fields := strings.Fields(msg.Text)
	if len(fields) == 0 {
		return modeIgnored, nil
	}

	switch strings.ToLower(fields[0]) {
	case QueryCommand:
		return modeQuery, []string{h.query(ctx, msg, fields[1:], snap)}
	case "help":
		if len(fields) < 2 || fields[1] != HelpTopic || len(fields) > 3 {
			return modeIgnored, nil
		}
		topic := ""
		if len(fields) == 3 {
			topic = fields[2]
		}
		text := Help(topic, h.botNick)
		if text == "" {
			text = fmt.Sprintf("no help for %s %s; try 'general' or 'queries'", HelpTopic, topic)
		}
		return modeHelp, []string{text}
	default:
		return modeIgnored, nil
	}
}

// passive resolves every reference in the text. The first failure drops the
// whole message.
func (h *Handler) passive(ctx context.Context, msg *ChatMessage, snap resolve.Snapshot) []string {
	tokens := reference.ExtractAll(msg.Text)
	if len(tokens) == 0 {
		return nil
	}

	addressee := Addressee(msg)
	lines := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if ctx.Err() != nil {
			return nil
		}
		out := h.resolver.ResolveAndVerify(ctx, token, msg.Channel, snap)
		if !out.OK() {
			h.logger.Debug("Passive reference failed, staying quiet",
				"channel", msg.Channel,
				"ref", token,
				"class", resolve.Classify(out.Err),
				"dropped", len(lines))
			return nil
		}
		lines = append(lines, FormatSuccess(addressee, out))
	}
	return lines
}

// query answers an explicit redmineinfo request with exactly one line.
func (h *Handler) query(ctx context.Context, msg *ChatMessage, args []string, snap resolve.Snapshot) string {
	if len(args) != 1 {
		return fmt.Sprintf("%s: %s", msg.Nick, msgQueryUsage)
	}
	if !msg.Public {
		return msgPrivateQuery
	}

	out := h.resolver.ResolveAndVerify(ctx, args[0], msg.Channel, snap)
	if !out.OK() {
		return FormatFailure(msg.Nick, out)
	}
	return FormatSuccess(msg.Nick, out)
}

// Addressee returns the nick a passive reply should be directed at: the
// leading "nick:" or "nick," of the message, else the sender.
func Addressee(msg *ChatMessage) string {
	if m := addresseePattern.FindStringSubmatch(msg.Text); m != nil {
		return m[1]
	}
	return msg.Nick
}

// FormatSuccess renders `<who>: <ref> is <url>` with ` "<title>"` appended
// when the page had one.
func FormatSuccess(who string, out resolve.Outcome) string {
	line := fmt.Sprintf("%s: %s is %s", who, out.Ref, out.URL)
	if out.HasTitle {
		line += ` "` + out.Title + `"`
	}
	return line
}

// FormatFailure renders `<who>: <message>`.
func FormatFailure(who string, out resolve.Outcome) string {
	return fmt.Sprintf("%s: %s", who, out.Message)
}
