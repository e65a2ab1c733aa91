package refwatcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/trackref/channelmap"
	"github.com/c360studio/trackref/resolve"
	"github.com/c360studio/trackref/verify"
)

// stubResolver answers from a table keyed by token. Tokens not in the table
// fail as unrecognized.
type stubResolver struct {
	outcomes map[string]resolve.Outcome
	calls    []string
}

func (s *stubResolver) ResolveAndVerify(_ context.Context, token, channel string, _ resolve.Snapshot) resolve.Outcome {
	s.calls = append(s.calls, token)
	if out, ok := s.outcomes[token]; ok {
		out.Ref = token
		return out
	}
	return resolve.Outcome{
		Ref:     token,
		Err:     fmt.Errorf("unknown token %s in %s", token, channel),
		Message: "I'm afraid I don't understand '" + token + "' or I can't find a page for it.  Sorry.",
	}
}

func okOutcome(url, title string) resolve.Outcome {
	return resolve.Outcome{URL: url, Title: title, HasTitle: title != ""}
}

func publicMsg(text string) *ChatMessage {
	return &ChatMessage{ID: "m1", Channel: "#foo", Nick: "alice", Text: text, Public: true}
}

func addressedMsg(text string) *ChatMessage {
	msg := publicMsg(text)
	msg.Addressed = true
	return msg
}

func TestHandlePassive(t *testing.T) {
	stub := &stubResolver{outcomes: map[string]resolve.Outcome{
		"#45":         okOutcome("http://tracker/issues/show/45", "Broken thing"),
		"r10":         okOutcome("http://tracker/repositories/revision/puppet/10", "Fix the thing"),
		"wiki:FooBar": okOutcome("http://tracker/wiki/FooBar", ""),
	}}
	h := NewHandler(stub, "trackref", nil)

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "single ticket",
			text: "see #45 please",
			want: []string{`alice: #45 is http://tracker/issues/show/45 "Broken thing"`},
		},
		{
			name: "addressee taken from message",
			text: "bob: r10 fixed it",
			want: []string{`bob: r10 is http://tracker/repositories/revision/puppet/10 "Fix the thing"`},
		},
		{
			name: "addressee with comma",
			text: "bob, look at wiki:FooBar",
			want: []string{"bob: wiki:FooBar is http://tracker/wiki/FooBar"},
		},
		{
			name: "several in order",
			text: "r10 and #45 and #45",
			want: []string{
				`alice: r10 is http://tracker/repositories/revision/puppet/10 "Fix the thing"`,
				`alice: #45 is http://tracker/issues/show/45 "Broken thing"`,
				`alice: #45 is http://tracker/issues/show/45 "Broken thing"`,
			},
		},
		{
			name: "first failure drops everything",
			text: "look at r10 then #999",
			want: nil,
		},
		{
			name: "no references",
			text: "nothing to see here",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := h.Handle(context.Background(), publicMsg(tt.text), resolve.Snapshot{})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHandlePassiveStopsAtFirstFailure(t *testing.T) {
	stub := &stubResolver{outcomes: map[string]resolve.Outcome{
		"r10": okOutcome("http://tracker/repositories/revision/puppet/10", ""),
	}}
	h := NewHandler(stub, "trackref", nil)

	got := h.Handle(context.Background(), publicMsg("#1 then r10"), resolve.Snapshot{})

	assert.Nil(t, got)
	assert.Equal(t, []string{"#1"}, stub.calls, "tokens after a failure are not resolved")
}

func TestHandlePassivePrivateIgnored(t *testing.T) {
	stub := &stubResolver{outcomes: map[string]resolve.Outcome{
		"#45": okOutcome("http://tracker/issues/show/45", ""),
	}}
	h := NewHandler(stub, "trackref", nil)

	msg := publicMsg("#45")
	msg.Public = false

	assert.Nil(t, h.Handle(context.Background(), msg, resolve.Snapshot{}))
	assert.Empty(t, stub.calls)
}

func TestHandleAddressedIgnoresReferences(t *testing.T) {
	stub := &stubResolver{outcomes: map[string]resolve.Outcome{
		"#45": okOutcome("http://tracker/issues/show/45", ""),
	}}
	h := NewHandler(stub, "trackref", nil)

	assert.Nil(t, h.Handle(context.Background(), addressedMsg("what about #45?"), resolve.Snapshot{}))
	assert.Empty(t, stub.calls)
}

func TestHandleQuery(t *testing.T) {
	stub := &stubResolver{outcomes: map[string]resolve.Outcome{
		"#93": okOutcome("http://tracker/issues/show/93", "Crash on start"),
	}}
	h := NewHandler(stub, "trackref", nil)

	tests := []struct {
		name    string
		text    string
		private bool
		want    []string
	}{
		{
			name: "success",
			text: "redmineinfo #93",
			want: []string{`alice: #93 is http://tracker/issues/show/93 "Crash on start"`},
		},
		{
			name: "command is case insensitive",
			text: "RedmineInfo #93",
			want: []string{`alice: #93 is http://tracker/issues/show/93 "Crash on start"`},
		},
		{
			name: "failure",
			text: "redmineinfo zzz",
			want: []string{"alice: I'm afraid I don't understand 'zzz' or I can't find a page for it.  Sorry."},
		},
		{
			name: "missing argument",
			text: "redmineinfo",
			want: []string{"alice: " + msgQueryUsage},
		},
		{
			name: "too many arguments",
			text: "redmineinfo #93 #94",
			want: []string{"alice: " + msgQueryUsage},
		},
		{
			name:    "private",
			text:    "redmineinfo #93",
			private: true,
			want:    []string{msgPrivateQuery},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := addressedMsg(tt.text)
			msg.Public = !tt.private
			assert.Equal(t, tt.want, h.Handle(context.Background(), msg, resolve.Snapshot{}))
		})
	}
}

func TestHandleHelp(t *testing.T) {
	h := NewHandler(&stubResolver{}, "trackref", nil)

	got := h.Handle(context.Background(), addressedMsg("help redmine_urls"), resolve.Snapshot{})
	require.Len(t, got, 1)
	assert.Contains(t, got[0], "Redmine_urls:")

	got = h.Handle(context.Background(), addressedMsg("help redmine_urls queries"), resolve.Snapshot{})
	require.Len(t, got, 1)
	assert.Contains(t, got[0], "'trackref: redmineinfo #93'")

	got = h.Handle(context.Background(), addressedMsg("help redmine_urls general"), resolve.Snapshot{})
	require.Len(t, got, 1)
	assert.Contains(t, got[0], "wiki:CamelCase")

	got = h.Handle(context.Background(), addressedMsg("help redmine_urls bogus"), resolve.Snapshot{})
	require.Len(t, got, 1)
	assert.Contains(t, got[0], "no help")

	assert.Nil(t, h.Handle(context.Background(), addressedMsg("help other_plugin"), resolve.Snapshot{}))
}

func TestAddressee(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"bob: hi", "bob"},
		{"bob, hi", "bob"},
		{"hi bob: there", "alice"},
		{"r10", "alice"},
		{"", "alice"},
	}
	for _, tt := range tests {
		msg := publicMsg(tt.text)
		if got := Addressee(msg); got != tt.want {
			t.Errorf("Addressee(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

// trackerServer serves a small Redmine-like site and returns a coordinator
// wired to it through a transport that dials the test server for any host.
func trackerServer(t *testing.T) *resolve.Coordinator {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/repositories/revision/puppet/10", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><div id="searchable"><p>Fix   the
		thing</p></div></body></html>`)
	})
	mux.HandleFunc("/issues/show/45", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><body><h2 class="summary">Broken thing</h2></body></html>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	addr := srv.Listener.Addr().String()
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		},
	}
	t.Cleanup(transport.CloseIdleConnections)

	return resolve.NewCoordinator(verify.NewVerifier(verify.NewFetcher(transport), nil), nil)
}

func trackerSnapshot() resolve.Snapshot {
	return resolve.Snapshot{
		ChannelMap: channelmap.Mapping{"#foo:http://tracker.test"},
		HTTP:       verify.HTTPConfig{},
		Rules:      verify.DefaultRules(),
	}
}

func TestHandleEndToEnd(t *testing.T) {
	h := NewHandler(trackerServer(t), "trackref", nil)
	ctx := context.Background()

	t.Run("passive success", func(t *testing.T) {
		got := h.Handle(ctx, publicMsg("look at r10 then #45"), trackerSnapshot())
		assert.Equal(t, []string{
			`alice: r10 is http://tracker.test/repositories/revision/puppet/10 "Fix the thing"`,
			`alice: #45 is http://tracker.test/issues/show/45 "Broken thing"`,
		}, got)
	})

	t.Run("passive 404 aborts message", func(t *testing.T) {
		got := h.Handle(ctx, publicMsg("look at r10 then #999"), trackerSnapshot())
		assert.Nil(t, got)
	})

	t.Run("query 404 explains", func(t *testing.T) {
		got := h.Handle(ctx, addressedMsg("redmineinfo #999"), trackerSnapshot())
		assert.Equal(t, []string{
			"alice: http://tracker.test/issues/show/999 returned 404 Not Found - I can't find a page for '#999'.  Sorry.",
		}, got)
	})

	t.Run("query without mapping", func(t *testing.T) {
		msg := addressedMsg("redmineinfo #45")
		msg.Channel = "#unmapped"
		got := h.Handle(ctx, msg, trackerSnapshot())
		assert.Equal(t, []string{"alice: I don't know about Redmine URLs for this channel"}, got)
	})

	t.Run("passive without mapping stays quiet", func(t *testing.T) {
		msg := publicMsg("#45")
		msg.Channel = "#unmapped"
		assert.Nil(t, h.Handle(ctx, msg, trackerSnapshot()))
	})
}
