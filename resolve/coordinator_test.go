package resolve

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/trackref/channelmap"
	"github.com/c360studio/trackref/reference"
	"github.com/c360studio/trackref/verify"
)

type verifyCall struct {
	target string
	kind   reference.Kind
}

// stubVerifier answers from a fixed table keyed by URL; unknown URLs verify
// without a title.
type stubVerifier struct {
	results map[string]verify.Result
	calls   []verifyCall
}

func (s *stubVerifier) Verify(_ context.Context, target string, kind reference.Kind, _ verify.HTTPConfig, _ verify.Rules) verify.Result {
	s.calls = append(s.calls, verifyCall{target: target, kind: kind})
	if res, ok := s.results[target]; ok {
		return res
	}
	return verify.Result{}
}

func testSnapshot() Snapshot {
	return Snapshot{
		ChannelMap: channelmap.Mapping{"#foo:http://tracker"},
		Rules:      verify.DefaultRules(),
	}
}

func TestResolveAndVerifySuccess(t *testing.T) {
	stub := &stubVerifier{results: map[string]verify.Result{
		"http://tracker/issues/show/45": {Title: "Broken thing", HasTitle: true},
	}}
	c := NewCoordinator(stub, nil)

	out := c.ResolveAndVerify(context.Background(), "#45", "#foo", testSnapshot())

	require.True(t, out.OK())
	assert.Equal(t, "#45", out.Ref)
	assert.Equal(t, reference.KindTicket, out.Kind)
	assert.Equal(t, "http://tracker/issues/show/45", out.URL)
	assert.Equal(t, "Broken thing", out.Title)
	assert.True(t, out.HasTitle)
	assert.Empty(t, out.Message)
	assert.Equal(t, []verifyCall{{"http://tracker/issues/show/45", reference.KindTicket}}, stub.calls)
}

func TestResolveAndVerifyWikiWithoutTitle(t *testing.T) {
	stub := &stubVerifier{}
	c := NewCoordinator(stub, nil)

	out := c.ResolveAndVerify(context.Background(), "wiki:FooBar", "#foo", testSnapshot())

	require.True(t, out.OK())
	assert.Equal(t, "http://tracker/wiki/FooBar", out.URL)
	assert.False(t, out.HasTitle)
}

func TestResolveAndVerifyChannelNotConfigured(t *testing.T) {
	stub := &stubVerifier{}
	c := NewCoordinator(stub, nil)

	out := c.ResolveAndVerify(context.Background(), "#45", "#bar", testSnapshot())

	assert.False(t, out.OK())
	assert.ErrorIs(t, out.Err, ErrChannelNotConfigured)
	assert.Equal(t, ClassChannelNotConfigured, Classify(out.Err))
	assert.Equal(t, "I don't know about Redmine URLs for this channel", out.Message)
	assert.Empty(t, out.URL)
	assert.Empty(t, stub.calls)
}

func TestResolveAndVerifyUnrecognized(t *testing.T) {
	stub := &stubVerifier{}
	c := NewCoordinator(stub, nil)

	out := c.ResolveAndVerify(context.Background(), "zzz", "#foo", testSnapshot())

	assert.ErrorIs(t, out.Err, reference.ErrUnrecognizedSyntax)
	assert.Equal(t, ClassUnrecognizedSyntax, Classify(out.Err))
	assert.Equal(t, "I'm afraid I don't understand 'zzz' or I can't find a page for it.  Sorry.", out.Message)
	assert.Empty(t, stub.calls)
}

func TestResolveAndVerifyFailureMessages(t *testing.T) {
	const target = "http://tracker/issues/show/999"

	tests := []struct {
		name      string
		err       error
		wantClass ErrorClass
		want      string
	}{
		{
			name:      "remote status",
			err:       &verify.StatusError{URL: target, Code: 404, Status: "Not Found"},
			wantClass: ClassRemoteStatus,
			want:      "http://tracker/issues/show/999 returned 404 Not Found - I can't find a page for '#999'.  Sorry.",
		},
		{
			name:      "fetch error",
			err:       &verify.FetchError{URL: target, Cause: errors.New("dial tcp: something internal")},
			wantClass: ClassFetchError,
			want:      "http://tracker/issues/show/999 could not be reached - An error occurred while I was trying to look up the URL.  Sorry.",
		},
		{
			name:      "parse error",
			err:       &verify.ParseError{URL: target, Cause: verify.ErrContentTooLarge},
			wantClass: ClassParseError,
			want:      "http://tracker/issues/show/999 could not be read - An error occurred while I was trying to look up the URL.  Sorry.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubVerifier{results: map[string]verify.Result{target: {Err: tt.err}}}
			c := NewCoordinator(stub, nil)

			out := c.ResolveAndVerify(context.Background(), "#999", "#foo", testSnapshot())

			assert.False(t, out.OK())
			assert.Equal(t, tt.wantClass, Classify(out.Err))
			assert.Equal(t, tt.want, out.Message)
			assert.NotContains(t, out.Message, "internal")
		})
	}
}

func TestResolveAndVerifyRevisionProject(t *testing.T) {
	stub := &stubVerifier{}
	c := NewCoordinator(stub, nil)

	snap := testSnapshot()
	snap.ChannelMap = append(snap.ChannelMap, "#facter:http://tracker")
	snap.RevisionProjects = map[string]string{"#facter": "facter"}

	out := c.ResolveAndVerify(context.Background(), "r10", "#foo", snap)
	assert.Equal(t, "http://tracker/repositories/revision/puppet/10", out.URL)

	out = c.ResolveAndVerify(context.Background(), "r10", "#facter", snap)
	assert.Equal(t, "http://tracker/repositories/revision/facter/10", out.URL)

	snap.RevisionProject = "core"
	out = c.ResolveAndVerify(context.Background(), "[11]", "#foo", snap)
	assert.Equal(t, "http://tracker/repositories/revision/core/11", out.URL)
}

// The coordinator against a real verifier: a 404 ends up as a message with
// the URL and status code.
func TestResolveAndVerifyRemote404(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	snap := testSnapshot()
	snap.ChannelMap = channelmap.Mapping{"#foo:" + srv.URL}
	snap.HTTP.UseHTTPS = false

	// Keep the test server's port instead of the forced port 80.
	transport := &http.Transport{DialContext: (&dialToServer{addr: srv.Listener.Addr().String()}).dial}
	c := NewCoordinator(verify.NewVerifier(verify.NewFetcher(transport), nil), nil)

	out := c.ResolveAndVerify(context.Background(), "#45", "#foo", snap)

	require.False(t, out.OK())
	assert.Equal(t, ClassRemoteStatus, Classify(out.Err))
	assert.Contains(t, out.Message, srv.URL+"/issues/show/45")
	assert.Contains(t, out.Message, "404")
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ClassOK, Classify(nil))
	assert.Equal(t, ClassUnknown, Classify(errors.New("other")))
}

func TestProjectFor(t *testing.T) {
	var snap Snapshot
	assert.Equal(t, DefaultRevisionProject, snap.ProjectFor("#any"))

	snap.RevisionProjects = map[string]string{"#empty": ""}
	assert.Equal(t, DefaultRevisionProject, snap.ProjectFor("#empty"))
}
