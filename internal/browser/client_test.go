package browser

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner returns queued stdout per command verb and records calls.
type fakeRunner struct {
	calls     [][]string
	responses map[string][][]byte
	errs      map[string]error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{responses: map[string][][]byte{}, errs: map[string]error{}}
}

func (f *fakeRunner) Run(_ context.Context, args ...string) ([]byte, error) {
	f.calls = append(f.calls, args)
	verb := args[0]
	if verb == "--session" {
		verb = args[2]
	}
	if err := f.errs[verb]; err != nil {
		return nil, err
	}
	q := f.responses[verb]
	if len(q) == 0 {
		return nil, nil
	}
	out := q[0]
	if len(q) > 1 {
		f.responses[verb] = q[1:]
	}
	return out, nil
}

func (f *fakeRunner) queueSnapshot(t *testing.T, refs map[string][2]string, text string) {
	t.Helper()
	type ref struct {
		Name string `json:"name"`
		Role string `json:"role"`
	}
	data := map[string]any{
		"success": true,
		"data": map[string]any{
			"refs":     map[string]ref{},
			"snapshot": text,
		},
	}
	m := data["data"].(map[string]any)["refs"].(map[string]ref)
	for id, rn := range refs {
		m[id] = ref{Role: rn[0], Name: rn[1]}
	}
	b, err := json.Marshal(data)
	require.NoError(t, err)
	f.responses["snapshot"] = append(f.responses["snapshot"], b)
}

func (f *fakeRunner) verbs() []string {
	var out []string
	for _, c := range f.calls {
		args := c
		if args[0] == "--session" {
			args = args[2:]
		}
		out = append(out, strings.Join(args, " "))
	}
	return out
}

func openClient(t *testing.T, r *fakeRunner) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Session = ""
	cfg.PollInterval = time.Millisecond
	cfg.TourBackoff = time.Millisecond
	c := New(r, cfg, nil)
	require.NoError(t, c.Open(context.Background(), "https://example.test/login", false))
	return c
}

func TestCommandsRequireOpen(t *testing.T) {
	c := New(newFakeRunner(), DefaultConfig(), nil)
	ctx := context.Background()

	_, err := c.Snapshot(ctx, true)
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.ErrorIs(t, c.Click(ctx, "e1"), ErrNotOpen)
	assert.ErrorIs(t, c.Back(ctx), ErrNotOpen)
	assert.True(t, IsFatal(c.Press(ctx, "Escape")))
}

func TestSessionFlagAndRefPrefix(t *testing.T) {
	r := newFakeRunner()
	c := New(r, DefaultConfig(), nil)
	ctx := context.Background()

	require.NoError(t, c.Open(ctx, "https://example.test", true))
	require.NoError(t, c.Click(ctx, "e4"))
	require.NoError(t, c.Fill(ctx, "@e5", "bob"))

	assert.Equal(t, []string{"--session", "rostersync", "open", "https://example.test", "--headed"}, r.calls[0])
	assert.Equal(t, []string{"--session", "rostersync", "click", "@e4"}, r.calls[1])
	assert.Equal(t, []string{"--session", "rostersync", "fill", "@e5", "bob"}, r.calls[2])
}

func TestCloseMarksClosed(t *testing.T) {
	r := newFakeRunner()
	c := openClient(t, r)
	require.NoError(t, c.Close(context.Background()))
	assert.False(t, c.IsOpen())
	assert.ErrorIs(t, c.Back(context.Background()), ErrNotOpen)
}

func TestParseSnapshot(t *testing.T) {
	snap, err := ParseSnapshot([]byte(`{"success":true,"data":{"refs":{"e10":{"name":"Next Page","role":"listitem"},"e2":{"name":"Roster","role":"link"}},"snapshot":"- link \"Roster\" [ref=e2]"},"error":null}`))
	require.NoError(t, err)

	ordered := snap.Ordered()
	require.Len(t, ordered, 2)
	assert.Equal(t, "e2", ordered[0].ID)
	assert.Equal(t, "e10", ordered[1].ID)

	ref, ok := snap.Find("link", " roster ")
	require.True(t, ok)
	assert.Equal(t, "e2", ref.ID)

	_, err = ParseSnapshot([]byte(`{"success":false,"error":"page crashed"}`))
	assert.ErrorIs(t, err, ErrSnapshotFailed)
	assert.Contains(t, err.Error(), "page crashed")

	_, err = ParseSnapshot([]byte(`not json`))
	assert.ErrorIs(t, err, ErrSnapshotFailed)
}

func TestWaitForTimesOut(t *testing.T) {
	r := newFakeRunner()
	r.queueSnapshot(t, map[string][2]string{"e1": {"textbox", "Username"}}, "")
	c := openClient(t, r)

	_, err := c.WaitFor(context.Background(), func(*Snapshot) bool { return false },
		WaitOptions{Timeout: 5 * time.Millisecond, PollInterval: time.Millisecond})
	assert.ErrorIs(t, err, ErrTimeout)
	assert.True(t, IsRetryable(err))
}

func TestWaitForLogin(t *testing.T) {
	r := newFakeRunner()
	r.queueSnapshot(t, map[string][2]string{"e1": {"textbox", "Username"}, "e2": {"button", "Log In"}}, "")
	r.queueSnapshot(t, map[string][2]string{"e1": {"link", "Roster"}, "e2": {"link", "Sign Out"}}, "")
	c := openClient(t, r)

	require.NoError(t, c.WaitForLogin(context.Background(), time.Second))
	assert.Len(t, r.responses["snapshot"], 1)
}

func TestLoggedInIgnoresMarkersBesideLoginForm(t *testing.T) {
	c := New(newFakeRunner(), DefaultConfig(), nil)
	snap := &Snapshot{Refs: map[string]Ref{
		"e1": {ID: "e1", Role: "textbox", Name: "Password"},
		"e2": {ID: "e2", Role: "link", Name: "Roster"},
	}}
	assert.False(t, c.LoggedIn(snap))
}

func TestWaitForPropagatesSnapshotError(t *testing.T) {
	r := newFakeRunner()
	boom := &CommandError{Command: "snapshot", Err: errors.New("exit status 1")}
	r.errs["snapshot"] = boom
	c := openClient(t, r)

	_, err := c.WaitFor(context.Background(), func(*Snapshot) bool { return true }, WaitOptions{Timeout: time.Second})
	assert.ErrorIs(t, err, ErrCommandFailed)
}

func TestDismissTourModal(t *testing.T) {
	tests := []struct {
		name      string
		refs      map[string][2]string
		text      string
		want      bool
		wantVerbs string
	}{
		{
			name:      "exact skip button",
			refs:      map[string][2]string{"e3": {"button", "Skip"}},
			want:      true,
			wantVerbs: "click @e3",
		},
		{
			name:      "skip found in text",
			refs:      map[string][2]string{"e7": {"button", "Skip the tour"}},
			text:      "- dialog\n  - button \"Skip the tour\" [ref=e7]",
			want:      true,
			wantVerbs: "click @e7",
		},
		{
			name:      "escape on dialog",
			refs:      map[string][2]string{"e1": {"dialog", "Welcome"}},
			want:      true,
			wantVerbs: "press Escape",
		},
		{
			name: "nothing to dismiss",
			refs: map[string][2]string{"e1": {"link", "Roster"}},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newFakeRunner()
			r.queueSnapshot(t, tt.refs, tt.text)
			c := openClient(t, r)

			got := c.DismissTourModal(context.Background())
			assert.Equal(t, tt.want, got)

			verbs := r.verbs()
			if tt.wantVerbs != "" {
				assert.Equal(t, tt.wantVerbs, verbs[len(verbs)-1])
			} else {
				// open + one snapshot per attempt
				assert.Len(t, verbs, 1+DefaultConfig().TourAttempts)
			}
		})
	}
}

func TestDismissTourModalNeverErrors(t *testing.T) {
	r := newFakeRunner()
	r.errs["snapshot"] = errors.New("boom")
	c := openClient(t, r)
	assert.False(t, c.DismissTourModal(context.Background()))
}

func TestNavigateToRoster(t *testing.T) {
	tests := []struct {
		name      string
		refs      map[string][2]string
		want      string
		wantVerbs string
	}{
		{"link", map[string][2]string{"e9": {"menuitem", "Roster"}, "e4": {"link", "Roster"}}, "link", "click @e4"},
		{"menuitem", map[string][2]string{"e9": {"menuitem", "Roster"}}, "menuitem", "click @e9"},
		{"tab", map[string][2]string{"e2": {"tab", "Roster"}}, "tab", "click @e2"},
		{"any", map[string][2]string{"e5": {"button", "Roster"}}, "any", "click @e5"},
		{"url fallback", map[string][2]string{"e1": {"link", "Home"}}, "url", "open https://example.test/roster"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newFakeRunner()
			r.queueSnapshot(t, tt.refs, "")
			c := openClient(t, r)

			got, err := c.NavigateToRoster(context.Background(), "https://example.test/roster")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			verbs := r.verbs()
			assert.Equal(t, tt.wantVerbs, verbs[len(verbs)-1])
		})
	}
}

func TestNavigateToRosterWithoutFallback(t *testing.T) {
	r := newFakeRunner()
	r.queueSnapshot(t, map[string][2]string{"e1": {"link", "Home"}}, "")
	c := openClient(t, r)

	_, err := c.NavigateToRoster(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoRosterControl)
}

type closeRecorder struct {
	closed bool
}

func (c *closeRecorder) Close(ctx context.Context) error {
	c.closed = true
	return ctx.Err()
}

func TestWithSessionClosesAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rec := &closeRecorder{}

	err := WithSession(ctx, rec, nil, func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, rec.closed)
}

func TestCommandErrorUnwrap(t *testing.T) {
	inner := errors.New("exit status 2")
	err := &CommandError{Command: "agent-browser click @e1", Stderr: "no such ref", Err: inner}

	assert.ErrorIs(t, err, ErrCommandFailed)
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "no such ref")
	assert.Equal(t, 12, RefNumber("e12"))
	assert.Equal(t, -1, RefNumber("body"))
}
