package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/g960059/cliprelay/internal/api"
	"github.com/g960059/cliprelay/internal/appclient"
	"github.com/g960059/cliprelay/internal/config"
	"github.com/g960059/cliprelay/internal/daemon"
	"github.com/g960059/cliprelay/internal/mailbox"
)

func newRelay(t *testing.T, cfg config.Config) *httptest.Server {
	t.Helper()
	srv := daemon.NewServer(cfg, mailbox.New())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func newRunner(ts *httptest.Server, stdin string) (*Runner, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	client := appclient.NewWithClient(ts.URL, ts.Client())
	return NewRunnerWithClient(client, strings.NewReader(stdin), &out, &errOut), &out, &errOut
}

func TestPushFromStdinThenPull(t *testing.T) {
	ts := newRelay(t, config.DefaultConfig())
	r, out, errOut := newRunner(ts, "selected\nlines\n")

	if code := r.Run(context.Background(), []string{"push"}); code != 0 {
		t.Fatalf("push exit %d: %s", code, errOut.String())
	}
	if out.String() != "pushed 15 bytes\n" {
		t.Fatalf("unexpected push output %q", out.String())
	}

	out.Reset()
	if code := r.Run(context.Background(), []string{"pull"}); code != 0 {
		t.Fatalf("pull exit %d: %s", code, errOut.String())
	}
	if out.String() != "selected\nlines\n" {
		t.Fatalf("unexpected pull output %q", out.String())
	}

	out.Reset()
	if code := r.Run(context.Background(), []string{"pull", "-n"}); code != 0 {
		t.Fatalf("second pull exit %d", code)
	}
	if out.String() != "" {
		t.Fatalf("drained relay should print nothing, got %q", out.String())
	}
}

func TestPushFromArgs(t *testing.T) {
	ts := newRelay(t, config.DefaultConfig())
	r, out, _ := newRunner(ts, "ignored")
	if code := r.Run(context.Background(), []string{"push", "-quiet", "hello", "world"}); code != 0 {
		t.Fatalf("push exit %d", code)
	}
	if out.Len() != 0 {
		t.Fatalf("quiet push should print nothing, got %q", out.String())
	}
	if code := r.Run(context.Background(), []string{"pull", "-n"}); code != 0 {
		t.Fatalf("pull exit %d", code)
	}
	if out.String() != "hello world\n" {
		t.Fatalf("unexpected pull output %q", out.String())
	}
}

func TestHealthRequiresStrictPaths(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.StrictPaths = true
	ts := newRelay(t, cfg)
	r, out, errOut := newRunner(ts, "")

	if code := r.Run(context.Background(), []string{"health", "-json"}); code != 0 {
		t.Fatalf("health exit %d: %s", code, errOut.String())
	}
	var health api.HealthResponse
	if err := json.Unmarshal(out.Bytes(), &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Status != "ok" || health.InstanceID == "" {
		t.Fatalf("unexpected health %+v", health)
	}
}

func TestUsageErrors(t *testing.T) {
	ts := newRelay(t, config.DefaultConfig())
	cases := [][]string{
		{},
		{"bogus"},
		{"--addr"},
		{"push", "-unknown"},
	}
	for _, args := range cases {
		r, _, errOut := newRunner(ts, "")
		if code := r.Run(context.Background(), args); code != 2 {
			t.Fatalf("args %v: expected exit 2, got %d (%s)", args, code, errOut.String())
		}
	}
}

func TestRequestFailureExitsOne(t *testing.T) {
	ts := newRelay(t, config.DefaultConfig())
	r, _, errOut := newRunner(ts, "")
	if code := r.Run(context.Background(), []string{"health"}); code != 1 {
		t.Fatalf("expected exit 1 when health route is absent, got %d", code)
	}
	if !strings.Contains(errOut.String(), "error:") {
		t.Fatalf("expected error output, got %q", errOut.String())
	}
}

func TestReadStdinLimit(t *testing.T) {
	if _, err := readStdin(strings.NewReader("12345"), 4); err == nil {
		t.Fatalf("expected limit error")
	}
	got, err := readStdin(strings.NewReader("1234"), 4)
	if err != nil || got != "1234" {
		t.Fatalf("expected 1234, got %q %v", got, err)
	}
}

func TestPushTextMayContainAddrFlag(t *testing.T) {
	ts := newRelay(t, config.DefaultConfig())
	r, out, errOut := newRunner(ts, "")
	if code := r.Run(context.Background(), []string{"push", "-quiet", "use", "--addr", "flag"}); code != 0 {
		t.Fatalf("push exit %d: %s", code, errOut.String())
	}
	if code := r.Run(context.Background(), []string{"pull", "-n"}); code != 0 {
		t.Fatalf("pull exit %d: %s", code, errOut.String())
	}
	if out.String() != "use --addr flag\n" {
		t.Fatalf("unexpected pull output %q", out.String())
	}
}

func TestGlobalAddrBeforeCommand(t *testing.T) {
	ts := newRelay(t, config.DefaultConfig())
	r, out, errOut := newRunner(ts, "")
	addr := strings.TrimPrefix(ts.URL, "http://")
	if code := r.Run(context.Background(), []string{"--addr", addr, "push", "-quiet", "routed"}); code != 0 {
		t.Fatalf("push exit %d: %s", code, errOut.String())
	}
	if code := r.Run(context.Background(), []string{"--addr", addr, "pull", "-n"}); code != 0 {
		t.Fatalf("pull exit %d: %s", code, errOut.String())
	}
	if out.String() != "routed\n" {
		t.Fatalf("unexpected pull output %q", out.String())
	}
}
