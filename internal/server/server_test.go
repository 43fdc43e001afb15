package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fireq/internal/buildctx"
	"fireq/internal/config"
	"fireq/internal/security"
	"fireq/internal/storage"
)

const (
	testSecret = "hook-secret"
	testSHA    = "0123456789abcdef0123456789abcdef01234567"
)

type fakeRunner struct {
	started chan buildctx.Context
}

func (r *fakeRunner) Build(_ context.Context, bc buildctx.Context) int {
	r.started <- bc
	return 0
}

func newTestServer(t *testing.T) (*Server, *httptest.Server, *fakeRunner, *storage.LogStorage) {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{Secret: testSecret, Domain: "ci.test", Root: root}
	cfg.ApplyDefaults()
	ls := storage.NewLogStorage(root)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	runner := &fakeRunner{started: make(chan buildctx.Context, 1)}
	s := New(cfg, buildctx.NewBuilder(cfg, ls, logger), runner, ls, logger)
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(ts.Close)
	return s, ts, runner, ls
}

func pushPayload(ref string) []byte {
	return []byte(`{
		"ref": "` + ref + `",
		"after": "` + testSHA + `",
		"repository": {
			"full_name": "superdesk/superdesk",
			"clone_url": "https://github.com/superdesk/superdesk.git",
			"statuses_url": "https://api.github.com/repos/superdesk/superdesk/statuses/{sha}"
		}
	}`)
}

func deliver(t *testing.T, url, event string, body []byte, signature string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url+"/", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set(buildctx.EventHeader, event)
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(security.SignatureHeader, signature)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHookAcceptsSignedPush(t *testing.T) {
	s, ts, runner, ls := newTestServer(t)
	body := pushPayload("refs/heads/feature/X")

	resp := deliver(t, ts.URL, buildctx.EventPush, body, security.Sign(body, []byte(testSecret)))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var reply string
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil || reply != "OK" {
		t.Errorf("reply = %q, %v", reply, err)
	}

	var bc buildctx.Context
	select {
	case bc = <-runner.started:
	case <-time.After(5 * time.Second):
		t.Fatal("build was not started")
	}
	s.Wait()

	if bc.Name != "sd-featurex" || !bc.Clean {
		t.Errorf("context = %+v", bc)
	}

	data, err := os.ReadFile(ls.Path(bc.Path, RequestFile))
	if err != nil {
		t.Fatalf("request.json: %v", err)
	}
	var saved []json.RawMessage
	if err := json.Unmarshal(data, &saved); err != nil || len(saved) != 2 {
		t.Fatalf("request.json = %s", data)
	}
	if strings.Contains(string(saved[0]), security.SignatureHeader) {
		t.Error("signature header was persisted")
	}
	if !strings.Contains(string(saved[0]), `"X-Github-Event": "push"`) {
		t.Errorf("headers = %s", saved[0])
	}
	if !strings.Contains(string(saved[1]), `"after": "`+testSHA+`"`) {
		t.Errorf("body = %s", saved[1])
	}
}

func TestHookRejectsBadSignature(t *testing.T) {
	_, ts, runner, _ := newTestServer(t)
	body := pushPayload("refs/heads/master")

	for name, sig := range map[string]string{
		"missing":   "",
		"wrong":     security.Sign(body, []byte("other")),
		"malformed": "sha1=zz",
		"no prefix": strings.TrimPrefix(security.Sign(body, []byte(testSecret)), security.SignaturePrefix),
	} {
		t.Run(name, func(t *testing.T) {
			resp := deliver(t, ts.URL, buildctx.EventPush, body, sig)
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", resp.StatusCode)
			}
		})
	}
	select {
	case bc := <-runner.started:
		t.Errorf("build started for rejected request: %+v", bc)
	default:
	}
}

func TestHookIgnoredEvents(t *testing.T) {
	_, ts, runner, _ := newTestServer(t)

	ping := []byte(`{"zen": "Keep it simple."}`)
	resp := deliver(t, ts.URL, "ping", ping, security.Sign(ping, []byte(testSecret)))
	if resp.StatusCode != http.StatusOK {
		t.Errorf("ping status = %d", resp.StatusCode)
	}

	deleted := bytes.Replace(pushPayload("refs/heads/gone"), []byte(testSHA), []byte(strings.Repeat("0", 40)), 1)
	resp = deliver(t, ts.URL, buildctx.EventPush, deleted, security.Sign(deleted, []byte(testSecret)))
	if resp.StatusCode != http.StatusOK {
		t.Errorf("branch delete status = %d", resp.StatusCode)
	}

	select {
	case bc := <-runner.started:
		t.Errorf("build started for ignored event: %+v", bc)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHookMalformedBody(t *testing.T) {
	_, ts, _, _ := newTestServer(t)
	body := []byte(`{"ref": 42`)
	resp := deliver(t, ts.URL, buildctx.EventPush, body, security.Sign(body, []byte(testSecret)))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestPushServesLogs(t *testing.T) {
	_, ts, _, ls := newTestServer(t)
	if _, err := ls.Save("push/sd-a/0123456789/20260101-000000", "build.log", []byte("+ ./fire i\n")); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(ts.URL + "/push/sd-a/0123456789/20260101-000000/build.log")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(data) != "+ ./fire i\n" {
		t.Errorf("GET log = %d %q", resp.StatusCode, data)
	}

	resp, err = http.Get(ts.URL + "/push/sd-a/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ = io.ReadAll(resp.Body)
	if !strings.Contains(string(data), "0123456789/") {
		t.Errorf("directory listing = %s", data)
	}

	if _, err := os.Stat(filepath.Join(ls.BaseDir, "push")); err != nil {
		t.Fatal(err)
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s, _, _, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, "127.0.0.1:0") }()

	select {
	case <-s.Ready():
	case err := <-done:
		t.Fatalf("Serve: %v", err)
	}
	resp, err := http.Get("http://" + s.Addr().String() + "/push/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not stop")
	}
}
