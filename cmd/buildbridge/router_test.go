package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	v1 "github.com/holon-run/buildbridge/pkg/api/v1"
	"github.com/holon-run/buildbridge/pkg/metrics"
	"github.com/holon-run/buildbridge/pkg/status"
	"github.com/holon-run/buildbridge/pkg/storage"
)

func newTestRouter(t *testing.T, withDir bool) (*httptest.Server, *app, *int) {
	t.Helper()
	a := &app{metrics: metrics.New(), status: status.NewMemoryStore()}
	if withDir {
		ds, err := storage.NewDirStore(t.TempDir(), "http://cdn.test")
		if err != nil {
			t.Fatalf("NewDirStore() error = %v", err)
		}
		a.store = ds
	}

	hookCalls := 0
	hook := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hookCalls++
		_, _ = w.Write([]byte("Processing build"))
	})

	srv := httptest.NewServer(newRouter(a, hook))
	t.Cleanup(srv.Close)
	return srv, a, &hookCalls
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestRouter_Endpoints(t *testing.T) {
	srv, _, _ := newTestRouter(t, false)

	tests := []struct {
		name     string
		path     string
		wantCode int
		contains string
	}{
		{name: "health", path: "/healthz", wantCode: http.StatusOK, contains: "ok"},
		{name: "metrics", path: "/metrics", wantCode: http.StatusOK, contains: "buildbridge_running_runs"},
		{name: "unknown run", path: "/runs/404", wantCode: http.StatusNotFound, contains: "run not found"},
		{name: "empty logs", path: "/runs/404/logs", wantCode: http.StatusOK, contains: `"lines": []`},
		{name: "artifacts without local store", path: "/artifacts/x.zip", wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := get(t, srv.URL+tt.path)
			if code != tt.wantCode {
				t.Errorf("status = %d, want %d (body %q)", code, tt.wantCode, body)
			}
			if tt.contains != "" && !strings.Contains(body, tt.contains) {
				t.Errorf("body = %q, want it to contain %q", body, tt.contains)
			}
		})
	}
}

func TestRouter_Run(t *testing.T) {
	srv, a, _ := newTestRouter(t, false)
	ctx := context.Background()

	rec := v1.RunRecord{
		RunID:   "42",
		PR:      v1.PullRequest{Number: 42, Branch: "feature"},
		Phase:   v1.PhaseCompleted,
		Targets: []string{"WebGL"},
	}
	if err := a.status.Save(ctx, rec); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := a.status.AppendLog(ctx, "42", "phase: building"); err != nil {
		t.Fatalf("AppendLog() error = %v", err)
	}

	code, body := get(t, srv.URL+"/runs/42")
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	var got v1.RunRecord
	if err := json.Unmarshal([]byte(body), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", body, err)
	}
	if got.RunID != "42" || got.Phase != v1.PhaseCompleted || got.PR.Branch != "feature" {
		t.Errorf("record = %+v", got)
	}

	code, body = get(t, srv.URL+"/runs/42/logs")
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	var logs struct {
		Lines []string `json:"lines"`
	}
	if err := json.Unmarshal([]byte(body), &logs); err != nil {
		t.Fatalf("invalid JSON %q: %v", body, err)
	}
	if len(logs.Lines) != 1 || logs.Lines[0] != "phase: building" {
		t.Errorf("lines = %v", logs.Lines)
	}
}

func TestRouter_Webhook(t *testing.T) {
	srv, _, calls := newTestRouter(t, false)

	resp, err := http.Post(srv.URL+"/webhook", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("POST /webhook: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if *calls != 1 {
		t.Errorf("hook calls = %d, want 1", *calls)
	}

	code, _ := get(t, srv.URL+"/webhook")
	if code != http.StatusMethodNotAllowed {
		t.Errorf("GET /webhook status = %d, want 405", code)
	}
	if *calls != 1 {
		t.Errorf("hook calls = %d after GET, want 1", *calls)
	}
}

func TestRouter_Artifacts(t *testing.T) {
	srv, a, _ := newTestRouter(t, true)
	ds := a.store.(*storage.DirStore)

	path := filepath.Join(ds.Root(), "builds", "pr-1", "main", "WebGL", "index.html")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("<html>game</html>"), 0o644); err != nil {
		t.Fatal(err)
	}

	code, body := get(t, srv.URL+"/artifacts/builds/pr-1/main/WebGL/index.html")
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if body != "<html>game</html>" {
		t.Errorf("body = %q", body)
	}

	code, _ = get(t, srv.URL+"/artifacts/builds/pr-1/missing.zip")
	if code != http.StatusNotFound {
		t.Errorf("missing artifact status = %d, want 404", code)
	}
}
