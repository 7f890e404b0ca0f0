package github

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/dnaeon/go-vcr.v2/cassette"
	"gopkg.in/dnaeon/go-vcr.v2/recorder"
)

// recordEnv switches cassette tests to recording against the real API.
const recordEnv = "BUILDBRIDGE_RECORD_CASSETTES"

// cassetteClient returns a client whose requests are served from
// testdata/fixtures/<name>.yaml. With recordEnv=1 and GITHUB_TOKEN set, the
// cassette is re-recorded instead, without the Authorization header.
func cassetteClient(t *testing.T, name string) *Client {
	t.Helper()

	mode := recorder.ModeReplaying
	token := "test-token"
	if os.Getenv(recordEnv) == "1" {
		mode = recorder.ModeRecording
		token = os.Getenv("GITHUB_TOKEN")
		if token == "" {
			t.Fatalf("GITHUB_TOKEN must be set when %s=1", recordEnv)
		}
	}

	rec, err := recorder.NewAsMode(filepath.Join("testdata", "fixtures", name), mode, nil)
	if errors.Is(err, cassette.ErrCassetteNotFound) {
		t.Skipf("cassette %s missing; record it with %s=1", name, recordEnv)
	}
	if err != nil {
		t.Fatalf("failed to open cassette %s: %v", name, err)
	}
	rec.AddSaveFilter(func(i *cassette.Interaction) error {
		delete(i.Request.Headers, "Authorization")
		return nil
	})
	t.Cleanup(func() {
		if err := rec.Stop(); err != nil {
			t.Errorf("failed to save cassette %s: %v", name, err)
		}
	})

	return NewClient(token, WithTimeout(10*time.Second), WithHTTPClient(&http.Client{Transport: rec}))
}
