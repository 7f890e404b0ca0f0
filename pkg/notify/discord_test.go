package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	v1 "github.com/holon-run/buildbridge/pkg/api/v1"
)

var testPR = v1.PullRequest{
	Number:     7,
	Title:      "Add jump",
	HTMLURL:    "https://github.com/acme/game/pull/7",
	Branch:     "feature/jump",
	HeadSHA:    "6dcb09b5b57875f334f61aebed695e2e4193db5e",
	Repository: "acme/game",
	Author:     "octocat",
}

var testTime = time.Date(2024, 3, 9, 14, 5, 7, 123000000, time.UTC)

func field(t *testing.T, e Embed, name string) EmbedField {
	t.Helper()
	for _, f := range e.Fields {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("embed %q has no field %q", e.Title, name)
	return EmbedField{}
}

func hasField(e Embed, name string) bool {
	for _, f := range e.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

func TestBuildEmbed_Started(t *testing.T) {
	e := BuildEmbed(Event{Type: EventStarted, PR: testPR, Time: testTime})

	if e.Title != "🔨 Build Started" || e.Color != ColorStarted {
		t.Errorf("title/color = %q/%#x", e.Title, e.Color)
	}
	if e.Description != "Building PR #7: Add jump" {
		t.Errorf("Description = %q", e.Description)
	}
	if e.URL != testPR.HTMLURL {
		t.Errorf("URL = %q", e.URL)
	}
	if e.Timestamp != "2024-03-09T14:05:07.123Z" {
		t.Errorf("Timestamp = %q", e.Timestamp)
	}
	for name, want := range map[string]string{"Repository": "acme/game", "Branch": "feature/jump", "Author": "octocat"} {
		f := field(t, e, name)
		if f.Value != want || !f.Inline {
			t.Errorf("field %s = %+v, want inline %q", name, f, want)
		}
	}
}

func TestBuildEmbed_Success(t *testing.T) {
	tests := []struct {
		name         string
		results      []v1.UploadOutcome
		wantTitle    string
		wantColor    int
		wantSummary  string
		wantLinks    string
		wantFailures string
	}{
		{
			name: "all succeeded",
			results: []v1.UploadOutcome{
				{Target: "StandaloneWindows64", Success: true, DownloadURL: "https://pub/win.zip"},
				{Target: "WebGL", Success: true, DownloadURL: "https://pub/web/index.html", PreviewURL: "https://pub/web/index.html"},
			},
			wantTitle:   "✅ All Builds Successful",
			wantColor:   ColorSuccess,
			wantSummary: "✅ 2 success / ❌ 0 failed",
			wantLinks:   "🔗 [StandaloneWindows64](https://pub/win.zip)\n🔗 [WebGL](https://pub/web/index.html)",
		},
		{
			name: "partial",
			results: []v1.UploadOutcome{
				{Target: "StandaloneWindows64", Success: true, DownloadURL: "https://pub/win.zip"},
				{Target: "StandaloneOSX", Success: false, Error: strings.Repeat("e", 150)},
				{Target: "Android", Success: false},
			},
			wantTitle:    "⚠️ Partial Build Success",
			wantColor:    ColorPartial,
			wantSummary:  "✅ 1 success / ❌ 2 failed",
			wantLinks:    "🔗 [StandaloneWindows64](https://pub/win.zip)",
			wantFailures: "❌ StandaloneOSX: " + strings.Repeat("e", 100) + "\n❌ Android: Unknown error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := BuildEmbed(Event{Type: EventSuccess, PR: testPR, Results: tt.results, Time: testTime})
			if e.Title != tt.wantTitle || e.Color != tt.wantColor {
				t.Errorf("title/color = %q/%#x, want %q/%#x", e.Title, e.Color, tt.wantTitle, tt.wantColor)
			}
			if e.Description != "PR #7: Add jump" {
				t.Errorf("Description = %q", e.Description)
			}
			if e.URL != testPR.HTMLURL {
				t.Errorf("URL = %q, want %q", e.URL, testPR.HTMLURL)
			}
			if got := field(t, e, "Build Summary").Value; got != tt.wantSummary {
				t.Errorf("Build Summary = %q, want %q", got, tt.wantSummary)
			}
			dl := field(t, e, "📥 Downloads")
			if dl.Value != tt.wantLinks || dl.Inline {
				t.Errorf("Downloads = %+v, want %q", dl, tt.wantLinks)
			}
			if tt.wantFailures == "" {
				if hasField(e, "💥 Build Failures") {
					t.Error("unexpected failures field")
				}
				return
			}
			if got := field(t, e, "💥 Build Failures").Value; got != tt.wantFailures {
				t.Errorf("Build Failures = %q, want %q", got, tt.wantFailures)
			}
		})
	}
}

func TestBuildEmbed_SuccessWithNoSuccessfulTargetIsFailure(t *testing.T) {
	e := BuildEmbed(Event{Type: EventSuccess, PR: testPR, Time: testTime, Results: []v1.UploadOutcome{
		{Target: "StandaloneOSX", Success: false, Error: "build failed for StandaloneOSX with code 1"},
	}})

	if e.Title != "❌ Build Failed" || e.Color != ColorFailed {
		t.Errorf("title/color = %q/%#x", e.Title, e.Color)
	}
	if e.URL != testPR.HTMLURL {
		t.Errorf("URL = %q, want %q", e.URL, testPR.HTMLURL)
	}
	if got := field(t, e, "Error").Value; !strings.Contains(got, "StandaloneOSX") {
		t.Errorf("Error = %q", got)
	}
	if hasField(e, "📥 Downloads") {
		t.Error("failed embed should not list downloads")
	}
}

func TestBuildEmbed_Failed(t *testing.T) {
	tests := []struct {
		name string
		err  string
		want string
	}{
		{"message", "clone failed", "clone failed"},
		{"empty", "", "Unknown error"},
		{"long", strings.Repeat("x", 1200), strings.Repeat("x", 1000)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := BuildEmbed(Event{Type: EventFailed, PR: testPR, Error: tt.err, Time: testTime})
			if e.Title != "❌ Build Failed" {
				t.Errorf("Title = %q", e.Title)
			}
			if e.URL != testPR.HTMLURL {
				t.Errorf("URL = %q, want %q", e.URL, testPR.HTMLURL)
			}
			f := field(t, e, "Error")
			if f.Value != tt.want || f.Inline {
				t.Errorf("Error field = %q (inline %v)", f.Value, f.Inline)
			}
		})
	}
}

func TestDiscord_Notify(t *testing.T) {
	var got webhookPayload
	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	d := NewDiscord(server.URL)
	if err := d.Notify(context.Background(), Event{Type: EventStarted, PR: testPR, Time: testTime}); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
	if len(got.Embeds) != 1 || got.Embeds[0].Title != "🔨 Build Started" {
		t.Errorf("payload = %+v", got)
	}
}

func TestDiscord_NotifyErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid webhook", http.StatusNotFound)
	}))
	defer server.Close()

	err := NewDiscord(server.URL).Notify(context.Background(), Event{Type: EventFailed, PR: testPR})
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("Notify() error = %v, want 404 error", err)
	}
}

func TestDiscord_Disabled(t *testing.T) {
	d := NewDiscord("  ")
	if d.Enabled() {
		t.Fatal("expected disabled notifier")
	}
	if err := d.Notify(context.Background(), Event{Type: EventStarted, PR: testPR}); err != nil {
		t.Errorf("Notify() on disabled notifier error = %v", err)
	}
}
