// Package webhook receives GitHub pull request webhooks and turns qualifying
// events into build runs.
package webhook

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/go-github/v68/github"

	v1 "github.com/holon-run/buildbridge/pkg/api/v1"
	"github.com/holon-run/buildbridge/pkg/log"
)

const (
	HeaderSignature = "X-Hub-Signature-256"
	HeaderEvent     = "X-GitHub-Event"
	HeaderDelivery  = "X-GitHub-Delivery"

	// DeliveryTTL is how long a delivery id is remembered for redelivery checks.
	DeliveryTTL = time.Hour

	// GitHub caps webhook payloads at 25 MB.
	maxPayloadBytes = 25 << 20
)

// Trigger starts a run for a pull request. It is called on its own goroutine.
type Trigger interface {
	Trigger(ctx context.Context, pr v1.PullRequest)
}

// TriggerFunc adapts a function to Trigger.
type TriggerFunc func(ctx context.Context, pr v1.PullRequest)

func (f TriggerFunc) Trigger(ctx context.Context, pr v1.PullRequest) { f(ctx, pr) }

// Option configures a Handler.
type Option func(*Handler)

// WithClock sets the clock used for delivery expiry.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		h.now = now
	}
}

// WithBaseContext sets the context runs are started with. Cancelling it
// signals running builds to stop.
func WithBaseContext(ctx context.Context) Option {
	return func(h *Handler) {
		h.baseCtx = ctx
	}
}

// Handler serves the webhook endpoint.
type Handler struct {
	secret  []byte
	trigger Trigger
	now     func() time.Time
	baseCtx context.Context

	mu         sync.Mutex
	deliveries map[string]time.Time

	wg sync.WaitGroup
}

// NewHandler returns a handler verifying payloads with secret.
func NewHandler(secret string, trigger Trigger, opts ...Option) (*Handler, error) {
	if secret == "" {
		return nil, fmt.Errorf("webhook secret is required")
	}
	if trigger == nil {
		return nil, fmt.Errorf("webhook trigger is required")
	}
	h := &Handler{
		secret:     []byte(secret),
		trigger:    trigger,
		now:        time.Now,
		baseCtx:    context.Background(),
		deliveries: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	body := http.MaxBytesReader(w, r.Body, maxPayloadBytes)
	payload, err := github.ValidatePayloadFromBody(r.Header.Get("Content-Type"), body, r.Header.Get(HeaderSignature), h.secret)
	if err != nil {
		log.Warn("rejected webhook", "error", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	eventType := r.Header.Get(HeaderEvent)
	delivery := r.Header.Get(HeaderDelivery)
	if eventType != "pull_request" {
		log.Debug("ignoring webhook event", "event", eventType, "delivery", delivery)
		writeText(w, "OK")
		return
	}

	event, err := github.ParseWebHook(eventType, payload)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	prEvent, ok := event.(*github.PullRequestEvent)
	if !ok || !Qualifies(prEvent.GetAction()) {
		writeText(w, "OK")
		return
	}

	if delivery != "" && h.seen(delivery) {
		log.Info("ignoring redelivered webhook", "delivery", delivery)
		writeText(w, "OK")
		return
	}

	pr := PullRequestFromEvent(prEvent)
	log.Info("processing pull request", "pr", pr.Number, "title", pr.Title, "action", prEvent.GetAction(), "delivery", delivery)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.trigger.Trigger(h.baseCtx, pr)
	}()
	writeText(w, "Processing build")
}

// Wait blocks until every triggered run has returned.
func (h *Handler) Wait() {
	h.wg.Wait()
}

// seen records id and reports whether it was already recorded within DeliveryTTL.
func (h *Handler) seen(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	for k, at := range h.deliveries {
		if now.Sub(at) >= DeliveryTTL {
			delete(h.deliveries, k)
		}
	}
	if _, ok := h.deliveries[id]; ok {
		return true
	}
	h.deliveries[id] = now
	return false
}

// Qualifies reports whether a pull_request action starts a build.
func Qualifies(action string) bool {
	return action == "opened" || action == "synchronize"
}

// PullRequestFromEvent extracts the run metadata from a pull_request event.
func PullRequestFromEvent(ev *github.PullRequestEvent) v1.PullRequest {
	pr := ev.GetPullRequest()
	head := pr.GetHead()
	repository := ev.GetRepo().GetFullName()
	if repository == "" {
		repository = pr.GetBase().GetRepo().GetFullName()
	}
	return v1.PullRequest{
		Number:     pr.GetNumber(),
		Title:      pr.GetTitle(),
		HTMLURL:    pr.GetHTMLURL(),
		Branch:     head.GetRef(),
		HeadSHA:    head.GetSHA(),
		CloneURL:   head.GetRepo().GetCloneURL(),
		Repository: repository,
		Author:     pr.GetUser().GetLogin(),
	}
}

func writeText(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(msg))
}
