// Package upload publishes per-target build artifacts to an object store and
// summarizes the run.
package upload

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	v1 "github.com/holon-run/buildbridge/pkg/api/v1"
	"github.com/holon-run/buildbridge/pkg/artifact"
	"github.com/holon-run/buildbridge/pkg/log"
	"github.com/holon-run/buildbridge/pkg/storage"
)

const (
	// KeyRoot is the first segment of every object key.
	KeyRoot = "builds"

	// IndexFile is the entry point of an uploaded web build.
	IndexFile = "index.html"

	// DefaultFileConcurrency bounds concurrent file uploads within one tree.
	DefaultFileConcurrency = 8

	timestampLayout = "2006-01-02T15:04:05.000Z"
)

// UploadRequest is the input of one aggregation.
type UploadRequest struct {
	RunID    string
	Branch   string
	Outcomes []v1.BuildOutcome
}

// Observer is notified after each target upload.
type Observer interface {
	ObserveUpload(target string, success bool)
}

// Aggregator uploads the artifacts of a run.
type Aggregator struct {
	store       storage.Store
	now         func() time.Time
	concurrency int
	observer    Observer
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock overrides the clock used for key timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

// WithFileConcurrency bounds concurrent file uploads within one tree.
func WithFileConcurrency(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithObserver sets the per-target upload observer.
func WithObserver(obs Observer) Option {
	return func(a *Aggregator) {
		a.observer = obs
	}
}

// NewAggregator creates an aggregator writing to store.
func NewAggregator(store storage.Store, opts ...Option) *Aggregator {
	a := &Aggregator{
		store:       store,
		now:         time.Now,
		concurrency: DefaultFileConcurrency,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Timestamp formats t as a key segment: UTC ISO 8601 with millisecond
// precision, ':' and '.' replaced by '-'.
func Timestamp(t time.Time) string {
	return strings.NewReplacer(":", "-", ".", "-").Replace(t.UTC().Format(timestampLayout))
}

// KeyPrefix returns builds/pr-<runID>/<branch>/<timestamp>[/<target>].
func KeyPrefix(runID, branch, timestamp, target string) string {
	p := path.Join(KeyRoot, "pr-"+runID, branch, timestamp)
	if target != "" {
		p += "/" + target
	}
	return p
}

// UploadAll uploads every successful outcome concurrently and returns one
// upload outcome per build outcome, in the same order, plus the summary.
// Failures never escape as errors.
func (a *Aggregator) UploadAll(ctx context.Context, req UploadRequest) ([]v1.UploadOutcome, v1.RunSummary) {
	results := make([]v1.UploadOutcome, len(req.Outcomes))

	var g errgroup.Group
	for i, outcome := range req.Outcomes {
		g.Go(func() error {
			results[i] = a.uploadOne(ctx, req, outcome)
			if a.observer != nil {
				a.observer.ObserveUpload(outcome.Target, results[i].Success)
			}
			return nil
		})
	}
	g.Wait()

	summary := v1.Summarize(results)
	log.Info(fmt.Sprintf("uploaded %d/%d builds", summary.Succeeded, summary.Total), "run_id", req.RunID)
	return results, summary
}

func (a *Aggregator) uploadOne(ctx context.Context, req UploadRequest, outcome v1.BuildOutcome) v1.UploadOutcome {
	if !outcome.Success {
		return v1.UploadOutcome{Target: outcome.Target, Success: false, Error: outcome.Error}
	}

	prefix := KeyPrefix(req.RunID, req.Branch, Timestamp(a.now()), outcome.Target)
	logger := log.With("target", outcome.Target, "run_id", req.RunID)

	var (
		res v1.UploadOutcome
		err error
	)
	if artifact.IsTree(outcome.Target) && isDir(outcome.ArtifactPath) {
		res, err = a.uploadTree(ctx, outcome.ArtifactPath, prefix)
	} else {
		res, err = a.uploadSingle(ctx, outcome.ArtifactPath, prefix)
	}
	if err != nil {
		logger.Error("upload failed", "path", outcome.ArtifactPath, "error", err)
		return v1.UploadOutcome{Target: outcome.Target, Success: false, Error: fmt.Sprintf("upload failed: %v", err)}
	}

	res.Target = outcome.Target
	res.Success = true
	logger.Info("uploaded artifact", "url", res.LinkURL())
	return res
}

// UploadFile uploads a single file outside any target, under
// builds/pr-<runID>/<branch>/<timestamp>/<file name>, and returns its URL.
func (a *Aggregator) UploadFile(ctx context.Context, runID, branch, filePath string) (string, error) {
	prefix := KeyPrefix(runID, branch, Timestamp(a.now()), "")
	res, err := a.uploadSingle(ctx, filePath, prefix)
	if err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	return res.DownloadURL, nil
}

func (a *Aggregator) uploadSingle(ctx context.Context, filePath, prefix string) (v1.UploadOutcome, error) {
	body, err := os.ReadFile(filePath)
	if err != nil {
		return v1.UploadOutcome{}, err
	}
	name := filepath.Base(filePath)
	key := prefix + "/" + name
	if err := a.store.Put(ctx, key, body, artifact.SingleFileContentType(name), ""); err != nil {
		return v1.UploadOutcome{}, err
	}
	return v1.UploadOutcome{DownloadURL: a.store.PublicURL(key)}, nil
}

func (a *Aggregator) uploadTree(ctx context.Context, root, prefix string) (v1.UploadOutcome, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return v1.UploadOutcome{}, err
	}
	if len(files) == 0 {
		return v1.UploadOutcome{}, fmt.Errorf("web build %s contains no files", root)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for _, file := range files {
		g.Go(func() error {
			rel, err := filepath.Rel(root, file)
			if err != nil {
				return err
			}
			rel = filepath.ToSlash(rel)
			body, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			contentType, encoding := artifact.ContentTypeFor(rel)
			return a.store.Put(gctx, prefix+"/"+rel, body, contentType, encoding)
		})
	}
	if err := g.Wait(); err != nil {
		return v1.UploadOutcome{}, err
	}

	if !isFile(filepath.Join(root, IndexFile)) {
		log.Warn("web build has no "+IndexFile+", no preview link", "path", root)
		return v1.UploadOutcome{DownloadURL: a.store.PublicURL(prefix + "/")}, nil
	}
	preview := a.store.PublicURL(prefix + "/" + IndexFile)
	return v1.UploadOutcome{DownloadURL: preview, PreviewURL: preview}, nil
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
