// Package status reports task progress to the GitHub commit status API.
//
// Every task posts one pending record before it runs and one terminal
// record after, under the same status context. Posting is best effort: an
// unreachable or failing endpoint is logged and never changes the outcome
// of the build
package status

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"fireq/internal/audit"
	"fireq/internal/buildctx"
	"fireq/internal/config"
	"fireq/internal/storage"
)

// State is a GitHub commit status state
type State string

const (
	Pending State = "pending"
	Success State = "success"
	Failure State = "failure"
)

// StateFor maps an exit code to a terminal state
func StateFor(code int) State {
	if code == 0 {
		return Success
	}
	return Failure
}

// Lane identifies one task's status stream
type Lane struct {
	// Name is the status context without the configured prefix, e.g.
	// "deploy/check-flake8"
	Name string
	// LogFile is the task's log, used for the default target URL
	LogFile string
	// TargetURL replaces the log link when set
	TargetURL string
}

// Record is the body posted to the statuses endpoint
type Record struct {
	State       State  `json:"state"`
	TargetURL   string `json:"target_url"`
	Description string `json:"description"`
	Context     string `json:"context"`
}

// Reporter posts status records and keeps a copy of every response
type Reporter struct {
	client      *http.Client
	auth        string
	prefix      string
	description string
	storage     *storage.LogStorage
	journal     *audit.Journals
	logger      *slog.Logger
}

// NewReporter creates a Reporter from the loaded configuration
func NewReporter(cfg *config.Config, ls *storage.LogStorage, journal *audit.Journals, logger *slog.Logger) *Reporter {
	return &Reporter{
		client:      &http.Client{Timeout: 30 * time.Second},
		auth:        cfg.GithubAuth,
		prefix:      cfg.StatusContextPrefix,
		description: cfg.StatusDescription,
		storage:     ls,
		journal:     journal,
		logger:      logger,
	}
}

// Pending posts the pending record of lane
func (r *Reporter) Pending(ctx context.Context, bc buildctx.Context, lane Lane) {
	r.post(ctx, bc, lane, Pending)
}

// Terminal posts success for a zero exit code and failure otherwise
func (r *Reporter) Terminal(ctx context.Context, bc buildctx.Context, lane Lane, code int) {
	r.post(ctx, bc, lane, StateFor(code))
}

// Context returns the full status context string of lane
func (r *Reporter) Context(lane Lane) string {
	if r.prefix == "" {
		return lane.Name
	}
	return strings.TrimSuffix(r.prefix, "/") + "/" + lane.Name
}

// NewRecord builds the record for lane in the given state. Pending records
// link the raw log, terminal ones its annotated copy
func (r *Reporter) NewRecord(bc buildctx.Context, lane Lane, state State) Record {
	target := lane.TargetURL
	if target == "" {
		logfile := lane.LogFile
		if logfile == "" {
			logfile = bc.LogFile
		}
		target = bc.LogURL + logfile
		if state != Pending {
			target += ".htm"
		}
	}
	return Record{
		State:       state,
		TargetURL:   target,
		Description: r.description,
		Context:     r.Context(lane),
	}
}

func (r *Reporter) post(ctx context.Context, bc buildctx.Context, lane Lane, state State) {
	rec := r.NewRecord(bc, lane, state)
	logger := r.logger.With("build_id", bc.ID, "status_context", rec.Context, "state", rec.State)

	// Status posts outlive a cancelled task group so every lane still closes
	code, body, err := r.send(context.WithoutCancel(ctx), bc.StatusesURL, rec)
	if err != nil {
		logger.Warn("posting status failed", "error", err)
	} else if code != http.StatusCreated {
		logger.Warn("status endpoint rejected record",
			"http_status", code,
			"target_url", rec.TargetURL,
		)
	} else {
		logger.Info("posted status", "http_status", code)
	}

	if body == nil {
		body = []byte("{}")
	}
	body = prettyBody(body)
	name := fmt.Sprintf("%s-%s.json", path.Base(rec.Context), rec.State)
	saved, saveErr := r.storage.Save(bc.LogPath, name, body)
	if saveErr != nil {
		logger.Warn("saving status response failed", "error", saveErr)
	}
	if r.journal != nil && saveErr == nil {
		entry := audit.Entry{
			BuildID:    bc.ID,
			Context:    rec.Context,
			State:      string(rec.State),
			TargetURL:  rec.TargetURL,
			HTTPStatus: code,
			Response:   filepath.Base(saved),
		}
		if err := r.journal.Append(bc.LogPath, entry, body); err != nil {
			logger.Warn("appending status journal failed", "error", err)
		}
	}
}

// send posts rec and returns the HTTP status and response body
func (r *Reporter) send(ctx context.Context, url string, rec Record) (int, []byte, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return 0, nil, fmt.Errorf("encode status: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("build status request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/vnd.github+json")
	if r.auth != "" {
		req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(r.auth)))
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read status response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func prettyBody(body []byte) []byte {
	pretty, err := storage.PrettyJSON(body)
	if err != nil {
		return body
	}
	return pretty
}
