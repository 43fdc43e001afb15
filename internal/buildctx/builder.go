// Package buildctx turns GitHub webhook events into build contexts
package buildctx

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/google/uuid"

	"fireq/internal/config"
	"fireq/internal/storage"
)

// EventHeader carries the webhook event kind
const EventHeader = "X-Github-Event"

const (
	EventPush        = "push"
	EventPullRequest = "pull_request"
)

// shortHashLen is how much of the commit hash goes into unique names
const shortHashLen = 10

// ErrMalformedEvent is returned when an otherwise buildable event lacks a
// field the build needs
var ErrMalformedEvent = errors.New("malformed event")

var nonAlnum = regexp.MustCompile(`[^a-z0-9]`)

// Option overrides a computed field after the defaults are in place
type Option func(*Context)

// WithClean requests a fresh environment: the build clone is recreated and
// removed again during cleanup
func WithClean() Option { return func(c *Context) { c.Clean = true } }

// WithCleanWeb recreates the published instance from the base environment
func WithCleanWeb() Option { return func(c *Context) { c.CleanWeb = true } }

// WithoutInstall skips the install step of the checks branch
func WithoutInstall() Option { return func(c *Context) { c.Install = false } }

// Builder classifies events and derives contexts from them
type Builder struct {
	cfg     *config.Config
	repos   map[string]config.Repo
	storage *storage.LogStorage
	logger  *slog.Logger
	now     func() time.Time
}

// NewBuilder creates a Builder. The repository table comes from cfg.Repos
// when set, otherwise DefaultRepos
func NewBuilder(cfg *config.Config, ls *storage.LogStorage, logger *slog.Logger) *Builder {
	repos := cfg.Repos
	if len(repos) == 0 {
		repos = DefaultRepos()
	}
	return &Builder{
		cfg:     cfg,
		repos:   repos,
		storage: ls,
		logger:  logger,
		now:     time.Now,
	}
}

// event is the part of a payload common to both event kinds
type event struct {
	sha    string
	name   string
	branch string // "pr" for pull requests, empty for pushes
	env    string
	repo   *ghRepository
}

// Build returns the context for an event, or nil when the event is not
// something to build. An error means the payload was malformed
func (b *Builder) Build(headers http.Header, body []byte, opts ...Option) (*Context, error) {
	kind := headers.Get(EventHeader)
	var (
		ev  *event
		err error
	)
	switch kind {
	case EventPullRequest:
		ev, err = parsePullRequest(body)
	case EventPush:
		ev, err = parsePush(body)
	default:
		b.logger.Info("ignoring event", "event", kind)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if ev == nil {
		b.logger.Info("ignoring event action", "event", kind)
		return nil, nil
	}

	if ev.sha == plumbing.ZeroHash.String() {
		b.logger.Info("ignoring deleted ref", "event", kind)
		return nil, nil
	}

	repoName := canonicalRepo(ev.repo.FullName)
	repo, ok := b.repos[repoName]
	if !ok {
		b.logger.Warn("repository is not supported", "repository", repoName)
		return nil, nil
	}

	name := fmt.Sprintf("%s%s-%s", repo.Prefix, ev.branch, ev.name)
	suffix := ev.sha[:shortHashLen]
	host := name + "." + b.cfg.Domain
	path := fmt.Sprintf("push/%s/%s", name, suffix)
	logPath := fmt.Sprintf("%s/%s/", path, b.now().Format("20060102-150405"))

	ctx := &Context{
		ID:          uuid.NewString(),
		SHA:         ev.sha,
		Name:        name,
		NameUniq:    name + "-" + suffix,
		Host:        host,
		Path:        path,
		LogPath:     logPath,
		LogFile:     "build.log",
		LogURL:      b.cfg.LogURL + logPath,
		Endpoint:    repo.Endpoint,
		Base:        b.cfg.Base,
		Install:     true,
		Checks:      Checks{Targets: append([]string(nil), repo.Targets...), Env: repo.Env},
		Env:         JoinEnv(ev.env, "repo_remote="+ev.repo.CloneURL, "host="+host),
		StatusesURL: strings.ReplaceAll(ev.repo.StatusesURL, "{sha}", ev.sha),
	}
	for _, opt := range opts {
		opt(ctx)
	}

	if _, err := b.storage.EnsureDir(ctx.LogPath); err != nil {
		return nil, err
	}
	b.logger.Info("build context ready",
		"build_id", ctx.ID,
		"name_uniq", ctx.NameUniq,
		"endpoint", ctx.Endpoint,
		"targets", ctx.Checks.Targets,
		"log_path", ctx.LogPath,
	)
	return ctx, nil
}

func parsePullRequest(body []byte) (*event, error) {
	var payload ghPullRequestPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: pull_request payload: %v", ErrMalformedEvent, err)
	}
	if payload.Action == "" {
		return nil, fmt.Errorf("%w: pull_request: missing action", ErrMalformedEvent)
	}
	if !buildableActions[payload.Action] {
		return nil, nil
	}
	if payload.Number <= 0 {
		return nil, fmt.Errorf("%w: pull_request: missing number", ErrMalformedEvent)
	}
	if payload.PullRequest == nil || payload.PullRequest.Head.SHA == "" {
		return nil, fmt.Errorf("%w: pull_request: missing pull_request.head.sha", ErrMalformedEvent)
	}
	sha := payload.PullRequest.Head.SHA
	if err := checkCommon(sha, payload.Repository); err != nil {
		return nil, err
	}
	number := strconv.Itoa(payload.Number)
	return &event{
		sha:    sha,
		name:   number,
		branch: "pr",
		env:    fmt.Sprintf("repo_pr=%s repo_sha=%s", number, sha),
		repo:   payload.Repository,
	}, nil
}

func parsePush(body []byte) (*event, error) {
	var payload ghPushPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: push payload: %v", ErrMalformedEvent, err)
	}
	if payload.Ref == "" {
		return nil, fmt.Errorf("%w: push: missing ref", ErrMalformedEvent)
	}
	if err := checkCommon(payload.After, payload.Repository); err != nil {
		return nil, err
	}
	branch := BranchName(payload.Ref)
	return &event{
		sha:  payload.After,
		name: SanitizeName(branch),
		env:  fmt.Sprintf("repo_sha=%s repo_branch=%s", payload.After, branch),
		repo: payload.Repository,
	}, nil
}

func checkCommon(sha string, repo *ghRepository) error {
	switch {
	case len(sha) < shortHashLen:
		return fmt.Errorf("%w: commit hash %q is too short", ErrMalformedEvent, sha)
	case repo == nil:
		return fmt.Errorf("%w: missing repository", ErrMalformedEvent)
	case repo.FullName == "":
		return fmt.Errorf("%w: missing repository.full_name", ErrMalformedEvent)
	case repo.CloneURL == "":
		return fmt.Errorf("%w: missing repository.clone_url", ErrMalformedEvent)
	case repo.StatusesURL == "":
		return fmt.Errorf("%w: missing repository.statuses_url", ErrMalformedEvent)
	}
	return nil
}

// BranchName strips the refs/heads/ prefix from a branch ref. Other refs
// are returned unchanged
func BranchName(ref string) string {
	name := plumbing.ReferenceName(ref)
	if name.IsBranch() {
		return name.Short()
	}
	return ref
}

// SanitizeName lowercases s and drops everything outside [a-z0-9]
func SanitizeName(s string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(s), "")
}
