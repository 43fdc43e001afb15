package buildctx

import (
	"slices"
	"strings"
)

// Checks is the ordered check plan of a repository
type Checks struct {
	Targets []string
	// Env is extra environment passed to the install step only
	Env string
}

// Context describes one build. It is created once by Builder.Build and
// never modified afterwards; tasks derive copies with the With* methods
type Context struct {
	ID string

	SHA      string
	Name     string
	NameUniq string
	Host     string

	// Path is relative to the work root: push/<name>/<sha10>
	Path    string
	LogPath string
	LogFile string
	LogURL  string

	Endpoint string
	Base     string
	Install  bool
	Clean    bool
	CleanWeb bool

	Checks Checks
	Env    string

	StatusesURL string

	// Per task fields, empty on the root context
	Target  string
	Parent  string
	E2EName string
}

// WithTarget returns a copy bound to one check target. parent names the
// check whose do_checks routine runs the target; it differs from target
// only for end-to-end shards
func (c Context) WithTarget(target, parent string) Context {
	c.Target = target
	c.Parent = parent
	return c
}

// WithLogFile returns a copy whose default log file is name
func (c Context) WithLogFile(name string) Context {
	c.LogFile = name
	return c
}

// WithEnv returns a copy with env prepended to the event environment
func (c Context) WithEnv(env string) Context {
	c.Env = JoinEnv(env, c.Env)
	return c
}

// WithE2EName returns a copy carrying the throwaway environment name used
// for spec discovery
func (c Context) WithE2EName(name string) Context {
	c.E2EName = name
	return c
}

// Targets returns a copy of the configured check targets
func (c Context) Targets() []string {
	return slices.Clone(c.Checks.Targets)
}

// Vars exposes the context under the placeholder names used by command
// templates. Per task fields are present only once a task has set them, so
// a template that needs a target fails to render on the root context
func (c Context) Vars() map[string]string {
	vars := map[string]string{
		"sha":       c.SHA,
		"name":      c.Name,
		"name_uniq": c.NameUniq,
		"host":      c.Host,
		"path":      c.Path,
		"sdbase":    c.Base,
		"endpoint":  c.Endpoint,
		"logpath":   c.LogPath,
		"logfile":   c.LogFile,
		"logurl":    c.LogURL,
		"env":       c.Env,
		"clean":     flag(c.Clean, "--clean"),
		"clean_web": flag(c.CleanWeb, "--clean-web"),
	}
	for key, value := range map[string]string{"t": c.Target, "p": c.Parent, "name_e2e": c.E2EName} {
		if value != "" {
			vars[key] = value
		}
	}
	return vars
}

// JoinEnv joins the non-empty parts with single spaces
func JoinEnv(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

func flag(on bool, value string) string {
	if on {
		return value
	}
	return ""
}
