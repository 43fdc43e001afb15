package core

// E2ETarget is the check that fans out into shards instead of running as
// a single command
const E2ETarget = "e2e"

// Target is one leaf of the checks branch
type Target struct {
	Name   string // e.g. "flake8" or "e2e--part2"
	Parent string // check whose do_checks routine runs; equals Name except for shards
	Env    string // extra environment, e.g. "specs=a.js,b.js"
}

// PlainTargets turns configured check names into targets
func PlainTargets(names []string) []Target {
	targets := make([]Target, len(names))
	for i, name := range names {
		targets[i] = Target{Name: name, Parent: name}
	}
	return targets
}

// LogFile is the log file name of the target
func (t Target) LogFile() string {
	return "check-" + t.Name + ".log"
}

// Lane is the status-context suffix of the target
func (t Target) Lane() string {
	return "deploy/check-" + t.Name
}
