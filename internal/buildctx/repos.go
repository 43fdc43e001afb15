package buildctx

import (
	"strings"

	"fireq/internal/config"
)

// testOwner is the fork used to exercise hooks without touching the
// production repositories; its events build as if they came from
// productionOwner
const (
	testOwner       = "naspeh-sf"
	productionOwner = "superdesk"
)

// DefaultRepos is the built-in repository table
func DefaultRepos() map[string]config.Repo {
	return map[string]config.Repo{
		"superdesk/superdesk": {
			Endpoint: "superdesk-dev/master",
			Prefix:   "sd",
			Targets:  []string{"flake8", "npmtest"},
		},
		"superdesk/superdesk-core": {
			Endpoint: "superdesk-dev/core",
			Prefix:   "sds",
			Targets:  []string{"docs", "flake8", "nose", "behave"},
			Env:      "frontend=",
		},
		"superdesk/superdesk-client-core": {
			Endpoint: "superdesk-dev/client-core",
			Prefix:   "sdc",
			Targets:  []string{"e2e", "npmtest", "docs"},
		},
	}
}

func canonicalRepo(fullName string) string {
	if strings.HasPrefix(fullName, testOwner) {
		return productionOwner + strings.TrimPrefix(fullName, testOwner)
	}
	return fullName
}
