package buildctx

// Minimal GitHub webhook payloads. Only the fields the build needs are
// decoded; JSON names follow GitHub's webhook documentation

type ghRepository struct {
	FullName    string `json:"full_name"`
	CloneURL    string `json:"clone_url"`
	StatusesURL string `json:"statuses_url"` // ".../statuses/{sha}"
}

type ghPushPayload struct {
	Ref        string        `json:"ref"`   // "refs/heads/master"
	After      string        `json:"after"` // new head, all zeros on delete
	Repository *ghRepository `json:"repository"`
}

type ghPullRequestPayload struct {
	Action      string `json:"action"`
	Number      int    `json:"number"`
	PullRequest *struct {
		Head struct {
			SHA string `json:"sha"`
		} `json:"head"`
	} `json:"pull_request"`
	Repository *ghRepository `json:"repository"`
}

// buildableActions are the pull request actions that produce a build
var buildableActions = map[string]bool{
	"opened":      true,
	"reopened":    true,
	"synchronize": true,
}
