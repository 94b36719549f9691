package issues

import (
	"fmt"

	"go.uber.org/zap"
)

// New builds the configured tracker. Linear is recognized but not
// supported; rejecting it here keeps misconfiguration a startup failure
// rather than a per-message one.
func New(trackerType Type, githubToken, githubRepo string, logger *zap.Logger) (Tracker, error) {
	switch trackerType {
	case TypeNone, "":
		return NewNoop(), nil
	case TypeGitHub:
		if githubToken == "" || githubRepo == "" {
			return nil, fmt.Errorf("github tracker requires a token and a repository")
		}
		return NewGitHub(githubToken, githubRepo, logger)
	case TypeLinear:
		return nil, fmt.Errorf("linear issue tracking is not supported")
	}
	return nil, fmt.Errorf("unknown issue tracker type %q", trackerType)
}
