package cmd

import (
	"fmt"

	"github.com/docsync/internal/ai"
	"github.com/docsync/internal/ai/langchain"
	"github.com/docsync/internal/config"
	"github.com/docsync/internal/hosting"
	"github.com/docsync/internal/hosting/github"
	"github.com/docsync/internal/hosting/gitlab"
)

// buildHost constructs the configured version-control host client.
func buildHost(cfg *config.Config) (hosting.Host, error) {
	hostCfg := cfg.HostConfig()
	token, _ := hostCfg["token"].(string)
	baseURL, _ := hostCfg["url"].(string)

	switch cfg.General.DefaultHost {
	case "github":
		return github.New(token, baseURL), nil
	case "gitlab":
		return gitlab.New(token, baseURL), nil
	default:
		return nil, fmt.Errorf("unknown host %s", cfg.General.DefaultHost)
	}
}

// buildGenerator constructs the configured AI generator through the
// factory so alternative providers can be registered in one place.
func buildGenerator(cfg *config.Config) (*langchain.Generator, ai.Generator, error) {
	provider := langchain.New()

	factory := ai.NewDefaultFactory()
	factory.Register("langchain", provider)

	generator, err := factory.Create("langchain", cfg.AIConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to configure AI generator: %w", err)
	}
	return provider, generator, nil
}
