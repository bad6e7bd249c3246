// Package langchain implements the ai.Generator interface on top of
// langchaingo model abstractions, so Gemini, OpenAI and Ollama backends
// share one code path.
package langchain

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/docsync/internal/ai"
)

// Config for the langchain generator.
type Config struct {
	Backend   string `json:"backend"` // "googleai", "openai", "ollama"
	APIKey    string `json:"api_key"`
	ModelName string `json:"model_name"`
	ServerURL string `json:"server_url"` // ollama only
}

// Generator calls an LLM through langchaingo.
type Generator struct {
	llm    llms.Model
	config Config
}

// New creates an unconfigured generator; call Configure or pass a full
// Config to NewWithConfig before use.
func New() *Generator {
	return &Generator{}
}

// NewWithConfig creates and initializes a generator.
func NewWithConfig(config Config) (*Generator, error) {
	g := &Generator{config: config}
	if err := g.initModel(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Generator) Name() string {
	return "langchain"
}

func (g *Generator) Configure(config map[string]interface{}) error {
	if backend, ok := config["backend"].(string); ok {
		g.config.Backend = backend
	}
	if apiKey, ok := config["api_key"].(string); ok {
		g.config.APIKey = apiKey
	}
	if modelName, ok := config["model_name"].(string); ok {
		g.config.ModelName = modelName
	}
	if serverURL, ok := config["server_url"].(string); ok {
		g.config.ServerURL = serverURL
	}
	return g.initModel()
}

func (g *Generator) initModel() error {
	var (
		model llms.Model
		err   error
	)

	switch g.config.Backend {
	case "googleai", "gemini", "":
		model, err = googleai.New(context.Background(),
			googleai.WithAPIKey(g.config.APIKey),
			googleai.WithDefaultModel(g.modelOr("gemini-2.5-flash")))
	case "openai":
		model, err = openai.New(
			openai.WithToken(g.config.APIKey),
			openai.WithModel(g.modelOr("gpt-4o-mini")))
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(g.modelOr("llama3"))}
		if g.config.ServerURL != "" {
			opts = append(opts, ollama.WithServerURL(g.config.ServerURL))
		}
		model, err = ollama.New(opts...)
	default:
		return fmt.Errorf("unknown AI backend: %s", g.config.Backend)
	}

	if err != nil {
		return fmt.Errorf("failed to initialize %s model: %w", g.config.Backend, err)
	}
	g.llm = model
	return nil
}

func (g *Generator) modelOr(fallback string) string {
	if g.config.ModelName != "" {
		return g.config.ModelName
	}
	return fallback
}

// Generate asks the model for a complete replacement of the requested
// documentation file and strips any markdown fencing from the answer.
func (g *Generator) Generate(ctx context.Context, req ai.Request) (string, error) {
	if g.llm == nil {
		return "", fmt.Errorf("generator not configured")
	}

	prompt := buildPrompt(req)
	response, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}

	content := stripFences(response)
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("generator returned empty content")
	}
	return content, nil
}

// Complete runs a raw prompt without the documentation framing. The
// significance classifier uses this for its JSON verdict.
func (g *Generator) Complete(ctx context.Context, prompt string) (string, error) {
	if g.llm == nil {
		return "", fmt.Errorf("generator not configured")
	}
	response, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt)
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}
	return response, nil
}

func buildPrompt(req ai.Request) string {
	var sb strings.Builder
	sb.WriteString("You are a technical documentation maintainer. ")
	sb.WriteString("Rewrite the documentation file below according to the instruction. ")
	sb.WriteString("Return ONLY the complete new file content, no commentary, no code fences.\n\n")

	sb.WriteString("Instruction: " + req.Instruction + "\n")
	if req.Target != "" {
		sb.WriteString("Focus on: " + req.Target + "\n")
	}
	sb.WriteString("File: " + req.FilePath + "\n\n")

	if req.Diff != "" {
		sb.WriteString("Recent code changes for context:\n```diff\n" + req.Diff + "\n```\n\n")
	}

	sb.WriteString("Current file content:\n---\n" + req.CurrentContent + "\n---\n")
	return sb.String()
}

// stripFences removes a surrounding markdown code fence when the model
// ignores the no-fences instruction.
func stripFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return trimmed
	}
	// Drop the opening fence (possibly "```markdown") and a trailing fence.
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
