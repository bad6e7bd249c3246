// Package ai defines the content-generation boundary. The generator is
// an opaque, potentially slow, potentially failing capability; the state
// machine depends only on this interface so tests can substitute a
// deterministic stub.
package ai

import "context"

// Request carries everything the generator needs to produce a full-text
// replacement for one documentation file.
type Request struct {
	Instruction    string // sanitized user command, or sync-flow prompt
	Target         string // free-text subject within the document, may be empty
	FilePath       string
	CurrentContent string
	Diff           string // pull-request diff for context, may be empty
}

// Generator produces replacement documentation content.
type Generator interface {
	// Generate returns the complete new content for the requested file.
	Generate(ctx context.Context, req Request) (string, error)

	// Configure sets up the generator with provider-specific settings.
	Configure(config map[string]interface{}) error

	// Name returns the generator's name.
	Name() string
}

// Factory creates generators based on configuration.
type Factory interface {
	Create(name string, config map[string]interface{}) (Generator, error)
}

// DefaultFactory is the default implementation of Factory.
type DefaultFactory struct {
	generators map[string]Generator
}

// NewDefaultFactory creates a new DefaultFactory.
func NewDefaultFactory() *DefaultFactory {
	return &DefaultFactory{
		generators: make(map[string]Generator),
	}
}

// Register registers a generator with the factory.
func (f *DefaultFactory) Register(name string, g Generator) {
	f.generators[name] = g
}

// Create configures and returns the generator registered under name.
func (f *DefaultFactory) Create(name string, config map[string]interface{}) (Generator, error) {
	g, ok := f.generators[name]
	if !ok {
		return nil, ErrGeneratorNotFound
	}
	if err := g.Configure(config); err != nil {
		return nil, err
	}
	return g, nil
}

// Errors
var (
	ErrGeneratorNotFound = error(ErrorGeneratorNotFound("ai generator not found"))
)

// ErrorGeneratorNotFound is returned when an AI generator is not registered.
type ErrorGeneratorNotFound string

func (e ErrorGeneratorNotFound) Error() string {
	return string(e)
}
