// File path: internal/llm/providers/local.go
package providers

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
)

type Message struct {
	Role    string
	Content string
}

type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
	Embed(ctx context.Context, input []string) ([][]float32, error)
	Name() string
}

// LocalProvider is the credential-free fallback. Chat echoes the last message
// so callers degrade to their rule-based summaries; Embed produces small
// deterministic vectors so vector plumbing stays testable offline.
type LocalProvider struct{}

func NewLocalProvider() *LocalProvider {
	return &LocalProvider{}
}

func (l *LocalProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("no messages provided")
	}
	last := messages[len(messages)-1].Content
	return "[local-stub] " + strings.TrimSpace(last), nil
}

func (l *LocalProvider) Embed(ctx context.Context, input []string) ([][]float32, error) {
	const dim = 8
	vectors := make([][]float32, len(input))
	for i, text := range input {
		vec := make([]float32, dim)
		for idx, token := range strings.Fields(strings.ToLower(text)) {
			hasher := fnv.New32a()
			_, _ = hasher.Write([]byte(token))
			vec[(int(hasher.Sum32())+idx)%dim] += 1
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (l *LocalProvider) Name() string {
	return "local"
}
