package ai

import "context"

// StaticClient is a canned-response Client for tests and local development.
type StaticClient struct {
	Text   string
	Object any
	Err    error

	// Calls records every user prompt seen, in order.
	Calls []string
}

func (s *StaticClient) GenerateText(_ context.Context, _ string, userPrompt string) (string, error) {
	s.Calls = append(s.Calls, userPrompt)

	if s.Err != nil {
		return "", s.Err
	}

	return s.Text, nil
}

func (s *StaticClient) GenerateObject(_ context.Context, _ string, userPrompt string, _ map[string]any) (any, error) {
	s.Calls = append(s.Calls, userPrompt)

	if s.Err != nil {
		return nil, s.Err
	}

	return s.Object, nil
}
