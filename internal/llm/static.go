package llm

import "context"

// Static answers without a model. With Response unset it echoes the prompt,
// which is enough to inspect retrieval offline.
type Static struct {
	Response string
}

// Generate returns the canned response
func (s *Static) Generate(ctx context.Context, prompt string) (string, error) {
	if err := validatePrompt(prompt); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.Response != "" {
		return s.Response, nil
	}
	return prompt, nil
}
