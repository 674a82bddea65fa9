package stream

import (
	"strings"

	"google.golang.org/genai"
)

// GeminiDelta returns the text parts of one streamed Gemini response.
// Responses without candidates or text (usage-only tail chunks) are skipped.
func GeminiDelta(resp *genai.GenerateContentResponse) (string, bool, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", false, nil
	}
	content := resp.Candidates[0].Content
	if content == nil {
		return "", false, nil
	}

	var sb strings.Builder
	found := false
	for _, part := range content.Parts {
		if part == nil || part.Text == "" || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
		found = true
	}
	return sb.String(), found, nil
}
