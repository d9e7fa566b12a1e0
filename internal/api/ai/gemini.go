// Package ai generates draft post content from a user supplied topic.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/learninpublic/scheduler/internal/api/domain"
)

// Generator produces one or more draft posts for a topic.
type Generator interface {
	GeneratePosts(ctx context.Context, topic string) ([]string, error)
}

var ErrNoContent = errors.New("ai: no content generated")

// postSeparator is the marker the model is instructed to place between
// consecutive posts so the response can be split reliably.
const postSeparator = "---POST_SEPARATOR---"

const systemPrompt = `You are a professional content writer who creates engaging posts on LinkedIn.

INSTRUCTIONS:
1. Create LinkedIn posts based on the user's input
2. Keep EACH post under 3000 characters
3. Use relevant hashtags including #LearnInPublic and topic-specific hashtags
4. Make posts interactive - encourage questions and engagement
5. If the topic is complex, create 2-3 follow-up posts that dive deeper
6. Expand with details, examples, and real-world applications
7. Ask questions to engage readers (e.g., "What's your approach to this?")
8. Use line breaks and emojis for readability
9. Structure: Hook -> Value -> Call-to-action
10. Posts should reflect what the user has learnt, mistakes included; write from a learning perspective, not as a teacher

IMPORTANT:
- Separate each post with "---POST_SEPARATOR---"
- Create 1-3 posts depending on content depth
- First post: Introduction/overview
- Following posts: Deep dives into specific aspects

User's topic: `

// Gemini calls the Google Generative Language REST API.
type Gemini struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewGemini builds a client for the given API key and model. An empty
// model falls back to a sensible default.
func NewGemini(apiKey, model string) *Gemini {
	if model == "" {
		model = "gemini-2.5-flash-lite"
	}
	return &Gemini{
		apiKey:  apiKey,
		model:   model,
		baseURL: "https://generativelanguage.googleapis.com/v1beta",
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type candidate struct {
	Content content `json:"content"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type generateResponse struct {
	Candidates []candidate `json:"candidates"`
	Error      *apiError   `json:"error"`
}

// GeneratePosts asks the model for post drafts and splits the response on
// the separator marker. Each draft is trimmed and clamped to the platform
// content limit.
func (g *Gemini) GeneratePosts(ctx context.Context, topic string) ([]string, error) {
	reqBody, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: systemPrompt + topic}}}},
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ai: generate request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var out generateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("ai: decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if out.Error != nil {
			return nil, fmt.Errorf("ai: generate failed: %s", out.Error.Message)
		}
		return nil, fmt.Errorf("ai: generate failed: status %d", resp.StatusCode)
	}

	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return nil, ErrNoContent
	}

	var text strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}

	posts := SplitPosts(text.String())
	if len(posts) == 0 {
		return nil, ErrNoContent
	}
	return posts, nil
}

// SplitPosts breaks raw model output into individual post drafts.
func SplitPosts(text string) []string {
	var posts []string
	for _, chunk := range strings.Split(text, postSeparator) {
		post := strings.TrimSpace(chunk)
		if post == "" {
			continue
		}
		if len(post) > domain.MaxPostLength {
			// Back the cut off to a rune boundary so a multi-byte
			// character is never split.
			cut := domain.MaxPostLength - 3
			for cut > 0 && !utf8.RuneStart(post[cut]) {
				cut--
			}
			post = post[:cut] + "..."
		}
		posts = append(posts, post)
	}
	return posts
}
