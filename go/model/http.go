package model

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Config configures an HTTPClient against an OpenAI-compatible
// chat-completions endpoint.
type Config struct {
	EndpointURL string
	APIKey      string
	// Model names, per operation variant.
	Models map[Op]string
	// Retry policy of transient failures.
	MaxRetries int
	RetryBase  time.Duration
}

// HTTPClient implements Client over a single OpenAI-compatible endpoint,
// dispatching each operation variant to its configured model name.
type HTTPClient struct {
	cfg     Config
	httpc   *http.Client
	prompts *PromptRegistry
}

// NewHTTPClient builds an HTTPClient. A nil httpc uses a default client;
// per-call budgets are enforced with contexts, not the client timeout.
func NewHTTPClient(cfg Config, httpc *http.Client) *HTTPClient {
	if httpc == nil {
		httpc = &http.Client{}
	}
	return &HTTPClient{cfg: cfg, httpc: httpc, prompts: NewPromptRegistry()}
}

// Prompts exposes the client's template registry.
func (c *HTTPClient) Prompts() *PromptRegistry { return c.prompts }

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// imagePart and textPart build the multimodal content of an OCR message.
type textPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type imagePart struct {
	Type     string `json:"type"`
	ImageURL struct {
		URL string `json:"url"`
	} `json:"image_url"`
}

// OCR extracts text from an image via the configured vision model.
func (c *HTTPClient) OCR(ctx context.Context, image []byte, prompt string) (string, error) {
	if prompt == "" {
		var err error
		if prompt, err = c.prompts.Render(PromptOCR, nil); err != nil {
			return "", permanent(err)
		}
	}

	var img imagePart
	img.Type = "image_url"
	img.ImageURL.URL = fmt.Sprintf("data:%s;base64,%s",
		http.DetectContentType(image), base64.StdEncoding.EncodeToString(image))

	var out, err = c.chat(ctx, OpOCR, []chatMessage{
		{Role: "user", Content: []interface{}{textPart{Type: "text", Text: prompt}, img}},
	}, 0.1, 0)
	if err != nil {
		return "", err
	}
	if out = strings.TrimSpace(out); out == "" {
		return "", fmt.Errorf("ocr produced no text: %w", ErrUnavailable)
	}
	return out, nil
}

// Correct fixes recognition errors of text.
func (c *HTTPClient) Correct(ctx context.Context, text string) (string, error) {
	var prompt, err = c.prompts.Render(PromptCorrection, map[string]string{"content": text})
	if err != nil {
		return "", permanent(err)
	}
	out, err := c.chat(ctx, OpCorrect, []chatMessage{
		{Role: "system", Content: "你是一个专业的文本纠错专家，擅长修正OCR识别错误。"},
		{Role: "user", Content: prompt},
	}, 0.1, 0)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Summarize produces a structured summary of text with the named template.
func (c *HTTPClient) Summarize(ctx context.Context, text string, template string) (Summary, error) {
	var prompt, err = c.prompts.Render(template, map[string]string{"content": text})
	if err != nil {
		return Summary{}, permanent(err)
	}
	out, err := c.chat(ctx, OpSummarize, []chatMessage{
		{Role: "system", Content: "你是一个专业的学习笔记整理专家，擅长将复杂内容整理成结构化的学习材料。"},
		{Role: "user", Content: prompt},
	}, 0.3, 1500)
	if err != nil {
		return Summary{}, err
	}
	return ParseSummary(out), nil
}

// GenerateTags proposes tags for a summary and knowledge record.
func (c *HTTPClient) GenerateTags(ctx context.Context, req TagRequest) (TagProposal, error) {
	var prompt, err = c.prompts.Render(PromptTagGeneration, map[string]string{
		"summary_content":  req.Summary.ContentMarkdown,
		"knowledge_record": req.KnowledgeText,
		"existing_tags":    strings.Join(req.ExistingTagNames, ", "),
	})
	if err != nil {
		return TagProposal{}, permanent(err)
	}
	out, err := c.chat(ctx, OpTagGen, []chatMessage{
		{Role: "system", Content: "你是一个专业的内容标签生成专家。请严格按照JSON格式返回结果。"},
		{Role: "user", Content: prompt},
	}, 0.3, 500)
	if err != nil {
		return TagProposal{}, err
	}

	var proposal TagProposal
	if err := json.Unmarshal([]byte(stripCodeFence(out)), &proposal); err != nil {
		return TagProposal{}, fmt.Errorf("parsing tag proposal: %s: %w", err, ErrUnavailable)
	}
	return proposal, nil
}

// chat performs one model call with retry, backoff, and the operation's
// latency budget.
func (c *HTTPClient) chat(ctx context.Context, op Op, messages []chatMessage, temperature float64, maxTokens int) (string, error) {
	var modelName, ok = c.cfg.Models[op]
	if !ok || modelName == "" {
		return "", permanent(fmt.Errorf("no model configured for operation %q", op))
	}

	ctx, cancel := context.WithTimeout(ctx, budgets[op])
	defer cancel()

	var body, err = json.Marshal(chatRequest{
		Model:       modelName,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", permanent(err)
	}

	return c.withRetry(ctx, op, func() (string, error) {
		return c.doChat(ctx, body)
	})
}

func (c *HTTPClient) doChat(ctx context.Context, body []byte) (string, error) {
	var url = strings.TrimSuffix(c.cfg.EndpointURL, "/") + "/chat/completions"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", err // Transport errors are transient.
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var detail, _ = io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &apiError{Status: resp.StatusCode, Body: string(detail)}
	}

	var decoded chatResponse
	if err = json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decoding model response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", permanent(fmt.Errorf("model response carries no choices"))
	}
	var content = strings.TrimSpace(decoded.Choices[0].Message.Content)
	if content == "" {
		return "", permanent(fmt.Errorf("model returned empty content"))
	}
	return content, nil
}

// stripCodeFence removes a wrapping markdown code fence, which chat
// models often add around requested JSON.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:] // Drop the language tag line.
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
