// Package modeltest provides a scripted, call-counting fake of the
// model client for pipeline and workflow tests.
package modeltest

import (
	"context"
	"fmt"
	"sync"

	"github.com/STCN1-Advx/CogniBlock-BackEnd/go/model"
)

// Client is a fake model.Client. Each operation has a deterministic
// default and may be overridden by assigning the corresponding func.
// Calls are counted per operation.
type Client struct {
	OCRFunc       func(ctx context.Context, image []byte, prompt string) (string, error)
	CorrectFunc   func(ctx context.Context, text string) (string, error)
	SummarizeFunc func(ctx context.Context, text, template string) (model.Summary, error)
	TagsFunc      func(ctx context.Context, req model.TagRequest) (model.TagProposal, error)

	mu    sync.Mutex
	calls map[model.Op]int
}

// New returns a Client with deterministic defaults.
func New() *Client {
	return &Client{calls: make(map[model.Op]int)}
}

// Calls returns how many times the operation was invoked.
func (c *Client) Calls(op model.Op) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[op]
}

// TotalCalls returns the count of all operations invoked.
func (c *Client) TotalCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int
	for _, v := range c.calls {
		n += v
	}
	return n
}

func (c *Client) count(op model.Op) {
	c.mu.Lock()
	c.calls[op]++
	c.mu.Unlock()
}

func (c *Client) OCR(ctx context.Context, image []byte, prompt string) (string, error) {
	c.count(model.OpOCR)
	if c.OCRFunc != nil {
		return c.OCRFunc(ctx, image, prompt)
	}
	return fmt.Sprintf("recognized text of %d bytes", len(image)), nil
}

func (c *Client) Correct(ctx context.Context, text string) (string, error) {
	c.count(model.OpCorrect)
	if c.CorrectFunc != nil {
		return c.CorrectFunc(ctx, text)
	}
	return text, nil
}

func (c *Client) Summarize(ctx context.Context, text, template string) (model.Summary, error) {
	c.count(model.OpSummarize)
	if c.SummarizeFunc != nil {
		return c.SummarizeFunc(ctx, text, template)
	}
	return model.Summary{
		Title:           "笔记总结",
		Topic:           "知识整理",
		ContentMarkdown: "# 总结\n\n" + text,
		Keywords:        []string{"笔记"},
	}, nil
}

func (c *Client) GenerateTags(ctx context.Context, req model.TagRequest) (model.TagProposal, error) {
	c.count(model.OpTagGen)
	if c.TagsFunc != nil {
		return c.TagsFunc(ctx, req)
	}
	return model.TagProposal{New: []model.NewTag{{Name: "笔记", Confidence: 0.9}}}, nil
}

var _ model.Client = (*Client)(nil)
