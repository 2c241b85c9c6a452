package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/itish2003/studyrag/config"
	"github.com/itish2003/studyrag/metrics"
)

// CompletionRequest is a single prompt sent to a model.
type CompletionRequest struct {
	System string
	Prompt string
	// Kind lets backends that support structured output constrain the reply.
	Kind OutputKind
}

// Completer produces text for a prompt.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	Name() string
}

// NewCompleter builds the completer selected by cfg.Provider, wrapped with
// the configured timeout and metrics.
func NewCompleter(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (Completer, error) {
	var inner Completer
	switch cfg.Provider {
	case "ollama-cli":
		inner = NewCLICompleter(cfg.Command, cfg.Model, nil)
	case "ollama":
		c, err := NewOllamaCompleter(cfg.BaseURL, cfg.Model)
		if err != nil {
			return nil, err
		}
		inner = c
	case "gemini":
		c, err := NewGeminiCompleter(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, err
		}
		inner = c
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	return NewInstrumentedCompleter(inner, cfg.Timeout, logger), nil
}

// joinSystem prepends the system prompt for backends without a separate channel for it.
func joinSystem(req CompletionRequest) string {
	if req.System == "" {
		return req.Prompt
	}
	return req.System + "\n\n" + req.Prompt
}

// InputRunner runs a program with stdin and returns its stdout.
type InputRunner interface {
	RunWithInput(ctx context.Context, stdin, name string, args ...string) ([]byte, error)
}

func (ExecRunner) RunWithInput(ctx context.Context, stdin, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := stderr.String()
		if len(msg) > 500 {
			msg = msg[:500]
		}
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(msg))
	}
	return stdout.Bytes(), nil
}

// CLICompleter pipes the prompt into `<command> run <model>`.
type CLICompleter struct {
	command string
	model   string
	runner  InputRunner
}

// NewCLICompleter creates a CLICompleter. A nil runner uses ExecRunner.
func NewCLICompleter(command, model string, runner InputRunner) *CLICompleter {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &CLICompleter{command: command, model: model, runner: runner}
}

func (c *CLICompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	out, err := c.runner.RunWithInput(ctx, joinSystem(req), c.command, "run", c.model)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (c *CLICompleter) Name() string { return "ollama-cli" }

// OllamaCompleter talks to the Ollama HTTP API through langchaingo.
type OllamaCompleter struct {
	llm *ollama.LLM
}

func NewOllamaCompleter(baseURL, model string) (*OllamaCompleter, error) {
	opts := []ollama.Option{ollama.WithModel(model)}
	if baseURL != "" {
		opts = append(opts, ollama.WithServerURL(baseURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	return &OllamaCompleter{llm: llm}, nil
}

func (c *OllamaCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, c.llm, joinSystem(req))
	if err != nil {
		return "", fmt.Errorf("ollama completion: %w", err)
	}
	return out, nil
}

func (c *OllamaCompleter) Name() string { return "ollama" }

// GeminiCompleter uses the Gemini API. MCQ and flashcard requests are
// constrained to a JSON response schema.
type GeminiCompleter struct {
	client *genai.Client
	model  string
}

func NewGeminiCompleter(ctx context.Context, apiKey, model string) (*GeminiCompleter, error) {
	client, err := newGeminiClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	return &GeminiCompleter{client: client, model: model}, nil
}

func (c *GeminiCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = systemInstruction(req.System)
	}
	if schema := ResponseSchema(req.Kind); schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = schema
	}
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini api call failed: %w", err)
	}
	return resp.Text(), nil
}

func (c *GeminiCompleter) Name() string { return "gemini" }

// InstrumentedCompleter bounds every call with a timeout and records metrics.
type InstrumentedCompleter struct {
	inner   Completer
	timeout time.Duration
	logger  *zap.Logger
}

func NewInstrumentedCompleter(inner Completer, timeout time.Duration, logger *zap.Logger) *InstrumentedCompleter {
	return &InstrumentedCompleter{inner: inner, timeout: timeout, logger: logger.Named("completion")}
}

func (c *InstrumentedCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := c.inner.Complete(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", err, ctxErr)
		}
		metrics.CompletionDuration.WithLabelValues(c.inner.Name(), "error").Observe(elapsed.Seconds())
		c.logger.Error("completion failed", zap.String("provider", c.inner.Name()),
			zap.Duration("elapsed", elapsed), zap.Error(err))
		return "", fmt.Errorf("completion via %s: %w", c.inner.Name(), err)
	}

	metrics.CompletionDuration.WithLabelValues(c.inner.Name(), "ok").Observe(elapsed.Seconds())
	c.logger.Debug("completion done", zap.String("provider", c.inner.Name()),
		zap.Duration("elapsed", elapsed), zap.Int("chars", len(out)))
	return out, nil
}

func (c *InstrumentedCompleter) Name() string { return c.inner.Name() }
