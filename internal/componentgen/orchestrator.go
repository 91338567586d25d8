package componentgen

import (
	"context"
	"fmt"
	"strings"
	"time"

	"uigen/internal/gateway/entity"
	llmclient "uigen/internal/llm/client"
)

const (
	GenerateTemperature float32 = 0.7
	ChatTemperature     float32 = 0.8

	DefaultMaxTokens     = 4096
	DefaultChatMaxTokens = 1024

	RefineFallbackDescription = "Component refinement failed, returned original"
)

type Config struct {
	DefaultModel  string
	MaxTokens     int
	ChatMaxTokens int
	// Now defaults to time.Now.
	Now func() time.Time
}

// Metadata describes one model call. StartedAt is captured before the call;
// ProcessingTime is the elapsed time in milliseconds.
type Metadata struct {
	Model          string    `json:"model"`
	Tokens         int       `json:"tokens"`
	StartedAt      time.Time `json:"startedAt"`
	ProcessingTime int64     `json:"processingTime"`
}

type Result struct {
	Success  bool     `json:"success"`
	Data     Artifact `json:"data"`
	Metadata Metadata `json:"metadata"`
	// Structured is false when the reply had to be scraped for code blocks.
	Structured bool `json:"-"`
}

type ChatResult struct {
	Success  bool     `json:"success"`
	Message  string   `json:"message"`
	Metadata Metadata `json:"metadata"`
}

type GenerateInput struct {
	Prompt  string
	Model   string
	Prior   []entity.ArtifactVersion
	History []entity.Message
}

type RefineInput struct {
	Prompt   string
	Model    string
	Original Artifact
}

type ChatInput struct {
	Message string
	Model   string
	History []entity.Message
}

// Orchestrator calls the model and structures its replies. It holds no
// per-request state and is safe for concurrent use.
type Orchestrator struct {
	client llmclient.Client
	cfg    Config
}

func New(client llmclient.Client, cfg Config) *Orchestrator {
	if strings.TrimSpace(cfg.DefaultModel) == "" {
		cfg.DefaultModel = llmclient.DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.ChatMaxTokens <= 0 {
		cfg.ChatMaxTokens = DefaultChatMaxTokens
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Orchestrator{client: client, cfg: cfg}
}

func (o *Orchestrator) DefaultModel() string { return o.cfg.DefaultModel }

func (o *Orchestrator) Models() []llmclient.ModelInfo { return llmclient.Models() }

func (o *Orchestrator) Generate(ctx context.Context, in GenerateInput) (*Result, error) {
	prompt := ComposeGenerate(in.Prompt, in.Prior, in.History)
	text, meta, err := o.call(ctx, prompt, in.Model, o.cfg.MaxTokens, GenerateTemperature)
	if err != nil {
		return nil, fmt.Errorf("generate component: %w", err)
	}
	artifact, structured := Extract(text)
	return &Result{Success: true, Data: artifact, Metadata: meta, Structured: structured}, nil
}

// Refine asks the model to modify in.Original. When the reply carries no
// usable JSON the original payload is returned unchanged.
func (o *Orchestrator) Refine(ctx context.Context, in RefineInput) (*Result, error) {
	prompt := ComposeRefine(in.Original, in.Prompt)
	text, meta, err := o.call(ctx, prompt, in.Model, o.cfg.MaxTokens, GenerateTemperature)
	if err != nil {
		return nil, fmt.Errorf("refine component: %w", err)
	}
	artifact, structured := Extract(text)
	if !structured {
		artifact = ArtifactOf(entity.ArtifactVersion{
			Code:       in.Original.Code,
			Stylesheet: in.Original.Stylesheet,
			Props:      in.Original.Props,
		})
		artifact.Description = RefineFallbackDescription
		artifact.Name = in.Original.Name
		if artifact.Name == "" {
			artifact.Name = "Component"
		}
	}
	return &Result{Success: true, Data: artifact, Metadata: meta, Structured: structured}, nil
}

func (o *Orchestrator) Chat(ctx context.Context, in ChatInput) (*ChatResult, error) {
	prompt := ComposeChat(in.Message, in.History)
	text, meta, err := o.call(ctx, prompt, in.Model, o.cfg.ChatMaxTokens, ChatTemperature)
	if err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}
	return &ChatResult{Success: true, Message: text, Metadata: meta}, nil
}

func (o *Orchestrator) call(ctx context.Context, prompt, model string, maxTokens int, temperature float32) (string, Metadata, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		model = o.cfg.DefaultModel
	}
	started := o.cfg.Now()
	resp, err := o.client.Generate(ctx, llmclient.Request{
		Model:           model,
		Prompt:          prompt,
		MaxOutputTokens: maxTokens,
		Temperature:     temperature,
	})
	if err != nil {
		return "", Metadata{}, llmclient.Classify(err)
	}
	elapsed := o.cfg.Now().Sub(started)
	return resp.Text, Metadata{
		Model:          model,
		Tokens:         llmclient.EstimateTokens(prompt + resp.Text),
		StartedAt:      started,
		ProcessingTime: elapsed.Milliseconds(),
	}, nil
}
