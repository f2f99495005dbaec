package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// ErrEnhancementDisabled is returned by DisabledEnhancer.
var ErrEnhancementDisabled = errors.New("content enhancement is not configured")

// EnhanceRequest is the rendered email handed to an Enhancer.
type EnhanceRequest struct {
	Subject string
	Body    string
	Context TemplateContext
}

// EnhanceResult is the rewritten email.
type EnhanceResult struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Enhancer rewrites an email's subject and body. Callers treat every error as
// "keep the original".
type Enhancer interface {
	Enhance(ctx context.Context, req EnhanceRequest) (EnhanceResult, error)
}

// DisabledEnhancer is used when no API key is configured.
type DisabledEnhancer struct{}

func (DisabledEnhancer) Enhance(context.Context, EnhanceRequest) (EnhanceResult, error) {
	return EnhanceResult{}, ErrEnhancementDisabled
}

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o-mini"

	enhanceSystemPrompt = "Du är en professionell e-postskrivare för svenska företag. " +
		"Du förbättrar text men lägger ALDRIG till påhittad information."
)

// OpenAIConfig configures OpenAIEnhancer.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// OpenAIEnhancer calls the chat completions endpoint and asks for a JSON
// object with the rewritten subject and body.
type OpenAIEnhancer struct {
	cfg    OpenAIConfig
	client *fasthttp.Client
}

func NewOpenAIEnhancer(cfg OpenAIConfig) *OpenAIEnhancer {
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &OpenAIEnhancer{
		cfg: cfg,
		client: &fasthttp.Client{
			Name:         "offertpilot",
			ReadTimeout:  cfg.Timeout,
			WriteTimeout: cfg.Timeout,
		},
	}
}

// NewEnhancer returns an OpenAIEnhancer when an API key is present and a
// DisabledEnhancer otherwise.
func NewEnhancer(cfg OpenAIConfig) Enhancer {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return DisabledEnhancer{}
	}
	return NewOpenAIEnhancer(cfg)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	ResponseFormat map[string]string `json:"response_format"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (e *OpenAIEnhancer) Enhance(ctx context.Context, req EnhanceRequest) (EnhanceResult, error) {
	if err := ctx.Err(); err != nil {
		return EnhanceResult{}, err
	}

	payload, err := json.Marshal(chatRequest{
		Model: e.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: enhanceSystemPrompt},
			{Role: "user", Content: buildEnhancePrompt(req)},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
		Temperature:    0.7,
		MaxTokens:      500,
	})
	if err != nil {
		return EnhanceResult{}, fmt.Errorf("encode enhancement request: %w", err)
	}

	httpReq := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(httpReq)
	httpResp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(httpResp)

	httpReq.SetRequestURI(strings.TrimRight(e.cfg.BaseURL, "/") + "/chat/completions")
	httpReq.Header.SetMethod(fasthttp.MethodPost)
	httpReq.Header.SetContentType("application/json")
	httpReq.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	httpReq.SetBody(payload)

	timeout := e.cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if err := e.client.DoTimeout(httpReq, httpResp, timeout); err != nil {
		return EnhanceResult{}, fmt.Errorf("openai request: %w", err)
	}
	if status := httpResp.StatusCode(); status >= 300 {
		return EnhanceResult{}, fmt.Errorf("openai error %d: %s", status, string(httpResp.Body()))
	}

	var parsed chatResponse
	if err := json.Unmarshal(httpResp.Body(), &parsed); err != nil {
		return EnhanceResult{}, fmt.Errorf("decode openai response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return EnhanceResult{}, errors.New("openai response has no choices")
	}

	var result EnhanceResult
	if err := json.Unmarshal([]byte(parsed.Choices[0].Message.Content), &result); err != nil {
		return EnhanceResult{}, fmt.Errorf("decode enhanced email: %w", err)
	}
	if strings.TrimSpace(result.Subject) == "" {
		result.Subject = req.Subject
	}
	if strings.TrimSpace(result.Body) == "" {
		result.Body = req.Body
	}
	return result, nil
}

func buildEnhancePrompt(req EnhanceRequest) string {
	company := valueOf(req.Context.CompanyName)
	if company == "" {
		company = "Städfirma"
	}
	service := valueOf(req.Context.ServiceType)
	if service == "" {
		service = DefaultServiceType
	}

	var b strings.Builder
	b.WriteString("Du är en assistent som förbättrar e-posttexter för en städfirma i Sverige.\n\n")
	b.WriteString("Din uppgift är att göra följande text mer professionell och naturlig, MEN:\n")
	b.WriteString("- Lägg ALDRIG till ny information som priser, datum eller fakta som inte finns i originalet\n")
	b.WriteString("- Behåll alla placeholders som {namn}, {tjänst}, {signatur}\n")
	b.WriteString("- Skriv på svenska\n")
	b.WriteString("- Var personlig men professionell\n")
	b.WriteString("- Behåll samma längd och ton\n\n")
	fmt.Fprintf(&b, "Original ämnesrad: %s\n", req.Subject)
	fmt.Fprintf(&b, "Original meddelande: %s\n\n", req.Body)
	b.WriteString("Kontext (använd INTE denna info för att hitta på nya fakta, endast för att förstå sammanhanget):\n")
	fmt.Fprintf(&b, "- Företag: %s\n", company)
	fmt.Fprintf(&b, "- Tjänst: %s\n\n", service)
	b.WriteString("Returnera JSON med denna exakta struktur:\n")
	b.WriteString(`{"subject": "förbättrad ämnesrad", "body": "förbättrad brödtext"}`)
	return b.String()
}
