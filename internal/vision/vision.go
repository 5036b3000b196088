// Package vision scores captured sites with the Anthropic API. It is the
// optional high-fidelity alternative to the deterministic heuristic engine
// and produces the same record shape.
package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/audit-cli/internal/audit"
	"github.com/sells-group/audit-cli/internal/model"
)

const systemPrompt = `You are a website auditor for medical and dental practices.
Given a screenshot and the extracted text of a practice's homepage, score the
site on two axes and list concrete findings.

Respond with ONLY a JSON object, no prose, matching this schema:
{
  "design_score": <int 0-100>,
  "seo_score": <int 0-100>,
  "design_findings": [{"category": "...", "issue": "...", "severity": "critical|major|moderate|minor", "detail": "...", "recommendation": "..."}],
  "seo_findings": [...same shape...],
  "summary": {"overall": "..."}
}`

// Scorer calls the Anthropic messages API and parses its structured verdict.
type Scorer struct {
	client    sdk.Client
	model     string
	maxTokens int64
}

// New creates a Scorer. Extra request options are passed through to the SDK,
// which lets tests point the client at a local server.
func New(apiKey, modelID string, maxTokens int64, opts ...option.RequestOption) *Scorer {
	allOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Scorer{
		client:    sdk.NewClient(allOpts...),
		model:     modelID,
		maxTokens: maxTokens,
	}
}

// verdict is the wire shape the model is prompted to emit.
type verdict struct {
	DesignScore    int            `json:"design_score"`
	SEOScore       int            `json:"seo_score"`
	DesignFindings []wireFinding  `json:"design_findings"`
	SEOFindings    []wireFinding  `json:"seo_findings"`
	Summary        map[string]any `json:"summary"`
}

type wireFinding struct {
	Category       string `json:"category"`
	Issue          string `json:"issue"`
	Severity       string `json:"severity"`
	Detail         string `json:"detail"`
	Recommendation string `json:"recommendation"`
}

// ScoreSite sends the screenshot and page text to the model and parses the
// JSON verdict. A response that does not parse or carries out-of-range
// scores returns a scoring error so the caller can fall back.
func (s *Scorer) ScoreSite(ctx context.Context, screenshot []byte, text, title, address string) (*audit.VisionResult, error) {
	blocks := make([]sdk.ContentBlockParamUnion, 0, 2)
	if len(screenshot) > 0 {
		blocks = append(blocks, sdk.NewImageBlockBase64("image/png", encodeBase64(screenshot)))
	}
	blocks = append(blocks, sdk.NewTextBlock(buildUserPrompt(text, title, address)))

	msg, err := s.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(s.model),
		MaxTokens: s.maxTokens,
		System:    []sdk.TextBlockParam{{Text: systemPrompt}},
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(blocks...)},
	})
	if err != nil {
		return nil, eris.Wrap(err, "vision: create message")
	}

	raw := firstText(msg)
	if raw == "" {
		return nil, eris.Wrap(model.ErrScoring, "vision: empty response")
	}

	var v verdict
	if err := json.Unmarshal([]byte(stripFences(raw)), &v); err != nil {
		return nil, eris.Wrapf(model.ErrScoring, "vision: parse verdict: %v", err)
	}
	if v.DesignScore < 0 || v.DesignScore > 100 || v.SEOScore < 0 || v.SEOScore > 100 {
		return nil, eris.Wrapf(model.ErrScoring, "vision: score out of range (design=%d seo=%d)", v.DesignScore, v.SEOScore)
	}

	design, err := liftFindings(v.DesignFindings)
	if err != nil {
		return nil, err
	}
	seo, err := liftFindings(v.SEOFindings)
	if err != nil {
		return nil, err
	}

	logUsage(s.model, msg)

	return &audit.VisionResult{
		DesignScore:    v.DesignScore,
		SEOScore:       v.SEOScore,
		DesignFindings: design,
		SEOFindings:    seo,
		Summary:        v.Summary,
	}, nil
}

func buildUserPrompt(text, title, address string) string {
	var b strings.Builder
	b.WriteString("Page title: ")
	b.WriteString(title)
	b.WriteString("\nKnown address: ")
	b.WriteString(address)
	b.WriteString("\n\nExtracted page text:\n")
	b.WriteString(text)
	return b.String()
}

var severities = map[string]model.Severity{
	"critical": model.SeverityCritical,
	"major":    model.SeverityMajor,
	"moderate": model.SeverityModerate,
	"minor":    model.SeverityMinor,
}

func liftFindings(in []wireFinding) ([]model.Finding, error) {
	out := make([]model.Finding, 0, len(in))
	for _, f := range in {
		sev, ok := severities[strings.ToLower(f.Severity)]
		if !ok {
			return nil, eris.Wrapf(model.ErrScoring, "vision: unknown severity %q", f.Severity)
		}
		out = append(out, model.Finding{
			Category:       f.Category,
			Issue:          f.Issue,
			Severity:       sev,
			Detail:         f.Detail,
			Recommendation: f.Recommendation,
		})
	}
	return out, nil
}

func encodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// firstText returns the first text content block of a response.
func firstText(msg *sdk.Message) string {
	for _, b := range msg.Content {
		if b.Type == "text" {
			return b.Text
		}
	}
	return ""
}

// stripFences tolerates models wrapping JSON in a markdown code fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

// modelPricing holds per-million-token pricing for known models.
var modelPricing = map[string][2]float64{
	"claude-haiku-4-5-20251001":  {0.80, 4.00},
	"claude-sonnet-4-5-20250929": {3.00, 15.00},
}

func logUsage(modelID string, msg *sdk.Message) {
	var cost float64
	if pricing, ok := modelPricing[modelID]; ok {
		cost = (float64(msg.Usage.InputTokens)/1e6)*pricing[0] +
			(float64(msg.Usage.OutputTokens)/1e6)*pricing[1]
	}
	zap.L().Info("vision: scored site",
		zap.String("model", modelID),
		zap.Int64("input_tokens", msg.Usage.InputTokens),
		zap.Int64("output_tokens", msg.Usage.OutputTokens),
		zap.Float64("estimated_cost_usd", cost),
	)
}
