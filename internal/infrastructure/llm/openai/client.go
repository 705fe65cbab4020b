// Package openai provides a ClassAssistant implementation using OpenAI or any
// OpenAI-compatible chat endpoint.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/ersonp/trustbim/internal/domain/entities"
	"github.com/ersonp/trustbim/internal/domain/ports"
	"github.com/ersonp/trustbim/internal/infrastructure/config"
)

// DefaultModel is used when the config names no model.
const DefaultModel = "gpt-4o-mini"

const classificationPrompt = `You are a BIM classification assistant. You receive one building element as JSON.

Tasks:
1) Map the element to exactly one canonical_class from this closed list: %s
   If none fits, return null for canonical_class.
2) Provide confidence in [0,1].
3) Provide optional class_codes with keys "IFC" and "Uniclass" if confidently known.
4) Optionally list engineering properties that are missing from the input but stated in the references,
   as {"k": name, "v": value, "u": unit or null, "confidence": 0.0}. Prefer SI units: kW, L/s, m, m², °C.

Return ONLY a valid JSON object, no other text.

Example:
{"canonical_class": "Pump", "confidence": 0.9, "class_codes": {"IFC": "IfcPump", "Uniclass": "Pr_65_53_63"}, "properties": [{"k": "flow_rate", "v": 5, "u": "L/s", "confidence": 0.6}]}`

// Client implements ports.ClassAssistant using the chat completions API.
type Client struct {
	client *openai.Client
	model  string
}

// NewClient creates a new assist client. An API key is required unless a
// custom base URL points at a local endpoint such as Ollama.
func NewClient(cfg config.AssistConfig) (*Client, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	model := DefaultModel
	if cfg.Model != "" {
		model = strings.TrimPrefix(cfg.Model, "ollama:")
	}

	return &Client{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}, nil
}

// Model returns the model name sent with each request.
func (c *Client) Model() string {
	return c.model
}

// Propose asks the model for a canonical class for one entity.
func (c *Client) Propose(ctx context.Context, req ports.AssistRequest) (*entities.Proposal, error) {
	if req.Entity == nil {
		return nil, errors.New("assist request has no entity")
	}

	input, err := json.MarshalIndent(promptInput(req), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling prompt input: %w", err)
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: fmt.Sprintf(classificationPrompt, allowedList(req.AllowedClasses)),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: string(input),
			},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("calling OpenAI: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New("no response from OpenAI")
	}

	proposal, err := parseProposal(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	proposal.Model = c.model
	return proposal, nil
}

// inputEntity is the JSON structure the model sees.
type inputEntity struct {
	SourceClass string            `json:"ifc_class"`
	Name        string            `json:"name"`
	LongName    string            `json:"long_name,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	Properties  map[string]any    `json:"properties,omitempty"`
	SpatialPath []string          `json:"spatial_path,omitempty"`
	Neighbors   []inputNeighbor   `json:"neighbors,omitempty"`
	References  string            `json:"retrieved_topN,omitempty"`
}

type inputNeighbor struct {
	Relation string `json:"rel"`
	Class    string `json:"class,omitempty"`
}

func promptInput(req ports.AssistRequest) inputEntity {
	e := req.Entity
	in := inputEntity{
		SourceClass: e.SourceClass,
		Name:        e.Name,
		LongName:    e.LongName,
		Attributes:  e.Attributes,
		SpatialPath: e.SpatialPath,
		References:  formatReferences(req.References),
	}

	if len(e.Properties) > 0 {
		in.Properties = make(map[string]any, len(e.Properties))
		for name, p := range e.Properties {
			in.Properties[name] = propertyValue(p)
		}
	}

	for _, n := range e.Neighbors {
		in.Neighbors = append(in.Neighbors, inputNeighbor{Relation: n.Relation, Class: n.Class})
	}

	return in
}

// propertyValue renders a property the way it would read in a schedule.
func propertyValue(p *entities.Property) any {
	switch {
	case p == nil:
		return nil
	case p.Normalized():
		return strings.TrimSpace(strconv.FormatFloat(*p.Value, 'g', -1, 64) + " " + p.Unit)
	case p.Text != "":
		return p.Text
	case p.RawUnit != "":
		return fmt.Sprintf("%v %s", p.Raw, p.RawUnit)
	default:
		return p.Raw
	}
}

// formatReferences renders retrieved snippets as a numbered block.
func formatReferences(refs []entities.Reference) string {
	if len(refs) == 0 {
		return ""
	}

	blocks := make([]string, 0, len(refs))
	for i, r := range refs {
		blocks = append(blocks, fmt.Sprintf("[%d] %s\n%s\n(source=%s, score=%g, rerank=%g)",
			i+1, strings.TrimSpace(r.Title), strings.TrimSpace(r.Snippet), r.Source, r.Score, r.Rerank))
	}
	return strings.Join(blocks, "\n---\n")
}

func allowedList(classes []string) string {
	if len(classes) == 0 {
		return "<no-constraint>"
	}
	return strings.Join(classes, ", ")
}

// rawProposal is the JSON structure returned by the model.
type rawProposal struct {
	CanonicalClass *string        `json:"canonical_class"`
	Confidence     any            `json:"confidence"`
	ClassCodes     map[string]any `json:"class_codes"`
	Properties     []rawProperty  `json:"properties"`
}

type rawProperty struct {
	Name       string  `json:"k"`
	Value      any     `json:"v"`
	Unit       *string `json:"u"`
	Confidence any     `json:"confidence"`
}

func parseProposal(content string) (*entities.Proposal, error) {
	content = cleanJSONResponse(content)

	var raw rawProposal
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("parsing proposal JSON: %w (response: %s)", err, content)
	}

	p := &entities.Proposal{}
	if raw.CanonicalClass != nil {
		p.Class = strings.TrimSpace(*raw.CanonicalClass)
	}
	p.Confidence = confidenceOf(raw.Confidence)

	for k, v := range raw.ClassCodes {
		code := valueToString(v)
		if code == "" {
			continue
		}
		if p.ClassCodes == nil {
			p.ClassCodes = make(map[string]string)
		}
		p.ClassCodes[k] = code
	}

	for _, rp := range raw.Properties {
		name := strings.TrimSpace(rp.Name)
		if name == "" || rp.Value == nil {
			continue
		}
		prop := &entities.Property{
			Name:       name,
			Raw:        rp.Value,
			Provenance: entities.ProvenanceInferred,
			Confidence: confidenceOf(rp.Confidence),
		}
		if rp.Unit != nil {
			prop.RawUnit = strings.TrimSpace(*rp.Unit)
		}
		if p.Properties == nil {
			p.Properties = make(map[string]*entities.Property)
		}
		p.Properties[name] = prop
	}

	return p, nil
}

// confidenceOf accepts numbers or numeric strings and clamps to [0,1].
func confidenceOf(v any) *float64 {
	var f float64
	switch c := v.(type) {
	case float64:
		f = c
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	f = min(max(f, 0), 1)
	return &f
}

// valueToString converts a JSON value to string (handles numbers from the model).
func valueToString(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(c)
	case float64:
		if c == float64(int(c)) {
			return strconv.Itoa(int(c))
		}
		return strconv.FormatFloat(c, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(c)
	default:
		return fmt.Sprintf("%v", c)
	}
}

// cleanJSONResponse removes markdown code blocks if present.
func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimSuffix(content, "```")
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
	}

	return strings.TrimSpace(content)
}
