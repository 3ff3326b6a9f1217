package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/campusfeed/campusfeed/feed"
)

// Remote classifies text through an external service and may fail.
type Remote interface {
	Classify(ctx context.Context, text string) (Result, error)
}

const classifyPrompt = `You label posts for a college campus community feed.
Classify the post into exactly one type: "event", "lost_found" or "announcement".
Reply with JSON only, shaped as:
{"type": "...", "confidence": 0.0-1.0, "extractedData": {"title": "", "description": "",
"location": "", "date": "YYYY-MM-DD", "time": "HH:MM", "department": "",
"itemType": "lost|found", "itemName": ""}}
Only fill the fields that belong to the chosen type. Today is %s.

Post:
%s`

// Gemini classifies posts with a Google Gemini model.
type Gemini struct {
	client *genai.Client
	model  string
	now    func() time.Time
}

// NewGemini creates a Gemini classifier for the given API key and model.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key not configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Gemini{client: client, model: model, now: time.Now}, nil
}

func (g *Gemini) Classify(ctx context.Context, text string) (Result, error) {
	prompt := fmt.Sprintf(classifyPrompt, g.now().Format(time.DateOnly), text)
	out, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.1),
	})
	if err != nil {
		return Result{}, fmt.Errorf("gemini generate: %w", err)
	}
	return ParseResult(out.Text())
}

// ParseResult decodes a model reply, tolerating markdown code fences.
func ParseResult(raw string) (Result, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var payload struct {
		Type          string           `json:"type"`
		Confidence    float64          `json:"confidence"`
		ExtractedData feed.PostPreview `json:"extractedData"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &payload); err != nil {
		return Result{}, fmt.Errorf("decode classification: %w", err)
	}
	t, err := feed.ParsePostType(payload.Type)
	if err != nil {
		return Result{}, err
	}
	conf := payload.Confidence
	if conf < 0 {
		conf = 0
	} else if conf > 1 {
		conf = 1
	}
	pv := payload.ExtractedData
	pv.Type = t
	pv.ItemType = feed.ItemType(strings.ToLower(strings.TrimSpace(string(pv.ItemType))))
	return Result{Type: t, Confidence: conf, ExtractedData: pv}, nil
}

// Service classifies with the remote model when one is configured and falls
// back to the local rules on any failure.
type Service struct {
	Local   *Classifier
	Remote  Remote
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewService wires a local classifier with an optional remote one.
func NewService(local *Classifier, remote Remote, logger *zap.Logger) *Service {
	if local == nil {
		local = New(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{Local: local, Remote: remote, Timeout: 10 * time.Second, Logger: logger}
}

// Classify never fails. The boolean reports whether the remote model answered.
func (s *Service) Classify(ctx context.Context, text string) (Result, bool) {
	if s.Remote == nil || strings.TrimSpace(text) == "" {
		return s.Local.Classify(text), false
	}
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	res, err := s.Remote.Classify(ctx, text)
	if err != nil {
		s.Logger.Warn("remote classification failed, using keyword rules", zap.Error(err))
		return s.Local.Classify(text), false
	}
	return s.repair(text, res), true
}

// Preview classifies text and returns the enhanced, complete draft.
func (s *Service) Preview(ctx context.Context, text string) (Result, feed.PostPreview, bool) {
	res, remote := s.Classify(ctx, text)
	pv := res.ExtractedData
	pv.Type = res.Type
	return res, s.Local.Complete(Enhance(pv)), remote
}

// repair replaces malformed model fields with locally extracted ones.
func (s *Service) repair(text string, res Result) Result {
	e := s.Local.Extractor
	pv := &res.ExtractedData
	if strings.TrimSpace(pv.Title) == "" {
		pv.Title = e.Title(text)
	}
	if strings.TrimSpace(pv.Description) == "" {
		pv.Description = text
	}
	if pv.Date != "" {
		if _, err := time.Parse(time.DateOnly, pv.Date); err != nil {
			pv.Date = e.Date(text)
		}
	}
	if pv.Time != "" {
		if _, err := time.Parse("15:04", pv.Time); err != nil {
			pv.Time = e.Time(text)
		}
	}
	if pv.ItemType != "" && pv.ItemType != feed.ItemLost && pv.ItemType != feed.ItemFound {
		pv.ItemType = feed.ItemLost
	}
	return res
}
