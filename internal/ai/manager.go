package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Embedding task types understood by the gemini backend; other providers
// ignore them.
const (
	TaskRetrievalDocument  = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery     = "RETRIEVAL_QUERY"
	TaskSemanticSimilarity = "SEMANTIC_SIMILARITY"
)

type ManagerConfig struct {
	Timeout       int
	MaxInputChars int
}

// Manager wraps the configured generator and embedder with prompt templates
// and a per-call timeout.
type Manager struct {
	generator IGenerator
	embedder  IEmbedder
	cfg       ManagerConfig
}

func NewManager(generator IGenerator, embedder IEmbedder, cfg ManagerConfig) *Manager {
	return &Manager{
		generator: generator,
		embedder:  embedder,
		cfg:       cfg,
	}
}

func (m *Manager) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if m.embedder == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(m.cfg.Timeout)*time.Second)
		defer cancel()
	}
	return m.embedder.Embed(ctx, text, taskType)
}

// Answer produces an answer to question grounded on the supplied context
// passages.
func (m *Manager) Answer(ctx context.Context, contextText, question string) (string, error) {
	if m.generator == nil {
		return "", fmt.Errorf("generator not configured")
	}
	prompt := fmt.Sprintf(`You are a study assistant.
Answer the question using only the reference material below.
- If the material does not contain the answer, say so.
- Be concise and factual.

MATERIAL:
%s

QUESTION:
%s`, contextText, question)
	return m.generateText(ctx, prompt)
}

// Explain produces a self-contained explanation of topic grounded on the
// supplied context passages.
func (m *Manager) Explain(ctx context.Context, contextText, topic string) (string, error) {
	if m.generator == nil {
		return "", fmt.Errorf("generator not configured")
	}
	prompt := fmt.Sprintf(`You are a tutor.
Using only the reference material below, explain the topic %q in complete sentences.
- Cover every fact in the material that is relevant to the topic.
- Do not invent facts that are not in the material.

MATERIAL:
%s`, topic, contextText)
	return m.generateText(ctx, prompt)
}

// StudyRoadmap asks for 4-8 study topics covering the missing keywords.
// The reference text is truncated to maxRefChars to bound the prompt.
func (m *Manager) StudyRoadmap(ctx context.Context, keywords []string, referenceText string, maxRefChars int) ([]string, error) {
	if m.generator == nil {
		return nil, fmt.Errorf("generator not configured")
	}
	ref := referenceText
	if maxRefChars > 0 {
		if runes := []rune(ref); len(runes) > maxRefChars {
			ref = string(runes[:maxRefChars])
		}
	}
	prompt := fmt.Sprintf(`You are a tutor.
The keywords '%s' were found missing in a student's notes about the material below.
Suggest 4-8 study topics that cover these missing areas.
Return ONLY a JSON object like {"topics": ["Topic1", "Topic2"]}.

MATERIAL:
%s`, strings.Join(keywords, ", "), ref)
	result, err := m.generateText(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return ParseTopics(result)
}

// Corrections asks the model to rectify mistakes in the user's note relative
// to the reference facts.
func (m *Manager) Corrections(ctx context.Context, userText, referenceText string) (string, error) {
	if m.generator == nil {
		return "", fmt.Errorf("generator not configured")
	}
	prompt := fmt.Sprintf(`You are a tutor. The following paragraph contains the facts:
%s

Your student wrote:
%s

Rectify their mistakes and provide corrections.`, referenceText, userText)
	return m.generateText(ctx, prompt)
}

func (m *Manager) generateText(ctx context.Context, prompt string) (string, error) {
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(m.cfg.Timeout)*time.Second)
		defer cancel()
	}
	resp, err := m.generator.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp)
	if text == "" {
		return "", fmt.Errorf("empty ai response")
	}
	return text, nil
}

func (m *Manager) MaxInputChars() int {
	return m.cfg.MaxInputChars
}

func (m *Manager) EmbeddingModelName() string {
	if m.embedder == nil {
		return ""
	}
	return m.embedder.ModelName()
}

// ParseTopics extracts the topics list from a model response expected to be
// a JSON object {"topics": [...]}, tolerating code fences and surrounding
// prose.
func ParseTopics(output string) ([]string, error) {
	clean := strings.TrimSpace(output)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)
	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start >= 0 && end > start {
		clean = clean[start : end+1]
	}

	var parsed struct {
		Topics []string `json:"topics"`
	}
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		return nil, fmt.Errorf("parse topics: %w", err)
	}
	topics := make([]string, 0, len(parsed.Topics))
	seen := make(map[string]bool)
	for _, topic := range parsed.Topics {
		normalized := strings.TrimSpace(topic)
		if normalized == "" {
			continue
		}
		key := strings.ToLower(normalized)
		if seen[key] {
			continue
		}
		seen[key] = true
		topics = append(topics, normalized)
	}
	if len(topics) == 0 {
		return nil, fmt.Errorf("no topics found")
	}
	return topics, nil
}
