package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/studynote/internal/ai"
	"github.com/xxxsen/studynote/internal/model"
	appErr "github.com/xxxsen/studynote/internal/pkg/errors"
	"github.com/xxxsen/studynote/internal/pkg/textutil"
	"github.com/xxxsen/studynote/internal/vecindex"
)

const (
	DefaultThreshold       = 0.7
	DefaultTopKeywords     = 5
	DefaultRoadmapRefChars = 2000
)

// Embedder is the slice of the ai manager the analysis engine needs.
type Embedder interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
}

// RoadmapGenerator produces study topics from missing keywords. Satisfied by
// *ai.Manager.
type RoadmapGenerator interface {
	StudyRoadmap(ctx context.Context, keywords []string, referenceText string, maxRefChars int) ([]string, error)
}

type Config struct {
	Threshold       float64
	TopKeywords     int
	RoadmapRefChars int
}

func (c *Config) fill() {
	if c.Threshold == 0 {
		c.Threshold = DefaultThreshold
	}
	if c.TopKeywords <= 0 {
		c.TopKeywords = DefaultTopKeywords
	}
	if c.RoadmapRefChars <= 0 {
		c.RoadmapRefChars = DefaultRoadmapRefChars
	}
}

// Engine quantifies how well a user's note covers a reference explanation.
// Embedding failures propagate; keyword extraction and roadmap generation
// always degrade to deterministic fallbacks instead.
type Engine struct {
	embedder Embedder
	roadmaps RoadmapGenerator
	cfg      Config
}

func NewEngine(embedder Embedder, roadmaps RoadmapGenerator, cfg Config) *Engine {
	cfg.fill()
	return &Engine{embedder: embedder, roadmaps: roadmaps, cfg: cfg}
}

// Score computes the accuracy of userText against referenceText: cosine
// similarity of whole-text embeddings damped by a length-balance penalty,
// clamped to [0, 1].
func (e *Engine) Score(ctx context.Context, userText, referenceText string) (float64, error) {
	if strings.TrimSpace(userText) == "" || strings.TrimSpace(referenceText) == "" {
		return 0, fmt.Errorf("%w: both texts are required", appErr.ErrInvalid)
	}
	userVec, err := e.embedder.Embed(ctx, userText, ai.TaskSemanticSimilarity)
	if err != nil {
		return 0, fmt.Errorf("%w: embed user text: %v", appErr.ErrUpstream, err)
	}
	refVec, err := e.embedder.Embed(ctx, referenceText, ai.TaskSemanticSimilarity)
	if err != nil {
		return 0, fmt.Errorf("%w: embed reference text: %v", appErr.ErrUpstream, err)
	}
	sim := float64(vecindex.Cosine(userVec, refVec))

	wordsUser := len(strings.Fields(userText))
	wordsRef := len(strings.Fields(referenceText))
	penalty := 1.0
	if maxWords := max(wordsUser, wordsRef); maxWords > 0 {
		penalty = 1 - float64(abs(wordsUser-wordsRef))/float64(maxWords)
	}
	if penalty < 0 {
		penalty = 0
	}

	raw := sim * penalty
	if raw < 0 {
		return 0, nil
	}
	if raw > 1 {
		return 1, nil
	}
	return raw, nil
}

// FindGaps returns the sentences of referenceText whose best match among the
// user's sentences falls below threshold, in reference order. When either
// side has no sentences, every reference sentence is reported.
func (e *Engine) FindGaps(ctx context.Context, userText, referenceText string, threshold float64) ([]string, error) {
	refUnits := textutil.Sentences(referenceText)
	userUnits := textutil.Sentences(userText)
	if len(refUnits) == 0 || len(userUnits) == 0 {
		return refUnits, nil
	}

	userVecs := make([][]float32, 0, len(userUnits))
	for _, unit := range userUnits {
		vec, err := e.embedder.Embed(ctx, unit, ai.TaskSemanticSimilarity)
		if err != nil {
			return nil, fmt.Errorf("%w: embed user sentence: %v", appErr.ErrUpstream, err)
		}
		userVecs = append(userVecs, vec)
	}

	var missing []string
	for _, unit := range refUnits {
		refVec, err := e.embedder.Embed(ctx, unit, ai.TaskSemanticSimilarity)
		if err != nil {
			return nil, fmt.Errorf("%w: embed reference sentence: %v", appErr.ErrUpstream, err)
		}
		best := float64(-1)
		for _, userVec := range userVecs {
			if sim := float64(vecindex.Cosine(refVec, userVec)); sim > best {
				best = sim
			}
		}
		if best < threshold {
			missing = append(missing, unit)
		}
	}
	return missing, nil
}

// MissingKeywords returns the salient reference terms absent from the user's
// keyword set, most salient first. Never fails: texts that defeat salience
// ranking fall back to naive tokens.
func (e *Engine) MissingKeywords(ctx context.Context, userText, referenceText string) []string {
	refKeywords := e.keywords(ctx, referenceText)
	userSet := make(map[string]bool)
	for _, keyword := range e.keywords(ctx, userText) {
		userSet[keyword] = true
	}
	missing := make([]string, 0, len(refKeywords))
	for _, keyword := range refKeywords {
		if !userSet[keyword] {
			missing = append(missing, keyword)
		}
	}
	return missing
}

func (e *Engine) keywords(ctx context.Context, text string) []string {
	scores, err := textutil.Salience(text, e.cfg.TopKeywords)
	if err == nil {
		keywords := make([]string, 0, len(scores))
		for _, score := range scores {
			keywords = append(keywords, score.Term)
		}
		return keywords
	}
	logutil.GetLogger(ctx).Debug("salience ranking failed, using naive tokens", zap.Error(err))
	seen := make(map[string]bool)
	keywords := make([]string, 0, e.cfg.TopKeywords)
	for _, token := range textutil.NaiveTokens(text) {
		if seen[token] {
			continue
		}
		seen[token] = true
		keywords = append(keywords, token)
		if len(keywords) >= e.cfg.TopKeywords {
			break
		}
	}
	return keywords
}

// Roadmap asks the completion model for study topics covering the missing
// keywords. Never fails: on any error the deterministic fallback list is
// returned.
func (e *Engine) Roadmap(ctx context.Context, keywords []string, referenceText string) []string {
	if e.roadmaps != nil {
		topics, err := e.roadmaps.StudyRoadmap(ctx, keywords, referenceText, e.cfg.RoadmapRefChars)
		if err == nil && len(topics) > 0 {
			return topics
		}
		if err != nil {
			logutil.GetLogger(ctx).Warn("roadmap generation failed, using fallback", zap.Error(err))
		}
	}
	return FallbackRoadmap(keywords)
}

// FallbackRoadmap is the deterministic roadmap used when the completion
// model is unavailable or returns something unparseable.
func FallbackRoadmap(keywords []string) []string {
	if len(keywords) == 0 {
		return []string{
			"Review the reference material end to end",
			"Practice applying key concepts",
			"Summarize each section in your own words",
		}
	}
	head := keywords
	if len(head) > 3 {
		head = head[:3]
	}
	return []string{
		"Review fundamentals of " + strings.Join(head, ", "),
		"Re-read the sections covering these topics",
		"Practice applying key concepts",
		"Rewrite your notes including the missing points",
	}
}

// Analyze runs the full pipeline: accuracy, gaps, missing keywords and
// roadmap. Either a complete result or an error, never both.
func (e *Engine) Analyze(ctx context.Context, userText, referenceText string) (*model.AnalysisResult, error) {
	accuracy, err := e.Score(ctx, userText, referenceText)
	if err != nil {
		return nil, err
	}
	gaps, err := e.FindGaps(ctx, userText, referenceText, e.cfg.Threshold)
	if err != nil {
		return nil, err
	}
	keywords := e.MissingKeywords(ctx, userText, referenceText)
	roadmap := e.Roadmap(ctx, keywords, referenceText)
	return &model.AnalysisResult{
		Accuracy:          accuracy,
		MissingStatements: gaps,
		MissingKeywords:   keywords,
		Roadmap:           roadmap,
		UserText:          userText,
		ReferenceText:     referenceText,
	}, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
