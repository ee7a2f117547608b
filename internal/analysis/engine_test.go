package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/studynote/internal/pkg/errors"
	"github.com/xxxsen/studynote/internal/pkg/textutil"
)

// bagEmbedder embeds text as content-token counts over a hashed vocabulary,
// deterministic and symmetric.
type bagEmbedder struct {
	err error
}

func (b *bagEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if b.err != nil {
		return nil, b.err
	}
	vec := make([]float32, 64)
	for _, token := range textutil.ContentTokens(text) {
		sum := 0
		for _, r := range token {
			sum += int(r)
		}
		vec[sum%len(vec)]++
	}
	return vec, nil
}

type fakeRoadmaps struct {
	topics []string
	err    error
}

func (f *fakeRoadmaps) StudyRoadmap(ctx context.Context, keywords []string, referenceText string, maxRefChars int) ([]string, error) {
	return f.topics, f.err
}

func newTestEngine(embErr error) *Engine {
	return NewEngine(&bagEmbedder{err: embErr}, nil, Config{})
}

func TestScore_IdenticalTextsNearOne(t *testing.T) {
	e := newTestEngine(nil)
	text := "mitochondria produce energy for the cell"
	score, err := e.Score(context.Background(), text, text)
	require.NoError(t, err)
	require.InDelta(t, 1.0, score, 1e-6)
}

func TestScore_Symmetric(t *testing.T) {
	e := newTestEngine(nil)
	a := "mitochondria produce energy"
	b := "the nucleus stores genetic material in dna form"
	s1, err := e.Score(context.Background(), a, b)
	require.NoError(t, err)
	s2, err := e.Score(context.Background(), b, a)
	require.NoError(t, err)
	require.InDelta(t, s1, s2, 1e-9)
}

func TestScore_BoundedAndPenalized(t *testing.T) {
	e := newTestEngine(nil)
	short := "energy energy"
	long := "energy energy " + strings.Repeat("energy ", 20)
	score, err := e.Score(context.Background(), short, long)
	require.NoError(t, err)
	require.GreaterOrEqual(t, score, 0.0)
	require.LessOrEqual(t, score, 1.0)
	// same direction vectors but wildly different lengths: damped well below 1
	require.Less(t, score, 0.5)
}

func TestScore_EmptyInput(t *testing.T) {
	e := newTestEngine(nil)
	_, err := e.Score(context.Background(), "", "reference")
	require.ErrorIs(t, err, appErr.ErrInvalid)
	_, err = e.Score(context.Background(), "user", "   ")
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestScore_EmbedFailure(t *testing.T) {
	e := newTestEngine(errors.New("backend down"))
	_, err := e.Score(context.Background(), "user", "reference")
	require.ErrorIs(t, err, appErr.ErrUpstream)
}

func TestFindGaps_ReportsUncoveredReferenceSentences(t *testing.T) {
	e := newTestEngine(nil)
	user := "Mitochondria produce energy."
	ref := "The mitochondria produce energy. The cell membrane controls transport."

	missing, err := e.FindGaps(context.Background(), user, ref, 0.7)
	require.NoError(t, err)
	require.Equal(t, []string{"The cell membrane controls transport"}, missing)
}

func TestFindGaps_EmptyUserReportsEverything(t *testing.T) {
	e := newTestEngine(nil)
	ref := "First fact. Second fact."
	missing, err := e.FindGaps(context.Background(), "", ref, 0.7)
	require.NoError(t, err)
	require.Equal(t, []string{"First fact", "Second fact"}, missing)
}

func TestFindGaps_ThresholdExtremes(t *testing.T) {
	e := newTestEngine(nil)
	user := "Mitochondria produce energy."
	ref := "Mitochondria produce energy. Membranes control transport."

	all, err := e.FindGaps(context.Background(), user, ref, 1.1)
	require.NoError(t, err)
	require.Len(t, all, 2)

	none, err := e.FindGaps(context.Background(), user, ref, -1.0)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestFindGaps_PreservesReferenceOrder(t *testing.T) {
	e := newTestEngine(nil)
	ref := "Zebra fact here. Apple fact here. Baton fact here."
	missing, err := e.FindGaps(context.Background(), "unrelated content entirely", ref, 1.1)
	require.NoError(t, err)
	require.Equal(t, []string{"Zebra fact here", "Apple fact here", "Baton fact here"}, missing)
}

func TestMissingKeywords_SelfIsEmpty(t *testing.T) {
	e := newTestEngine(nil)
	text := "Mitochondria produce energy. Chloroplasts capture light."
	require.Empty(t, e.MissingKeywords(context.Background(), text, text))
}

func TestMissingKeywords_FindsAbsentTerms(t *testing.T) {
	e := newTestEngine(nil)
	user := "Mitochondria produce energy."
	ref := "Mitochondria produce energy. Chloroplasts capture light energy."
	missing := e.MissingKeywords(context.Background(), user, ref)
	require.Contains(t, missing, "chloroplasts")
	require.NotContains(t, missing, "mitochondria")
}

func TestMissingKeywords_NaiveFallback(t *testing.T) {
	e := newTestEngine(nil)
	// all reference words are stop words, defeating salience ranking
	missing := e.MissingKeywords(context.Background(), "something else", "the of and is")
	require.Equal(t, []string{"the", "of", "and", "is"}, missing)
}

func TestFallbackRoadmap(t *testing.T) {
	empty := FallbackRoadmap(nil)
	require.Len(t, empty, 3)

	withKeys := FallbackRoadmap([]string{"osmosis", "diffusion", "transport", "extra"})
	require.Len(t, withKeys, 4)
	require.Contains(t, withKeys[0], "osmosis, diffusion, transport")
	require.NotContains(t, withKeys[0], "extra")
}

func TestRoadmap_FallsBackOnGeneratorError(t *testing.T) {
	e := NewEngine(&bagEmbedder{}, &fakeRoadmaps{err: errors.New("model down")}, Config{})
	topics := e.Roadmap(context.Background(), []string{"osmosis"}, "reference")
	require.Equal(t, FallbackRoadmap([]string{"osmosis"}), topics)
}

func TestRoadmap_UsesGeneratorTopics(t *testing.T) {
	e := NewEngine(&bagEmbedder{}, &fakeRoadmaps{topics: []string{"Study osmosis"}}, Config{})
	topics := e.Roadmap(context.Background(), []string{"osmosis"}, "reference")
	require.Equal(t, []string{"Study osmosis"}, topics)
}

func TestAnalyze_FullPipeline(t *testing.T) {
	e := NewEngine(&bagEmbedder{}, &fakeRoadmaps{topics: []string{"Review membranes"}}, Config{})
	user := "Mitochondria produce energy."
	ref := "The mitochondria produce energy. The cell membrane controls transport."

	result, err := e.Analyze(context.Background(), user, ref)
	require.NoError(t, err)
	require.Greater(t, result.Accuracy, 0.0)
	require.LessOrEqual(t, result.Accuracy, 1.0)
	require.Equal(t, []string{"The cell membrane controls transport"}, result.MissingStatements)
	require.NotEmpty(t, result.MissingKeywords)
	require.Equal(t, []string{"Review membranes"}, result.Roadmap)
	require.Equal(t, user, result.UserText)
	require.Equal(t, ref, result.ReferenceText)
}

func TestAnalyze_PropagatesEmbedFailure(t *testing.T) {
	e := newTestEngine(errors.New("down"))
	_, err := e.Analyze(context.Background(), "user text", "reference text")
	require.ErrorIs(t, err, appErr.ErrUpstream)
}
