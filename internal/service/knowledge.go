package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/studynote/internal/ai"
	"github.com/xxxsen/studynote/internal/analysis"
	"github.com/xxxsen/studynote/internal/chunker"
	"github.com/xxxsen/studynote/internal/filestore"
	"github.com/xxxsen/studynote/internal/media"
	"github.com/xxxsen/studynote/internal/model"
	appErr "github.com/xxxsen/studynote/internal/pkg/errors"
	"github.com/xxxsen/studynote/internal/pkg/textutil"
	"github.com/xxxsen/studynote/internal/retrieval"
	"github.com/xxxsen/studynote/internal/store"
)

var documentExtensions = map[string]struct{}{
	".pdf": {},
	".txt": {},
	".md":  {},
}

// Knowledge ties upload, ingestion, retrieval and analysis together behind
// one surface the handlers can call.
type Knowledge struct {
	chunks    *chunker.Chunker
	stores    *store.Manager
	retriever *retrieval.Engine
	analyzer  *analysis.Engine
	manager   *ai.Manager
	files     filestore.IFileStore
	media     *media.Processor
}

func NewKnowledge(chunks *chunker.Chunker, stores *store.Manager, retriever *retrieval.Engine,
	analyzer *analysis.Engine, manager *ai.Manager, files filestore.IFileStore, proc *media.Processor) *Knowledge {
	return &Knowledge{
		chunks:    chunks,
		stores:    stores,
		retriever: retriever,
		analyzer:  analyzer,
		manager:   manager,
		files:     files,
		media:     proc,
	}
}

// IngestText chunks raw text and replaces the collection behind key with it.
// Notes are treated as markdown and stripped down to plain text first.
func (k *Knowledge) IngestText(ctx context.Context, key model.StoreKey, text, sourceID string) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if key.Kind == model.KindNotes {
		text = textutil.StripMarkdown(text)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: empty text", appErr.ErrInvalid)
	}
	chunks := k.chunks.Split(text, sourceID)
	return k.stores.Ingest(ctx, key, chunks)
}

// IngestDocument stores the uploaded file, extracts its text and ingests it.
func (k *Knowledge) IngestDocument(ctx context.Context, key model.StoreKey, filename string, r io.ReadSeeker, size int64) error {
	if err := key.Validate(); err != nil {
		return err
	}
	ext := strings.ToLower(path.Ext(filename))
	if _, ok := documentExtensions[ext]; !ok {
		return fmt.Errorf("%w: unsupported document type %q", appErr.ErrInvalid, ext)
	}
	if err := k.files.Save(ctx, key.Path()+"/"+path.Base(filename), r, size); err != nil {
		logutil.GetLogger(ctx).Error("save uploaded document failed",
			zap.String("key", key.Path()), zap.String("filename", filename), zap.Error(err))
		return fmt.Errorf("save document: %w", err)
	}
	text, err := extractText(r, size, ext)
	if err != nil {
		return err
	}
	return k.IngestText(ctx, key, text, path.Base(filename))
}

// IngestMedia transcribes an uploaded video from a local scratch path and
// ingests the transcript.
func (k *Knowledge) IngestMedia(ctx context.Context, key model.StoreKey, filename, scratchPath string) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if !media.IsSupportedVideo(filename) {
		return fmt.Errorf("%w: unsupported media type %q", appErr.ErrInvalid, path.Ext(filename))
	}
	if k.media == nil {
		return fmt.Errorf("%w: media ingestion is not configured", appErr.ErrInvalid)
	}
	transcript, err := k.media.Transcribe(ctx, scratchPath)
	if err != nil {
		return err
	}
	return k.IngestText(ctx, key, transcript, path.Base(filename))
}

func (k *Knowledge) Query(ctx context.Context, key model.StoreKey, question string) (string, error) {
	return k.retriever.Answer(ctx, key, question)
}

func (k *Knowledge) ExplainTopic(ctx context.Context, key model.StoreKey, topic string) (string, error) {
	return k.retriever.Explain(ctx, key, topic)
}

func (k *Knowledge) Exists(ctx context.Context, key model.StoreKey) (bool, error) {
	return k.stores.Exists(ctx, key)
}

func (k *Knowledge) Delete(ctx context.Context, key model.StoreKey) error {
	return k.stores.Delete(ctx, key)
}

// Analyze compares user notes against explicit reference text.
func (k *Knowledge) Analyze(ctx context.Context, userText, referenceText string) (*model.AnalysisResult, error) {
	return k.analyzer.Analyze(ctx, userText, referenceText)
}

// AnalyzeAgainst builds the reference text from the stored collection by
// explaining the given topic, then runs the full analysis against it.
func (k *Knowledge) AnalyzeAgainst(ctx context.Context, key model.StoreKey, topic, userText string) (*model.AnalysisResult, error) {
	reference, err := k.ExplainTopic(ctx, key, topic)
	if err != nil {
		return nil, err
	}
	return k.analyzer.Analyze(ctx, userText, reference)
}

// Corrections asks the tutor model to point out concrete mistakes in the
// user's notes relative to the reference.
func (k *Knowledge) Corrections(ctx context.Context, userText, referenceText string) (string, error) {
	if strings.TrimSpace(userText) == "" || strings.TrimSpace(referenceText) == "" {
		return "", fmt.Errorf("%w: both texts are required", appErr.ErrInvalid)
	}
	out, err := k.manager.Corrections(ctx, userText, referenceText)
	if err != nil {
		return "", fmt.Errorf("%w: %v", appErr.ErrUpstream, err)
	}
	return out, nil
}

func extractText(r io.ReadSeeker, size int64, ext string) (string, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	switch ext {
	case ".pdf":
		return extractPDFText(r, size)
	case ".md":
		raw, err := io.ReadAll(r)
		if err != nil {
			return "", err
		}
		return textutil.StripMarkdown(string(raw)), nil
	default:
		raw, err := io.ReadAll(r)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
}

func extractPDFText(r io.ReadSeeker, size int64) (string, error) {
	ra, ok := r.(io.ReaderAt)
	if !ok {
		raw, err := io.ReadAll(r)
		if err != nil {
			return "", err
		}
		ra = bytes.NewReader(raw)
		size = int64(len(raw))
	}
	reader, err := pdf.NewReader(ra, size)
	if err != nil {
		return "", fmt.Errorf("%w: unreadable pdf: %v", appErr.ErrInvalid, err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: extract pdf text: %v", appErr.ErrInvalid, err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}
