package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/studynote/internal/pkg/errors"
)

// AudioExtractor pulls the audio track out of a video file.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, videoPath, audioPath string) error
}

// Transcriber turns an audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

var videoExtensions = map[string]bool{
	".mp4": true,
	".avi": true,
	".mov": true,
	".mkv": true,
}

func IsSupportedVideo(filename string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Processor chains extraction and transcription for one media file.
type Processor struct {
	extractor   AudioExtractor
	transcriber Transcriber
	workDir     string
}

func NewProcessor(extractor AudioExtractor, transcriber Transcriber, workDir string) *Processor {
	return &Processor{extractor: extractor, transcriber: transcriber, workDir: workDir}
}

// Transcribe extracts audio from videoPath into a scratch file and returns
// the transcription text. The scratch file is removed afterwards.
func (p *Processor) Transcribe(ctx context.Context, videoPath string) (string, error) {
	if !IsSupportedVideo(videoPath) {
		return "", fmt.Errorf("%w: unsupported media format %s", appErr.ErrInvalid, filepath.Ext(videoPath))
	}
	if p.extractor == nil || p.transcriber == nil {
		return "", fmt.Errorf("%w: media pipeline not configured", appErr.ErrUpstream)
	}
	if err := os.MkdirAll(p.workDir, 0o755); err != nil {
		return "", err
	}
	audio, err := os.CreateTemp(p.workDir, "audio-*.wav")
	if err != nil {
		return "", err
	}
	audioPath := audio.Name()
	audio.Close()
	defer func() {
		if err := os.Remove(audioPath); err != nil && !os.IsNotExist(err) {
			logutil.GetLogger(ctx).Warn("remove scratch audio failed", zap.String("path", audioPath), zap.Error(err))
		}
	}()

	if err := p.extractor.ExtractAudio(ctx, videoPath, audioPath); err != nil {
		return "", fmt.Errorf("%w: extract audio: %v", appErr.ErrUpstream, err)
	}
	text, err := p.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		return "", fmt.Errorf("%w: transcribe: %v", appErr.ErrUpstream, err)
	}
	return text, nil
}

type TranscriberFactory func(args interface{}) (Transcriber, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]TranscriberFactory{}
)

func Register(name string, factory TranscriberFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func NewTranscriber(typ string, args interface{}) (Transcriber, error) {
	key := strings.ToLower(strings.TrimSpace(typ))
	if key == "" {
		return nil, fmt.Errorf("media.transcriber is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported transcriber type: %s", typ)
	}
	return factory(args)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("transcriber config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode transcriber config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode transcriber config: %w", err)
	}
	return nil
}
