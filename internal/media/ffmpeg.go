package media

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// FFmpegExtractor shells out to ffmpeg to pull a mono 16kHz wav track from a
// video file.
type FFmpegExtractor struct {
	binary     string
	sampleRate int
	channels   int
}

func NewFFmpegExtractor(binary string) *FFmpegExtractor {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpegExtractor{binary: binary, sampleRate: 16000, channels: 1}
}

func (e *FFmpegExtractor) ExtractAudio(ctx context.Context, videoPath, audioPath string) error {
	cmd := exec.CommandContext(ctx, e.binary,
		"-i", videoPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", fmt.Sprintf("%d", e.sampleRate),
		"-ac", fmt.Sprintf("%d", e.channels),
		"-y", audioPath,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(output))
		if len(detail) > 512 {
			detail = detail[len(detail)-512:]
		}
		return fmt.Errorf("ffmpeg failed: %v: %s", err, detail)
	}
	return nil
}
