package media

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/studynote/internal/pkg/errors"
)

type fakeExtractor struct {
	err   error
	calls int
}

func (f *fakeExtractor) ExtractAudio(ctx context.Context, videoPath, audioPath string) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(audioPath, []byte("fake audio"), 0o644)
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	return f.text, f.err
}

func TestIsSupportedVideo(t *testing.T) {
	require.True(t, IsSupportedVideo("lecture.mp4"))
	require.True(t, IsSupportedVideo("LECTURE.MKV"))
	require.True(t, IsSupportedVideo("a/b/clip.mov"))
	require.False(t, IsSupportedVideo("song.mp3"))
	require.False(t, IsSupportedVideo("notes.pdf"))
	require.False(t, IsSupportedVideo("noext"))
}

func TestProcessorTranscribe(t *testing.T) {
	p := NewProcessor(&fakeExtractor{}, &fakeTranscriber{text: "hello world"}, t.TempDir())
	text, err := p.Transcribe(context.Background(), "lecture.mp4")
	require.NoError(t, err)
	require.Equal(t, "hello world", text)
}

func TestProcessorTranscribe_UnsupportedFormat(t *testing.T) {
	p := NewProcessor(&fakeExtractor{}, &fakeTranscriber{}, t.TempDir())
	_, err := p.Transcribe(context.Background(), "song.mp3")
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestProcessorTranscribe_ExtractFailure(t *testing.T) {
	p := NewProcessor(&fakeExtractor{err: errors.New("no audio track")}, &fakeTranscriber{}, t.TempDir())
	_, err := p.Transcribe(context.Background(), "lecture.mp4")
	require.ErrorIs(t, err, appErr.ErrUpstream)
}

func TestProcessorTranscribe_CleansScratchFile(t *testing.T) {
	workDir := t.TempDir()
	p := NewProcessor(&fakeExtractor{}, &fakeTranscriber{text: "x"}, workDir)
	_, err := p.Transcribe(context.Background(), "lecture.mp4")
	require.NoError(t, err)

	entries, err := os.ReadDir(workDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestHTTPTranscriber(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, _, err := r.FormFile("file")
		require.NoError(t, err)
		w.Write([]byte(`{"text": " transcribed words "}`))
	}))
	defer srv.Close()

	tr, err := NewTranscriber("http", map[string]interface{}{
		"endpoint": srv.URL,
		"api_key":  "secret",
	})
	require.NoError(t, err)

	audioPath := filepath.Join(t.TempDir(), "a.wav")
	require.NoError(t, os.WriteFile(audioPath, []byte("wav"), 0o644))

	text, err := tr.Transcribe(context.Background(), audioPath)
	require.NoError(t, err)
	require.Equal(t, "transcribed words", text)
	require.Equal(t, "Bearer secret", gotAuth)
}

func TestHTTPTranscriber_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tr, err := NewTranscriber("http", map[string]interface{}{"endpoint": srv.URL})
	require.NoError(t, err)

	audioPath := filepath.Join(t.TempDir(), "a.wav")
	require.NoError(t, os.WriteFile(audioPath, []byte("wav"), 0o644))

	_, err = tr.Transcribe(context.Background(), audioPath)
	require.Error(t, err)
	require.Contains(t, err.Error(), "model overloaded")
}

func TestNewTranscriber_Unknown(t *testing.T) {
	_, err := NewTranscriber("morse", nil)
	require.Error(t, err)
	_, err = NewTranscriber("http", map[string]interface{}{})
	require.Error(t, err)
}
