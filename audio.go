package halcyon

import (
	"context"
	"fmt"
	"io"

	"github.com/halcyonai/halcyon/internal/httpx"
)

const (
	audioTranscriptionsPath = "/audio/transcriptions"
	audioTranslationsPath   = "/audio/translations"
	audioSpeechPath         = "/audio/speech"
)

// TranscriptionRequest transcribes (or, for translations, translates to
// English) an audio file. File and FileName are required; the server infers
// the format from the file name extension.
type TranscriptionRequest struct {
	File        io.Reader
	FileName    string
	Model       string
	Prompt      string
	Language    string
	Temperature *float64
	// ResponseFormat selects the transcript shape ("json", "text", "srt",
	// "verbose_json", "vtt"). Only "json" (the default) decodes into
	// AudioResponse; other formats are returned verbatim in Text.
	ResponseFormat string
}

// AudioResponse is the transcription/translation response.
type AudioResponse struct {
	Text string `json:"text"`
}

// SpeechRequest synthesizes audio from text.
type SpeechRequest struct {
	Model          string   `json:"model"`
	Input          string   `json:"input"`
	Voice          string   `json:"voice"`
	ResponseFormat string   `json:"response_format,omitempty"` // "mp3", "opus", "aac", "flac", ...
	Speed          *float64 `json:"speed,omitempty"`
}

// CreateTranscription transcribes the given audio file in its source
// language.
func (c *Client) CreateTranscription(ctx context.Context, request TranscriptionRequest) (*AudioResponse, error) {
	return c.uploadAudio(ctx, audioTranscriptionsPath, request, true)
}

// CreateTranslation transcribes the given audio file and translates it to
// English. The request's Language field is ignored: the output language is
// always English.
func (c *Client) CreateTranslation(ctx context.Context, request TranscriptionRequest) (*AudioResponse, error) {
	return c.uploadAudio(ctx, audioTranslationsPath, request, false)
}

// CreateSpeech synthesizes speech from text and returns the raw audio bytes
// in the requested format.
func (c *Client) CreateSpeech(ctx context.Context, request SpeechRequest) ([]byte, error) {
	audio, err := httpx.DoPostBinary(
		c.callContext(ctx), c.syncClient(), c.endpointURL(audioSpeechPath), c.apiKey, request, c.headers()...)
	if err != nil {
		return nil, wrapAPIError(err)
	}
	return audio, nil
}

// uploadAudio handles the shared multipart upload for the transcription and
// translation endpoints.
func (c *Client) uploadAudio(ctx context.Context, path string, request TranscriptionRequest, includeLanguage bool) (*AudioResponse, error) {
	if request.File == nil || request.FileName == "" {
		return nil, fmt.Errorf("audio upload: File and FileName are required")
	}

	fields := map[string]string{
		"model":           request.Model,
		"prompt":          request.Prompt,
		"response_format": request.ResponseFormat,
	}
	if includeLanguage {
		fields["language"] = request.Language
	}
	if request.Temperature != nil {
		fields["temperature"] = fmt.Sprint(*request.Temperature)
	}

	files := []httpx.FilePart{{FieldName: "file", FileName: request.FileName, Reader: request.File}}

	_, response, err := httpx.DoPostMultipart[AudioResponse](
		c.callContext(ctx), c.syncClient(), c.endpointURL(path), c.apiKey, fields, files, c.headers()...)
	if err != nil {
		return nil, wrapAPIError(err)
	}
	return response, nil
}
