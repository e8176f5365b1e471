// Package transcription turns consult audio into text through the configured
// speech-to-text providers, and pulls finished transcripts from Heidi scribe
// sessions.
package transcription

import (
	"context"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/shreyaskommuri/ClinicAct/internal/platform/transcribe"
)

// maxAudioBytes caps uploads; consult recordings run well under this.
const maxAudioBytes = 50 << 20

// DeepgramTranscriber transcribes raw audio with speaker diarization.
type DeepgramTranscriber interface {
	Transcribe(ctx context.Context, audio []byte, contentType string) (*transcribe.DeepgramResult, error)
}

// ElevenLabsTranscriber transcribes an uploaded audio file.
type ElevenLabsTranscriber interface {
	Transcribe(ctx context.Context, audio []byte, filename, model string) (string, error)
}

// HeidiReader pulls transcripts from an external scribe session.
type HeidiReader interface {
	Transcript(ctx context.Context, email, userID, sessionID string) (string, error)
}

type Handler struct {
	deepgram   DeepgramTranscriber
	elevenlabs ElevenLabsTranscriber
	heidi      HeidiReader
}

func NewHandler(deepgram DeepgramTranscriber, elevenlabs ElevenLabsTranscriber, heidi HeidiReader) *Handler {
	return &Handler{deepgram: deepgram, elevenlabs: elevenlabs, heidi: heidi}
}

// RegisterRoutes registers transcription routes on the API group.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/transcriptions", h.Transcribe)
	api.GET("/heidi/transcript/:sessionId", h.HeidiTranscript)
}

// Transcribe accepts a multipart audio upload and returns its transcript.
// The provider query parameter picks the engine; deepgram is the default
// because its diarized output labels the doctor and patient turns.
func (h *Handler) Transcribe(c echo.Context) error {
	file, err := c.FormFile("audio")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "audio file is required")
	}
	if file.Size > maxAudioBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "audio file too large")
	}

	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer src.Close()

	audio, err := io.ReadAll(io.LimitReader(src, maxAudioBytes))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(audio) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "audio file is empty")
	}

	ctx := c.Request().Context()
	provider := c.QueryParam("provider")
	switch provider {
	case "", "deepgram":
		if h.deepgram == nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "deepgram is not configured")
		}
		contentType := file.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "audio/wav"
		}
		result, err := h.deepgram.Transcribe(ctx, audio, contentType)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadGateway, err.Error())
		}
		return c.JSON(http.StatusOK, map[string]any{
			"provider":   "deepgram",
			"transcript": result.Formatted,
			"raw":        result.Transcript,
		})
	case "elevenlabs":
		if h.elevenlabs == nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "elevenlabs is not configured")
		}
		transcript, err := h.elevenlabs.Transcribe(ctx, audio, file.Filename, c.QueryParam("model"))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadGateway, err.Error())
		}
		return c.JSON(http.StatusOK, map[string]any{
			"provider":   "elevenlabs",
			"transcript": transcript,
		})
	}
	return echo.NewHTTPError(http.StatusBadRequest, "unknown provider: "+provider)
}

// HeidiTranscript pulls the transcript of a scribe session recorded in the
// Heidi app during the consult.
func (h *Handler) HeidiTranscript(c echo.Context) error {
	if h.heidi == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "heidi is not configured")
	}
	email := c.QueryParam("email")
	userID := c.QueryParam("userId")
	if email == "" || userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and userId are required")
	}

	transcript, err := h.heidi.Transcript(c.Request().Context(), email, userID, c.Param("sessionId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"transcript": transcript})
}
