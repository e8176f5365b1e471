package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const elevenLabsEndpoint = "https://api.elevenlabs.io/v1/speech-to-text"

type ElevenLabsClient struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

func NewElevenLabs(apiKey string) *ElevenLabsClient {
	return &ElevenLabsClient{
		endpoint: elevenLabsEndpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 2 * time.Minute},
	}
}

func NewElevenLabsWithEndpoint(endpoint, apiKey string) *ElevenLabsClient {
	c := NewElevenLabs(apiKey)
	c.endpoint = endpoint
	return c
}

// Transcribe uploads audio as multipart form data and returns the plain
// transcript text.
func (c *ElevenLabsClient) Transcribe(ctx context.Context, audio []byte, filename, model string) (string, error) {
	if model == "" {
		model = "eleven_multilingual_v2"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("audio", filename)
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(audio); err != nil {
		return "", err
	}
	if err := mw.WriteField("model", model); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("elevenlabs request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("elevenlabs error %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var out struct {
		Text       string `json:"text"`
		Transcript string `json:"transcript"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", fmt.Errorf("decode elevenlabs response: %w", err)
	}
	if out.Text != "" {
		return out.Text, nil
	}
	return out.Transcript, nil
}
