// Package transcribe holds the speech-to-text provider clients. All three
// providers return a plain transcript string; Deepgram additionally returns
// diarized utterances so the consult can be rendered as a two-party dialogue.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const deepgramEndpoint = "https://api.deepgram.com/v1/listen"

// Utterance is one diarized segment of a Deepgram transcript.
type Utterance struct {
	Speaker    int     `json:"speaker"`
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
}

// DeepgramResult is a completed prerecorded transcription.
type DeepgramResult struct {
	Transcript string      `json:"transcript"`
	Formatted  string      `json:"formatted"`
	Utterances []Utterance `json:"utterances,omitempty"`
}

type DeepgramClient struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

func NewDeepgram(apiKey string) *DeepgramClient {
	return &DeepgramClient{
		endpoint: deepgramEndpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 2 * time.Minute},
	}
}

func NewDeepgramWithEndpoint(endpoint, apiKey string) *DeepgramClient {
	c := NewDeepgram(apiKey)
	c.endpoint = endpoint
	return c
}

type deepgramResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
		Utterances []Utterance `json:"utterances"`
	} `json:"results"`
}

// Transcribe sends prerecorded audio through the medical-optimized model with
// diarization on, so doctor and patient turns come back labeled.
func (c *DeepgramClient) Transcribe(ctx context.Context, audio []byte, contentType string) (*DeepgramResult, error) {
	params := url.Values{
		"model":        {"nova-2-medical"},
		"smart_format": {"true"},
		"diarize":      {"true"},
		"punctuate":    {"true"},
		"utterances":   {"true"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"?"+params.Encode(), bytes.NewReader(audio))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepgram request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("deepgram error %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var out deepgramResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode deepgram response: %w", err)
	}

	result := &DeepgramResult{Utterances: out.Results.Utterances}
	if len(out.Results.Channels) > 0 && len(out.Results.Channels[0].Alternatives) > 0 {
		result.Transcript = out.Results.Channels[0].Alternatives[0].Transcript
	}
	result.Formatted = formatUtterances(out.Results.Utterances, result.Transcript)
	return result, nil
}

// formatUtterances renders diarized segments as "Doctor: …" / "Patient: …"
// lines. Speaker 0 is assumed to be the clinician.
func formatUtterances(utterances []Utterance, fallback string) string {
	if len(utterances) == 0 {
		return fallback
	}
	lines := make([]string, 0, len(utterances))
	for _, u := range utterances {
		speaker := "Patient"
		if u.Speaker == 0 {
			speaker = "Doctor"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", speaker, u.Transcript))
	}
	return strings.Join(lines, "\n\n")
}
