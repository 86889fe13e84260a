package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"app/internal/config"

	"github.com/rs/zerolog"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// ErrProviderUnavailable is returned when no generation provider is
// configured.
var ErrProviderUnavailable = errors.New("generation provider is not configured")

// GenerationResult is the output of a try-on composition. Either URL is set
// (already-hosted result, including data URLs) or Data+MIMEType carry the raw
// image bytes.
type GenerationResult struct {
	URL      string
	Data     []byte
	MIMEType string
}

// Generator composes a try-on image from a person photo and an outfit photo.
type Generator interface {
	Generate(ctx context.Context, personURL, outfitURL string) (*GenerationResult, error)
}

type geminiGenerator struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	logger  zerolog.Logger
}

// NewGeminiGenerator creates a Generator backed by the Gemini API. With an
// empty API key every call fails with ErrProviderUnavailable.
func NewGeminiGenerator(cfg *config.Config, logger zerolog.Logger) Generator {
	return &geminiGenerator{
		client:  &http.Client{Timeout: 60 * time.Second},
		baseURL: geminiBaseURL,
		apiKey:  cfg.GeminiAPIKey,
		model:   cfg.GeminiModel,
		logger:  logger.With().Str("service", "GeminiGenerator").Logger(),
	}
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiRequest struct {
	Contents []struct {
		Parts []geminiPart `json:"parts"`
	} `json:"contents"`
	GenerationConfig struct {
		ResponseModalities []string `json:"responseModalities"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

const tryOnPrompt = "Generate a realistic image of the person from the first photo wearing the outfit from the second photo. Preserve the person's pose, face and body proportions."

func (g *geminiGenerator) Generate(ctx context.Context, personURL, outfitURL string) (*GenerationResult, error) {
	if g.apiKey == "" {
		return nil, ErrProviderUnavailable
	}

	person, err := g.fetchImage(ctx, personURL)
	if err != nil {
		return nil, fmt.Errorf("fetch person image: %w", err)
	}
	outfit, err := g.fetchImage(ctx, outfitURL)
	if err != nil {
		return nil, fmt.Errorf("fetch outfit image: %w", err)
	}

	var reqBody geminiRequest
	reqBody.Contents = make([]struct {
		Parts []geminiPart `json:"parts"`
	}, 1)
	reqBody.Contents[0].Parts = []geminiPart{
		{Text: tryOnPrompt},
		{InlineData: person},
		{InlineData: outfit},
	}
	reqBody.GenerationConfig.ResponseModalities = []string{"TEXT", "IMAGE"}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal generation request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call generation provider: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read generation response: %w", err)
	}

	var gr geminiResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return nil, fmt.Errorf("decode generation response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if gr.Error != nil && gr.Error.Message != "" {
			return nil, fmt.Errorf("generation provider error: %s", gr.Error.Message)
		}
		return nil, fmt.Errorf("generation provider returned status %d", resp.StatusCode)
	}
	if len(gr.Candidates) == 0 {
		return nil, errors.New("generation provider returned no candidates")
	}

	for _, part := range gr.Candidates[0].Content.Parts {
		if part.InlineData == nil || part.InlineData.Data == "" {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
		if err != nil {
			return nil, fmt.Errorf("decode generated image data: %w", err)
		}
		return &GenerationResult{Data: data, MIMEType: part.InlineData.MIMEType}, nil
	}
	return nil, errors.New("generation provider returned no image")
}

// fetchImage downloads a source image so it can be inlined into the
// generation request.
func (g *geminiGenerator) fetchImage(ctx context.Context, url string) (*geminiInlineData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create image request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image download returned status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read image body: %w", err)
	}
	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return &geminiInlineData{
		MIMEType: mimeType,
		Data:     base64.StdEncoding.EncodeToString(data),
	}, nil
}
