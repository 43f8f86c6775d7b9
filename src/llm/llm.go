package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"textlens/src/apperr"
	"textlens/src/credential"
)

const (
	DefaultEndpoint = "https://api.groq.com/openai/v1/chat/completions"
	DefaultModel    = "meta-llama/llama-4-scout-17b-16e-instruct"

	analysisPrompt = "Please analyze the following extracted text and provide insights, summary, and any relevant information:\n\n\"%s\""

	visionPrompt = "Perform OCR on this image. Return ONLY the raw extracted text with:\n" +
		"- No formatting\n" +
		"- No XML/HTML tags\n" +
		"- No markdown\n" +
		"- No explanations\n" +
		"- Preserve line breaks accurately from the visual layout.\n" +
		"If no text found, return 'NO_TEXT_FOUND'"

	noTextSentinel = "NO_TEXT_FOUND"
)

// Chat completion API structures
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type Content struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type ChatResponse struct {
	Choices []Choice  `json:"choices"`
	Error   *APIError `json:"error,omitempty"`
}

type Choice struct {
	Message ResponseMessage `json:"message"`
}

type ResponseMessage struct {
	Content *string `json:"content"`
}

type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"` // Can be string or number
}

// Client calls an OpenAI-compatible chat completion endpoint. The API key is
// read from Store before every call.
type Client struct {
	Endpoint   string
	Model      string
	Store      credential.Store
	HTTPClient *http.Client
}

// New returns a client with defaults filled in. The HTTP client has no
// timeout; callers bound calls through the context.
func New(endpoint, model string, store credential.Store) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{Endpoint: endpoint, Model: model, Store: store, HTTPClient: &http.Client{}}
}

// Prompt wraps text in the analysis prompt template.
func Prompt(text string) string {
	return fmt.Sprintf(analysisPrompt, text)
}

// Analyze sends text to the model and returns its analysis. Exactly one
// request is made.
func (c *Client) Analyze(ctx context.Context, text string) (string, error) {
	key, err := credential.APIKey(ctx, c.Store)
	if err != nil {
		return "", err
	}

	return c.complete(ctx, key, ChatRequest{
		Model:    c.Model,
		Messages: []Message{{Role: "user", Content: Prompt(text)}},
	})
}

// QueryVision asks the model to transcribe a PNG image. An image without text
// yields "".
func (c *Client) QueryVision(ctx context.Context, imageData []byte) (string, error) {
	key, err := credential.APIKey(ctx, c.Store)
	if err != nil {
		return "", err
	}

	imageURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(imageData)
	temperature := 0.1
	text, err := c.complete(ctx, key, ChatRequest{
		Model: c.Model,
		Messages: []Message{{
			Role: "user",
			Content: []Content{
				{Type: "text", Text: visionPrompt},
				{Type: "image_url", ImageURL: &ImageURL{URL: imageURL}},
			},
		}},
		Temperature: &temperature,
		MaxTokens:   2000,
	})
	if err != nil {
		return "", err
	}
	return cleanExtractedText(text), nil
}

func (c *Client) complete(ctx context.Context, key string, request ChatRequest) (string, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", apperr.Remote("API request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperr.Remote("failed to read API response", err)
	}

	var response ChatResponse
	decodeErr := json.Unmarshal(raw, &response)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := http.StatusText(resp.StatusCode)
		if decodeErr == nil && response.Error != nil && response.Error.Message != "" {
			msg = response.Error.Message
		}
		log.Printf("LLM: %s returned %d: %s", c.Endpoint, resp.StatusCode, msg)
		return "", apperr.Remote("API error: "+msg, nil)
	}

	if decodeErr != nil || len(response.Choices) == 0 {
		return "", apperr.Remote("invalid response from API", decodeErr)
	}
	if content := response.Choices[0].Message.Content; content == nil || *content == "" {
		return "", apperr.Remote("invalid response from API", nil)
	}
	return *response.Choices[0].Message.Content, nil
}

func cleanExtractedText(text string) string {
	text = strings.TrimSpace(text)
	if text == noTextSentinel {
		return ""
	}
	return strings.TrimSpace(strings.TrimSuffix(text, "</image>"))
}
