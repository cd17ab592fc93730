package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ArtisanClarinets/eccb-backend/internal/logger"
	"github.com/ArtisanClarinets/eccb-backend/internal/types"
	"github.com/ArtisanClarinets/eccb-backend/internal/utils"
)

// MetadataExtractor is the AI boundary: raw PDF bytes in, structured
// sheet-music metadata out. Implementations must return output that
// passes ExtractedMetadata.Validate.
type MetadataExtractor interface {
	ExtractMetadata(ctx context.Context, pdf []byte, fileName string) (*types.ExtractedMetadata, error)
}

type openAIExtractor struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	maxRetries int
}

func NewOpenAIExtractor(log *logger.Logger) (MetadataExtractor, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	baseURL := utils.GetEnv("OPENAI_BASE_URL", "https://api.openai.com", log)
	model := utils.GetEnv("OPENAI_MODEL", "gpt-4.1", log)
	timeoutSec := utils.GetEnvAsInt("OPENAI_TIMEOUT_SECONDS", 180, log)
	maxRetries := utils.GetEnvAsInt("OPENAI_MAX_RETRIES", 4, log)

	return &openAIExtractor{
		log:        log.With("service", "OpenAIExtractor"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries: maxRetries,
	}, nil
}

const extractorSystemPrompt = `You are a music librarian's assistant. You receive one PDF of
printed sheet music and return structured catalog metadata. Report a
confidence_score between 0 and 100. When the document bundles several
instrument parts, set is_multi_part and list each part with its
1-based page range. Leave fields you cannot determine empty.`

var extractorSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"required":             []string{"title", "confidence_score", "is_multi_part"},
	"properties": map[string]any{
		"title":            map[string]any{"type": "string"},
		"composer":         map[string]any{"type": "string"},
		"publisher":        map[string]any{"type": "string"},
		"instrument":       map[string]any{"type": "string"},
		"confidence_score": map[string]any{"type": "integer", "minimum": 0, "maximum": 100},
		"file_type": map[string]any{
			"type": "string",
			"enum": []string{"FULL_SCORE", "CONDUCTOR_SCORE", "PART", "CONDENSED_SCORE", ""},
		},
		"is_multi_part": map[string]any{"type": "boolean"},
		"parts": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []string{"instrument"},
				"properties": map[string]any{
					"instrument":    map[string]any{"type": "string"},
					"part_label":    map[string]any{"type": "string"},
					"section":       map[string]any{"type": "string"},
					"transposition": map[string]any{"type": "string"},
					"page_start":    map[string]any{"type": "integer"},
					"page_end":      map[string]any{"type": "integer"},
				},
			},
		},
		"ensemble_type":  map[string]any{"type": "string"},
		"key_signature":  map[string]any{"type": "string"},
		"time_signature": map[string]any{"type": "string"},
		"tempo":          map[string]any{"type": "string"},
	},
}

func (c *openAIExtractor) ExtractMetadata(ctx context.Context, pdf []byte, fileName string) (*types.ExtractedMetadata, error) {
	if fileName == "" {
		fileName = "upload.pdf"
	}
	body := map[string]any{
		"model": c.model,
		"messages": []map[string]any{
			{"role": "system", "content": extractorSystemPrompt},
			{
				"role": "user",
				"content": []map[string]any{
					{
						"type": "file",
						"file": map[string]any{
							"filename":  fileName,
							"file_data": "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(pdf),
						},
					},
					{"type": "text", "text": "Extract the catalog metadata for this sheet music PDF."},
				},
			},
		},
		"response_format": map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "sheet_music_metadata",
				"strict": true,
				"schema": extractorSchema,
			},
		},
	}

	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/chat/completions", body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	var meta types.ExtractedMetadata
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &meta); err != nil {
		return nil, fmt.Errorf("decode extractor output: %w", err)
	}
	if err := meta.Validate(); err != nil {
		return nil, fmt.Errorf("extractor output invalid: %w", err)
	}
	return &meta, nil
}

type openAIHTTPError struct {
	StatusCode int
	Body       string
}

func (e *openAIHTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func isRetryableHTTP(code int) bool {
	if code == 408 || code == 429 {
		return true
	}
	return code >= 500 && code <= 599
}

func isRetryableErr(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var httpErr *openAIHTTPError
	if errors.As(err, &httpErr) {
		return isRetryableHTTP(httpErr.StatusCode)
	}
	return false
}

func jitterSleep(base time.Duration) time.Duration {
	// +/- 20%
	if base <= 0 {
		return 0
	}
	delta := base.Seconds() * 0.2
	low := base.Seconds() - delta
	v := low + rand.Float64()*2*delta
	return time.Duration(v * float64(time.Second))
}

func (c *openAIExtractor) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &openAIHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *openAIExtractor) do(ctx context.Context, method, path string, body any, out any) error {
	backoff := 1 * time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("openai decode error: %w", uErr)
			}
			return nil
		}
		if !isRetryableErr(err) || attempt == c.maxRetries {
			return err
		}

		sleepFor := backoff
		if resp != nil {
			if ra := strings.TrimSpace(resp.Header.Get("Retry-After")); ra != "" {
				if secs, parseErr := strconv.Atoi(ra); parseErr == nil && secs > 0 {
					sleepFor = time.Duration(secs) * time.Second
				}
			}
		}
		if sleepFor > 10*time.Second {
			sleepFor = 10 * time.Second
		}
		sleepFor = jitterSleep(sleepFor)

		c.log.Warn("OpenAI request retrying", "attempt", attempt+1, "sleep", sleepFor, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleepFor):
		}
		backoff *= 2
	}
	return nil
}
