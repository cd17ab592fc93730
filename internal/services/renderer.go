package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ArtisanClarinets/eccb-backend/internal/logger"
	"github.com/ArtisanClarinets/eccb-backend/internal/utils"
)

type RenderOptions struct {
	Width   int `json:"width,omitempty"`
	Quality int `json:"quality,omitempty"`
}

// PageRenderer rasterizes one PDF page for human review. Page index is
// zero-based. The returned string is a base64 PNG.
type PageRenderer interface {
	RenderPage(ctx context.Context, pdf []byte, page int, opts RenderOptions) (string, error)
}

// rasterClient talks to the standalone rendering service over HTTP.
type rasterClient struct {
	log        *logger.Logger
	baseURL    string
	httpClient *http.Client
}

func NewPageRenderer(log *logger.Logger) PageRenderer {
	baseURL := utils.GetEnv("PDF_RENDERER_URL", "http://localhost:8090", log)
	timeoutSec := utils.GetEnvAsInt("PDF_RENDERER_TIMEOUT_SECONDS", 60, log)
	return &rasterClient{
		log:        log.With("service", "PageRenderer"),
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
	}
}

func (c *rasterClient) RenderPage(ctx context.Context, pdf []byte, page int, opts RenderOptions) (string, error) {
	if page < 0 {
		return "", fmt.Errorf("invalid page index %d", page)
	}
	reqBody := map[string]any{
		"pdf":  base64.StdEncoding.EncodeToString(pdf),
		"page": page,
	}
	if opts.Width > 0 {
		reqBody["width"] = opts.Width
	}
	if opts.Quality > 0 {
		reqBody["quality"] = opts.Quality
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(reqBody); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/render", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("renderer request failed: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("renderer http %d: %s", resp.StatusCode, string(raw))
	}
	var out struct {
		Image string `json:"image"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode renderer response: %w", err)
	}
	if out.Image == "" {
		return "", fmt.Errorf("renderer returned empty image")
	}
	return out.Image, nil
}
