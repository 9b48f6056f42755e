package ocr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/amitoj1996/fieldops-web/internal/apperr"
)

const extractionPrompt = `Extract the following fields from this receipt and answer with a JSON object:
{"merchant": "<merchant name or null>", "total": <total amount as number or null>, "currency": "<ISO currency code or null>", "date": "<transaction date as YYYY-MM-DD or null>"}
If a field cannot be determined, use null. Answer with the JSON object only.`

// VisionAnalyzer extracts receipt fields with a vision-capable chat
// model. PDF receipts are rendered to an image first.
type VisionAnalyzer struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewVisionAnalyzer creates a new vision-based receipt analyzer.
func NewVisionAnalyzer(apiKey, model string, logger *zap.Logger) *VisionAnalyzer {
	return &VisionAnalyzer{
		client: openai.NewClient(apiKey),
		model:  model,
		logger: logger,
	}
}

// Analyze downloads the receipt when it is a PDF (vision endpoints only
// accept images), then asks the model for the structured fields.
func (a *VisionAnalyzer) Analyze(ctx context.Context, readURL string) (Fields, error) {
	imageURL := readURL
	if isPDFURL(readURL) {
		data, err := fetch(ctx, readURL)
		if err != nil {
			return Fields{}, err
		}
		dataURL, err := renderPDFPage(data)
		if err != nil {
			return Fields{}, apperr.Upstream(err, "failed to render PDF receipt")
		}
		imageURL = dataURL
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: 0.1,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: extractionPrompt},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: imageURL},
					},
				},
			},
		},
	})
	if err != nil {
		return Fields{}, apperr.Upstream(err, "receipt extraction call failed")
	}
	if len(resp.Choices) == 0 {
		return Fields{}, apperr.Upstream(nil, "receipt extraction returned no choices")
	}

	return parseExtraction(resp.Choices[0].Message.Content, a.logger), nil
}

// parseExtraction reads the model answer defensively: unparseable output
// yields empty fields, not an error.
func parseExtraction(content string, logger *zap.Logger) Fields {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var raw struct {
		Merchant *string     `json:"merchant"`
		Total    interface{} `json:"total"`
		Currency *string     `json:"currency"`
		Date     *string     `json:"date"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		logger.Warn("Failed to parse extraction output", zap.Error(err))
		return Fields{}
	}

	var f Fields
	if raw.Merchant != nil && *raw.Merchant != "" {
		f.Merchant = raw.Merchant
	}
	switch v := raw.Total.(type) {
	case float64:
		f.Total = floatPtr(v)
	case string:
		var n float64
		if _, err := fmt.Sscanf(strings.ReplaceAll(v, ",", ""), "%f", &n); err == nil {
			f.Total = floatPtr(n)
		}
	}
	if raw.Currency != nil && *raw.Currency != "" {
		f.Currency = raw.Currency
	}
	if raw.Date != nil && *raw.Date != "" {
		f.TxnDate = raw.Date
	}
	return f
}

func isPDFURL(u string) bool {
	base := u
	if i := strings.IndexByte(base, '?'); i >= 0 {
		base = base[:i]
	}
	return strings.HasSuffix(strings.ToLower(base), ".pdf")
}

func fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperr.Upstream(err, "failed to build receipt download request")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, apperr.Upstream(err, "failed to download receipt")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Upstream(nil, "receipt download returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
