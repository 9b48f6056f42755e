package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/amitoj1996/fieldops-web/internal/apperr"
)

// DocIntelConfig configures the document-analysis backend.
type DocIntelConfig struct {
	Endpoint     string
	Key          string
	ModelID      string        // default prebuilt-receipt
	APIVersion   string        // default 2023-07-31
	PollInterval time.Duration // default 1s
	MaxPolls     int           // default 30
}

// DocIntelAnalyzer calls the Azure Document Intelligence REST API. The
// service runs analysis asynchronously: the submit returns an operation
// URL which is polled on a fixed interval with a hard iteration cap.
type DocIntelAnalyzer struct {
	cfg    DocIntelConfig
	client *http.Client
	logger *zap.Logger
}

// NewDocIntelAnalyzer creates the analyzer and applies config defaults.
func NewDocIntelAnalyzer(cfg DocIntelConfig, logger *zap.Logger) *DocIntelAnalyzer {
	if cfg.ModelID == "" {
		cfg.ModelID = "prebuilt-receipt"
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2023-07-31"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = 30
	}
	return &DocIntelAnalyzer{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

// Analyze submits the receipt URL and polls until the analysis job
// completes. Poll exhaustion and rejected jobs surface as UpstreamError.
func (a *DocIntelAnalyzer) Analyze(ctx context.Context, readURL string) (Fields, error) {
	opURL, err := a.submit(ctx, readURL)
	if err != nil {
		return Fields{}, err
	}

	for attempt := 0; attempt < a.cfg.MaxPolls; attempt++ {
		select {
		case <-ctx.Done():
			return Fields{}, apperr.Upstream(ctx.Err(), "receipt analysis cancelled")
		case <-time.After(a.cfg.PollInterval):
		}

		status, body, err := a.poll(ctx, opURL)
		if err != nil {
			return Fields{}, err
		}
		switch status {
		case "succeeded":
			return extractReceiptFields(body), nil
		case "failed":
			return Fields{}, apperr.Upstream(nil, "receipt analysis failed upstream")
		}
		// notStarted / running: keep polling
		a.logger.Debug("Receipt analysis still running",
			zap.String("status", status),
			zap.Int("attempt", attempt+1))
	}

	return Fields{}, apperr.Upstream(nil, "receipt analysis did not complete within %d polls", a.cfg.MaxPolls)
}

func (a *DocIntelAnalyzer) submit(ctx context.Context, readURL string) (string, error) {
	endpoint := fmt.Sprintf("%s/formrecognizer/documentModels/%s:analyze?api-version=%s",
		a.cfg.Endpoint, a.cfg.ModelID, a.cfg.APIVersion)

	payload, _ := json.Marshal(map[string]string{"urlSource": readURL})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", apperr.Upstream(err, "failed to build analysis request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", a.cfg.Key)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", apperr.Upstream(err, "failed to submit receipt for analysis")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", apperr.Upstream(nil, "analysis service rejected submission: status %d, body %s", resp.StatusCode, string(b))
	}

	opURL := resp.Header.Get("Operation-Location")
	if opURL == "" {
		return "", apperr.Upstream(nil, "analysis service returned no operation location")
	}
	return opURL, nil
}

func (a *DocIntelAnalyzer) poll(ctx context.Context, opURL string) (string, map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opURL, nil)
	if err != nil {
		return "", nil, apperr.Upstream(err, "failed to build poll request")
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", a.cfg.Key)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", nil, apperr.Upstream(err, "failed to poll analysis operation")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil, apperr.Upstream(nil, "analysis poll returned status %d", resp.StatusCode)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", nil, apperr.Upstream(err, "failed to decode analysis poll response")
	}

	status, _ := body["status"].(string)
	return status, body, nil
}

// extractReceiptFields walks the analysis payload tolerantly: any
// missing or oddly-shaped field is simply absent from the result.
func extractReceiptFields(body map[string]interface{}) Fields {
	var f Fields

	result, _ := body["analyzeResult"].(map[string]interface{})
	if result == nil {
		return f
	}
	docs, _ := result["documents"].([]interface{})
	if len(docs) == 0 {
		return f
	}
	doc, _ := docs[0].(map[string]interface{})
	if doc == nil {
		return f
	}
	fields, _ := doc["fields"].(map[string]interface{})
	if fields == nil {
		return f
	}

	if merchant := fieldString(fields, "MerchantName"); merchant != "" {
		f.Merchant = strPtr(merchant)
	}
	if total, ok := fieldNumber(fields, "Total"); ok {
		f.Total = floatPtr(total)
	}
	if currency := fieldCurrencyCode(fields, "Total"); currency != "" {
		f.Currency = strPtr(currency)
	}
	if date := fieldDate(fields, "TransactionDate"); date != "" {
		f.TxnDate = strPtr(date)
	}
	return f
}

func field(fields map[string]interface{}, name string) map[string]interface{} {
	v, _ := fields[name].(map[string]interface{})
	return v
}

func fieldString(fields map[string]interface{}, name string) string {
	v := field(fields, name)
	if v == nil {
		return ""
	}
	if s, ok := v["valueString"].(string); ok && s != "" {
		return s
	}
	s, _ := v["content"].(string)
	return s
}

func fieldNumber(fields map[string]interface{}, name string) (float64, bool) {
	v := field(fields, name)
	if v == nil {
		return 0, false
	}
	if n, ok := v["valueNumber"].(float64); ok {
		return n, true
	}
	// Newer API versions report totals as a currency object
	if cur, ok := v["valueCurrency"].(map[string]interface{}); ok {
		if n, ok := cur["amount"].(float64); ok {
			return n, true
		}
	}
	return 0, false
}

func fieldCurrencyCode(fields map[string]interface{}, name string) string {
	v := field(fields, name)
	if v == nil {
		return ""
	}
	if cur, ok := v["valueCurrency"].(map[string]interface{}); ok {
		if code, ok := cur["currencyCode"].(string); ok {
			return code
		}
	}
	return ""
}

func fieldDate(fields map[string]interface{}, name string) string {
	v := field(fields, name)
	if v == nil {
		return ""
	}
	if d, ok := v["valueDate"].(string); ok && d != "" {
		return d
	}
	d, _ := v["content"].(string)
	return d
}
