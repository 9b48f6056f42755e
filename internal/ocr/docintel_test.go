package ocr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amitoj1996/fieldops-web/internal/apperr"
)

func analysisPayload(t *testing.T, raw string) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &body))
	return body
}

func TestExtractReceiptFields(t *testing.T) {
	t.Run("full extraction with currency object", func(t *testing.T) {
		body := analysisPayload(t, `{
			"status": "succeeded",
			"analyzeResult": {
				"documents": [{
					"fields": {
						"MerchantName": {"valueString": "Hotel Adler"},
						"Total": {"valueCurrency": {"amount": 123.45, "currencyCode": "EUR"}},
						"TransactionDate": {"valueDate": "2026-03-01"}
					}
				}]
			}
		}`)
		f := extractReceiptFields(body)
		require.NotNil(t, f.Merchant)
		assert.Equal(t, "Hotel Adler", *f.Merchant)
		require.NotNil(t, f.Total)
		assert.Equal(t, 123.45, *f.Total)
		require.NotNil(t, f.Currency)
		assert.Equal(t, "EUR", *f.Currency)
		require.NotNil(t, f.TxnDate)
		assert.Equal(t, "2026-03-01", *f.TxnDate)
	})

	t.Run("plain valueNumber total", func(t *testing.T) {
		body := analysisPayload(t, `{
			"analyzeResult": {"documents": [{"fields": {"Total": {"valueNumber": 42}}}]}
		}`)
		f := extractReceiptFields(body)
		require.NotNil(t, f.Total)
		assert.Equal(t, 42.0, *f.Total)
		assert.Nil(t, f.Merchant)
		assert.Nil(t, f.Currency)
	})

	t.Run("content fallback for merchant", func(t *testing.T) {
		body := analysisPayload(t, `{
			"analyzeResult": {"documents": [{"fields": {"MerchantName": {"content": "Kiosk 24"}}}]}
		}`)
		f := extractReceiptFields(body)
		require.NotNil(t, f.Merchant)
		assert.Equal(t, "Kiosk 24", *f.Merchant)
	})

	t.Run("empty payloads produce empty fields, not errors", func(t *testing.T) {
		for _, raw := range []string{
			`{}`,
			`{"analyzeResult": {}}`,
			`{"analyzeResult": {"documents": []}}`,
			`{"analyzeResult": {"documents": [{"fields": {}}]}}`,
		} {
			f := extractReceiptFields(analysisPayload(t, raw))
			assert.Nil(t, f.Merchant)
			assert.Nil(t, f.Total)
			assert.Nil(t, f.Currency)
			assert.Nil(t, f.TxnDate)
		}
	})
}

func TestDocIntelAnalyzer_Analyze(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	t.Run("submits, polls and extracts", func(t *testing.T) {
		var polls int32
		mux := http.NewServeMux()
		var srv *httptest.Server
		mux.HandleFunc("/formrecognizer/", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "secret", r.Header.Get("Ocp-Apim-Subscription-Key"))
			w.Header().Set("Operation-Location", srv.URL+"/op/123")
			w.WriteHeader(http.StatusAccepted)
		})
		mux.HandleFunc("/op/123", func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&polls, 1) < 2 {
				json.NewEncoder(w).Encode(map[string]interface{}{"status": "running"})
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status": "succeeded",
				"analyzeResult": map[string]interface{}{
					"documents": []interface{}{map[string]interface{}{
						"fields": map[string]interface{}{
							"MerchantName": map[string]interface{}{"valueString": "Cafe Luna"},
						},
					}},
				},
			})
		})
		srv = httptest.NewServer(mux)
		defer srv.Close()

		a := NewDocIntelAnalyzer(DocIntelConfig{
			Endpoint:     srv.URL,
			Key:          "secret",
			PollInterval: time.Millisecond,
		}, logger)

		f, err := a.Analyze(context.Background(), "https://example.com/receipt.jpg")
		require.NoError(t, err)
		require.NotNil(t, f.Merchant)
		assert.Equal(t, "Cafe Luna", *f.Merchant)
		assert.GreaterOrEqual(t, atomic.LoadInt32(&polls), int32(2))
	})

	t.Run("poll cap surfaces as upstream error", func(t *testing.T) {
		mux := http.NewServeMux()
		var srv *httptest.Server
		mux.HandleFunc("/formrecognizer/", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Operation-Location", srv.URL+"/op/slow")
			w.WriteHeader(http.StatusAccepted)
		})
		mux.HandleFunc("/op/slow", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{"status": "running"})
		})
		srv = httptest.NewServer(mux)
		defer srv.Close()

		a := NewDocIntelAnalyzer(DocIntelConfig{
			Endpoint:     srv.URL,
			Key:          "secret",
			PollInterval: time.Millisecond,
			MaxPolls:     3,
		}, logger)

		_, err := a.Analyze(context.Background(), "https://example.com/receipt.jpg")
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.KindUpstream))
	})

	t.Run("failed job surfaces as upstream error", func(t *testing.T) {
		mux := http.NewServeMux()
		var srv *httptest.Server
		mux.HandleFunc("/formrecognizer/", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Operation-Location", srv.URL+"/op/bad")
			w.WriteHeader(http.StatusAccepted)
		})
		mux.HandleFunc("/op/bad", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{"status": "failed"})
		})
		srv = httptest.NewServer(mux)
		defer srv.Close()

		a := NewDocIntelAnalyzer(DocIntelConfig{
			Endpoint:     srv.URL,
			Key:          "secret",
			PollInterval: time.Millisecond,
		}, logger)

		_, err := a.Analyze(context.Background(), "https://example.com/receipt.jpg")
		assert.True(t, apperr.Is(err, apperr.KindUpstream))
	})

	t.Run("rejected submission surfaces as upstream error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad key", http.StatusUnauthorized)
		}))
		defer srv.Close()

		a := NewDocIntelAnalyzer(DocIntelConfig{Endpoint: srv.URL, Key: "wrong"}, logger)
		_, err := a.Analyze(context.Background(), "https://example.com/receipt.jpg")
		assert.True(t, apperr.Is(err, apperr.KindUpstream))
	})
}

func TestParseExtraction(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	t.Run("plain JSON answer", func(t *testing.T) {
		f := parseExtraction(`{"merchant":"Cafe Luna","total":12.5,"currency":"USD","date":"2026-03-01"}`, logger)
		require.NotNil(t, f.Merchant)
		assert.Equal(t, "Cafe Luna", *f.Merchant)
		require.NotNil(t, f.Total)
		assert.Equal(t, 12.5, *f.Total)
	})

	t.Run("fenced JSON answer", func(t *testing.T) {
		f := parseExtraction("```json\n{\"merchant\":\"Kiosk\"}\n```", logger)
		require.NotNil(t, f.Merchant)
		assert.Equal(t, "Kiosk", *f.Merchant)
	})

	t.Run("unparseable answer yields empty fields", func(t *testing.T) {
		f := parseExtraction("I could not read the receipt.", logger)
		assert.Nil(t, f.Merchant)
		assert.Nil(t, f.Total)
	})
}
