package modeladapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// HTTPNERClient calls an inference service exposing POST /ner.
type HTTPNERClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPNERClient(baseURL string) *HTTPNERClient {
	return &HTTPNERClient{
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

func (c *HTTPNERClient) RecognizeEntities(ctx context.Context, text string) ([]Entity, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("marshaling ner request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ner", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building ner request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling ner service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ner service returned %d", resp.StatusCode)
	}

	var out struct {
		Entities []Entity `json:"entities"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding ner response: %w", err)
	}
	return out.Entities, nil
}

// HTTPZeroShotClient calls an inference service exposing POST /classify.
type HTTPZeroShotClient struct {
	baseURL string
	labels  []string
	client  *http.Client
}

func NewHTTPZeroShotClient(baseURL string, labels []string) *HTTPZeroShotClient {
	if len(labels) == 0 {
		labels = []string{"medical record", "non-medical document"}
	}
	return &HTTPZeroShotClient{
		baseURL: baseURL,
		labels:  labels,
		client:  &http.Client{},
	}
}

func (c *HTTPZeroShotClient) ScoreDocument(ctx context.Context, text string) (DocumentScore, error) {
	body, err := json.Marshal(map[string]any{
		"text":   text,
		"labels": c.labels,
	})
	if err != nil {
		return DocumentScore{}, fmt.Errorf("marshaling classify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return DocumentScore{}, fmt.Errorf("building classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return DocumentScore{}, fmt.Errorf("calling zero-shot service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return DocumentScore{}, fmt.Errorf("zero-shot service returned %d", resp.StatusCode)
	}

	var score DocumentScore
	if err := json.NewDecoder(resp.Body).Decode(&score); err != nil {
		return DocumentScore{}, fmt.Errorf("decoding zero-shot response: %w", err)
	}
	return score, nil
}
