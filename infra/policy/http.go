package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/railopt/auth"
	"github.com/kilianp07/railopt/core/solver"
)

// HTTPConfig configures a remote inference endpoint.
type HTTPConfig struct {
	URL     string        `json:"url" validate:"required,url"`
	Timeout time.Duration `json:"timeout"`
	Token   string        `json:"token"`
	// OAuth, when set, authenticates with client credentials instead of
	// the static token.
	OAuth *auth.Conf `json:"oauth"`
}

var validate = validator.New()

// HTTPPolicy posts the feature matrix to a remote model server.
type HTTPPolicy struct {
	cfg    HTTPConfig
	client *http.Client
	creds  *auth.ClientCred
}

// NewHTTPPolicy returns a client for cfg. A zero timeout selects 200ms.
func NewHTTPPolicy(cfg HTTPConfig) (*HTTPPolicy, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("policy config: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 200 * time.Millisecond
	}
	p := &HTTPPolicy{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
	if cfg.OAuth != nil {
		creds, err := auth.NewClientCred(*cfg.OAuth)
		if err != nil {
			return nil, err
		}
		p.creds = creds
	}
	return p, nil
}

type inferRequest struct {
	ConflictID   string      `json:"conflict_id"`
	Severity     string      `json:"severity"`
	TrainIDs     []string    `json:"train_ids"`
	FeatureNames []string    `json:"feature_names"`
	Features     [][]float64 `json:"features"`
}

func rowsOf(m *mat.Dense) [][]float64 {
	if m == nil {
		return nil
	}
	r, _ := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = mat.Row(nil, i, m)
	}
	return out
}

// Infer implements solver.PolicyBackend.
func (p *HTTPPolicy) Infer(ctx context.Context, req solver.PolicyRequest) (solver.PolicyResponse, error) {
	body, err := json.Marshal(inferRequest{
		ConflictID:   req.ConflictID,
		Severity:     req.Severity.String(),
		TrainIDs:     req.TrainIDs,
		FeatureNames: req.FeatureNames,
		Features:     rowsOf(req.Features),
	})
	if err != nil {
		return solver.PolicyResponse{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	resp, err := p.post(ctx, body)
	if err == nil && resp.StatusCode == http.StatusUnauthorized && p.creds != nil {
		_ = resp.Body.Close()
		// the token may have been revoked before its expiry
		if _, err = p.creds.ForceRefresh(ctx); err == nil {
			resp, err = p.post(ctx, body)
		}
	}
	if err != nil {
		return solver.PolicyResponse{}, fmt.Errorf("policy request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return solver.PolicyResponse{}, fmt.Errorf("policy status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	var out solver.PolicyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return solver.PolicyResponse{}, fmt.Errorf("decode policy response: %w", err)
	}
	return out, nil
}

func (p *HTTPPolicy) post(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case p.creds != nil:
		if err := p.creds.SetAuthHeader(req); err != nil {
			return nil, err
		}
	case p.cfg.Token != "":
		req.Header.Set("Authorization", "Bearer "+p.cfg.Token)
	}
	return p.client.Do(req)
}
