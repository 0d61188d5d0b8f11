package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	maxSupabaseResponseBytes  = 8 << 20
	maxSupabaseErrorBodyBytes = 32 << 10
)

// SupabaseConfig configures the PostgREST-backed gateway.
type SupabaseConfig struct {
	URL        string
	ServiceKey string
	Schema     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Supabase implements Gateway against a hosted Supabase project through its REST API.
type Supabase struct {
	baseURL    string
	serviceKey string
	schema     string
	httpClient *http.Client
}

// NewSupabase validates the configuration and returns a REST gateway.
func NewSupabase(cfg SupabaseConfig) (*Supabase, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if base == "" {
		return nil, errors.New("SUPABASE_URL is required")
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("SUPABASE_URL must be an absolute URL, got %q", cfg.URL)
	}
	if strings.TrimSpace(cfg.ServiceKey) == "" {
		return nil, errors.New("SUPABASE_SERVICE_KEY is required")
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Supabase{
		baseURL:    base,
		serviceKey: cfg.ServiceKey,
		schema:     cfg.Schema,
		httpClient: client,
	}, nil
}

// Query issues GET /rest/v1/<table> with eq filters and decodes rows into dest.
func (g *Supabase) Query(ctx context.Context, table string, q Query, dest interface{}) error {
	if err := validateQuery(table, q); err != nil {
		return err
	}
	params := matchParams(q.Match)
	if len(q.Columns) > 0 {
		params.Set("select", strings.Join(q.Columns, ","))
	}
	if q.OrderBy != "" {
		direction := "asc"
		if q.Desc {
			direction = "desc"
		}
		params.Set("order", q.OrderBy+"."+direction)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	body, err := g.request(ctx, http.MethodGet, table, nil, params)
	if err != nil {
		return err
	}
	var rows []map[string]json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return fmt.Errorf("decode %s rows: %w", table, err)
	}
	return decodeRows(rows, dest)
}

// Insert posts a single row.
func (g *Supabase) Insert(ctx context.Context, table string, row Row) (string, error) {
	id, err := rowID(row)
	if err != nil {
		return "", err
	}
	if err := checkIdentifiers(append([]string{table}, sortedKeys(row)...)...); err != nil {
		return "", err
	}
	if _, err := g.request(ctx, http.MethodPost, table, []Row{row}, nil); err != nil {
		return "", err
	}
	return id, nil
}

// Update patches rows matching every condition; the affected count is the number of
// rows PostgREST returns with return=representation.
func (g *Supabase) Update(ctx context.Context, table string, match Match, patch Row) (int64, error) {
	if len(patch) == 0 {
		return 0, errors.New("gateway: empty patch")
	}
	if len(match) == 0 {
		return 0, errors.New("gateway: update without conditions")
	}
	if err := checkIdentifiers(append([]string{table}, sortedKeys(patch)...)...); err != nil {
		return 0, err
	}
	if err := checkIdentifiers(sortedKeys(match)...); err != nil {
		return 0, err
	}
	body, err := g.request(ctx, http.MethodPatch, table, patch, matchParams(match))
	if err != nil {
		return 0, err
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return 0, fmt.Errorf("decode %s update result: %w", table, err)
	}
	return int64(len(rows)), nil
}

func (g *Supabase) request(ctx context.Context, method, table string, body interface{}, params url.Values) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/rest/v1/%s", g.baseURL, table)
	if encoded := params.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", g.serviceKey)
	req.Header.Set("Authorization", "Bearer "+g.serviceKey)
	req.Header.Set("Prefer", "return=representation")
	if g.schema != "" && g.schema != "public" {
		req.Header.Set("Accept-Profile", g.schema)
		req.Header.Set("Content-Profile", g.schema)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, table, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxSupabaseErrorBodyBytes))
		msg := strings.TrimSpace(string(raw))
		if resp.StatusCode == http.StatusConflict && postgrestCode(raw) == uniqueViolation {
			return nil, fmt.Errorf("%w: %s", ErrDuplicate, msg)
		}
		return nil, fmt.Errorf("supabase API error %d: %s", resp.StatusCode, msg)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxSupabaseResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(raw) > maxSupabaseResponseBytes {
		return nil, fmt.Errorf("supabase response for %s exceeds %d bytes", table, maxSupabaseResponseBytes)
	}
	return raw, nil
}

func matchParams(match Match) url.Values {
	params := url.Values{}
	for _, key := range sortedKeys(match) {
		if isNull(match[key]) {
			params.Add(key, "is.null")
			continue
		}
		params.Add(key, "eq."+filterValue(match[key]))
	}
	return params
}

// filterValue renders a value the way PostgREST expects it inside an eq. filter.
func filterValue(value interface{}) string {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprint(value)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// postgrestCode extracts the SQLSTATE PostgREST reports in an error body.
func postgrestCode(body []byte) string {
	var apiErr struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(body, &apiErr); err != nil {
		return ""
	}
	return apiErr.Code
}
