package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/lunaretail/posync/internal/config"
)

// Client talks to the remote catalog/order service: a single endpoint that
// accepts {query, variables} JSON and answers {data, errors}.
type Client struct {
	baseURL    string
	apiKey     string
	instanceID string
	maxRetries int
	httpClient *http.Client

	mu    sync.Mutex
	token string
}

// NewClient creates a remote API client.
func NewClient(cfg config.RemoteConfig, instanceID string) *Client {
	return &Client{
		baseURL:    cfg.URL,
		apiKey:     cfg.APIKey,
		instanceID: instanceID,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type apiRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type apiResponse struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []apiError                 `json:"errors"`
}

type apiError struct {
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

const collectionQuery = `query ($timestamp: String, $limit: Int!, $offset: Int!, $store_id: String) {
  %s(timestamp: $timestamp, limit: $limit, offset: $offset, store_id: $store_id) { items total limit offset }
}`

const createPurchaseOrderMutation = `mutation ($order: PurchaseOrderInput!) {
  createPurchaseOrder(order: $order) { id status_code updated_at }
}`

const createSessionMutation = `mutation ($api_key: String!) {
  createSession(api_key: $api_key) { token }
}`

// Authenticate opens a session and stores the bearer token.
func (c *Client) Authenticate(ctx context.Context) error {
	if c.apiKey == "" {
		return nil
	}

	data, err := c.execute(ctx, createSessionMutation, map[string]interface{}{"api_key": c.apiKey}, "")
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	var session struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data["createSession"], &session); err != nil {
		return fmt.Errorf("failed to decode session: %w", err)
	}

	c.mu.Lock()
	c.token = session.Token
	c.mu.Unlock()
	return nil
}

// sessionToken returns the current token, re-authenticating when the JWT is
// absent or expires within the next minute.
func (c *Client) sessionToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	if c.apiKey == "" {
		return "", nil
	}

	if token != "" {
		parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
		if err == nil {
			if exp, err := parsed.Claims.GetExpirationTime(); err == nil {
				if exp == nil || time.Until(exp.Time) > time.Minute {
					return token, nil
				}
			}
		}
	}

	if err := c.Authenticate(ctx); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, nil
}

// execute posts one query and returns the data map. Transport-level failures
// are retried with exponential backoff; service-level errors are mapped onto
// the error taxonomy and never retried.
func (c *Client) execute(ctx context.Context, query string, vars map[string]interface{}, token string) (map[string]json.RawMessage, error) {
	body, err := json.Marshal(apiRequest{Query: query, Variables: vars})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	operation := func() (map[string]json.RawMessage, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Request-ID", uuid.New().String())
		req.Header.Set("X-Instance-ID", c.instanceID)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, &TransportError{Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			io.Copy(io.Discard, resp.Body)
			return nil, &TransportError{Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
		}
		if resp.StatusCode >= 400 {
			payload, _ := io.ReadAll(resp.Body)
			return nil, backoff.Permanent(&TransportError{Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, payload)})
		}

		var decoded apiResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return nil, &TransportError{Err: fmt.Errorf("failed to decode response: %w", err)}
		}

		if len(decoded.Errors) > 0 {
			return nil, backoff.Permanent(mapAPIError(decoded.Errors[0]))
		}
		return decoded.Data, nil
	}

	data, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(c.maxRetries)),
	)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func mapAPIError(e apiError) error {
	switch e.Kind {
	case errKindConflict:
		return &ConflictError{Message: e.Message}
	case errKindValidation:
		return &ValidationError{Message: e.Message}
	default:
		return &TransportError{Err: fmt.Errorf("%s: %s", e.Kind, e.Message)}
	}
}

// collection fetches one page of a named collection.
func (c *Client) collection(ctx context.Context, name string, q Query) (*page, error) {
	token, err := c.sessionToken(ctx)
	if err != nil {
		return nil, err
	}

	data, err := c.execute(ctx, fmt.Sprintf(collectionQuery, name), q.variables(), token)
	if err != nil {
		return nil, err
	}

	raw, ok := data[name]
	if !ok {
		return nil, &TransportError{Err: fmt.Errorf("collection %q missing from response", name)}
	}

	var p page
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &TransportError{Err: fmt.Errorf("failed to decode %s page: %w", name, err)}
	}
	return &p, nil
}

func fetchPage[T any](ctx context.Context, c *Client, name string, q Query) ([]T, int, error) {
	p, err := c.collection(ctx, name, q)
	if err != nil {
		return nil, 0, err
	}
	var items []T
	if len(p.Items) > 0 {
		if err := json.Unmarshal(p.Items, &items); err != nil {
			return nil, 0, &TransportError{Err: fmt.Errorf("failed to decode %s items: %w", name, err)}
		}
	}
	return items, p.Total, nil
}

// FetchTaxes returns one page of tax definitions and the collection total.
func (c *Client) FetchTaxes(ctx context.Context, q Query) ([]TaxRecord, int, error) {
	return fetchPage[TaxRecord](ctx, c, "taxes", q)
}

// FetchProducts returns one page of catalog products and the collection total.
func (c *Client) FetchProducts(ctx context.Context, q Query) ([]ProductRecord, int, error) {
	return fetchPage[ProductRecord](ctx, c, "products", q)
}

// FetchStores returns one page of stores and the collection total.
func (c *Client) FetchStores(ctx context.Context, q Query) ([]StoreRecord, int, error) {
	return fetchPage[StoreRecord](ctx, c, "stores", q)
}

// FetchUsers returns one page of users and the collection total.
func (c *Client) FetchUsers(ctx context.Context, q Query) ([]UserRecord, int, error) {
	return fetchPage[UserRecord](ctx, c, "users", q)
}

// FetchDeliveryCenters returns one page of delivery centers and the collection total.
func (c *Client) FetchDeliveryCenters(ctx context.Context, q Query) ([]DeliveryCenterRecord, int, error) {
	return fetchPage[DeliveryCenterRecord](ctx, c, "delivery_centers", q)
}

// FetchPurchaseOrders returns one page of server-authoritative purchase orders.
func (c *Client) FetchPurchaseOrders(ctx context.Context, q Query) ([]PurchaseOrderRecord, int, error) {
	return fetchPage[PurchaseOrderRecord](ctx, c, "purchase_orders", q)
}

// FetchOrders returns one page of server-side orders.
func (c *Client) FetchOrders(ctx context.Context, q Query) ([]OrderRecord, int, error) {
	return fetchPage[OrderRecord](ctx, c, "orders", q)
}

// CreatePurchaseOrder sends a locally created order to the server and returns
// the persisted representation. A uniqueness conflict on the order id comes
// back as a ConflictError.
func (c *Client) CreatePurchaseOrder(ctx context.Context, rec PurchaseOrderRecord) (*PurchaseOrderRecord, error) {
	token, err := c.sessionToken(ctx)
	if err != nil {
		return nil, err
	}

	data, err := c.execute(ctx, createPurchaseOrderMutation, map[string]interface{}{"order": rec}, token)
	if err != nil {
		return nil, err
	}

	var created PurchaseOrderRecord
	if err := json.Unmarshal(data["createPurchaseOrder"], &created); err != nil {
		log.Printf("⚠️  Order %s accepted but response was unreadable: %v", rec.ID, err)
		return &rec, nil
	}
	return &created, nil
}
