// Package ostrom is the protocol adapter for the Ostrom API. It
// authenticates with client credentials, keeps the bearer token fresh,
// and maps transport and HTTP failures into a typed error taxonomy.
// It performs no caching and no aggregation.
package ostrom

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cadsdf/ostromd/slice"
	"github.com/cadsdf/ostromd/types"
	"github.com/sony/gobreaker"
)

const (
	DefaultAuthEndpoint = "https://auth.production.ostrom-api.io"
	DefaultDataEndpoint = "https://production.ostrom-api.io"

	requestTimeout  = 10 * time.Second
	tokenExpirySkew = 120 * time.Second

	// The vendor wants hour-aligned range parameters.
	queryTimeLayout = "2006-01-02T15:00:00.000Z"
)

type Client struct {
	authURL    string
	baseURL    string
	basicCreds string
	zip        string
	contractID string

	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	backoff BackoffConfig
	logger  *slog.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func New(clientID, clientSecret, zip, contractID string) *Client {
	return NewWithEndpoints(clientID, clientSecret, zip, contractID, DefaultAuthEndpoint, DefaultDataEndpoint)
}

func NewWithEndpoints(clientID, clientSecret, zip, contractID, authEndpoint, dataEndpoint string) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ostrom",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
	})

	creds := base64.StdEncoding.EncodeToString([]byte(clientID + ":" + clientSecret))

	return &Client{
		authURL:    strings.TrimSuffix(authEndpoint, "/") + "/oauth2/token",
		baseURL:    strings.TrimSuffix(dataEndpoint, "/"),
		basicCreds: creds,
		zip:        zip,
		contractID: contractID,
		http:       &http.Client{Timeout: requestTimeout},
		breaker:    breaker,
		backoff:    defaultBackoff(),
		logger:     slog.Default().With("module", "ostrom"),
	}
}

// SetContractID selects the contract for consumption requests, e.g.
// after discovering contracts when none was configured.
func (c *Client) SetContractID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contractID = id
}

func (c *Client) ContractID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.contractID
}

// Authenticate exchanges the client credentials for a fresh bearer
// token, replacing any cached one.
func (c *Client) Authenticate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshTokenLocked(ctx)
}

// accessToken returns a token valid for at least the expiry skew,
// refreshing transparently when needed.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Add(tokenExpirySkew).Before(c.tokenExpiry) {
		return c.token, nil
	}
	if err := c.refreshTokenLocked(ctx); err != nil {
		return "", err
	}
	return c.token, nil
}

func (c *Client) refreshTokenLocked(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return &AuthError{Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+c.basicCreds)

	resp, err := c.http.Do(req)
	if err != nil {
		c.token = ""
		return &AuthError{Err: err}
	}
	defer resp.Body.Close()

	// The token endpoint answers 201 on success.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.token = ""
		return &AuthError{Status: resp.StatusCode}
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		c.token = ""
		return &AuthError{Err: err}
	}

	expiresIn := token.ExpiresIn
	if expiresIn == 0 {
		expiresIn = 3600
	}

	c.token = token.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(expiresIn) * time.Second)
	c.logger.Debug("access token refreshed", slog.Time("expiresAt", c.tokenExpiry))
	return nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		return req, nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}

// GetSpotPrices fetches the hourly forecast within [from, to) for the
// configured zip code. The fees the vendor reports on each entry are
// reduced to the latest entry's values.
func (c *Client) GetSpotPrices(ctx context.Context, from, to time.Time) ([]types.SpotPrice, types.MonthlyFees, error) {
	query := url.Values{
		"startDate":  {from.UTC().Format(queryTimeLayout)},
		"endDate":    {to.UTC().Format(queryTimeLayout)},
		"resolution": {"HOUR"},
		"zip":        {c.zip},
	}

	var payload listEnvelope[spotPriceEntry]
	if err := c.getJSON(ctx, "/spot-prices", query, &payload); err != nil {
		return nil, types.MonthlyFees{}, err
	}

	prices := make([]types.SpotPrice, 0, len(payload.Data))
	var fees types.MonthlyFees
	for _, entry := range payload.Data {
		prices = append(prices, entry.toSpotPrice())
		fees = types.MonthlyFees{
			BaseFee: entry.GrossMonthlyBaseFee,
			GridFee: entry.GrossMonthlyGridFees,
		}
	}

	return prices, fees, nil
}

func (c *Client) GetConsumption(ctx context.Context, from, to time.Time) ([]types.Consumption, error) {
	contractID := c.ContractID()
	if contractID == "" {
		return nil, errors.New("ostrom: contract id not set")
	}

	query := url.Values{
		"startDate":  {from.UTC().Format(queryTimeLayout)},
		"endDate":    {to.UTC().Format(queryTimeLayout)},
		"resolution": {"HOUR"},
	}

	var payload listEnvelope[consumptionEntry]
	path := "/contracts/" + contractID + "/energy-consumption"
	if err := c.getJSON(ctx, path, query, &payload); err != nil {
		return nil, err
	}

	return slice.Map(payload.Data, func(entry consumptionEntry) types.Consumption {
		return types.Consumption{
			StartsAt: entry.Date.UTC(),
			KWh:      entry.KWh,
		}
	}), nil
}

func (c *Client) GetContracts(ctx context.Context) ([]types.Contract, error) {
	var payload listEnvelope[contractEntry]
	if err := c.getJSON(ctx, "/contracts", nil, &payload); err != nil {
		return nil, err
	}

	return slice.Map(payload.Data, contractEntry.toContract), nil
}

func (c *Client) GetUser(ctx context.Context) (types.User, error) {
	var payload userPayload
	if err := c.getJSON(ctx, "/me", nil, &payload); err != nil {
		return types.User{}, err
	}

	return types.User{
		Email:     payload.Email,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Language:  payload.Language,
	}, nil
}
