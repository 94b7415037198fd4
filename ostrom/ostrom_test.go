package ostrom

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const spotPricesBody = `{
	"data": [
		{
			"date": "2025-06-10T00:00:00.000Z",
			"netMwhPrice": 92.79,
			"netKwhPrice": 9.28,
			"grossKwhPrice": 11.05,
			"netKwhTaxAndLevies": 14.94,
			"grossKwhTaxAndLevies": 17.78,
			"netMonthlyOstromBaseFee": 5.05,
			"grossMonthlyOstromBaseFee": 6,
			"netMonthlyGridFees": 9.35,
			"grossMonthlyGridFees": 11.12
		},
		{
			"date": "2025-06-10T01:00:00.000Z",
			"grossKwhPrice": 11.07,
			"grossKwhTaxAndLevies": 17.78,
			"grossMonthlyOstromBaseFee": 6,
			"grossMonthlyGridFees": 11.12
		}
	]
}`

type fixture struct {
	client    *Client
	authCalls *atomic.Int32
	dataCalls *atomic.Int32
}

// newFixture wires a client against local auth and data servers. The
// data handler may be swapped per test.
func newFixture(t *testing.T, expiresIn int, dataHandler http.HandlerFunc) *fixture {
	t.Helper()

	var authCalls, dataCalls atomic.Int32

	auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCalls.Add(1)
		if r.Method != http.MethodPost {
			t.Errorf("auth expected POST, got %s", r.Method)
		}
		if r.Header.Get("Authorization") == "" {
			t.Error("auth expected a basic authorization header")
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"access_token":"tok","token_type":"Bearer","expires_in":%d}`, expiresIn)
	}))
	t.Cleanup(auth.Close)

	data := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dataCalls.Add(1)
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("data expected bearer token, got %q", got)
		}
		dataHandler(w, r)
	}))
	t.Cleanup(data.Close)

	c := NewWithEndpoints("id", "secret", "12345", "987", auth.URL, data.URL)
	c.backoff = BackoffConfig{MaxRetries: 1, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}

	return &fixture{client: c, authCalls: &authCalls, dataCalls: &dataCalls}
}

func TestGetSpotPricesParsesCentsToEuros(t *testing.T) {
	fx := newFixture(t, 3600, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("zip"); got != "12345" {
			t.Errorf("expected zip query param, got %q", got)
		}
		if got := r.URL.Query().Get("resolution"); got != "HOUR" {
			t.Errorf("expected HOUR resolution, got %q", got)
		}
		fmt.Fprint(w, spotPricesBody)
	})

	from := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)
	prices, fees, err := fx.client.GetSpotPrices(context.Background(), from, from.Add(36*time.Hour))
	if err != nil {
		t.Fatalf("GetSpotPrices() unexpected error: %v", err)
	}

	if len(prices) != 2 {
		t.Fatalf("expected 2 prices, got %d", len(prices))
	}
	if got := prices[0].EnergyPrice; got != 0.1105 {
		t.Errorf("energy price expected 0.1105 EUR/kWh, got %v", got)
	}
	if got := prices[0].TaxesAndLevies; got != 0.1778 {
		t.Errorf("taxes and levies expected 0.1778 EUR/kWh, got %v", got)
	}
	if !prices[0].EndsAt.Equal(prices[1].StartsAt) {
		t.Errorf("expected contiguous hourly intervals, got end %v next start %v",
			prices[0].EndsAt, prices[1].StartsAt)
	}
	if fees.BaseFee != 6 || fees.GridFee != 11.12 {
		t.Errorf("expected fees 6/11.12 EUR, got %+v", fees)
	}
}

func TestTokenIsCachedAcrossCalls(t *testing.T) {
	fx := newFixture(t, 3600, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, spotPricesBody)
	})

	ctx := context.Background()
	from := time.Now()
	for i := 0; i < 3; i++ {
		if _, _, err := fx.client.GetSpotPrices(ctx, from, from.Add(time.Hour)); err != nil {
			t.Fatalf("GetSpotPrices() call %d unexpected error: %v", i, err)
		}
	}

	if got := fx.authCalls.Load(); got != 1 {
		t.Errorf("expected a single token request for three calls, got %d", got)
	}
}

func TestTokenRefreshedWithinExpirySkew(t *testing.T) {
	// expires_in below the 120s skew, the token is never considered valid.
	fx := newFixture(t, 60, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, spotPricesBody)
	})

	ctx := context.Background()
	from := time.Now()
	for i := 0; i < 2; i++ {
		if _, _, err := fx.client.GetSpotPrices(ctx, from, from.Add(time.Hour)); err != nil {
			t.Fatalf("GetSpotPrices() call %d unexpected error: %v", i, err)
		}
	}

	if got := fx.authCalls.Load(); got != 2 {
		t.Errorf("expected a token request per call with a near-expired token, got %d", got)
	}
}

func TestUnauthorizedMapsToAuthError(t *testing.T) {
	fx := newFixture(t, 3600, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	from := time.Now()
	_, _, err := fx.client.GetSpotPrices(context.Background(), from, from.Add(time.Hour))

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if IsRetryable(err) {
		t.Error("auth errors must not be retryable")
	}
	if got := fx.dataCalls.Load(); got != 1 {
		t.Errorf("expected no retry on 401, got %d data calls", got)
	}
}

func TestServerErrorMapsToTransportErrorAndRetries(t *testing.T) {
	var failures atomic.Int32
	fx := newFixture(t, 3600, func(w http.ResponseWriter, r *http.Request) {
		failures.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	from := time.Now()
	_, _, err := fx.client.GetSpotPrices(context.Background(), from, from.Add(time.Hour))

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if !IsRetryable(err) {
		t.Error("5xx must be retryable")
	}
	// MaxRetries is 1 in the fixture: initial attempt plus one retry.
	if got := failures.Load(); got != 2 {
		t.Errorf("expected 2 attempts, got %d", got)
	}
}

func TestClientErrorMapsToApiErrorWithoutRetry(t *testing.T) {
	fx := newFixture(t, 3600, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown contract", http.StatusNotFound)
	})

	_, err := fx.client.GetConsumption(context.Background(), time.Now(), time.Now().Add(time.Hour))

	var apiErr *ApiError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected ApiError, got %v", err)
	}
	if apiErr.Status != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", apiErr.Status)
	}
	if IsRetryable(err) {
		t.Error("plain 4xx must not be retryable")
	}
	if got := fx.dataCalls.Load(); got != 1 {
		t.Errorf("expected a single attempt, got %d", got)
	}
}

func TestBadCredentialsSurfaceAsAuthError(t *testing.T) {
	auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer auth.Close()

	c := NewWithEndpoints("id", "bad", "12345", "987", auth.URL, "http://127.0.0.1:0")
	err := c.Authenticate(context.Background())

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if authErr.Status != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", authErr.Status)
	}
}

func TestGetContracts(t *testing.T) {
	fx := newFixture(t, 3600, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{
			"id": 123456789,
			"type": "ELECTRICITY",
			"productCode": "SIMPLY_DYNAMIC",
			"status": "ACTIVE",
			"customerFirstName": "First",
			"customerLastName": "Last",
			"startDate": "2020-01-01",
			"currentMonthlyDepositAmount": 42,
			"address": {"zip": "12345", "city": "Berlin", "street": "Hauptstr", "houseNumber": "1"}
		}]}`)
	})

	contracts, err := fx.client.GetContracts(context.Background())
	if err != nil {
		t.Fatalf("GetContracts() unexpected error: %v", err)
	}
	if len(contracts) != 1 {
		t.Fatalf("expected 1 contract, got %d", len(contracts))
	}

	contract := contracts[0]
	if contract.ID != "123456789" {
		t.Errorf("expected id as string, got %q", contract.ID)
	}
	if contract.ProductCode != "SIMPLY_DYNAMIC" {
		t.Errorf("unexpected product code %q", contract.ProductCode)
	}
	if contract.StartDate.IsZero() {
		t.Error("expected a parsed start date")
	}
	if contract.MonthlyDeposit != 42 {
		t.Errorf("expected deposit 42, got %v", contract.MonthlyDeposit)
	}
}
