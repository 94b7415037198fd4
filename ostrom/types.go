package ostrom

import (
	"strconv"
	"time"

	"github.com/cadsdf/ostromd/convert"
	"github.com/cadsdf/ostromd/types"
)

// Wire formats of the Ostrom API. Prices come as gross ct/kWh, fees as
// gross EUR/month.

type listEnvelope[T any] struct {
	Data []T `json:"data"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type spotPriceEntry struct {
	Date                 time.Time `json:"date"`
	GrossKwhPrice        float64   `json:"grossKwhPrice"`
	GrossKwhTaxAndLevies float64   `json:"grossKwhTaxAndLevies"`
	GrossMonthlyBaseFee  float64   `json:"grossMonthlyOstromBaseFee"`
	GrossMonthlyGridFees float64   `json:"grossMonthlyGridFees"`
}

func (e spotPriceEntry) toSpotPrice() types.SpotPrice {
	start := e.Date.UTC()
	return types.SpotPrice{
		StartsAt:       start,
		EndsAt:         start.Add(time.Hour),
		EnergyPrice:    convert.CentsToEuros(e.GrossKwhPrice),
		TaxesAndLevies: convert.CentsToEuros(e.GrossKwhTaxAndLevies),
	}
}

type consumptionEntry struct {
	Date time.Time `json:"date"`
	KWh  float64   `json:"kWh"`
}

type contractEntry struct {
	ID             int64   `json:"id"`
	Type           string  `json:"type"`
	ProductCode    string  `json:"productCode"`
	Status         string  `json:"status"`
	StartDate      string  `json:"startDate"`
	MonthlyDeposit float64 `json:"currentMonthlyDepositAmount"`
	Address        struct {
		Zip         string `json:"zip"`
		City        string `json:"city"`
		Street      string `json:"street"`
		HouseNumber string `json:"houseNumber"`
	} `json:"address"`
}

func (e contractEntry) toContract() types.Contract {
	startDate, _ := time.ParseInLocation("2006-01-02", e.StartDate, time.UTC)
	return types.Contract{
		ID:             strconv.FormatInt(e.ID, 10),
		Type:           e.Type,
		ProductCode:    e.ProductCode,
		Status:         e.Status,
		StartDate:      startDate,
		MonthlyDeposit: e.MonthlyDeposit,
		Zip:            e.Address.Zip,
		City:           e.Address.City,
		Street:         e.Address.Street,
		HouseNumber:    e.Address.HouseNumber,
	}
}

type userPayload struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Language  string `json:"language"`
}
