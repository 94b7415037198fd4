package mqtt

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

type discoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
}

type discoveryConfig struct {
	Name              string          `json:"name"`
	UniqueID          string          `json:"unique_id"`
	StateTopic        string          `json:"state_topic"`
	AvailabilityTopic string          `json:"availability_topic"`
	ValueTemplate     string          `json:"value_template"`
	UnitOfMeasurement string          `json:"unit_of_measurement,omitempty"`
	DeviceClass       string          `json:"device_class,omitempty"`
	StateClass        string          `json:"state_class,omitempty"`
	PayloadOn         string          `json:"payload_on,omitempty"`
	PayloadOff        string          `json:"payload_off,omitempty"`
	Device            discoveryDevice `json:"device"`
}

type sensorDef struct {
	component string // "sensor" or "binary_sensor"
	key       string
	name      string
	template  string
	unit      string
	class     string
}

var sensors = []sensorDef{
	{"sensor", "current_price", "Current Price",
		"{{ value_json.currentPrice.total if value_json.currentPrice else 'unknown' }}", "EUR/kWh", "monetary"},
	{"sensor", "min_today", "Cheapest Hour Today",
		"{{ value_json.minimums.today.total if value_json.minimums.today else 'unknown' }}", "EUR/kWh", "monetary"},
	{"sensor", "min_upcoming_today", "Cheapest Upcoming Hour Today",
		"{{ value_json.minimums.upcomingToday.total if value_json.minimums.upcomingToday else 'unknown' }}", "EUR/kWh", "monetary"},
	{"sensor", "min_tomorrow", "Cheapest Hour Tomorrow",
		"{{ value_json.minimums.tomorrow.total if value_json.minimums.tomorrow else 'unknown' }}", "EUR/kWh", "monetary"},
	{"sensor", "min_all", "Cheapest Hour Available",
		"{{ value_json.minimums.allAvailable.total if value_json.minimums.allAvailable else 'unknown' }}", "EUR/kWh", "monetary"},
	{"sensor", "base_fee", "Monthly Base Fee",
		"{{ value_json.fees.baseFee }}", "EUR", "monetary"},
	{"sensor", "grid_fee", "Monthly Grid Fee",
		"{{ value_json.fees.gridFee }}", "EUR", "monetary"},
	{"sensor", "yesterday_kwh", "Consumption Yesterday",
		"{{ value_json.yesterday.kwh if value_json.yesterday.kwh is not none else 'unknown' }}", "kWh", "energy"},
	{"sensor", "yesterday_cost", "Consumption Cost Yesterday",
		"{{ value_json.yesterday.cost if value_json.yesterday.cost is not none else 'unknown' }}", "EUR", "monetary"},
	{"binary_sensor", "lowest_price_now", "Lowest Price Is Now",
		"{{ value_json.lowestPriceIsNow }}", "", ""},
	{"binary_sensor", "degraded", "Price Data Degraded",
		"{{ not value_json.status.ok }}", "", "problem"},
}

func (p *Publisher) publishDiscovery() error {
	device := discoveryDevice{
		Identifiers:  []string{"ostromd"},
		Name:         "Ostrom Spot Prices",
		Manufacturer: "Ostrom",
	}

	for _, s := range sensors {
		cfg := discoveryConfig{
			Name:              s.name,
			UniqueID:          "ostromd_" + s.key,
			StateTopic:        p.topicPrefix + "/state",
			AvailabilityTopic: p.topicPrefix + "/availability",
			ValueTemplate:     s.template,
			UnitOfMeasurement: s.unit,
			DeviceClass:       s.class,
			Device:            device,
		}
		if s.component == "binary_sensor" {
			cfg.PayloadOn = "True"
			cfg.PayloadOff = "False"
		}

		payload, err := json.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("encoding discovery config for %s: %w", s.key, err)
		}

		topic := fmt.Sprintf("%s/%s/ostromd/%s/config", p.discoveryPrefix, s.component, s.key)
		p.publish(topic, string(payload), true)
		p.logger.Debug("published discovery config", slog.String("topic", topic))
	}

	return nil
}
