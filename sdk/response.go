package sdk

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"
)

// DecisionResponse is the parsed body of a successful decision call.
type DecisionResponse struct {
	User *ResponseUser `json:"user,omitempty"`
	// Decisions maps each requested div name to its selected ads. A div with
	// no fill maps to an empty list.
	Decisions map[string]Decisions `json:"decisions"`
	Explain   json.RawMessage      `json:"explain,omitempty"`
}

// ResponseUser is the identity block echoed by the engine.
type ResponseUser struct {
	Key string `json:"key"`

	hasKey bool
}

func (u *ResponseUser) UnmarshalJSON(data []byte) error {
	var raw struct {
		Key *string `json:"key"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	u.Key, u.hasKey = "", raw.Key != nil
	if raw.Key != nil {
		u.Key = *raw.Key
	}
	return nil
}

// UserKey returns the key issued by the engine, if any.
func (r *DecisionResponse) UserKey() string {
	if r == nil || r.User == nil {
		return ""
	}
	return r.User.Key
}

// IssuedKey returns the key carried by the response and whether a key field
// was present at all. A present empty key is still reported.
func (r *DecisionResponse) IssuedKey() (string, bool) {
	if r == nil || r.User == nil || !r.User.hasKey {
		return "", false
	}
	return r.User.Key, true
}

// First returns the first decision for div.
func (r *DecisionResponse) First(div string) (Decision, bool) {
	ds := r.Decisions[div]
	if len(ds) == 0 {
		return Decision{}, false
	}
	return ds[0], true
}

// Decision is one ad selected for a placement.
type Decision struct {
	AdID          int             `json:"adId"`
	CreativeID    int             `json:"creativeId"`
	FlightID      int             `json:"flightId"`
	CampaignID    int             `json:"campaignId"`
	PriorityID    int             `json:"priorityId"`
	ClickURL      string          `json:"clickUrl,omitempty"`
	ImpressionURL string          `json:"impressionUrl,omitempty"`
	Contents      []Content       `json:"contents,omitempty"`
	Events        []Event         `json:"events,omitempty"`
	Pricing       *Pricing        `json:"pricing,omitempty"`
	MatchedPoints json.RawMessage `json:"matchedPoints,omitempty"`
}

// EventURL returns the tracking URL for a custom event id.
func (d Decision) EventURL(id int) (string, bool) {
	for _, ev := range d.Events {
		if ev.ID == id {
			return ev.URL, true
		}
	}
	return "", false
}

// Content is one renderable piece of a decision.
type Content struct {
	Type           string         `json:"type"`
	Template       string         `json:"template,omitempty"`
	CustomTemplate string         `json:"customTemplate,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
	Body           string         `json:"body,omitempty"`
}

// Event is a custom tracking event attached to a decision.
type Event struct {
	ID  int    `json:"id"`
	URL string `json:"url"`
}

// Pricing is only present when the request set IncludePricing.
type Pricing struct {
	Price      decimal.Decimal `json:"price"`
	ClearPrice decimal.Decimal `json:"clearPrice"`
	Revenue    decimal.Decimal `json:"revenue"`
	RateType   int             `json:"rateType"`
	ECPM       decimal.Decimal `json:"eCPM"`
}

// Decisions accepts a single object, an array or null for one div.
type Decisions []Decision

func (d *Decisions) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.Equal(trimmed, []byte("null")):
		*d = Decisions{}
		return nil
	case len(trimmed) > 0 && trimmed[0] == '[':
		var list []Decision
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return err
		}
		*d = list
		return nil
	default:
		var one Decision
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return err
		}
		*d = Decisions{one}
		return nil
	}
}

var errMissingDecisions = errors.New("response has no decisions object")

func parseDecisionResponse(body []byte) (*DecisionResponse, error) {
	var resp DecisionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if resp.Decisions == nil {
		return nil, errMissingDecisions
	}
	return &resp, nil
}
