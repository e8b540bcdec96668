package sdk

import (
	"fmt"
	"maps"
	"slices"
)

// Placement requests an ad for one display slot. It is immutable once built;
// use NewPlacement to construct one.
type Placement struct {
	divName    string
	adTypes    []int
	networkID  int
	siteID     int
	zoneIDs    []int
	campaignID int
	flightID   int
	adID       int
	eventIDs   []int
	count      int
	properties map[string]any
}

// PlacementOption sets an optional placement attribute.
type PlacementOption func(*Placement)

// WithCount asks for up to n decisions for the slot.
func WithCount(n int) PlacementOption {
	return func(p *Placement) { p.count = n }
}

// WithProperties attaches custom key/value targeting data to the placement.
func WithProperties(props map[string]any) PlacementOption {
	return func(p *Placement) { p.properties = maps.Clone(props) }
}

// WithPlacementNetwork overrides the client's default network id.
func WithPlacementNetwork(networkID int) PlacementOption {
	return func(p *Placement) { p.networkID = networkID }
}

// WithPlacementSite overrides the client's default site id.
func WithPlacementSite(siteID int) PlacementOption {
	return func(p *Placement) { p.siteID = siteID }
}

// WithZones restricts the decision to the given zones.
func WithZones(zoneIDs ...int) PlacementOption {
	return func(p *Placement) { p.zoneIDs = slices.Clone(zoneIDs) }
}

// WithCampaign, WithFlight and WithAd pin the decision to one entity.
func WithCampaign(id int) PlacementOption {
	return func(p *Placement) { p.campaignID = id }
}

func WithFlight(id int) PlacementOption {
	return func(p *Placement) { p.flightID = id }
}

func WithAd(id int) PlacementOption {
	return func(p *Placement) { p.adID = id }
}

// WithEventIDs requests tracking URLs for custom events.
func WithEventIDs(ids ...int) PlacementOption {
	return func(p *Placement) { p.eventIDs = slices.Clone(ids) }
}

type placementRules struct {
	DivName    string `validate:"required"`
	AdTypes    []int  `validate:"min=1,dive,gt=0"`
	NetworkID  int    `validate:"gte=0"`
	SiteID     int    `validate:"gte=0"`
	Count      int    `validate:"gte=0"`
	CampaignID int    `validate:"gte=0"`
	FlightID   int    `validate:"gte=0"`
	AdID       int    `validate:"gte=0"`
}

// NewPlacement builds a placement for divName. It fails when divName is
// empty or adTypes holds no positive ids.
func NewPlacement(divName string, adTypes []int, opts ...PlacementOption) (Placement, error) {
	p := Placement{
		divName: divName,
		adTypes: slices.Clone(adTypes),
	}
	for _, opt := range opts {
		opt(&p)
	}
	rules := placementRules{
		DivName:    p.divName,
		AdTypes:    p.adTypes,
		NetworkID:  p.networkID,
		SiteID:     p.siteID,
		Count:      p.count,
		CampaignID: p.campaignID,
		FlightID:   p.flightID,
		AdID:       p.adID,
	}
	if err := validate.Struct(rules); err != nil {
		return Placement{}, fmt.Errorf("%w %q: %v", ErrInvalidPlacement, divName, err)
	}
	return p, nil
}

// MustPlacement is NewPlacement for statically known placements. It panics
// on invalid input.
func MustPlacement(divName string, adTypes []int, opts ...PlacementOption) Placement {
	p, err := NewPlacement(divName, adTypes, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Placement) DivName() string            { return p.divName }
func (p Placement) AdTypes() []int             { return slices.Clone(p.adTypes) }
func (p Placement) Count() int                 { return p.count }
func (p Placement) Properties() map[string]any { return maps.Clone(p.properties) }

// placementWire is the serialized placement. Network and site are always
// resolved before a placement reaches the wire.
type placementWire struct {
	DivName    string         `json:"divName"`
	NetworkID  int            `json:"networkId"`
	SiteID     int            `json:"siteId"`
	AdTypes    []int          `json:"adTypes"`
	ZoneIDs    []int          `json:"zoneIds,omitempty"`
	CampaignID int            `json:"campaignId,omitempty"`
	FlightID   int            `json:"flightId,omitempty"`
	AdID       int            `json:"adId,omitempty"`
	EventIDs   []int          `json:"eventIds,omitempty"`
	Count      int            `json:"count,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

func (p Placement) wire(cfg Config) (placementWire, error) {
	if p.divName == "" || len(p.adTypes) == 0 {
		return placementWire{}, fmt.Errorf("%w %q: built without NewPlacement", ErrInvalidPlacement, p.divName)
	}
	networkID, err := cfg.networkID(p.networkID)
	if err != nil {
		return placementWire{}, err
	}
	siteID, err := cfg.siteID(p.siteID)
	if err != nil {
		return placementWire{}, err
	}
	return placementWire{
		DivName:    p.divName,
		NetworkID:  networkID,
		SiteID:     siteID,
		AdTypes:    p.adTypes,
		ZoneIDs:    p.zoneIDs,
		CampaignID: p.campaignID,
		FlightID:   p.flightID,
		AdID:       p.adID,
		EventIDs:   p.eventIDs,
		Count:      p.count,
		Properties: p.properties,
	}, nil
}
