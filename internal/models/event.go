package models

import "strings"

// EventType is the OpenSea event_type field
type EventType string

const (
	EventTypeSuccessful EventType = "successful" // completed sale
	EventTypeTransfer   EventType = "transfer"
	EventTypeCreated    EventType = "created" // listing
	EventTypeCancelled  EventType = "cancelled"
	EventTypeBidEntered EventType = "bid_entered"
)

// DefaultTokenDecimals applies when an event carries no payment token (ETH/WETH)
const DefaultTokenDecimals = 18

// Account is the nested {address, user} object OpenSea uses for sellers, winners and transfer parties
type Account struct {
	Address string `json:"address"`
}

// Is reports whether the account belongs to the given address (case-insensitive)
func (a *Account) Is(address string) bool {
	return a != nil && a.Address != "" && strings.EqualFold(a.Address, address)
}

// CollectionRef is the collection stub embedded in every asset
type CollectionRef struct {
	Slug     Slug   `json:"slug"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
}

// Asset is a single NFT as returned by the events and assets endpoints
type Asset struct {
	ID         int64         `json:"id"`
	TokenID    string        `json:"token_id"`
	Name       string        `json:"name"`
	ImageURL   string        `json:"image_url"`
	Permalink  string        `json:"permalink"`
	Collection CollectionRef `json:"collection"`
}

// AssetBundle groups several assets sold or transferred in one event
type AssetBundle struct {
	Name      string  `json:"name"`
	Slug      string  `json:"slug"`
	Permalink string  `json:"permalink"`
	Assets    []Asset `json:"assets"`
}

// PaymentToken describes the currency a sale settled in
type PaymentToken struct {
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
	USDPrice string `json:"usd_price,omitempty"`
}

// MarketplaceEvent is one raw activity record. Exactly one of Asset or
// AssetBundle is populated on records straight from the API.
type MarketplaceEvent struct {
	ID            int64         `json:"id"`
	EventType     EventType     `json:"event_type"`
	Asset         *Asset        `json:"asset"`
	AssetBundle   *AssetBundle  `json:"asset_bundle"`
	Seller        *Account      `json:"seller"`
	WinnerAccount *Account      `json:"winner_account"`
	FromAccount   *Account      `json:"from_account"`
	ToAccount     *Account      `json:"to_account"`
	TotalPrice    string        `json:"total_price"`
	PaymentToken  *PaymentToken `json:"payment_token"`
	Quantity      string        `json:"quantity,omitempty"`
	CreatedDate   string        `json:"created_date"`
}

// IsSuccessful reports whether the event is a completed sale
func (e *MarketplaceEvent) IsSuccessful() bool {
	return e.EventType == EventTypeSuccessful
}

// TokenDecimals returns the payment token precision, defaulting to 18
func (e *MarketplaceEvent) TokenDecimals() int {
	if e.PaymentToken == nil || e.PaymentToken.Decimals <= 0 {
		return DefaultTokenDecimals
	}
	return e.PaymentToken.Decimals
}

// EventsResponse is the body of GET /events
type EventsResponse struct {
	AssetEvents []MarketplaceEvent `json:"asset_events"`
}

// AssetsResponse is the body of GET /assets
type AssetsResponse struct {
	Assets []Asset `json:"assets"`
}
