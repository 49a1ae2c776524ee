package trades

import (
	"strings"

	"github.com/shrimpynuts/ape-monitor-sub000/internal/models"
)

// EventIndex maps trade identifiers to events, keeping first-insert order.
// A repeated identifier replaces the stored event but keeps its position.
type EventIndex struct {
	keys   []models.TradeIdentifier
	events map[models.TradeIdentifier]models.MarketplaceEvent
}

func newEventIndex() EventIndex {
	return EventIndex{events: make(map[models.TradeIdentifier]models.MarketplaceEvent)}
}

func (x *EventIndex) put(id models.TradeIdentifier, e models.MarketplaceEvent) {
	if x.events == nil {
		x.events = make(map[models.TradeIdentifier]models.MarketplaceEvent)
	}
	if _, exists := x.events[id]; !exists {
		x.keys = append(x.keys, id)
	}
	x.events[id] = e
}

// Get returns the event stored for id
func (x EventIndex) Get(id models.TradeIdentifier) (models.MarketplaceEvent, bool) {
	e, ok := x.events[id]
	return e, ok
}

// Has reports whether id is present
func (x EventIndex) Has(id models.TradeIdentifier) bool {
	_, ok := x.events[id]
	return ok
}

// Keys returns identifiers in first-insert order
func (x EventIndex) Keys() []models.TradeIdentifier {
	out := make([]models.TradeIdentifier, len(x.keys))
	copy(out, x.keys)
	return out
}

// Len returns the number of identifiers
func (x EventIndex) Len() int {
	return len(x.keys)
}

// Classification is the owner's completed sales and buys keyed by trade identifier
type Classification struct {
	Sales      EventIndex
	Buys       EventIndex
	Successful int
	Dropped    int // successful events with missing fields or no owner side
}

// IdentifierFor derives the trade identifier of an unbundled event
func IdentifierFor(e *models.MarketplaceEvent) (models.TradeIdentifier, bool) {
	if e.Asset == nil {
		return "", false
	}
	permalink := strings.TrimSpace(e.Asset.Permalink)
	if permalink == "" {
		return "", false
	}
	return models.TradeIdentifier(permalink), true
}

// Classify splits successful events into the owner's sales (owner was seller)
// and buys (owner was winner). Events must already be unbundled.
func Classify(events []models.MarketplaceEvent, owner string) Classification {
	c := Classification{
		Sales: newEventIndex(),
		Buys:  newEventIndex(),
	}

	for _, e := range events {
		if !e.IsSuccessful() {
			continue
		}
		c.Successful++

		id, ok := IdentifierFor(&e)
		if !ok {
			c.Dropped++
			continue
		}

		switch {
		case e.Seller.Is(owner):
			c.Sales.put(id, e)
		case e.WinnerAccount.Is(owner):
			c.Buys.put(id, e)
		default:
			c.Dropped++
		}
	}

	return c
}
