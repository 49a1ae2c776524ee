package trades

import (
	"fmt"
	"time"

	"github.com/shrimpynuts/ape-monitor-sub000/internal/models"
)

const (
	owner = "0xAbC0000000000000000000000000000000000001"
	other = "0x9990000000000000000000000000000000000002"
)

var baseTime = time.Date(2021, 9, 1, 12, 0, 0, 0, time.UTC)

func testAsset(slug, tokenID string) models.Asset {
	return models.Asset{
		TokenID:   tokenID,
		Name:      fmt.Sprintf("%s #%s", slug, tokenID),
		ImageURL:  "https://img.example/" + slug + "/" + tokenID + ".png",
		Permalink: "https://opensea.io/assets/0x" + slug + "/" + tokenID,
		Collection: models.CollectionRef{
			Slug:     models.Slug(slug),
			Name:     "The " + slug,
			ImageURL: "https://img.example/" + slug + ".png",
		},
	}
}

// eth renders a whole-or-fractional ETH amount as a wei string
func eth(v float64) string {
	return fmt.Sprintf("%.0f", v*1e6) + "000000000000"
}

func sale(asset models.Asset, price float64, at time.Time) models.MarketplaceEvent {
	a := asset
	return models.MarketplaceEvent{
		EventType:     models.EventTypeSuccessful,
		Asset:         &a,
		Seller:        &models.Account{Address: owner},
		WinnerAccount: &models.Account{Address: other},
		TotalPrice:    eth(price),
		CreatedDate:   at.Format("2006-01-02T15:04:05.000000"),
	}
}

func buy(asset models.Asset, price float64, at time.Time) models.MarketplaceEvent {
	a := asset
	return models.MarketplaceEvent{
		EventType:     models.EventTypeSuccessful,
		Asset:         &a,
		Seller:        &models.Account{Address: other},
		WinnerAccount: &models.Account{Address: owner},
		TotalPrice:    eth(price),
		CreatedDate:   at.Format("2006-01-02T15:04:05.000000"),
	}
}

func transfer(asset models.Asset, at time.Time) models.MarketplaceEvent {
	a := asset
	return models.MarketplaceEvent{
		EventType:   models.EventTypeTransfer,
		Asset:       &a,
		FromAccount: &models.Account{Address: other},
		ToAccount:   &models.Account{Address: owner},
		CreatedDate: at.Format("2006-01-02T15:04:05"),
	}
}
