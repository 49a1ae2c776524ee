package trades

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shrimpynuts/ape-monitor-sub000/internal/models"
)

func pipelineEvents() []models.MarketplaceEvent {
	cat1, cat2 := testAsset("cats", "1"), testAsset("cats", "2")
	dog := testAsset("dogs", "1")
	bundled := []models.Asset{testAsset("birds", "1"), testAsset("birds", "2")}

	bundleBuy := models.MarketplaceEvent{
		EventType:     models.EventTypeSuccessful,
		AssetBundle:   &models.AssetBundle{Name: "flock", Assets: bundled},
		Seller:        &models.Account{Address: other},
		WinnerAccount: &models.Account{Address: owner},
		TotalPrice:    eth(1),
		CreatedDate:   baseTime.Format("2006-01-02T15:04:05"),
	}

	return []models.MarketplaceEvent{
		sale(cat1, 2.0, baseTime.Add(24*time.Hour)),
		buy(cat1, 1.0, baseTime),
		sale(cat2, 3.0, baseTime.Add(96*time.Hour)),
		buy(cat2, 1.0, baseTime.Add(48*time.Hour)),
		sale(dog, 0.5, baseTime.Add(time.Hour)),
		buy(dog, 2, baseTime),
		bundleBuy,
		sale(bundled[1], 1.5, baseTime.Add(72*time.Hour)),
		transfer(testAsset("cats", "3"), baseTime),
		sale(testAsset("moles", "1"), 9, baseTime),
	}
}

func TestRun_EndToEnd(t *testing.T) {
	result := Run(pipelineEvents(), owner, models.SummaryPolicyAny)

	require.Equal(t, []models.Slug{"cats", "dogs", "birds"}, result.TradesByCollection.Slugs())

	cats, _ := result.TradesByCollection.Get("cats")
	require.Equal(t, "3", cats.TotalProfit.String())
	require.Equal(t, "2.5", cats.AverageSalePrice.String())
	require.Equal(t, "1", cats.AverageBuyPrice.String())

	birds, _ := result.TradesByCollection.Get("birds")
	require.Len(t, birds.Trades, 1)
	require.Equal(t, "0.5", birds.TotalProfit.String())

	require.Equal(t, models.Slug("cats"), result.TotalTradeStats.BestTrade.Slug)
	require.Equal(t, models.Slug("dogs"), result.TotalTradeStats.WorstTrade.Slug)

	require.Equal(t, models.PipelineCounts{
		Events:     10,
		Unbundled:  11,
		Successful: 10,
		Sales:      5,
		Buys:       5,
		Matched:    4,
		Dropped:    0,
	}, result.Counts)
}

func TestRun_SingleCollectionIsBestTrade(t *testing.T) {
	events := pipelineEvents()[:4]

	result := Run(events, owner, models.SummaryPolicyAny)

	cats, ok := result.TradesByCollection.Get("cats")
	require.True(t, ok)
	require.Same(t, cats, result.TotalTradeStats.BestTrade)
}

func TestRun_Idempotent(t *testing.T) {
	events := pipelineEvents()

	first := Run(events, owner, models.SummaryPolicySigned)
	second := Run(events, owner, models.SummaryPolicySigned)

	require.Equal(t, first, second)

	a, err := json.Marshal(first.TradesByCollection)
	require.NoError(t, err)
	b, err := json.Marshal(second.TradesByCollection)
	require.NoError(t, err)
	require.Equal(t, string(a), string(b))
}

func TestRun_NoEvents(t *testing.T) {
	result := Run(nil, owner, models.SummaryPolicyAny)

	require.Zero(t, result.TradesByCollection.Len())
	require.Nil(t, result.TotalTradeStats.BestTrade)
	require.Nil(t, result.TotalTradeStats.WorstTrade)
}
