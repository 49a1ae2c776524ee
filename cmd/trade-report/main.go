// trade-report rebuilds a wallet's matched NFT trades once and prints them.
//
// Usage: trade-report -address=<0x...> [-policy=any|signed] [-json] [-events=<file>]
//
// The tool:
// 1. Fetches every OpenSea event for the address (or reads a saved events response)
// 2. Splits bundles, classifies sales and buys, and matches them per item
// 3. Prints per-collection averages and profit, then the best and worst collection
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/shrimpynuts/ape-monitor-sub000/internal/config"
	"github.com/shrimpynuts/ape-monitor-sub000/internal/models"
	"github.com/shrimpynuts/ape-monitor-sub000/internal/services"
	"github.com/shrimpynuts/ape-monitor-sub000/internal/trades"
)

func main() {
	address := flag.String("address", "", "Wallet address to report on (required)")
	policyFlag := flag.String("policy", "", "Best/worst policy: any or signed (default from TRADE_SUMMARY_POLICY)")
	asJSON := flag.Bool("json", false, "Print the report as JSON")
	eventsFile := flag.String("events", "", "Read a saved /events response instead of calling OpenSea")
	flag.Parse()

	if *address == "" {
		fmt.Println("Usage: trade-report -address=<0x...> [options]")
		fmt.Println("")
		fmt.Println("Rebuilds matched trades for a wallet from its OpenSea events.")
		fmt.Println("")
		fmt.Println("Options:")
		fmt.Println("  -address  Wallet address (required)")
		fmt.Println("  -policy   any (max/min profit) or signed (best > 0, worst < 0)")
		fmt.Println("  -json     Print the report as JSON")
		fmt.Println("  -events   Path to a saved events response")
		os.Exit(1)
	}

	cfg := config.Load()
	cfg.ConfigureLogging()

	owner, err := services.NormalizeAddress(*address)
	if err != nil {
		log.Fatalf("%v", err)
	}

	policy := cfg.TradeSummaryPolicy
	if *policyFlag != "" {
		if policy, err = models.ParseSummaryPolicy(*policyFlag); err != nil {
			log.Fatalf("%v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	events, partial, err := loadEvents(ctx, cfg, owner, *eventsFile)
	if err != nil {
		log.Fatalf("Failed to load events: %v", err)
	}

	result := trades.Run(events, owner, policy)
	report := &models.TradeReport{
		Address:            owner,
		TradesByCollection: result.TradesByCollection,
		TotalTradeStats:    result.TotalTradeStats,
		TotalProfit:        result.TradesByCollection.TotalProfit(),
		Counts:             result.Counts,
		Policy:             policy,
		Partial:            partial,
		GeneratedAt:        time.Now().UTC(),
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			log.Fatalf("Failed to encode report: %v", err)
		}
		return
	}
	printReport(report)
}

func loadEvents(ctx context.Context, cfg *config.Config, owner, path string) ([]models.MarketplaceEvent, bool, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, false, err
		}
		var resp models.EventsResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, false, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return resp.AssetEvents, false, nil
	}

	opensea := services.NewOpenSeaService(services.OpenSeaConfig{
		APIKey:            cfg.OpenSeaAPIKey,
		BaseURL:           cfg.OpenSeaBaseURL,
		PageSize:          cfg.OpenSeaPageSize,
		RequestsPerSecond: cfg.OpenSeaRequestsPerSecond,
		Timeout:           cfg.OpenSeaTimeout,
	})
	result, err := opensea.FetchAllEvents(ctx, owner)
	if err != nil {
		if errors.Is(err, services.ErrUpstreamUnavailable) && len(result.Events) > 0 {
			log.Warnf("Continuing with %d events after upstream failure: %v", len(result.Events), err)
			return result.Events, true, nil
		}
		return nil, false, err
	}
	log.Infof("Fetched %d events over %d pages", len(result.Events), result.Pages)
	return result.Events, result.Status == services.FetchPartial, nil
}

func printReport(report *models.TradeReport) {
	fmt.Printf("Trades for %s (policy: %s)\n", report.Address, report.Policy)
	if report.Partial {
		fmt.Println("WARNING: event history incomplete, figures are partial")
	}
	fmt.Printf("Events: %d  Sales: %d  Buys: %d  Matched: %d  Dropped: %d\n\n",
		report.Counts.Events, report.Counts.Sales, report.Counts.Buys, report.Counts.Matched, report.Counts.Dropped)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "COLLECTION\tTRADES\tAVG BUY\tAVG SALE\tAVG HOLD\tPROFIT")
	for _, bucket := range report.TradesByCollection.Buckets() {
		hold := time.Duration(bucket.AverageHoldTimeMs) * time.Millisecond
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n",
			bucket.Slug, len(bucket.Trades),
			bucket.AverageBuyPrice.StringFixed(4), bucket.AverageSalePrice.StringFixed(4),
			hold.Round(time.Hour), bucket.TotalProfit.StringFixed(4))
	}
	_ = w.Flush()

	fmt.Printf("\nTotal profit: %s ETH\n", report.TotalProfit.StringFixed(4))
	if best := report.TotalTradeStats.BestTrade; best != nil {
		fmt.Printf("Best collection:  %s (%s ETH)\n", best.Slug, best.TotalProfit.StringFixed(4))
	} else {
		fmt.Println("Best collection:  none")
	}
	if worst := report.TotalTradeStats.WorstTrade; worst != nil {
		fmt.Printf("Worst collection: %s (%s ETH)\n", worst.Slug, worst.TotalProfit.StringFixed(4))
	} else {
		fmt.Println("Worst collection: none")
	}
}
