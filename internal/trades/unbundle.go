package trades

import "github.com/shrimpynuts/ape-monitor-sub000/internal/models"

// UnbundleEvents expands every bundle event into one event per bundled asset.
// Each derived event keeps all bundle-level fields with Asset set to its own
// asset and AssetBundle cleared. Non-bundle events pass through unchanged.
func UnbundleEvents(events []models.MarketplaceEvent) []models.MarketplaceEvent {
	out := make([]models.MarketplaceEvent, 0, len(events))
	for _, e := range events {
		if e.AssetBundle == nil {
			out = append(out, e)
			continue
		}
		for i := range e.AssetBundle.Assets {
			derived := e
			asset := e.AssetBundle.Assets[i]
			derived.Asset = &asset
			derived.AssetBundle = nil
			out = append(out, derived)
		}
	}
	return out
}
