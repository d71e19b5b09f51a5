package workflow

import (
	"testing"

	"github.com/kaspidesk/stocks_backend/models"
)

func TestBuildStoreIndex(t *testing.T) {
	stores := []*models.Store{
		{ID: 1, MarketplaceStoreId: "PP1"},
		{ID: 2, MarketplaceStoreId: "PP2"},
	}
	index := BuildStoreIndex(stores)
	if len(index) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(index))
	}
	if index["PP1"].ID != 1 || index["PP2"].ID != 2 {
		t.Fatalf("index keyed wrong: %v", index)
	}
}

func TestResolveStores_DropsUnknownIds(t *testing.T) {
	index := BuildStoreIndex([]*models.Store{
		{ID: 1, MarketplaceStoreId: "PP1"},
	})

	resolved, dropped := resolveStores(index, []string{"PP1", "UNKNOWN"})
	if len(resolved) != 1 || resolved[0].ID != 1 {
		t.Fatalf("expected only PP1 to resolve, got %v", resolved)
	}
	if dropped != 1 {
		t.Fatalf("expected 1 dropped id, got %d", dropped)
	}

	resolved, dropped = resolveStores(index, nil)
	if len(resolved) != 0 || dropped != 0 {
		t.Fatalf("no ids should resolve to nothing, got %v / %d", resolved, dropped)
	}
}
