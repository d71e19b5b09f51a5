package models_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/kaspidesk/stocks_backend/models"
	"github.com/xuri/excelize/v2"
)

func TestParseOfferRow_Bounds(t *testing.T) {
	long := strings.Repeat("x", 256)
	max := strings.Repeat("x", 255)
	maxCyrillic := strings.Repeat("Я", 255)
	longCyrillic := strings.Repeat("Я", 256)

	cases := []struct {
		name    string
		raw     models.RawOfferRow
		wantErr bool
	}{
		{"valid minimal", models.RawOfferRow{Row: 2, Name: "n", Sku: "s"}, false},
		{"name at max", models.RawOfferRow{Row: 2, Name: max, Sku: "s"}, false},
		{"name empty", models.RawOfferRow{Row: 2, Name: "", Sku: "s"}, true},
		{"name too long", models.RawOfferRow{Row: 2, Name: long, Sku: "s"}, true},
		{"cyrillic name at max", models.RawOfferRow{Row: 2, Name: maxCyrillic, Sku: "s"}, false},
		{"cyrillic name too long", models.RawOfferRow{Row: 2, Name: longCyrillic, Sku: "s"}, true},
		{"cyrillic brand at max", models.RawOfferRow{Row: 2, Name: "n", Sku: "s", Brand: maxCyrillic}, false},
		{"sku empty", models.RawOfferRow{Row: 2, Name: "n", Sku: ""}, true},
		{"sku too long", models.RawOfferRow{Row: 2, Name: "n", Sku: long}, true},
		{"brand at max", models.RawOfferRow{Row: 2, Name: "n", Sku: "s", Brand: max}, false},
		{"brand too long", models.RawOfferRow{Row: 2, Name: "n", Sku: "s", Brand: long}, true},
		{"bad price", models.RawOfferRow{Row: 2, Name: "n", Sku: "s", Price: "abc"}, true},
	}
	for _, tc := range cases {
		_, err := models.ParseOfferRow(tc.raw)
		if tc.wantErr && err == nil {
			t.Fatalf("%s: expected error, got nil", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
	}
}

func TestParseOfferRow_PriceAbsentVsZero(t *testing.T) {
	parsed, err := models.ParseOfferRow(models.RawOfferRow{Row: 2, Name: "n", Sku: "s", Price: ""})
	if err != nil {
		t.Fatalf("blank price: %v", err)
	}
	if parsed.Price != nil {
		t.Fatalf("blank price should stay unset, got %d", *parsed.Price)
	}

	parsed, err = models.ParseOfferRow(models.RawOfferRow{Row: 2, Name: "n", Sku: "s", Price: "0"})
	if err != nil {
		t.Fatalf("zero price: %v", err)
	}
	if parsed.Price == nil || *parsed.Price != 0 {
		t.Fatalf("zero price should parse to 0, got %v", parsed.Price)
	}

	parsed, err = models.ParseOfferRow(models.RawOfferRow{Row: 2, Name: "n", Sku: "s", Price: "199.90"})
	if err != nil {
		t.Fatalf("decimal price: %v", err)
	}
	if parsed.Price == nil || *parsed.Price != 199 {
		t.Fatalf("decimal price should truncate to 199, got %v", parsed.Price)
	}
}

func TestParseOfferRow_StoreIds(t *testing.T) {
	parsed, err := models.ParseOfferRow(models.RawOfferRow{Row: 2, Name: "n", Sku: "s", StoreIds: "PP1,PP2"})
	if err != nil {
		t.Fatalf("ParseOfferRow: %v", err)
	}
	if len(parsed.StoreIds) != 2 || parsed.StoreIds[0] != "PP1" || parsed.StoreIds[1] != "PP2" {
		t.Fatalf("expected [PP1 PP2], got %v", parsed.StoreIds)
	}

	parsed, err = models.ParseOfferRow(models.RawOfferRow{Row: 2, Name: "n", Sku: "s"})
	if err != nil {
		t.Fatalf("ParseOfferRow: %v", err)
	}
	if parsed.StoreIds != nil {
		t.Fatalf("empty cell should yield no store ids, got %v", parsed.StoreIds)
	}
}

func TestReadOfferRows_MissingSheet(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	rows, err := models.ReadOfferRows(f)
	if err != nil {
		t.Fatalf("ReadOfferRows: %v", err)
	}
	if rows != nil {
		t.Fatalf("workbook without the offers sheet should decode to nothing, got %d rows", len(rows))
	}
}

func offersWorkbook(t *testing.T, rows [][]interface{}) *excelize.File {
	t.Helper()
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", models.OffersSheetName); err != nil {
		t.Fatalf("SetSheetName: %v", err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("CoordinatesToCellName: %v", err)
		}
		if err := f.SetSheetRow(models.OffersSheetName, cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	return f
}

func TestReadOfferRows_StopsAtBlankRow(t *testing.T) {
	f := offersWorkbook(t, [][]interface{}{
		{"Название товара", "SKU", "Бренд", "Цена", "ID складов"},
		{"Phone", "SKU-1", "Acme", "1000", "PP1"},
		{"Case", "SKU-2", "", "", ""},
		{"", "", "", "", ""},
		{"Charger", "SKU-3", "", "500", "PP2"},
	})
	defer f.Close()

	rows, err := models.ReadOfferRows(f)
	if err != nil {
		t.Fatalf("ReadOfferRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected reading to stop at the blank row, got %d rows", len(rows))
	}
	if rows[0].Row != 2 || rows[1].Row != 3 {
		t.Fatalf("expected worksheet row numbers 2 and 3, got %d and %d", rows[0].Row, rows[1].Row)
	}
	if rows[0].Name != "Phone" || rows[0].Sku != "SKU-1" || rows[0].Price != "1000" || rows[0].StoreIds != "PP1" {
		t.Fatalf("row 2 decoded wrong: %+v", rows[0])
	}
}

func TestReadOfferRows_PadsShortRows(t *testing.T) {
	f := offersWorkbook(t, [][]interface{}{
		{"Название товара", "SKU", "Бренд", "Цена", "ID складов"},
		{"Phone", "SKU-1"},
	})
	defer f.Close()

	rows, err := models.ReadOfferRows(f)
	if err != nil {
		t.Fatalf("ReadOfferRows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Brand != "" || rows[0].Price != "" || rows[0].StoreIds != "" {
		t.Fatalf("short row should pad trailing cells empty: %+v", rows[0])
	}
}

func TestExportRoundTrip(t *testing.T) {
	brand := "Acme"
	f := offersWorkbook(t, [][]interface{}{
		{"Название товара", "SKU", "Бренд", "Цена", "ID складов"},
		{"Phone", "SKU-1", brand, "1000", "PP1,PP2"},
	})
	defer f.Close()

	rows, err := models.ReadOfferRows(f)
	if err != nil {
		t.Fatalf("ReadOfferRows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	parsed, err := models.ParseOfferRow(rows[0])
	if err != nil {
		t.Fatalf("ParseOfferRow: %v", err)
	}
	if parsed.Name != "Phone" || parsed.Sku != "SKU-1" {
		t.Fatalf("round trip lost identity fields: %+v", parsed)
	}
	if parsed.Brand == nil || *parsed.Brand != brand {
		t.Fatalf("round trip lost brand: %+v", parsed.Brand)
	}
	if parsed.Price == nil || *parsed.Price != 1000 {
		t.Fatalf("round trip lost price: %+v", parsed.Price)
	}
	if len(parsed.StoreIds) != 2 {
		t.Fatalf("round trip lost store ids: %v", parsed.StoreIds)
	}
}

func TestOfferFeedCache_NoRedisDegradesToMiss(t *testing.T) {
	models.CacheOfferFeed(42, "<kaspi_catalog/>")
	if _, ok := models.CachedOfferFeed(42); ok {
		t.Fatalf("cache hit without a redis connection")
	}
	models.InvalidateOfferFeed(42)
}

func TestFeedDate_ShiftsThreeHours(t *testing.T) {
	cases := []struct {
		now      time.Time
		expected string
	}{
		{time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC), "2026-03-10"},
		{time.Date(2026, 3, 10, 21, 0, 0, 0, time.UTC), "2026-03-11"},
		{time.Date(2026, 12, 31, 23, 30, 0, 0, time.UTC), "2027-01-01"},
	}
	for _, tc := range cases {
		if got := models.FeedDate(tc.now); got != tc.expected {
			t.Fatalf("FeedDate(%v) expected %s, got %s", tc.now, tc.expected, got)
		}
	}
}

func TestStoreIdsCell(t *testing.T) {
	if got := models.StoreIdsCell(nil); got != "" {
		t.Fatalf("no stores should encode empty, got %q", got)
	}
	stores := []models.Store{
		{MarketplaceStoreId: "PP1"},
		{MarketplaceStoreId: "PP2"},
	}
	if got := models.StoreIdsCell(stores); got != "PP1,PP2" {
		t.Fatalf("expected PP1,PP2, got %q", got)
	}
}

func TestExportFilename(t *testing.T) {
	company := &models.Company{Name: "ТОО Ромашка"}
	if got := models.ExportFilename(company); got != "ТОО Ромашка - товары.xlsx" {
		t.Fatalf("unexpected filename: %q", got)
	}
}

func TestRenderOfferFeed(t *testing.T) {
	brand := "Acme"
	fc := &models.FeedContext{
		Date:    "2026-03-10",
		Company: &models.Company{Name: "ТОО Ромашка", MerchantId: "M-42"},
		Offers: []*models.Offer{
			{
				Sku:   "SKU-1",
				Name:  "Phone",
				Brand: &brand,
				Price: 1000,
				AvailableStores: []models.Store{
					{MarketplaceStoreId: "PP1"},
				},
			},
			{
				Sku:   "SKU-2",
				Name:  "Case",
				Price: 0,
			},
		},
	}

	var buf bytes.Buffer
	if err := models.RenderOfferFeed(&buf, fc); err != nil {
		t.Fatalf("RenderOfferFeed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		`<kaspi_catalog date="2026-03-10" xmlns="kaspiShopping">`,
		`<company>ТОО Ромашка</company>`,
		`<merchantid>M-42</merchantid>`,
		`<offer sku="SKU-1">`,
		`<model>Phone</model>`,
		`<brand>Acme</brand>`,
		`<availability available="yes" storeId="PP1">`,
		`<price>1000</price>`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("feed missing %q in:\n%s", want, out)
		}
	}

	// Brandless offer must omit the element, not emit an empty one.
	if strings.Contains(out, "<brand></brand>") {
		t.Fatalf("empty brand element should be omitted:\n%s", out)
	}
}
