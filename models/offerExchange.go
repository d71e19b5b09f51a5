package models

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kaspidesk/stocks_backend/config"
	"github.com/kaspidesk/stocks_backend/utils"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// Spreadsheet exchange format. The sheet name and Russian column titles are
// part of the external contract with merchants' bulk-edit workbooks; import
// locates the sheet by this exact name.
const OffersSheetName = "Товары"

const offerRowCells = 5

var offersHeaderRow = []interface{}{
	"Название товара",
	"SKU",
	"Бренд",
	"Цена",
	"ID складов (можно перечислять несколько через запятую)",
}

// ExportFilename is the download name of a generated workbook.
func ExportFilename(company *Company) string {
	return company.Name + " - товары.xlsx"
}

// ExportOffersXlsx builds the bulk-edit workbook for a company. Offers are
// streamed out of the database in batches and written through excelize's
// stream writer, so memory stays flat regardless of catalog size. Rows are
// ordered by offer id (stable across exports; the format itself does not
// promise an order). The caller owns the returned file and must Close it.
func ExportOffersXlsx(ctx context.Context, company *Company) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", OffersSheetName); err != nil {
		f.Close()
		return nil, err
	}

	sw, err := f.NewStreamWriter(OffersSheetName)
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := sw.SetRow("A1", offersHeaderRow); err != nil {
		f.Close()
		return nil, err
	}

	rowNum := 2
	db := config.GetDB()
	var batch []*Offer
	result := db.WithContext(ctx).Model(&Offer{}).
		Preload("AvailableStores").
		Where("company_id = ?", company.ID).
		Order("id").
		FindInBatches(&batch, 200, func(_ *gorm.DB, _ int) error {
			for _, offer := range batch {
				cell, err := excelize.CoordinatesToCellName(1, rowNum)
				if err != nil {
					return err
				}
				if err := sw.SetRow(cell, offerCells(offer)); err != nil {
					return err
				}
				rowNum++
			}
			return nil
		})
	if result.Error != nil {
		f.Close()
		return nil, result.Error
	}

	if err := sw.Flush(); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func offerCells(offer *Offer) []interface{} {
	brand := ""
	if offer.Brand != nil {
		brand = *offer.Brand
	}
	return []interface{}{
		offer.Name,
		offer.Sku,
		brand,
		offer.Price,
		StoreIdsCell(offer.AvailableStores),
	}
}

// StoreIdsCell encodes the offer<->store relation as a comma join of the
// stores' external marketplace identifiers; empty string when unlinked.
func StoreIdsCell(stores []Store) string {
	ids := make([]string, 0, len(stores))
	for _, store := range stores {
		ids = append(ids, store.MarketplaceStoreId)
	}
	return strings.Join(ids, ",")
}

// RawOfferRow is one physical spreadsheet row before validation. Row keeps
// the 1-based worksheet row number for log messages.
type RawOfferRow struct {
	Row      int
	Name     string
	Sku      string
	Brand    string
	Price    string
	StoreIds string
}

// ReadOfferRows decodes the offers sheet of an uploaded workbook.
//
// A workbook without a sheet named "Товары" yields an empty slice and no
// error: the import becomes a no-op row-wise (but still wipes the catalog —
// see ReplaceCompanyOffers). Reading starts at row 2 and stops at the first
// row whose five cells are all empty, so a blank row in the middle of the
// sheet truncates everything below it. Both behaviors are part of the
// existing exchange contract; callers must not "fix" them silently.
func ReadOfferRows(f *excelize.File) ([]RawOfferRow, error) {
	idx, err := f.GetSheetIndex(OffersSheetName)
	if err != nil || idx == -1 {
		return nil, nil
	}

	rows, err := f.GetRows(OffersSheetName)
	if err != nil {
		return nil, err
	}

	var out []RawOfferRow
	for i := 1; i < len(rows); i++ {
		cells := make([]string, offerRowCells)
		copy(cells, rows[i])

		empty := true
		for _, c := range cells {
			if c != "" {
				empty = false
				break
			}
		}
		if empty {
			break
		}

		out = append(out, RawOfferRow{
			Row:      i + 1,
			Name:     cells[0],
			Sku:      cells[1],
			Brand:    cells[2],
			Price:    cells[3],
			StoreIds: cells[4],
		})
	}
	return out, nil
}

// ParsedOfferRow is the validated in-memory form of one spreadsheet row,
// consumed by the import reconciler and then discarded.
type ParsedOfferRow struct {
	Row      int
	Name     string
	Sku      string
	Brand    *string
	Price    *int
	StoreIds []string
}

// ParseOfferRow validates and normalizes one raw row. A failed row is the
// caller's problem to skip; validation never aborts the batch. Length bounds
// count characters, not bytes, so Cyrillic text gets the full 255. A price
// cell with a fractional part is truncated to its integer part.
func ParseOfferRow(raw RawOfferRow) (*ParsedOfferRow, error) {
	if n := utf8.RuneCountInString(raw.Name); n < 1 || n > 255 {
		return nil, fmt.Errorf("row %d: product name must be 1-255 characters", raw.Row)
	}
	if n := utf8.RuneCountInString(raw.Sku); n < 1 || n > 255 {
		return nil, fmt.Errorf("row %d: sku must be 1-255 characters", raw.Row)
	}

	parsed := ParsedOfferRow{
		Row:  raw.Row,
		Name: raw.Name,
		Sku:  raw.Sku,
	}

	if raw.Brand != "" {
		if utf8.RuneCountInString(raw.Brand) > 255 {
			return nil, fmt.Errorf("row %d: brand must be 1-255 characters", raw.Row)
		}
		brand := raw.Brand
		parsed.Brand = &brand
	}

	// Absent price stays unset; it is not the same as zero.
	if strings.TrimSpace(raw.Price) != "" {
		dec, err := utils.ParseDecimal(raw.Price)
		if err != nil {
			return nil, fmt.Errorf("row %d: could not parse price: %v", raw.Row, err)
		}
		price := int(dec.IntPart())
		parsed.Price = &price
	}

	if raw.StoreIds != "" {
		parsed.StoreIds = strings.Split(raw.StoreIds, ",")
	}

	return &parsed, nil
}

// Dates in the feed are shifted +3h from the true current time before being
// truncated to a calendar date. The offset matches the marketplace's clock
// convention and is applied verbatim; do not replace it with timezone math.
func FeedDate(now time.Time) string {
	return now.Add(3 * time.Hour).Format("2006-01-02")
}

/*
caches:
	Feed:$companyId
*/

const feedCacheTTL = time.Minute

func feedCacheKey(companyId int) string {
	return fmt.Sprintf("Feed:%d", companyId)
}

// CachedOfferFeed returns a fresh rendered feed from redis, if any. The
// marketplace crawler polls aggressively; a short cache keeps that off the
// database. All cache operations degrade to a miss without redis.
func CachedOfferFeed(companyId int) (string, bool) {
	val, ok, err := config.GetRedisValue(feedCacheKey(companyId))
	if err != nil || !ok {
		return "", false
	}
	return val, true
}

func CacheOfferFeed(companyId int, feedXml string) {
	_ = config.SetRedisValue(feedCacheKey(companyId), feedXml, feedCacheTTL)
}

// InvalidateOfferFeed drops the cached feed after any catalog mutation.
func InvalidateOfferFeed(companyId int) {
	_ = config.RemoveRedisKey(feedCacheKey(companyId))
}

// FeedContext is the document context handed to the XML feed renderer,
// assembled fresh per request and never cached.
type FeedContext struct {
	Date    string
	Company *Company
	Offers  []*Offer
	Stores  []*Store
}

// BuildFeedContext loads everything the marketplace feed needs for one
// company. Runs without a user session: the feed URL is crawled by the
// marketplace.
func BuildFeedContext(ctx context.Context, companyId int) (*FeedContext, error) {
	company, err := GetCompanyById(ctx, companyId)
	if err != nil {
		return nil, err
	}

	var offers []*Offer
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&Offer{}).
		Preload("AvailableStores").
		Where("company_id = ?", company.ID).
		Order("id").
		Find(&offers).Error; err != nil {
		return nil, err
	}

	stores, err := CompanyStores(ctx, company.ID)
	if err != nil {
		return nil, err
	}

	return &FeedContext{
		Date:    FeedDate(time.Now().UTC()),
		Company: company,
		Offers:  offers,
		Stores:  stores,
	}, nil
}

type xmlCatalog struct {
	XMLName    xml.Name  `xml:"kaspi_catalog"`
	Date       string    `xml:"date,attr"`
	Xmlns      string    `xml:"xmlns,attr"`
	Company    string    `xml:"company"`
	MerchantId string    `xml:"merchantid"`
	Offers     xmlOffers `xml:"offers"`
}

type xmlOffers struct {
	Offers []xmlOffer `xml:"offer"`
}

type xmlOffer struct {
	Sku            string            `xml:"sku,attr"`
	Model          string            `xml:"model"`
	Brand          string            `xml:"brand,omitempty"`
	Availabilities xmlAvailabilities `xml:"availabilities"`
	Price          int               `xml:"price"`
}

type xmlAvailabilities struct {
	Items []xmlAvailability `xml:"availability"`
}

type xmlAvailability struct {
	Available string `xml:"available,attr"`
	StoreId   string `xml:"storeId,attr"`
}

// RenderOfferFeed serializes a feed context into the marketplace's XML
// schema. Availability entries are emitted per linked store.
func RenderOfferFeed(w io.Writer, fc *FeedContext) error {
	doc := xmlCatalog{
		Date:       fc.Date,
		Xmlns:      "kaspiShopping",
		Company:    fc.Company.Name,
		MerchantId: fc.Company.MerchantId,
	}

	for _, offer := range fc.Offers {
		entry := xmlOffer{
			Sku:   offer.Sku,
			Model: offer.Name,
			Price: offer.Price,
		}
		if offer.Brand != nil {
			entry.Brand = *offer.Brand
		}
		for _, store := range offer.AvailableStores {
			entry.Availabilities.Items = append(entry.Availabilities.Items, xmlAvailability{
				Available: "yes",
				StoreId:   store.MarketplaceStoreId,
			})
		}
		doc.Offers.Offers = append(doc.Offers.Offers, entry)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "    ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
