package workflow

import (
	"context"
	"fmt"

	"github.com/kaspidesk/stocks_backend/config"
	"github.com/kaspidesk/stocks_backend/models"
	"github.com/kaspidesk/stocks_backend/utils"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// ImportSummary reports what one import run did. StoresDropped counts
// store references that did not resolve to any of the company's stores;
// they are dropped without failing the row (existing exchange behavior).
type ImportSummary struct {
	RowsTotal     int
	RowsImported  int
	RowsSkipped   int
	StoresDropped int
}

// BuildStoreIndex maps external marketplace store identifiers onto a
// company's stores. This is the join key space for spreadsheet imports.
func BuildStoreIndex(stores []*models.Store) map[string]*models.Store {
	index := make(map[string]*models.Store, len(stores))
	for _, store := range stores {
		index[store.MarketplaceStoreId] = store
	}
	return index
}

// resolveStores looks up each external id in the index. Unknown ids are
// silently dropped; the returned count only feeds the summary.
func resolveStores(index map[string]*models.Store, ids []string) ([]models.Store, int) {
	var resolved []models.Store
	dropped := 0
	for _, id := range ids {
		store, ok := index[id]
		if !ok {
			dropped++
			continue
		}
		resolved = append(resolved, *store)
	}
	return resolved, dropped
}

// ReplaceCompanyOffers is the import reconciler: it rewrites a company's
// entire offer set from validated spreadsheet rows.
//
// The company's existing offers are deleted and recreated inside one
// transaction; there is no diffing and no orphan preservation. Store links
// are re-established by external marketplace id. Note the consequence: a
// spreadsheet whose every row failed validation (or that lacked the offers
// sheet entirely) still wipes the catalog to zero offers. That is the
// documented contract of the exchange, not an accident.
func ReplaceCompanyOffers(ctx context.Context, companyId int, rows []*models.ParsedOfferRow) (*ImportSummary, error) {
	company, err := models.GetCompanyById(ctx, companyId)
	if err != nil {
		return nil, err
	}

	stores, err := models.CompanyStores(ctx, company.ID)
	if err != nil {
		return nil, err
	}
	index := BuildStoreIndex(stores)

	summary := ImportSummary{RowsTotal: len(rows)}

	// Best-effort cross-worker guard; the advisory lock inside the
	// transaction is what actually serializes.
	if lock := obtainImportRedisLock(ctx, company.ID); lock != nil {
		defer func() { _ = lock.Release(ctx) }()
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireCompanyImportLock(tx, company.ID); err != nil {
			return err
		}
		defer ReleaseCompanyImportLock(tx, company.ID)

		if err := models.DeleteCompanyOffers(tx, company.ID); err != nil {
			return err
		}

		for _, row := range rows {
			linked, dropped := resolveStores(index, row.StoreIds)
			summary.StoresDropped += dropped

			price := 0
			if row.Price != nil {
				price = *row.Price
			}
			offer := models.Offer{
				CompanyId:       company.ID,
				Sku:             row.Sku,
				Name:            row.Name,
				Brand:           row.Brand,
				Price:           price,
				AvailableStores: linked,
			}
			if err := tx.Omit("AvailableStores.*").Create(&offer).Error; err != nil {
				return fmt.Errorf("could not create offer from row %d: %v", row.Row, err)
			}
			summary.RowsImported++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	models.InvalidateOfferFeed(company.ID)
	return &summary, nil
}

// ExecuteImportJob runs one queued import end to end: stream the workbook
// out of the file exchange, decode, validate row by row, reconcile.
// Row validation failures are logged and skipped; everything else fails
// the job.
func ExecuteImportJob(ctx context.Context, logger *logrus.Logger, job *models.OfferImportJob) (*ImportSummary, error) {
	rc, err := utils.OpenExchangeFile(ctx, job.FileId)
	if err != nil {
		return nil, fmt.Errorf("could not open exchange file %s: %v", job.FileId, err)
	}
	defer rc.Close()

	f, err := excelize.OpenReader(rc)
	if err != nil {
		return nil, fmt.Errorf("could not open workbook %s: %v", job.FileId, err)
	}
	defer f.Close()

	rawRows, err := models.ReadOfferRows(f)
	if err != nil {
		return nil, err
	}

	parsed := make([]*models.ParsedOfferRow, 0, len(rawRows))
	skipped := 0
	for _, raw := range rawRows {
		row, err := models.ParseOfferRow(raw)
		if err != nil {
			// best effort per row: log, drop, keep going
			skipped++
			logger.WithFields(logrus.Fields{
				"module":     "offerImport",
				"company_id": job.CompanyId,
				"job_id":     job.ID,
				"row":        raw.Row,
			}).Warn(err.Error())
			continue
		}
		parsed = append(parsed, row)
	}

	summary, err := ReplaceCompanyOffers(ctx, job.CompanyId, parsed)
	if err != nil {
		return nil, err
	}
	summary.RowsTotal = len(rawRows)
	summary.RowsSkipped = skipped
	return summary, nil
}
