package models

import (
	"context"
	"strings"
	"time"

	"github.com/kaspidesk/stocks_backend/config"
	"github.com/kaspidesk/stocks_backend/utils"
	"gorm.io/gorm"
)

// Store is a warehouse / pickup point. MarketplaceStoreId is the external
// identifier the marketplace issued for the location; spreadsheet imports
// join on it, never on the internal id.
type Store struct {
	ID                 int       `gorm:"primary_key" json:"id"`
	CompanyId          int       `gorm:"index;not null" json:"company_id"`
	Name               string    `gorm:"size:255;not null" json:"name" binding:"required"`
	MarketplaceStoreId string    `gorm:"size:255;not null" json:"marketplace_store_id" binding:"required"`
	Phone              string    `gorm:"size:20" json:"phone"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewStore struct {
	Name               string `json:"name" binding:"required,max=255"`
	MarketplaceStoreId string `json:"marketplace_store_id" binding:"required,max=255"`
	Phone              string `json:"phone"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewStore) validate(ctx context.Context, companyId int, id int) error {
	if err := utils.ValidateUnique[Store](ctx, "company_id = ?", companyId,
		"marketplace_store_id", input.MarketplaceStoreId, id); err != nil {
		return err
	}
	if len(strings.TrimSpace(input.Phone)) > 0 {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return err
		}
	}
	return nil
}

func CreateStore(ctx context.Context, companyId int, input *NewStore) (*Store, error) {
	company, err := GetOwnedCompany(ctx, companyId)
	if err != nil {
		return nil, err
	}

	if err := input.validate(ctx, company.ID, 0); err != nil {
		return nil, err
	}

	store := Store{
		CompanyId:          company.ID,
		Name:               input.Name,
		MarketplaceStoreId: input.MarketplaceStoreId,
		Phone:              input.Phone,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&store).Error; err != nil {
		return nil, err
	}
	return &store, nil
}

func GetStores(ctx context.Context, companyId int) ([]*Store, error) {
	company, err := GetOwnedCompany(ctx, companyId)
	if err != nil {
		return nil, err
	}
	return CompanyStores(ctx, company.ID)
}

// CompanyStores lists a company's stores without an ownership check.
// Callers on the web surface must resolve the company through
// GetOwnedCompany first; the import worker and feed have no session.
func CompanyStores(ctx context.Context, companyId int) ([]*Store, error) {
	var stores []*Store
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&Store{}).
		Where("company_id = ?", companyId).
		Order("name").
		Find(&stores).Error; err != nil {
		return nil, err
	}
	return stores, nil
}

func getOwnedStore(ctx context.Context, companyId int, storeId int) (*Store, error) {
	company, err := GetOwnedCompany(ctx, companyId)
	if err != nil {
		return nil, err
	}

	var store Store
	db := config.GetDB()
	err = db.WithContext(ctx).Model(&Store{}).
		Where("id = ? AND company_id = ?", storeId, company.ID).
		Take(&store).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &store, nil
}

func GetStore(ctx context.Context, companyId int, storeId int) (*Store, error) {
	return getOwnedStore(ctx, companyId, storeId)
}

func UpdateStore(ctx context.Context, companyId int, storeId int, input *NewStore) (*Store, error) {
	store, err := getOwnedStore(ctx, companyId, storeId)
	if err != nil {
		return nil, err
	}

	if err := input.validate(ctx, store.CompanyId, store.ID); err != nil {
		return nil, err
	}

	store.Name = input.Name
	store.MarketplaceStoreId = input.MarketplaceStoreId
	store.Phone = input.Phone

	db := config.GetDB()
	if err := db.WithContext(ctx).Save(store).Error; err != nil {
		return nil, err
	}
	// marketplace_store_id appears in feed availability entries
	InvalidateOfferFeed(store.CompanyId)
	return store, nil
}

func DeleteStore(ctx context.Context, companyId int, storeId int) error {
	store, err := getOwnedStore(ctx, companyId, storeId)
	if err != nil {
		return err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM offer_available_stores WHERE store_id = ?", store.ID).Error; err != nil {
			return err
		}
		return tx.Delete(&Store{}, store.ID).Error
	})
	if err != nil {
		return err
	}
	InvalidateOfferFeed(store.CompanyId)
	return nil
}
