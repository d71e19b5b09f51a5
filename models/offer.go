package models

import (
	"context"
	"time"

	"github.com/kaspidesk/stocks_backend/config"
	"github.com/kaspidesk/stocks_backend/utils"
	"gorm.io/gorm"
)

// Offer is a sellable product record scoped to one company. Price is kept
// as an integer in the smallest currency unit. AvailableStores is the set
// of warehouses the offer can be picked up from.
type Offer struct {
	ID              int       `gorm:"primary_key" json:"id"`
	CompanyId       int       `gorm:"index;not null" json:"company_id"`
	Sku             string    `gorm:"size:255;not null" json:"sku" binding:"required"`
	Name            string    `gorm:"size:255;not null" json:"name" binding:"required"`
	Brand           *string   `gorm:"size:255" json:"brand"`
	Price           int       `gorm:"not null" json:"price"`
	AvailableStores []Store   `gorm:"many2many:offer_available_stores" json:"available_stores"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewOffer struct {
	Sku               string  `json:"sku" binding:"required,max=255"`
	Name              string  `json:"name" binding:"required,max=255"`
	Brand             *string `json:"brand" binding:"omitempty,max=255"`
	Price             int     `json:"price"`
	AvailableStoreIds []int   `json:"available_store_ids"`
}

// validate input for both create & update
func (input *NewOffer) validate(ctx context.Context, companyId int) error {
	if len(input.AvailableStoreIds) == 0 {
		return nil
	}
	return utils.ValidateResourcesOwned[Store](ctx, companyId, input.AvailableStoreIds)
}

func (input *NewOffer) stores(ctx context.Context, companyId int) ([]Store, error) {
	if len(input.AvailableStoreIds) == 0 {
		return nil, nil
	}
	var stores []Store
	db := config.GetDB()
	err := db.WithContext(ctx).
		Where("company_id = ? AND id IN ?", companyId, utils.UniqueSlice(input.AvailableStoreIds)).
		Find(&stores).Error
	return stores, err
}

func CreateOffer(ctx context.Context, companyId int, input *NewOffer) (*Offer, error) {
	company, err := GetOwnedCompany(ctx, companyId)
	if err != nil {
		return nil, err
	}

	if err := input.validate(ctx, company.ID); err != nil {
		return nil, err
	}

	stores, err := input.stores(ctx, company.ID)
	if err != nil {
		return nil, err
	}

	offer := Offer{
		CompanyId:       company.ID,
		Sku:             input.Sku,
		Name:            input.Name,
		Brand:           input.Brand,
		Price:           input.Price,
		AvailableStores: stores,
	}

	db := config.GetDB()
	// Omit store upserts; only the join rows should be written.
	if err := db.WithContext(ctx).Omit("AvailableStores.*").Create(&offer).Error; err != nil {
		return nil, err
	}
	InvalidateOfferFeed(company.ID)
	return &offer, nil
}

func GetOffers(ctx context.Context, companyId int) ([]*Offer, error) {
	company, err := GetOwnedCompany(ctx, companyId)
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
	return offers, nil
}

func GetOffer(ctx context.Context, companyId int, offerId int) (*Offer, error) {
	company, err := GetOwnedCompany(ctx, companyId)
	if err != nil {
		return nil, err
	}
	return offerByCompany(ctx, company.ID, offerId)
}

func offerByCompany(ctx context.Context, companyId int, offerId int) (*Offer, error) {
	var offer Offer
	db := config.GetDB()
	err := db.WithContext(ctx).Model(&Offer{}).
		Preload("AvailableStores").
		Where("id = ? AND company_id = ?", offerId, companyId).
		Take(&offer).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &offer, nil
}

func UpdateOffer(ctx context.Context, companyId int, offerId int, input *NewOffer) (*Offer, error) {
	offer, err := GetOffer(ctx, companyId, offerId)
	if err != nil {
		return nil, err
	}

	if err := input.validate(ctx, offer.CompanyId); err != nil {
		return nil, err
	}

	stores, err := input.stores(ctx, offer.CompanyId)
	if err != nil {
		return nil, err
	}

	offer.Sku = input.Sku
	offer.Name = input.Name
	offer.Brand = input.Brand
	offer.Price = input.Price

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("AvailableStores").Save(offer).Error; err != nil {
			return err
		}
		return tx.Model(offer).Association("AvailableStores").Replace(stores)
	})
	if err != nil {
		return nil, err
	}
	offer.AvailableStores = stores
	InvalidateOfferFeed(offer.CompanyId)
	return offer, nil
}

func DeleteOffer(ctx context.Context, companyId int, offerId int) error {
	company, err := GetOwnedCompany(ctx, companyId)
	if err != nil {
		return err
	}
	// Existence check is enough here; no need to load the store links.
	if err := utils.ValidateResourceId[Offer](ctx, "company_id = ?", company.ID, offerId); err != nil {
		return err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM offer_available_stores WHERE offer_id = ?", offerId).Error; err != nil {
			return err
		}
		return tx.Delete(&Offer{}, offerId).Error
	})
	if err != nil {
		return err
	}
	InvalidateOfferFeed(company.ID)
	return nil
}

// DeleteCompanyOffers drops every offer of a company plus the join rows.
// Shared by DeleteCompany and the import reconciler's full replace.
func DeleteCompanyOffers(tx *gorm.DB, companyId int) error {
	err := tx.Exec(`DELETE oas FROM offer_available_stores oas
		JOIN offers o ON o.id = oas.offer_id
		WHERE o.company_id = ?`, companyId).Error
	if err != nil {
		return err
	}
	return tx.Where("company_id = ?", companyId).Delete(&Offer{}).Error
}
