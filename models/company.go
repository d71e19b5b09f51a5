package models

import (
	"context"
	"errors"
	"time"

	"github.com/kaspidesk/stocks_backend/config"
	"github.com/kaspidesk/stocks_backend/utils"
	"gorm.io/gorm"
)

// Company is a tenant-owned catalog container. MerchantId is the identifier
// the marketplace issued to the merchant; it ends up in the XML feed.
type Company struct {
	ID         int       `gorm:"primary_key" json:"id"`
	UserId     int       `gorm:"index;not null" json:"user_id"`
	Name       string    `gorm:"size:255;not null;unique" json:"name" binding:"required"`
	MerchantId string    `gorm:"size:255;not null" json:"merchant_id" binding:"required"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCompany struct {
	Name       string `json:"name" binding:"required,max=255"`
	MerchantId string `json:"merchant_id" binding:"required,max=255"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewCompany) validate(ctx context.Context, id int) error {
	// company names are globally unique, not per user
	return utils.ValidateUnique[Company](ctx, "", nil, "name", input.Name, id)
}

func userIdFromContext(ctx context.Context) (int, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == 0 {
		return 0, errors.New("user id is required")
	}
	return userId, nil
}

func CreateCompany(ctx context.Context, input *NewCompany) (*Company, error) {
	userId, err := userIdFromContext(ctx)
	if err != nil {
		return nil, err
	}

	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	company := Company{
		UserId:     userId,
		Name:       input.Name,
		MerchantId: input.MerchantId,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&company).Error; err != nil {
		return nil, err
	}
	return &company, nil
}

func GetCompanies(ctx context.Context) ([]*Company, error) {
	userId, err := userIdFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var companies []*Company
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&Company{}).
		Where("user_id = ?", userId).
		Order("name").
		Find(&companies).Error; err != nil {
		return nil, err
	}
	return companies, nil
}

// GetOwnedCompany loads a company and enforces that the session user owns
// it. A company owned by someone else is indistinguishable from a missing
// one.
func GetOwnedCompany(ctx context.Context, companyId int) (*Company, error) {
	userId, err := userIdFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var company Company
	db := config.GetDB()
	err = db.WithContext(ctx).Model(&Company{}).
		Where("id = ? AND user_id = ?", companyId, userId).
		Take(&company).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &company, nil
}

// GetCompanyById loads a company without an ownership check. Used by the
// public feed endpoint and the background import worker, which run outside
// a user session.
func GetCompanyById(ctx context.Context, companyId int) (*Company, error) {
	var company Company
	db := config.GetDB()
	err := db.WithContext(ctx).Model(&Company{}).
		Where("id = ?", companyId).
		Take(&company).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &company, nil
}

func UpdateCompany(ctx context.Context, companyId int, input *NewCompany) (*Company, error) {
	company, err := GetOwnedCompany(ctx, companyId)
	if err != nil {
		return nil, err
	}

	if err := input.validate(ctx, companyId); err != nil {
		return nil, err
	}

	company.Name = input.Name
	company.MerchantId = input.MerchantId

	db := config.GetDB()
	if err := db.WithContext(ctx).Save(company).Error; err != nil {
		return nil, err
	}
	return company, nil
}

// DeleteCompany removes the company together with its offers, stores and
// offer<->store links.
func DeleteCompany(ctx context.Context, companyId int) error {
	company, err := GetOwnedCompany(ctx, companyId)
	if err != nil {
		return err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := DeleteCompanyOffers(tx, company.ID); err != nil {
			return err
		}
		if err := tx.Where("company_id = ?", company.ID).Delete(&Store{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Company{}, company.ID).Error
	})
	if err != nil {
		return err
	}
	InvalidateOfferFeed(company.ID)
	return nil
}
