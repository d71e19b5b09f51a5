package utils

import (
	"context"
	"errors"
	"reflect"

	"github.com/kaspidesk/stocks_backend/config"
)

// count records matching WHERE scopeCond AND condition
func ResourceCountWhere[T any](ctx context.Context, scopeCond string, scopeVal interface{}, condition string, value ...interface{}) (int64, error) {
	var model T

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&model)
	var count int64
	if scopeCond != "" {
		dbCtx.Where(scopeCond, scopeVal)
	}
	dbCtx.Where(condition, value...)
	if err := dbCtx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// check if id exists within the given scope, return ErrorRecordNotFound otherwise
func ValidateResourceId[T any](ctx context.Context, scopeCond string, scopeVal interface{}, id interface{}) error {
	count, err := ResourceCountWhere[T](ctx, scopeCond, scopeVal, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}

	return nil
}

// check that ALL ids exist under the given company, return ErrorRecordNotFound otherwise
func ValidateResourcesOwned[T any](ctx context.Context, companyId int, ids []int) error {
	unqIds := UniqueSlice(ids)

	count, err := ResourceCountWhere[T](ctx, "company_id = ?", companyId, "id IN ?", unqIds)
	if err != nil {
		return err
	}
	if count != int64(len(unqIds)) {
		return ErrorRecordNotFound
	}

	return nil
}

// validate input for both create & update. (exceptId = 0 for create)
func ValidateUnique[T any](ctx context.Context, scopeCond string, scopeVal interface{}, column string, value interface{}, exceptId interface{}) error {
	var count int64
	var err error
	if reflect.ValueOf(exceptId).IsZero() {
		count, err = ResourceCountWhere[T](ctx, scopeCond, scopeVal, column+" = ?", value)
	} else {
		count, err = ResourceCountWhere[T](ctx, scopeCond, scopeVal, column+" = ? AND NOT id = ?", value, exceptId)
	}

	if err != nil {
		return err
	}
	if count > 0 {
		return errors.New("duplicate " + column)
	}
	return nil
}
