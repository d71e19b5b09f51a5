package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/kaspidesk/stocks_backend/config"
	"gorm.io/gorm"
)

// AcquireCompanyImportLock serializes reconciliation per company across
// instances using MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so this must be called on the same
// *gorm.DB transaction that performs the replace.
func AcquireCompanyImportLock(tx *gorm.DB, companyId int) error {
	lockName := fmt.Sprintf("offer_import:%d", companyId)
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", lockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire import lock for company_id=%d", companyId)
	}
	return nil
}

func ReleaseCompanyImportLock(tx *gorm.DB, companyId int) {
	lockName := fmt.Sprintf("offer_import:%d", companyId)
	var _ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", lockName).Scan(&_ok).Error
}

// obtainImportRedisLock is a best-effort optimization to keep a second
// worker from even starting a concurrent import for the same company.
// Correctness must not depend on Redis: the advisory lock above serializes
// the replace regardless. Returns nil when the lock is unavailable.
func obtainImportRedisLock(ctx context.Context, companyId int) *redislock.Lock {
	locker := config.GetRedisLock()
	if locker == nil {
		return nil
	}
	lock, err := locker.Obtain(ctx, fmt.Sprintf("import:%d", companyId), 5*time.Minute, nil)
	if err != nil {
		return nil
	}
	return lock
}
