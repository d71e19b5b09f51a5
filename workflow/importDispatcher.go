package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kaspidesk/stocks_backend/config"
	"github.com/kaspidesk/stocks_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ImportDispatcher polls the offer_import_jobs table and executes pending
// imports. Claiming uses SKIP LOCKED so several workers can poll the same
// table; a PROCESSING job whose lock is older than LockTimeout is treated
// as abandoned and reclaimed.
type ImportDispatcher struct {
	DB       *gorm.DB
	Logger   *logrus.Logger
	WorkerId string

	BatchSize    int
	PollInterval time.Duration
	LockTimeout  time.Duration
	MaxAttempts  int
}

// database falls back to the global connection; the dispatcher is wired
// into routes before the DB connect finishes on startup.
func (d *ImportDispatcher) database() *gorm.DB {
	if d.DB != nil {
		return d.DB
	}
	return config.GetDB()
}

func NewImportDispatcher(db *gorm.DB, logger *logrus.Logger) *ImportDispatcher {
	return &ImportDispatcher{
		DB:           db,
		Logger:       logger,
		WorkerId:     uuid.NewString(),
		BatchSize:    10,
		PollInterval: 2 * time.Second,
		LockTimeout:  10 * time.Minute,
		MaxAttempts:  3,
	}
}

func (d *ImportDispatcher) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.dispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

func (d *ImportDispatcher) dispatchOnce(ctx context.Context) {
	claimed := d.claimBatch(ctx)
	for i := range claimed {
		d.runJob(ctx, &claimed[i])
	}
}

// claimBatch moves eligible jobs to PROCESSING under a row lock and
// returns them. Eligible: PENDING below the attempt cap, or PROCESSING
// with a stale lock (worker died mid-import).
func (d *ImportDispatcher) claimBatch(ctx context.Context) []models.OfferImportJob {
	now := time.Now().UTC()
	staleBefore := now.Add(-d.LockTimeout)
	db := d.database()
	if db == nil {
		return nil
	}

	var claimed []models.OfferImportJob
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.
			Where(`
				status = ?
				OR
				(status = ? AND locked_at IS NOT NULL AND locked_at <= ?)
			`, models.ImportJobStatusPending, models.ImportJobStatusProcessing, staleBefore).
			Order("id ASC").
			Limit(d.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		for i := range claimed {
			if d.MaxAttempts > 0 && claimed[i].Attempts >= d.MaxAttempts {
				msg := fmt.Sprintf("max import attempts exceeded (%d)", d.MaxAttempts)
				claimed[i].Status = models.ImportJobStatusFailed
				if err := tx.Model(&models.OfferImportJob{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
					"status":     models.ImportJobStatusFailed,
					"last_error": msg,
					"locked_at":  nil,
					"locked_by":  "",
				}).Error; err != nil {
					return err
				}
				continue
			}

			claimed[i].Status = models.ImportJobStatusProcessing
			claimed[i].LockedAt = &now
			claimed[i].LockedBy = d.WorkerId
			claimed[i].Attempts = claimed[i].Attempts + 1
			if err := tx.Model(&models.OfferImportJob{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
				"status":     models.ImportJobStatusProcessing,
				"locked_at":  claimed[i].LockedAt,
				"locked_by":  d.WorkerId,
				"attempts":   gorm.Expr("attempts + 1"),
				"last_error": "",
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if d.Logger != nil {
			d.Logger.WithFields(logrus.Fields{
				"module":    "ImportDispatcher",
				"worker_id": d.WorkerId,
			}).Error("could not claim import jobs: " + fmt.Sprintf("%v", err))
		}
		return nil
	}

	live := claimed[:0]
	for _, job := range claimed {
		if job.Status == models.ImportJobStatusProcessing {
			live = append(live, job)
		}
	}
	return live
}

func (d *ImportDispatcher) runJob(ctx context.Context, job *models.OfferImportJob) {
	summary, err := ExecuteImportJob(ctx, d.Logger, job)
	if err != nil {
		d.markFailed(ctx, job, err)
		return
	}
	d.markDone(ctx, job, summary)
}

// ProcessJobById claims one specific job and runs it inline. Used by the
// Pub/Sub push endpoint, where the message names the job instead of the
// poll loop finding it. A job already taken by another worker is not an
// error; the push is simply acknowledged.
func (d *ImportDispatcher) ProcessJobById(ctx context.Context, jobId int) error {
	now := time.Now().UTC()
	staleBefore := now.Add(-d.LockTimeout)

	var job models.OfferImportJob
	claimed := false
	db := d.database()
	if db == nil {
		return fmt.Errorf("database not ready")
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.
			Where("id = ?", jobId).
			Where(`
				status = ?
				OR
				(status = ? AND locked_at IS NOT NULL AND locked_at <= ?)
			`, models.ImportJobStatusPending, models.ImportJobStatusProcessing, staleBefore).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Take(&job).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil
			}
			return err
		}
		claimed = true
		job.Status = models.ImportJobStatusProcessing
		job.LockedAt = &now
		job.LockedBy = d.WorkerId
		job.Attempts = job.Attempts + 1
		return tx.Model(&models.OfferImportJob{}).Where("id = ?", job.ID).Updates(map[string]interface{}{
			"status":     models.ImportJobStatusProcessing,
			"locked_at":  &now,
			"locked_by":  d.WorkerId,
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": "",
		}).Error
	})
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	d.runJob(ctx, &job)
	return nil
}

func (d *ImportDispatcher) markDone(ctx context.Context, job *models.OfferImportJob, summary *ImportSummary) {
	_ = d.database().WithContext(ctx).Model(&models.OfferImportJob{}).
		Where("id = ?", job.ID).
		Updates(map[string]interface{}{
			"status":        models.ImportJobStatusDone,
			"rows_total":    summary.RowsTotal,
			"rows_imported": summary.RowsImported,
			"rows_skipped":  summary.RowsSkipped,
			"last_error":    "",
			"locked_at":     nil,
			"locked_by":     "",
		}).Error

	if d.Logger != nil {
		d.Logger.WithFields(logrus.Fields{
			"module":        "ImportDispatcher",
			"worker_id":     d.WorkerId,
			"job_id":        job.ID,
			"company_id":    job.CompanyId,
			"rows_total":    summary.RowsTotal,
			"rows_imported": summary.RowsImported,
			"rows_skipped":  summary.RowsSkipped,
		}).Info("offer import done")
	}
}

func (d *ImportDispatcher) markFailed(ctx context.Context, job *models.OfferImportJob, jobErr error) {
	status := models.ImportJobStatusPending
	if d.MaxAttempts > 0 && job.Attempts >= d.MaxAttempts {
		status = models.ImportJobStatusFailed
	}
	_ = d.database().WithContext(ctx).Model(&models.OfferImportJob{}).
		Where("id = ?", job.ID).
		Updates(map[string]interface{}{
			"status":     status,
			"last_error": jobErr.Error(),
			"locked_at":  nil,
			"locked_by":  "",
		}).Error

	if d.Logger != nil {
		d.Logger.WithFields(logrus.Fields{
			"module":     "ImportDispatcher",
			"worker_id":  d.WorkerId,
			"job_id":     job.ID,
			"company_id": job.CompanyId,
			"attempt":    job.Attempts,
			"status":     status,
		}).Error("offer import failed: " + fmt.Sprintf("%v", jobErr))
	}
}
