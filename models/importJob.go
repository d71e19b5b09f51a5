package models

import (
	"context"
	"time"

	"github.com/kaspidesk/stocks_backend/config"
	"github.com/kaspidesk/stocks_backend/utils"
	"gorm.io/gorm"
)

// OfferImportJob is the durable handoff between the upload request and the
// background import worker. The spreadsheet itself lives in the file
// exchange; FileId is the only thing the two sides share. Status and the
// row counters report completion/failure back to the merchant.
type OfferImportJob struct {
	ID           int        `gorm:"primary_key" json:"id"`
	CompanyId    int        `gorm:"index;not null" json:"company_id"`
	FileId       string     `gorm:"size:255;not null" json:"file_id"`
	Status       string     `gorm:"size:20;not null;index" json:"status"`
	Attempts     int        `gorm:"not null;default:0" json:"attempts"`
	RowsTotal    int        `gorm:"not null;default:0" json:"rows_total"`
	RowsImported int        `gorm:"not null;default:0" json:"rows_imported"`
	RowsSkipped  int        `gorm:"not null;default:0" json:"rows_skipped"`
	LastError    string     `gorm:"type:text" json:"last_error,omitempty"`
	LockedAt     *time.Time `json:"-"`
	LockedBy     string     `gorm:"size:64" json:"-"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

const (
	ImportJobStatusPending    = "PENDING"
	ImportJobStatusProcessing = "PROCESSING"
	ImportJobStatusDone       = "DONE"
	ImportJobStatusFailed     = "FAILED"
)

// EnqueueOfferImport records a pending import job. This is the submit()
// side of the async runner capability; execution happens in
// workflow.ImportDispatcher.
func EnqueueOfferImport(ctx context.Context, companyId int, fileId string) (*OfferImportJob, error) {
	job := OfferImportJob{
		CompanyId: companyId,
		FileId:    fileId,
		Status:    ImportJobStatusPending,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// GetImportJob returns a job scoped to a company the session user owns.
func GetImportJob(ctx context.Context, companyId int, jobId int) (*OfferImportJob, error) {
	company, err := GetOwnedCompany(ctx, companyId)
	if err != nil {
		return nil, err
	}

	var job OfferImportJob
	db := config.GetDB()
	err = db.WithContext(ctx).Model(&OfferImportJob{}).
		Where("id = ? AND company_id = ?", jobId, company.ID).
		Take(&job).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &job, nil
}
