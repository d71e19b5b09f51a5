package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kaspidesk/stocks_backend/config"
	"github.com/kaspidesk/stocks_backend/models"
	"github.com/kaspidesk/stocks_backend/utils"
	"github.com/kaspidesk/stocks_backend/workflow"
	"github.com/sirupsen/logrus"
)

const maxImportSizeBytes int64 = 10 * 1024 * 1024

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// exportOffersHandler streams the company's catalog as a workbook.
// Empty catalogs still produce a valid file with just the header row.
func exportOffersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		companyId, ok := paramInt(c, "companyId")
		if !ok {
			return
		}

		company, err := models.GetOwnedCompany(c.Request.Context(), companyId)
		if err != nil {
			respondError(c, "exchange.go", "exportOffersHandler", err)
			return
		}

		f, err := models.ExportOffersXlsx(c.Request.Context(), company)
		if err != nil {
			respondError(c, "exchange.go", "exportOffersHandler", err)
			return
		}
		defer f.Close()

		filename := models.ExportFilename(company)
		c.Header("Content-Type", xlsxContentType)
		// filename* carries the UTF-8 name (it contains Cyrillic).
		c.Header("Content-Disposition",
			fmt.Sprintf(`attachment; filename="offers.xlsx"; filename*=UTF-8''%s`, url.PathEscape(filename)))
		c.Status(http.StatusOK)

		if err := f.Write(c.Writer); err != nil {
			config.LogError(config.GetLogger(), "exchange.go", "exportOffersHandler", "f.Write", filename, err)
		}
	}
}

// importOffersHandler accepts a workbook upload and queues it for import.
// The file is persisted to the exchange first; the job row only carries
// its id. Responds 202 with the job so the client can poll for status.
func importOffersHandler(d *workflow.ImportDispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()
		if !requireSession(c) {
			return
		}
		companyId, ok := paramInt(c, "companyId")
		if !ok {
			return
		}

		company, err := models.GetOwnedCompany(c.Request.Context(), companyId)
		if err != nil {
			respondError(c, "exchange.go", "importOffersHandler", err)
			return
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".xlsx") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "only .xlsx files are supported"})
			return
		}
		if fileHeader.Size > maxImportSizeBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 10MB limit"})
			return
		}

		src, err := fileHeader.Open()
		if err != nil {
			respondError(c, "exchange.go", "importOffersHandler", err)
			return
		}
		defer src.Close()

		fileId := fmt.Sprintf("%d_%s_offers.xlsx", company.ID, utils.GenerateUniqueFilename())
		if err := utils.SaveExchangeFile(c.Request.Context(), fileId, src); err != nil {
			respondError(c, "exchange.go", "importOffersHandler", err)
			return
		}

		job, err := models.EnqueueOfferImport(c.Request.Context(), company.ID, fileId)
		if err != nil {
			respondError(c, "exchange.go", "importOffersHandler", err)
			return
		}

		if config.ImportInline() {
			// Local development path: run the import inside the request.
			if err := d.ProcessJobById(c.Request.Context(), job.ID); err != nil {
				respondError(c, "exchange.go", "importOffersHandler", err)
				return
			}
			done, err := models.GetImportJob(c.Request.Context(), company.ID, job.ID)
			if err != nil {
				respondError(c, "exchange.go", "importOffersHandler", err)
				return
			}
			c.JSON(http.StatusOK, done)
			return
		}

		// Best-effort nudge; the poll dispatcher picks the job up anyway.
		if config.ImportPublishEnabled() {
			if err := workflow.PublishOfferImport(c.Request.Context(), job.ID, company.ID, fileId); err != nil {
				logger.WithFields(logrus.Fields{
					"module":     "exchange.go",
					"company_id": company.ID,
					"job_id":     job.ID,
				}).Warn("could not publish import job: " + err.Error())
			}
		}

		c.JSON(http.StatusAccepted, job)
	}
}

func importJobStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		companyId, ok := paramInt(c, "companyId")
		if !ok {
			return
		}
		jobId, ok := paramInt(c, "jobId")
		if !ok {
			return
		}
		job, err := models.GetImportJob(c.Request.Context(), companyId, jobId)
		if err != nil {
			respondError(c, "exchange.go", "importJobStatusHandler", err)
			return
		}
		c.JSON(http.StatusOK, job)
	}
}

// offerFeedHandler serves the marketplace catalog feed. Public by design:
// the marketplace crawler authenticates nothing, it just fetches the URL
// the merchant registered.
func offerFeedHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		companyId, ok := paramInt(c, "companyId")
		if !ok {
			return
		}

		if cached, ok := models.CachedOfferFeed(companyId); ok {
			c.Data(http.StatusOK, "text/xml; charset=utf-8", []byte(cached))
			return
		}

		fc, err := models.BuildFeedContext(c.Request.Context(), companyId)
		if err != nil {
			if err == utils.ErrorRecordNotFound {
				c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
				return
			}
			respondError(c, "exchange.go", "offerFeedHandler", err)
			return
		}

		var buf bytes.Buffer
		if err := models.RenderOfferFeed(&buf, fc); err != nil {
			respondError(c, "exchange.go", "offerFeedHandler", err)
			return
		}
		models.CacheOfferFeed(companyId, buf.String())
		c.Data(http.StatusOK, "text/xml; charset=utf-8", buf.Bytes())
	}
}
