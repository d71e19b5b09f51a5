// offer-import-worker runs spreadsheet imports outside the API process.
// It serves the Pub/Sub push endpoint, runs the poll dispatcher, and can
// additionally pull from a subscription (OFFER_IMPORT_PULL=true).
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kaspidesk/stocks_backend/config"
	"github.com/kaspidesk/stocks_backend/middlewares"
	"github.com/kaspidesk/stocks_backend/models"
	"github.com/kaspidesk/stocks_backend/utils"
	"github.com/kaspidesk/stocks_backend/workflow"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

func main() {
	port := os.Getenv("IMPORT_WORKER_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	dispatcher := workflow.NewImportDispatcher(nil, logger)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	r.Use(middlewares.AuthMiddleware())
	r.Use(gin.Recovery())

	r.POST("/pubsub/offer-import", middlewares.RequireAuth(), workflow.ImportPushHandler(dispatcher))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()

	if os.Getenv("RUN_MIGRATIONS") == "true" {
		models.MigrateTable()
	}

	dispatcher.DB = db
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	go dispatcher.Run(workerCtx)

	if config.ImportPublishEnabled() && os.Getenv("OFFER_IMPORT_PULL") == "true" {
		go func() {
			if err := workflow.RunPubSubReceiver(workerCtx, dispatcher); err != nil && workerCtx.Err() == nil {
				logger.WithFields(logrus.Fields{"field": "pubsub"}).Error("pull receiver stopped: " + err.Error())
			}
		}()
	}

	logger.WithFields(logrus.Fields{"field": "worker"}).Info("offer import worker started on :", port)

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && err != http.ErrServerClosed {
			logger.WithFields(logrus.Fields{"field": "server"}).Error(err)
		}
	}

	cancelWorkers()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
