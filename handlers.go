package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/kaspidesk/stocks_backend/config"
	"github.com/kaspidesk/stocks_backend/models"
	"github.com/kaspidesk/stocks_backend/utils"
)

func paramInt(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a positive integer"})
		return 0, false
	}
	return id, true
}

func requireSession(c *gin.Context) bool {
	if _, ok := utils.GetUserIdFromContext(c.Request.Context()); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return false
	}
	return true
}

// respondError maps model errors onto HTTP statuses. Binding/validation
// problems surface as field maps, missing records as 404, everything else
// as 400 with the message and a log entry.
func respondError(c *gin.Context, module string, funcName string, err error) {
	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
		return
	}
	if errors.Is(err, utils.ErrorRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
		return
	}
	config.LogError(config.GetLogger(), module, funcName, "", nil, err)
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// --- auth ---

func registerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewUser
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, "handlers.go", "registerHandler", err)
			return
		}
		user, err := models.CreateUser(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "handlers.go", "registerHandler", err)
			return
		}
		c.JSON(http.StatusCreated, user)
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, "handlers.go", "loginHandler", err)
			return
		}
		info, err := models.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

func logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		if _, err := models.Logout(c.Request.Context()); err != nil {
			respondError(c, "handlers.go", "logoutHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// --- companies ---

func listCompaniesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		companies, err := models.GetCompanies(c.Request.Context())
		if err != nil {
			respondError(c, "handlers.go", "listCompaniesHandler", err)
			return
		}
		c.JSON(http.StatusOK, companies)
	}
}

func createCompanyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		var input models.NewCompany
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, "handlers.go", "createCompanyHandler", err)
			return
		}
		company, err := models.CreateCompany(c.Request.Context(), &input)
		if err != nil {
			respondError(c, "handlers.go", "createCompanyHandler", err)
			return
		}
		c.JSON(http.StatusCreated, company)
	}
}

func getCompanyHandler() gin.HandlerFunc {
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
			respondError(c, "handlers.go", "getCompanyHandler", err)
			return
		}
		c.JSON(http.StatusOK, company)
	}
}

func updateCompanyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		companyId, ok := paramInt(c, "companyId")
		if !ok {
			return
		}
		var input models.NewCompany
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, "handlers.go", "updateCompanyHandler", err)
			return
		}
		company, err := models.UpdateCompany(c.Request.Context(), companyId, &input)
		if err != nil {
			respondError(c, "handlers.go", "updateCompanyHandler", err)
			return
		}
		c.JSON(http.StatusOK, company)
	}
}

func deleteCompanyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		companyId, ok := paramInt(c, "companyId")
		if !ok {
			return
		}
		if err := models.DeleteCompany(c.Request.Context(), companyId); err != nil {
			respondError(c, "handlers.go", "deleteCompanyHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// --- stores ---

func listStoresHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		companyId, ok := paramInt(c, "companyId")
		if !ok {
			return
		}
		stores, err := models.GetStores(c.Request.Context(), companyId)
		if err != nil {
			respondError(c, "handlers.go", "listStoresHandler", err)
			return
		}
		c.JSON(http.StatusOK, stores)
	}
}

func createStoreHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		companyId, ok := paramInt(c, "companyId")
		if !ok {
			return
		}
		var input models.NewStore
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, "handlers.go", "createStoreHandler", err)
			return
		}
		store, err := models.CreateStore(c.Request.Context(), companyId, &input)
		if err != nil {
			respondError(c, "handlers.go", "createStoreHandler", err)
			return
		}
		c.JSON(http.StatusCreated, store)
	}
}

func getStoreHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		companyId, ok := paramInt(c, "companyId")
		if !ok {
			return
		}
		storeId, ok := paramInt(c, "storeId")
		if !ok {
			return
		}
		store, err := models.GetStore(c.Request.Context(), companyId, storeId)
		if err != nil {
			respondError(c, "handlers.go", "getStoreHandler", err)
			return
		}
		c.JSON(http.StatusOK, store)
	}
}

func updateStoreHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		companyId, ok := paramInt(c, "companyId")
		if !ok {
			return
		}
		storeId, ok := paramInt(c, "storeId")
		if !ok {
			return
		}
		var input models.NewStore
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, "handlers.go", "updateStoreHandler", err)
			return
		}
		store, err := models.UpdateStore(c.Request.Context(), companyId, storeId, &input)
		if err != nil {
			respondError(c, "handlers.go", "updateStoreHandler", err)
			return
		}
		c.JSON(http.StatusOK, store)
	}
}

func deleteStoreHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		companyId, ok := paramInt(c, "companyId")
		if !ok {
			return
		}
		storeId, ok := paramInt(c, "storeId")
		if !ok {
			return
		}
		if err := models.DeleteStore(c.Request.Context(), companyId, storeId); err != nil {
			respondError(c, "handlers.go", "deleteStoreHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// --- offers ---

func listOffersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		companyId, ok := paramInt(c, "companyId")
		if !ok {
			return
		}
		offers, err := models.GetOffers(c.Request.Context(), companyId)
		if err != nil {
			respondError(c, "handlers.go", "listOffersHandler", err)
			return
		}
		c.JSON(http.StatusOK, offers)
	}
}

func createOfferHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		companyId, ok := paramInt(c, "companyId")
		if !ok {
			return
		}
		var input models.NewOffer
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, "handlers.go", "createOfferHandler", err)
			return
		}
		offer, err := models.CreateOffer(c.Request.Context(), companyId, &input)
		if err != nil {
			respondError(c, "handlers.go", "createOfferHandler", err)
			return
		}
		c.JSON(http.StatusCreated, offer)
	}
}

func getOfferHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		companyId, ok := paramInt(c, "companyId")
		if !ok {
			return
		}
		offerId, ok := paramInt(c, "offerId")
		if !ok {
			return
		}
		offer, err := models.GetOffer(c.Request.Context(), companyId, offerId)
		if err != nil {
			respondError(c, "handlers.go", "getOfferHandler", err)
			return
		}
		c.JSON(http.StatusOK, offer)
	}
}

func updateOfferHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		companyId, ok := paramInt(c, "companyId")
		if !ok {
			return
		}
		offerId, ok := paramInt(c, "offerId")
		if !ok {
			return
		}
		var input models.NewOffer
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, "handlers.go", "updateOfferHandler", err)
			return
		}
		offer, err := models.UpdateOffer(c.Request.Context(), companyId, offerId, &input)
		if err != nil {
			respondError(c, "handlers.go", "updateOfferHandler", err)
			return
		}
		c.JSON(http.StatusOK, offer)
	}
}

func deleteOfferHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSession(c) {
			return
		}
		companyId, ok := paramInt(c, "companyId")
		if !ok {
			return
		}
		offerId, ok := paramInt(c, "offerId")
		if !ok {
			return
		}
		if err := models.DeleteOffer(c.Request.Context(), companyId, offerId); err != nil {
			respondError(c, "handlers.go", "deleteOfferHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
