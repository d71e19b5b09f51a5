// seed-admin creates or updates the operator user for internal tooling.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-admin
//
// Override the account with SEED_ADMIN_EMAIL / SEED_ADMIN_PASSWORD.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/kaspidesk/stocks_backend/config"
	"github.com/kaspidesk/stocks_backend/models"
	"github.com/kaspidesk/stocks_backend/utils"
	"gorm.io/gorm"
)

const (
	defaultAdminEmail    = "admin@kaspidesk.local"
	defaultAdminPassword = "StocksAdmin1!"
	adminName            = "Stocks Admin"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	email := strings.ToLower(strings.TrimSpace(os.Getenv("SEED_ADMIN_EMAIL")))
	if email == "" {
		email = defaultAdminEmail
	}
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		password = defaultAdminPassword
	}

	hashed, err := utils.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}
	hashedStr := string(hashed)

	var existing models.User
	err = db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).First(&existing).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		u := models.User{
			Email:    email,
			Name:     adminName,
			Password: hashedStr,
			IsActive: utils.NewTrue(),
			IsAdmin:  utils.NewTrue(),
		}
		if err := db.WithContext(ctx).Create(&u).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created admin user: email=%q\n", email)
		return
	}

	if err := db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Updates(map[string]any{
		"password":  hashedStr,
		"name":      adminName,
		"is_active": utils.NewTrue(),
		"is_admin":  utils.NewTrue(),
	}).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to update admin user: %v\n", err)
		os.Exit(1)
	}
	_ = existing.RemoveInstanceRedis()
	fmt.Printf("Updated admin user: email=%q\n", email)
}
