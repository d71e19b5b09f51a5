package workflow_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/kaspidesk/stocks_backend/config"
	"github.com/kaspidesk/stocks_backend/models"
	"github.com/kaspidesk/stocks_backend/utils"
	"github.com/kaspidesk/stocks_backend/workflow"
)

func TestReplaceCompanyOffers_DeleteThenRecreate(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "stocks_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	user, err := models.CreateUser(ctx, &models.NewUser{
		Email:    "owner@replace.test",
		Name:     "Owner",
		Password: "password1",
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	ctx = utils.SetUserIdInContext(ctx, user.ID)
	ctx = utils.SetUserEmailInContext(ctx, user.Email)

	company, err := models.CreateCompany(ctx, &models.NewCompany{
		Name:       "Replace Co",
		MerchantId: "M-1",
	})
	if err != nil {
		t.Fatalf("CreateCompany: %v", err)
	}

	store, err := models.CreateStore(ctx, company.ID, &models.NewStore{
		Name:               "Main",
		MarketplaceStoreId: "PP1",
	})
	if err != nil {
		t.Fatalf("CreateStore: %v", err)
	}

	// Seed an offer that the import must replace.
	old, err := models.CreateOffer(ctx, company.ID, &models.NewOffer{
		Sku:               "OLD-1",
		Name:              "Old offer",
		Price:             100,
		AvailableStoreIds: []int{store.ID},
	})
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}

	price := 2500
	summary, err := workflow.ReplaceCompanyOffers(ctx, company.ID, []*models.ParsedOfferRow{
		{Row: 2, Name: "New offer", Sku: "NEW-1", Price: &price, StoreIds: []string{"PP1", "UNKNOWN"}},
	})
	if err != nil {
		t.Fatalf("ReplaceCompanyOffers: %v", err)
	}
	if summary.RowsImported != 1 {
		t.Fatalf("expected 1 imported row, got %d", summary.RowsImported)
	}
	if summary.StoresDropped != 1 {
		t.Fatalf("expected 1 dropped store id, got %d", summary.StoresDropped)
	}

	offers, err := models.GetOffers(ctx, company.ID)
	if err != nil {
		t.Fatalf("GetOffers: %v", err)
	}
	if len(offers) != 1 {
		t.Fatalf("expected the catalog to hold exactly the imported offer, got %d", len(offers))
	}
	if offers[0].Sku != "NEW-1" || offers[0].Price != 2500 {
		t.Fatalf("imported offer wrong: %+v", offers[0])
	}
	if offers[0].ID == old.ID {
		t.Fatalf("offers must be recreated, not updated in place")
	}
	if len(offers[0].AvailableStores) != 1 || offers[0].AvailableStores[0].ID != store.ID {
		t.Fatalf("store link wrong: %+v", offers[0].AvailableStores)
	}

	// A successful import must drop any cached feed.
	models.CacheOfferFeed(company.ID, "<kaspi_catalog/>")
	if _, ok := models.CachedOfferFeed(company.ID); !ok {
		t.Fatalf("expected feed cache write to stick")
	}

	// Importing the same batch again leaves an equivalent catalog.
	summary, err = workflow.ReplaceCompanyOffers(ctx, company.ID, []*models.ParsedOfferRow{
		{Row: 2, Name: "New offer", Sku: "NEW-1", Price: &price, StoreIds: []string{"PP1", "UNKNOWN"}},
	})
	if err != nil {
		t.Fatalf("ReplaceCompanyOffers(repeat): %v", err)
	}
	if summary.RowsImported != 1 {
		t.Fatalf("repeat import: expected 1 imported row, got %d", summary.RowsImported)
	}
	offers, err = models.GetOffers(ctx, company.ID)
	if err != nil {
		t.Fatalf("GetOffers: %v", err)
	}
	if len(offers) != 1 || offers[0].Sku != "NEW-1" {
		t.Fatalf("repeat import must produce the same catalog, got %+v", offers)
	}
	if _, ok := models.CachedOfferFeed(company.ID); ok {
		t.Fatalf("import must invalidate the cached feed")
	}

	// A batch with zero surviving rows still wipes the catalog.
	summary, err = workflow.ReplaceCompanyOffers(ctx, company.ID, nil)
	if err != nil {
		t.Fatalf("ReplaceCompanyOffers(empty): %v", err)
	}
	if summary.RowsImported != 0 {
		t.Fatalf("expected nothing imported, got %d", summary.RowsImported)
	}
	offers, err = models.GetOffers(ctx, company.ID)
	if err != nil {
		t.Fatalf("GetOffers: %v", err)
	}
	if len(offers) != 0 {
		t.Fatalf("empty import must wipe the catalog, got %d offers", len(offers))
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("stocks-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("stocks-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=stocks_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
