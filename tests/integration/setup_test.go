package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"tessera/internal/config"
	"tessera/internal/handlers"
	"tessera/internal/logger"
	"tessera/internal/middleware"
	"tessera/internal/models"
	"tessera/internal/services"
	"tessera/internal/testutil"
	"tessera/internal/validator"
)

const testFeedKey = "test-feed-key"

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB     *gorm.DB
	Router *gin.Engine
}

// dbCounter ensures each test gets a unique in-memory database.
var dbCounter atomic.Int64

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	cfg.PriceFeedKey = testFeedKey
}

// setupIsolatedDB creates an isolated in-memory SQLite database for a single test.
func setupIsolatedDB(t *testing.T) *gorm.DB {
	t.Helper()

	n := dbCounter.Add(1)
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	allModels := []interface{}{
		&models.Investor{},
		&models.Asset{},
		&models.TokenBalance{},
		&models.LedgerTransaction{},
		&models.LedgerSequence{},
		&models.ComplianceRecord{},
		&models.ComplianceCheck{},
		&models.DividendSchedule{},
		&models.AssetPrice{},
		&models.AuditLog{},
	}
	if err := db.AutoMigrate(allModels...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	// Partial unique index from migrations that AutoMigrate cannot express.
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_tx_payout_investor
		ON ledger_transactions (payout_ref, investor_id)
		WHERE payout_ref IS NOT NULL AND payout_ref <> ''`).Error; err != nil {
		t.Fatalf("failed to create payout index: %v", err)
	}

	testutil.SeedTreasury(t, db)
	return db
}

// setupApp creates a full application stack backed by an isolated in-memory
// SQLite. The route table mirrors cmd/api.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := setupIsolatedDB(t)
	cfg := config.Get()

	// Services
	ledgerService := services.NewLedgerService(db, cfg.LedgerLockTimeout, cfg.DividendWorkers)
	complianceService := services.NewComplianceService(db, cfg)
	priceService := services.NewPriceService(db, ledgerService)
	transferService := services.NewTransferService(ledgerService, complianceService, priceService)
	valuationService := services.NewValuationService(db, ledgerService, priceService)
	dividendService := services.NewDividendService(db, ledgerService)
	auditService := services.NewAuditService(db)

	// Handlers
	assetHandler := handlers.NewAssetHandler(ledgerService, priceService, auditService)
	transferHandler := handlers.NewTransferHandler(transferService, ledgerService, auditService)
	complianceHandler := handlers.NewComplianceHandler(complianceService, auditService)
	valuationHandler := handlers.NewValuationHandler(valuationService)
	dividendHandler := handlers.NewDividendHandler(dividendService, auditService)

	// Router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())

	v1 := router.Group("/api/v1")

	feed := v1.Group("/feed")
	feed.Use(middleware.FeedAuthMiddleware(cfg.PriceFeedKey))
	feed.POST("/assets/:id/prices", assetHandler.RecordPrice)

	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	assets := protected.Group("/assets")
	assets.GET("", assetHandler.ListAssets)
	assets.GET("/:id", assetHandler.GetAsset)
	assets.GET("/:id/holders", assetHandler.GetHolders)
	assets.GET("/:id/transactions", assetHandler.GetAssetTransactions)
	assets.GET("/:id/schedule", dividendHandler.GetSchedule)
	assets.GET("/:id/yield", valuationHandler.GetYield)

	transfers := protected.Group("/transfers")
	transfers.POST("/purchase", transferHandler.Purchase)
	transfers.POST("/sale", transferHandler.Sell)
	transfers.POST("", transferHandler.Transfer)

	investors := protected.Group("/investors")
	investors.GET("/:id", complianceHandler.GetInvestor)
	investors.GET("/:id/balances/:assetID", transferHandler.GetBalance)
	investors.GET("/:id/transactions", transferHandler.GetInvestorTransactions)
	investors.GET("/:id/portfolio", valuationHandler.GetPortfolio)
	investors.GET("/:id/gain/:assetID", valuationHandler.GetGain)

	operator := protected.Group("/")
	operator.Use(middleware.OperatorRequired())
	operator.POST("/assets", assetHandler.IssueAsset)
	operator.POST("/assets/:id/deactivate", assetHandler.DeactivateAsset)
	operator.POST("/assets/:id/verify", assetHandler.VerifyAsset)
	operator.POST("/assets/:id/schedule", dividendHandler.DeclareSchedule)
	operator.POST("/dividends/run", dividendHandler.RunDue)
	operator.POST("/investors", complianceHandler.Onboard)
	operator.POST("/investors/:id/checks", complianceHandler.SubmitCheck)
	operator.POST("/investors/:id/reopen", complianceHandler.Reopen)
	operator.POST("/investors/:id/suspend", complianceHandler.Suspend)
	operator.POST("/investors/:id/reinstate", complianceHandler.Reinstate)

	return &testApp{DB: db, Router: router}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// feedRequest makes a request authenticated with the price feed API key.
func (app *testApp) feedRequest(method, path, body, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// assertErrorCode checks the error envelope carries the expected code.
func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error envelope, got %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %s, got %v", code, errObj["code"])
	}
}

// operatorToken issues a signed token carrying the operator role.
func operatorToken(t *testing.T) string {
	t.Helper()
	token, err := middleware.GenerateToken("ops@tessera.internal", middleware.RoleOperator)
	if err != nil {
		t.Fatalf("failed to generate operator token: %v", err)
	}
	return token
}

// traderToken issues a signed token carrying the trader role.
func traderToken(t *testing.T) string {
	t.Helper()
	token, err := middleware.GenerateToken("desk@tessera.internal", middleware.RoleTrader)
	if err != nil {
		t.Fatalf("failed to generate trader token: %v", err)
	}
	return token
}

// issueAsset tokenizes an asset through the API and returns its ID.
func (app *testApp) issueAsset(t *testing.T, token, name, category string, totalSupply, pricePerToken int64) string {
	t.Helper()
	body := fmt.Sprintf(`{"name":%q,"category":%q,"total_supply":%d,"price_per_token":%d}`,
		name, category, totalSupply, pricePerToken)
	rec := app.request("POST", "/api/v1/assets", body, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("issue asset failed: %d %s", rec.Code, rec.Body.String())
	}
	asset := parseJSON(t, rec)["asset"].(map[string]interface{})
	return asset["id"].(string)
}

// onboardInvestor registers an investor through the API and returns its ID.
func (app *testApp) onboardInvestor(t *testing.T, token, name, email string) string {
	t.Helper()
	body := fmt.Sprintf(`{"name":%q,"email":%q}`, name, email)
	rec := app.request("POST", "/api/v1/investors", body, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("onboard failed: %d %s", rec.Code, rec.Body.String())
	}
	investor := parseJSON(t, rec)["investor"].(map[string]interface{})
	return investor["id"].(string)
}

// submitCheck records one compliance check result and returns the derived status.
func (app *testApp) submitCheck(t *testing.T, token, investorID, name, result string) string {
	t.Helper()
	body := fmt.Sprintf(`{"name":%q,"result":%q}`, name, result)
	rec := app.request("POST", "/api/v1/investors/"+investorID+"/checks", body, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit check %s failed: %d %s", name, rec.Code, rec.Body.String())
	}
	record := parseJSON(t, rec)["compliance"].(map[string]interface{})
	return record["status"].(string)
}

// clearInvestor passes every base required check for an investor.
func (app *testApp) clearInvestor(t *testing.T, token, investorID string) {
	t.Helper()
	status := ""
	for _, name := range config.Get().RequiredChecks {
		status = app.submitCheck(t, token, investorID, name, "passed")
	}
	if status != "cleared" {
		t.Fatalf("expected cleared after all required checks, got %s", status)
	}
}

// getBalance reads one investor's balance of one asset through the API.
func (app *testApp) getBalance(t *testing.T, token, investorID, assetID string) int64 {
	t.Helper()
	rec := app.request("GET", "/api/v1/investors/"+investorID+"/balances/"+assetID, "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("get balance failed: %d %s", rec.Code, rec.Body.String())
	}
	return int64(parseJSON(t, rec)["quantity"].(float64))
}
