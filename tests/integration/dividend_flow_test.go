package integration

import (
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestDividendFlow_DeclareRunAndRetry(t *testing.T) {
	app := setupApp(t)
	opToken := operatorToken(t)
	trToken := traderToken(t)

	assetID := app.issueAsset(t, opToken, "Harborview Apartments", "real_estate", 1000, 10000)

	holderID := app.onboardInvestor(t, opToken, "Kim Park", "kim@example.com")
	app.clearInvestor(t, opToken, holderID)

	rec := app.request("POST", "/api/v1/transfers/purchase",
		fmt.Sprintf(`{"buyer_id":%q,"asset_id":%q,"quantity":100}`, holderID, assetID), trToken)
	if rec.Code != http.StatusCreated {
		t.Fatalf("purchase failed: %d %s", rec.Code, rec.Body.String())
	}

	// Declare a quarterly payout that is already due.
	firstPayout := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	rec = app.request("POST", "/api/v1/assets/"+assetID+"/schedule",
		fmt.Sprintf(`{"per_token_amount":50,"frequency":"quarterly","first_payout_at":%q}`, firstPayout), opToken)
	if rec.Code != http.StatusCreated {
		t.Fatalf("declare schedule failed: %d %s", rec.Code, rec.Body.String())
	}

	rec = app.request("GET", "/api/v1/assets/"+assetID+"/schedule", "", trToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("get schedule failed: %d %s", rec.Code, rec.Body.String())
	}
	schedule := parseJSON(t, rec)["schedule"].(map[string]interface{})
	if schedule["per_token_amount"].(float64) != 50 {
		t.Errorf("expected per-token amount 50, got %v", schedule["per_token_amount"])
	}

	// Run the due schedule. The treasury pool earns nothing.
	rec = app.request("POST", "/api/v1/dividends/run", "", opToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("run dividends failed: %d %s", rec.Code, rec.Body.String())
	}
	runs := parseJSON(t, rec)["runs"].([]interface{})
	if len(runs) != 1 {
		t.Fatalf("expected 1 payout run, got %d", len(runs))
	}
	run := runs[0].(map[string]interface{})
	result := run["result"].(map[string]interface{})
	credited := result["credited"].([]interface{})
	if len(credited) != 1 {
		t.Fatalf("expected 1 holder credited, got %d", len(credited))
	}
	credit := credited[0].(map[string]interface{})
	if credit["investor_id"] != holderID {
		t.Errorf("expected credit for holder, got %v", credit["investor_id"])
	}
	if credit["amount"].(float64) != 100*50 {
		t.Errorf("expected credit amount 5000, got %v", credit["amount"])
	}

	// The payout lands on the investor's transaction log as a dividend.
	rec = app.request("GET", "/api/v1/investors/"+holderID+"/transactions?type=dividend", "", trToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("list transactions failed: %d %s", rec.Code, rec.Body.String())
	}
	listing := parseJSON(t, rec)
	if listing["total_items"].(float64) != 1 {
		t.Errorf("expected 1 dividend transaction, got %v", listing["total_items"])
	}

	// Rerunning pays nothing: the schedule advanced past now.
	rec = app.request("POST", "/api/v1/dividends/run", "", opToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("rerun failed: %d %s", rec.Code, rec.Body.String())
	}
	runs = parseJSON(t, rec)["runs"].([]interface{})
	if len(runs) != 0 {
		t.Errorf("expected no payout runs on rerun, got %d", len(runs))
	}

	rec = app.request("GET", "/api/v1/investors/"+holderID+"/transactions?type=dividend", "", trToken)
	listing = parseJSON(t, rec)
	if listing["total_items"].(float64) != 1 {
		t.Errorf("expected dividend count unchanged after rerun, got %v", listing["total_items"])
	}
}

func TestDividendFlow_ProjectedYield(t *testing.T) {
	app := setupApp(t)
	opToken := operatorToken(t)
	trToken := traderToken(t)

	assetID := app.issueAsset(t, opToken, "Downtown Retail Plaza", "real_estate", 500, 10000)

	// No schedule declared yet.
	rec := app.request("GET", "/api/v1/assets/"+assetID+"/yield", "", trToken)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without schedule, got %d: %s", rec.Code, rec.Body.String())
	}
	assertErrorCode(t, parseJSON(t, rec), "SCHEDULE_NOT_FOUND")

	firstPayout := time.Now().AddDate(0, 1, 0).UTC().Format(time.RFC3339)
	rec = app.request("POST", "/api/v1/assets/"+assetID+"/schedule",
		fmt.Sprintf(`{"per_token_amount":125,"frequency":"quarterly","first_payout_at":%q}`, firstPayout), opToken)
	if rec.Code != http.StatusCreated {
		t.Fatalf("declare schedule failed: %d %s", rec.Code, rec.Body.String())
	}

	// 125 per token quarterly = 500 per year against a 10000 price: 5%.
	rec = app.request("GET", "/api/v1/assets/"+assetID+"/yield", "", trToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("get yield failed: %d %s", rec.Code, rec.Body.String())
	}
	report := parseJSON(t, rec)["yield"].(map[string]interface{})
	if report["annual_per_token"].(float64) != 500 {
		t.Errorf("expected annual per token 500, got %v", report["annual_per_token"])
	}
	if report["projected_yield_pct"].(float64) != 5.0 {
		t.Errorf("expected projected yield 5.0, got %v", report["projected_yield_pct"])
	}
}

func TestDividendFlow_PortfolioSeparatesDividendIncome(t *testing.T) {
	app := setupApp(t)
	opToken := operatorToken(t)
	trToken := traderToken(t)

	assetID := app.issueAsset(t, opToken, "Coastal Wind Assets", "commodity", 400, 10000)
	holderID := app.onboardInvestor(t, opToken, "Liam Ortiz", "liam@example.com")
	app.clearInvestor(t, opToken, holderID)

	rec := app.request("POST", "/api/v1/transfers/purchase",
		fmt.Sprintf(`{"buyer_id":%q,"asset_id":%q,"quantity":10}`, holderID, assetID), trToken)
	if rec.Code != http.StatusCreated {
		t.Fatalf("purchase failed: %d %s", rec.Code, rec.Body.String())
	}

	firstPayout := time.Now().Add(-time.Minute).UTC().Format(time.RFC3339)
	rec = app.request("POST", "/api/v1/assets/"+assetID+"/schedule",
		fmt.Sprintf(`{"per_token_amount":50,"frequency":"monthly","first_payout_at":%q}`, firstPayout), opToken)
	if rec.Code != http.StatusCreated {
		t.Fatalf("declare schedule failed: %d %s", rec.Code, rec.Body.String())
	}
	rec = app.request("POST", "/api/v1/dividends/run", "", opToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("run dividends failed: %d %s", rec.Code, rec.Body.String())
	}

	// Dividend income is reported beside value, never folded into gain.
	rec = app.request("GET", "/api/v1/investors/"+holderID+"/portfolio", "", trToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("get portfolio failed: %d %s", rec.Code, rec.Body.String())
	}
	summary := parseJSON(t, rec)["portfolio"].(map[string]interface{})
	if summary["dividend_income"].(float64) != 10*50 {
		t.Errorf("expected dividend income 500, got %v", summary["dividend_income"])
	}
	if summary["total_value"].(float64) != 10*10000 {
		t.Errorf("expected total value 100000, got %v", summary["total_value"])
	}
	if summary["total_gain_loss"].(float64) != 0 {
		t.Errorf("expected zero gain at issuance price, got %v", summary["total_gain_loss"])
	}
}
