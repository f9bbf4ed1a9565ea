package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/creditera/cobranza/internal/clock"
	"github.com/creditera/cobranza/internal/config"
	ledgerdomain "github.com/creditera/cobranza/internal/ledger/domain"
	ledgerservice "github.com/creditera/cobranza/internal/ledger/service"
	loandomain "github.com/creditera/cobranza/internal/loan/domain"
	loanrepository "github.com/creditera/cobranza/internal/loan/repository"
	loanservice "github.com/creditera/cobranza/internal/loan/service"
	"github.com/creditera/cobranza/internal/observability"
	paymentservice "github.com/creditera/cobranza/internal/payment/service"
	"github.com/creditera/cobranza/internal/seed"
	"github.com/creditera/cobranza/internal/server"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	db      *gorm.DB
	clk     *clock.FakeClock
	baseURL string
	httpSrv *httptest.Server
}

var env *testEnv

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)

	var err error
	env, err = startEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to start test environment:", err)
		os.Exit(1)
	}

	code := m.Run()
	env.httpSrv.Close()
	os.Exit(code)
}

func startEnv() (*testEnv, error) {
	db, err := gorm.Open(sqlite.Open("file:e2e?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(
		&loandomain.Loan{},
		&loandomain.Installment{},
		&loandomain.Payment{},
		&ledgerdomain.Account{},
		&ledgerdomain.JournalEntry{},
		&ledgerdomain.JournalLine{},
	); err != nil {
		return nil, err
	}
	if err := seed.EnsureChartOfAccounts(db); err != nil {
		return nil, err
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, err
	}

	log := zap.NewNop()
	clk := clock.NewFakeClock(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	repo := loanrepository.Provide()

	ledgerSvc := ledgerservice.NewService(ledgerservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: clk,
	})
	loanSvc := loanservice.New(loanservice.Params{
		DB:        db,
		Log:       log,
		GenID:     node,
		Clock:     clk,
		Repo:      repo,
		LedgerSvc: ledgerSvc,
	})
	paymentSvc := paymentservice.New(paymentservice.Params{
		DB:        db,
		Log:       log,
		GenID:     node,
		Clock:     clk,
		Policy:    config.NewStaticPolicyHolder(config.DefaultPenaltyPolicy()),
		Repo:      repo,
		LoanSvc:   loanSvc,
		LedgerSvc: ledgerSvc,
	})

	engine := server.NewEngine(observability.Config{Environment: "test"})
	server.NewServer(server.ServerParams{
		Gin:        engine,
		Cfg:        config.Config{HTTPAddr: ":0"},
		DB:         db,
		GenID:      node,
		LoanSvc:    loanSvc,
		PaymentSvc: paymentSvc,
		LedgerSvc:  ledgerSvc,
	})

	httpSrv := httptest.NewServer(engine)
	return &testEnv{
		db:      db,
		clk:     clk,
		baseURL: httpSrv.URL,
		httpSrv: httpSrv,
	}, nil
}

func resetDatabase(t *testing.T, db *gorm.DB) {
	t.Helper()
	for _, table := range []string{"journal_lines", "journal_entries", "payments", "installments", "loans"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			t.Fatalf("reset %s: %v", table, err)
		}
	}
	env.clk.Set(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
}

func doJSON(t *testing.T, method, url string, payload any) (*http.Response, []byte) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, raw
}

func decodeData(t *testing.T, raw []byte, out any) {
	t.Helper()
	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, string(raw))
	}
	if err := json.Unmarshal(wrapper.Data, out); err != nil {
		t.Fatalf("decode data: %v (%s)", err, string(wrapper.Data))
	}
}

func TestE2E_HealthCheck(t *testing.T) {
	resetDatabase(t, env.db)

	resp, err := http.Get(env.baseURL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
}

func TestE2E_LoanLifecycle(t *testing.T) {
	resetDatabase(t, env.db)

	// Create a loan with a ten week schedule.
	resp, raw := doJSON(t, http.MethodPost, env.baseURL+"/v1/loans", map[string]any{
		"customer_ref":   "cliente-042",
		"principal":      "1000",
		"interest_rate":  "0.30",
		"term_weeks":     10,
		"first_due_date": "2026-03-09",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create loan: expected 200, got %d: %s", resp.StatusCode, string(raw))
	}
	var created struct {
		Loan struct {
			ID     string `json:"ID"`
			Status string `json:"Status"`
		} `json:"loan"`
		Installments []struct {
			Week int `json:"Week"`
		} `json:"installments"`
	}
	decodeData(t, raw, &created)
	if len(created.Installments) != 10 {
		t.Fatalf("expected 10 installments, got %d", len(created.Installments))
	}

	loanURL := env.baseURL + "/v1/loans/" + created.Loan.ID

	// Payments are rejected until the merchandise is delivered.
	resp, raw = doJSON(t, http.MethodPost, loanURL+"/payments", map[string]any{
		"amount": "130", "method": "efectivo",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("pay pending loan: expected 422, got %d: %s", resp.StatusCode, string(raw))
	}

	resp, raw = doJSON(t, http.MethodPost, loanURL+"/approve", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d: %s", resp.StatusCode, string(raw))
	}
	resp, raw = doJSON(t, http.MethodPost, loanURL+"/deliver", map[string]any{"cost": "700"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("deliver: expected 200, got %d: %s", resp.StatusCode, string(raw))
	}

	// First weekly payment.
	resp, raw = doJSON(t, http.MethodPost, loanURL+"/payments", map[string]any{
		"amount": "130", "method": "efectivo", "received_by": "caja-1",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("payment: expected 200, got %d: %s", resp.StatusCode, string(raw))
	}
	var payResult struct {
		InstallmentsAffected []struct {
			Week      int    `json:"week"`
			NewStatus string `json:"new_status"`
		} `json:"installments_affected"`
		UnappliedSurplus string `json:"unapplied_surplus"`
		LoanSettled      bool   `json:"loan_settled"`
	}
	decodeData(t, raw, &payResult)
	if len(payResult.InstallmentsAffected) != 1 || payResult.InstallmentsAffected[0].NewStatus != "paid" {
		t.Fatalf("expected week 1 paid, got %+v", payResult)
	}

	resp, raw = doJSON(t, http.MethodGet, loanURL, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get loan: expected 200, got %d: %s", resp.StatusCode, string(raw))
	}
	var current struct {
		Status string `json:"Status"`
	}
	decodeData(t, raw, &current)
	if current.Status != "delivered" {
		t.Fatalf("expected delivered loan, got %q", current.Status)
	}

	resp, raw = doJSON(t, http.MethodGet, loanURL+"/payments", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list payments: expected 200, got %d: %s", resp.StatusCode, string(raw))
	}
	var payments []struct {
		Week int `json:"Week"`
	}
	decodeData(t, raw, &payments)
	if len(payments) != 1 || payments[0].Week != 1 {
		t.Fatalf("expected one payment against week 1, got %+v", payments)
	}

	// Pay the remaining nine weeks in one lump sum; the loan settles.
	resp, raw = doJSON(t, http.MethodPost, loanURL+"/payments", map[string]any{
		"amount": "1170", "method": "transferencia",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("lump payment: expected 200, got %d: %s", resp.StatusCode, string(raw))
	}
	decodeData(t, raw, &payResult)
	if !payResult.LoanSettled {
		t.Fatalf("expected loan settled, got %+v", payResult)
	}

	// The books must balance across delivery and all payments.
	resp, raw = doJSON(t, http.MethodGet, env.baseURL+"/v1/ledger/trial-balance", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("trial balance: expected 200, got %d: %s", resp.StatusCode, string(raw))
	}
	var balances []struct {
		AccountCode string `json:"account_code"`
		Debits      string `json:"debits"`
		Credits     string `json:"credits"`
	}
	decodeData(t, raw, &balances)
	if len(balances) == 0 {
		t.Fatalf("expected trial balance rows")
	}

	var totals struct {
		Debits  float64
		Credits float64
	}
	if err := env.db.Raw(
		`SELECT SUM(debit) AS debits, SUM(credit) AS credits FROM journal_lines`,
	).Scan(&totals).Error; err != nil {
		t.Fatalf("sum journal lines: %v", err)
	}
	if fmt.Sprintf("%.2f", totals.Debits) != fmt.Sprintf("%.2f", totals.Credits) {
		t.Fatalf("ledger out of balance: debits %.2f, credits %.2f", totals.Debits, totals.Credits)
	}
}

func TestE2E_ErrorMapping(t *testing.T) {
	resetDatabase(t, env.db)

	resp, _ := doJSON(t, http.MethodPost, env.baseURL+"/v1/loans/123456789/payments", map[string]any{
		"amount": "10", "method": "efectivo",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown loan: expected 404, got %d", resp.StatusCode)
	}

	resp, raw := doJSON(t, http.MethodPost, env.baseURL+"/v1/loans", map[string]any{
		"customer_ref":   "cliente-007",
		"principal":      "500",
		"interest_rate":  "0.30",
		"term_weeks":     5,
		"first_due_date": "2026-03-09",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create loan: expected 200, got %d: %s", resp.StatusCode, string(raw))
	}
	var created struct {
		Loan struct {
			ID string `json:"ID"`
		} `json:"loan"`
	}
	decodeData(t, raw, &created)

	resp, _ = doJSON(t, http.MethodPost, env.baseURL+"/v1/loans/"+created.Loan.ID+"/payments", map[string]any{
		"amount": "-5", "method": "efectivo",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("negative amount: expected 400, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, env.baseURL+"/v1/loans/"+created.Loan.ID+"/deliver", map[string]any{"cost": "100"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("deliver pending loan: expected 422, got %d", resp.StatusCode)
	}
}

func TestE2E_ReverseJournalEntry(t *testing.T) {
	resetDatabase(t, env.db)

	resp, raw := doJSON(t, http.MethodPost, env.baseURL+"/v1/loans", map[string]any{
		"customer_ref":   "cliente-055",
		"principal":      "500",
		"interest_rate":  "0.30",
		"term_weeks":     5,
		"first_due_date": "2026-03-09",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create loan: expected 200, got %d: %s", resp.StatusCode, string(raw))
	}
	var created struct {
		Loan struct {
			ID string `json:"ID"`
		} `json:"loan"`
	}
	decodeData(t, raw, &created)

	loanURL := env.baseURL + "/v1/loans/" + created.Loan.ID
	if resp, raw := doJSON(t, http.MethodPost, loanURL+"/approve", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("approve: %d: %s", resp.StatusCode, string(raw))
	}
	if resp, raw := doJSON(t, http.MethodPost, loanURL+"/deliver", map[string]any{"cost": "350"}); resp.StatusCode != http.StatusOK {
		t.Fatalf("deliver: %d: %s", resp.StatusCode, string(raw))
	}

	resp, raw = doJSON(t, http.MethodPost, loanURL+"/payments", map[string]any{
		"amount": "130", "method": "efectivo",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("payment: expected 200, got %d: %s", resp.StatusCode, string(raw))
	}
	var payResult struct {
		JournalEntryIDs []string `json:"journal_entry_ids"`
	}
	decodeData(t, raw, &payResult)
	if len(payResult.JournalEntryIDs) != 1 {
		t.Fatalf("expected one journal entry, got %+v", payResult)
	}
	entryID := payResult.JournalEntryIDs[0]

	resp, raw = doJSON(t, http.MethodPost, env.baseURL+"/v1/ledger/entries/"+entryID+"/reverse", map[string]any{
		"description": "mispost correction",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reverse: expected 200, got %d: %s", resp.StatusCode, string(raw))
	}
	var reversed struct {
		ReversalEntryID string `json:"reversal_entry_id"`
	}
	decodeData(t, raw, &reversed)
	if reversed.ReversalEntryID == "" || reversed.ReversalEntryID == entryID {
		t.Fatalf("expected a distinct reversal entry id, got %q", reversed.ReversalEntryID)
	}

	// The reversal must carry mirror lines, and the books stay balanced.
	resp, raw = doJSON(t, http.MethodGet, env.baseURL+"/v1/ledger/entries/"+reversed.ReversalEntryID+"/lines", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("lines: expected 200, got %d: %s", resp.StatusCode, string(raw))
	}
	var lines []struct {
		Debit  string `json:"Debit"`
		Credit string `json:"Credit"`
	}
	decodeData(t, raw, &lines)
	if len(lines) == 0 {
		t.Fatalf("expected reversal lines, got none")
	}

	var totals struct {
		Debits  float64
		Credits float64
	}
	if err := env.db.Raw(
		`SELECT SUM(debit) AS debits, SUM(credit) AS credits FROM journal_lines`,
	).Scan(&totals).Error; err != nil {
		t.Fatalf("sum journal lines: %v", err)
	}
	if fmt.Sprintf("%.2f", totals.Debits) != fmt.Sprintf("%.2f", totals.Credits) {
		t.Fatalf("ledger out of balance: debits %.2f, credits %.2f", totals.Debits, totals.Credits)
	}

	// Reversing again resolves to the same reversal entry.
	resp, raw = doJSON(t, http.MethodPost, env.baseURL+"/v1/ledger/entries/"+entryID+"/reverse", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reverse again: expected 200, got %d: %s", resp.StatusCode, string(raw))
	}
	var again struct {
		ReversalEntryID string `json:"reversal_entry_id"`
	}
	decodeData(t, raw, &again)
	if again.ReversalEntryID != reversed.ReversalEntryID {
		t.Fatalf("expected idempotent reversal, got %q then %q", reversed.ReversalEntryID, again.ReversalEntryID)
	}
}

func TestE2E_PenaltyAssessment(t *testing.T) {
	resetDatabase(t, env.db)

	resp, raw := doJSON(t, http.MethodPost, env.baseURL+"/v1/loans", map[string]any{
		"customer_ref":   "cliente-099",
		"principal":      "1000",
		"interest_rate":  "0.30",
		"term_weeks":     10,
		"first_due_date": "2026-03-09",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create loan: expected 200, got %d: %s", resp.StatusCode, string(raw))
	}
	var created struct {
		Loan struct {
			ID string `json:"ID"`
		} `json:"loan"`
	}
	decodeData(t, raw, &created)

	loanURL := env.baseURL + "/v1/loans/" + created.Loan.ID
	if resp, raw := doJSON(t, http.MethodPost, loanURL+"/approve", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("approve: %d: %s", resp.StatusCode, string(raw))
	}
	if resp, raw := doJSON(t, http.MethodPost, loanURL+"/deliver", map[string]any{"cost": "700"}); resp.StatusCode != http.StatusOK {
		t.Fatalf("deliver: %d: %s", resp.StatusCode, string(raw))
	}

	// Three days past the first due date.
	env.clk.Set(time.Date(2026, 3, 12, 15, 0, 0, 0, time.UTC))

	resp, raw = doJSON(t, http.MethodPost, env.baseURL+"/v1/penalties/assess", map[string]any{
		"loan_id": created.Loan.ID,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("assess: expected 200, got %d: %s", resp.StatusCode, string(raw))
	}
	var assess struct {
		InstallmentsUpdated []struct {
			Week   int    `json:"week"`
			Amount string `json:"amount"`
		} `json:"installments_updated"`
	}
	decodeData(t, raw, &assess)
	if len(assess.InstallmentsUpdated) != 1 || assess.InstallmentsUpdated[0].Week != 1 {
		t.Fatalf("expected one increment on week 1, got %+v", assess)
	}

	// Same day again is a no-op.
	resp, raw = doJSON(t, http.MethodPost, env.baseURL+"/v1/penalties/assess", map[string]any{
		"loan_id": created.Loan.ID,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("assess again: expected 200, got %d: %s", resp.StatusCode, string(raw))
	}
	decodeData(t, raw, &assess)
	if len(assess.InstallmentsUpdated) != 0 {
		t.Fatalf("expected idempotent same-day assess, got %+v", assess)
	}
}
