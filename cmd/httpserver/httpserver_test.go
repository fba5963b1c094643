package httpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vkuzn/wallet-ledger/internal/domain"
	"github.com/vkuzn/wallet-ledger/pkg/configpkg"
	"github.com/vkuzn/wallet-ledger/pkg/randompkg"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	zerolog.SetGlobalLevel(zerolog.FatalLevel)
	os.Exit(m.Run())
}

func testConfig() configpkg.Config {
	return configpkg.Config{
		StorageDriver:        "memory",
		TokenMaker:           "paseto",
		TokenSymmetricKey:    randompkg.String(32),
		AccessTokenDuration:  time.Minute,
		RefreshTokenDuration: time.Hour,
		FraudRateWindow:      time.Minute,
		FraudRateThreshold:   3,
		FraudAmountThreshold: "10000",
	}
}

func setupServer(t *testing.T) *Server {
	t.Helper()

	server, err := New(nil, zerolog.Nop(), testConfig())
	if err != nil {
		t.Fatalf("New(nil, logger, config) returned error: %v", err)
	}

	return server
}

type authResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Data         struct {
		User    domain.UserWithoutPassword `json:"user"`
		Account domain.Account             `json:"account"`
	} `json:"data"`
	Error string `json:"error"`
}

type operationResponse struct {
	Data struct {
		Balance     string `json:"balance"`
		Transaction struct {
			ID      int64  `json:"id"`
			Type    string `json:"type"`
			Amount  string `json:"amount"`
			Flagged bool   `json:"flagged"`
		} `json:"transaction"`
	} `json:"data"`
	Error string `json:"error"`
}

func doJSON(t *testing.T, server *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader

	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Encoding request body error: %v", err)
		}

		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, path, reader)
	if err != nil {
		t.Fatalf("Creating request error: %v", err)
	}

	if token != "" {
		req.Header.Set("authorization", fmt.Sprintf("bearer %s", token))
	}

	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, req)

	return recorder
}

func register(t *testing.T, server *Server, username string) authResponse {
	t.Helper()

	recorder := doJSON(t, server, http.MethodPost, "/register", "", gin.H{
		"username": username,
		"password": "secret123",
		"email":    username + "@mail.com",
	})

	if recorder.Code != http.StatusOK {
		t.Fatalf("register %v: status = %v, body = %v", username, recorder.Code, recorder.Body.String())
	}

	var res authResponse
	if err := json.NewDecoder(recorder.Body).Decode(&res); err != nil {
		t.Fatalf("Decoding register response error: %v", err)
	}

	if res.AccessToken == "" {
		t.Fatal(`register returned empty access token`)
	}

	return res
}

func TestRegisterAndLogin(t *testing.T) {
	t.Parallel()

	server := setupServer(t)

	res := register(t, server, "alice")

	if res.Data.User.Username != "alice" {
		t.Errorf("user.Username = %v, want alice", res.Data.User.Username)
	}

	if res.Data.Account.Identifier != "alice" {
		t.Errorf("account.Identifier = %v, want alice", res.Data.Account.Identifier)
	}

	if res.Data.Account.Balance != "0" {
		t.Errorf("account.Balance = %v, want 0", res.Data.Account.Balance)
	}

	// The identifier is taken now.
	recorder := doJSON(t, server, http.MethodPost, "/register", "", gin.H{
		"username": "alice",
		"password": "secret123",
		"email":    "alice2@mail.com",
	})
	if recorder.Code != http.StatusConflict {
		t.Errorf("duplicate register status = %v, want %v", recorder.Code, http.StatusConflict)
	}

	recorder = doJSON(t, server, http.MethodPost, "/login", "", gin.H{
		"username": "alice",
		"password": "secret123",
	})
	if recorder.Code != http.StatusOK {
		t.Errorf("login status = %v, want %v", recorder.Code, http.StatusOK)
	}

	recorder = doJSON(t, server, http.MethodPost, "/login", "", gin.H{
		"username": "alice",
		"password": "wrongpass",
	})
	if recorder.Code != http.StatusUnauthorized {
		t.Errorf("wrong password login status = %v, want %v", recorder.Code, http.StatusUnauthorized)
	}

	recorder = doJSON(t, server, http.MethodPost, "/login", "", gin.H{
		"username": "nobody",
		"password": "secret123",
	})
	if recorder.Code != http.StatusNotFound {
		t.Errorf("unknown user login status = %v, want %v", recorder.Code, http.StatusNotFound)
	}
}

func TestOperations(t *testing.T) {
	t.Parallel()

	server := setupServer(t)

	alice := register(t, server, "alice")
	register(t, server, "bob")

	operation := func(path string, body gin.H) operationResponse {
		t.Helper()

		recorder := doJSON(t, server, http.MethodPost, path, alice.AccessToken, body)
		if recorder.Code != http.StatusOK {
			t.Fatalf("%v: status = %v, body = %v", path, recorder.Code, recorder.Body.String())
		}

		var res operationResponse
		if err := json.NewDecoder(recorder.Body).Decode(&res); err != nil {
			t.Fatalf("%v: decoding response error: %v", path, err)
		}

		return res
	}

	// The first three operations sit inside the rate allowance.
	res := operation("/deposit", gin.H{"amount": "100"})
	if res.Data.Balance != "100" || res.Data.Transaction.Flagged {
		t.Errorf("deposit: balance = %v, flagged = %v, want 100, false", res.Data.Balance, res.Data.Transaction.Flagged)
	}

	res = operation("/withdraw", gin.H{"amount": "30"})
	if res.Data.Balance != "70" || res.Data.Transaction.Flagged {
		t.Errorf("withdraw: balance = %v, flagged = %v, want 70, false", res.Data.Balance, res.Data.Transaction.Flagged)
	}

	res = operation("/transfer", gin.H{"to": "bob", "amount": "20"})
	if res.Data.Balance != "50" || res.Data.Transaction.Flagged {
		t.Errorf("transfer: balance = %v, flagged = %v, want 50, false", res.Data.Balance, res.Data.Transaction.Flagged)
	}

	// Over the amount threshold.
	res = operation("/deposit", gin.H{"amount": "10000.01"})
	if !res.Data.Transaction.Flagged {
		t.Error("large deposit not flagged")
	}

	// Fourth small operation inside the window trips the rate rule.
	res = operation("/withdraw", gin.H{"amount": "5"})
	if !res.Data.Transaction.Flagged {
		t.Error("rapid withdraw not flagged")
	}

	// Failed operations do not change the balance.
	recorder := doJSON(t, server, http.MethodPost, "/withdraw", alice.AccessToken, gin.H{"amount": "100000"})
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("overdraw status = %v, want %v", recorder.Code, http.StatusBadRequest)
	}

	recorder = doJSON(t, server, http.MethodPost, "/transfer", alice.AccessToken, gin.H{"to": "nobody", "amount": "1"})
	if recorder.Code != http.StatusNotFound {
		t.Errorf("transfer to unknown status = %v, want %v", recorder.Code, http.StatusNotFound)
	}

	recorder = doJSON(t, server, http.MethodPost, "/deposit", alice.AccessToken, gin.H{"amount": "-1"})
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("negative deposit status = %v, want %v", recorder.Code, http.StatusBadRequest)
	}

	recorder = doJSON(t, server, http.MethodPost, "/deposit", "", gin.H{"amount": "1"})
	if recorder.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated deposit status = %v, want %v", recorder.Code, http.StatusUnauthorized)
	}

	// Only the five successful operations are on record, in order.
	recorder = doJSON(t, server, http.MethodGet, "/transactions", alice.AccessToken, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("transactions status = %v, body = %v", recorder.Code, recorder.Body.String())
	}

	var listRes struct {
		Data struct {
			Transactions []struct {
				ID      int64  `json:"id"`
				Type    string `json:"type"`
				Flagged bool   `json:"flagged"`
			} `json:"transactions"`
		} `json:"data"`
	}
	if err := json.NewDecoder(recorder.Body).Decode(&listRes); err != nil {
		t.Fatalf("Decoding transactions response error: %v", err)
	}

	txns := listRes.Data.Transactions
	if len(txns) != 5 {
		t.Fatalf("len(transactions) = %v, want 5", len(txns))
	}

	for i := 1; i < len(txns); i++ {
		if txns[i].ID <= txns[i-1].ID {
			t.Errorf("transactions[%d].ID = %v not greater than transactions[%d].ID = %v",
				i, txns[i].ID, i-1, txns[i-1].ID)
		}
	}
}

func TestAdminReports(t *testing.T) {
	t.Parallel()

	server := setupServer(t)

	alice := register(t, server, "alice")
	bob := register(t, server, "bob")

	recorder := doJSON(t, server, http.MethodPost, "/deposit", alice.AccessToken, gin.H{"amount": "300"})
	if recorder.Code != http.StatusOK {
		t.Fatalf("deposit status = %v, body = %v", recorder.Code, recorder.Body.String())
	}

	recorder = doJSON(t, server, http.MethodPost, "/deposit", bob.AccessToken, gin.H{"amount": "20000"})
	if recorder.Code != http.StatusOK {
		t.Fatalf("deposit status = %v, body = %v", recorder.Code, recorder.Body.String())
	}

	recorder = doJSON(t, server, http.MethodGet, "/admin/flags", alice.AccessToken, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("flags status = %v, body = %v", recorder.Code, recorder.Body.String())
	}

	var flagsRes struct {
		Data struct {
			Flagged []struct {
				ID       int64  `json:"id"`
				SenderID int32  `json:"sender_id"`
				Amount   string `json:"amount"`
				Type     string `json:"type"`
			} `json:"flagged"`
		} `json:"data"`
	}
	if err := json.NewDecoder(recorder.Body).Decode(&flagsRes); err != nil {
		t.Fatalf("Decoding flags response error: %v", err)
	}

	if len(flagsRes.Data.Flagged) != 1 {
		t.Fatalf("len(flagged) = %v, want 1", len(flagsRes.Data.Flagged))
	}

	if flagsRes.Data.Flagged[0].Amount != "20000" {
		t.Errorf("flagged[0].Amount = %v, want 20000", flagsRes.Data.Flagged[0].Amount)
	}

	recorder = doJSON(t, server, http.MethodGet, "/admin/stats?top=1", alice.AccessToken, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("stats status = %v, body = %v", recorder.Code, recorder.Body.String())
	}

	var statsRes struct {
		Data domain.Stats `json:"data"`
	}
	if err := json.NewDecoder(recorder.Body).Decode(&statsRes); err != nil {
		t.Fatalf("Decoding stats response error: %v", err)
	}

	if statsRes.Data.TotalBalance != "20300" {
		t.Errorf("TotalBalance = %v, want 20300", statsRes.Data.TotalBalance)
	}

	if len(statsRes.Data.TopAccounts) != 1 || statsRes.Data.TopAccounts[0].Identifier != "bob" {
		t.Errorf("TopAccounts = %+v, want only bob", statsRes.Data.TopAccounts)
	}

	recorder = doJSON(t, server, http.MethodGet, "/admin/stats?top=500", alice.AccessToken, nil)
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("stats with top=500 status = %v, want %v", recorder.Code, http.StatusBadRequest)
	}
}

func TestRenewAccessToken(t *testing.T) {
	t.Parallel()

	server := setupServer(t)

	alice := register(t, server, "alice")

	recorder := doJSON(t, server, http.MethodPost, "/sessions", "", gin.H{
		"refresh_token": alice.RefreshToken,
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("renew status = %v, body = %v", recorder.Code, recorder.Body.String())
	}

	var res struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(recorder.Body).Decode(&res); err != nil {
		t.Fatalf("Decoding renew response error: %v", err)
	}

	if res.AccessToken == "" {
		t.Error(`renewed access token is empty`)
	}

	// The renewed token authenticates requests.
	recorder = doJSON(t, server, http.MethodPost, "/deposit", res.AccessToken, gin.H{"amount": "10"})
	if recorder.Code != http.StatusOK {
		t.Errorf("deposit with renewed token status = %v, body = %v", recorder.Code, recorder.Body.String())
	}

	// An access token is not a valid refresh token.
	recorder = doJSON(t, server, http.MethodPost, "/sessions", "", gin.H{
		"refresh_token": alice.AccessToken,
	})
	if recorder.Code == http.StatusOK {
		t.Error("renew with access token succeeded, want failure")
	}
}
