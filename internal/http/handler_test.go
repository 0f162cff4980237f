package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"fines-service/internal/erap"
	"fines-service/internal/repository"
	"fines-service/internal/service"
)

const testSecret = "test-secret"

type fakeFetcher struct {
	entries []erap.ListingEntry
}

func (f *fakeFetcher) FetchListing(ctx context.Context, plate, techPassport string, page, limit int) ([]erap.ListingEntry, error) {
	return f.entries, nil
}

type fakeAcquirer struct {
	texts map[string]string
}

func (a *fakeAcquirer) Acquire(ctx context.Context, rid, caseNumber string) (string, []byte, error) {
	text, ok := a.texts[caseNumber]
	if !ok {
		return "", nil, errors.New("no such document")
	}
	return "/docs/" + caseNumber + ".pdf", []byte(text), nil
}

func (a *fakeAcquirer) StoreUpload(data []byte) (string, error) {
	return "/docs/upload.pdf", nil
}

func (a *fakeAcquirer) ReadText(data []byte) (string, error) {
	return string(data), nil
}

func setupRouter(t *testing.T, fetcher service.ListingFetcher, acquirer service.DocumentAcquirer) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := filepath.Join(t.TempDir(), "fines.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&repository.FineRow{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	repo := repository.NewFineRepository(db)
	svc := service.NewFineService(repo, fetcher, acquirer, 10, zerolog.Nop())

	router := gin.New()
	handler := NewHandler(svc, zerolog.Nop())
	handler.Register(router, JWTAuthMiddleware(testSecret, zerolog.Nop()))
	return router
}

func testToken(t *testing.T, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "operator",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func doRequest(router *gin.Engine, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthIsPublic(t *testing.T) {
	router := setupRouter(t, &fakeFetcher{}, &fakeAcquirer{})

	w := doRequest(router, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d, want 200", w.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	router := setupRouter(t, &fakeFetcher{}, &fakeAcquirer{})

	w := doRequest(router, http.MethodGet, "/api/v1/fines", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("GET /api/v1/fines without token = %d, want 401", w.Code)
	}

	w = doRequest(router, http.MethodGet, "/api/v1/fines", testToken(t, "wrong-secret"))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("GET /api/v1/fines with bad signature = %d, want 401", w.Code)
	}
}

func TestFetchAndReadFlow(t *testing.T) {
	fetcher := &fakeFetcher{entries: []erap.ListingEntry{{
		CaseNumber:     "123456789012345",
		RID:            "abc123",
		CommitDate:     time.Now().UTC().AddDate(0, 0, -3).Format(time.RFC3339),
		PenaltySize:    "15000",
		Organ:          erap.NameRef{NameRu: "ДП Алматинской области"},
		PenaltyMeasure: erap.NameRef{NameRu: "Превышение скорости"},
		Status:         "Не оплачен",
	}}}
	acquirer := &fakeAcquirer{texts: map[string]string{"123456789012345": "ничего"}}
	router := setupRouter(t, fetcher, acquirer)
	token := testToken(t, testSecret)

	w := doRequest(router, http.MethodPost, "/api/v1/fines/fetch?plate_number=A123BC02&tech_passport=SRTS001", token)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /fines/fetch = %d, body %s", w.Code, w.Body.String())
	}

	var fetchResp struct {
		Data struct {
			CreatedCount int     `json:"created_count"`
			CreatedIDs   []int64 `json:"created_ids"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &fetchResp); err != nil {
		t.Fatalf("decode fetch response: %v", err)
	}
	if fetchResp.Data.CreatedCount != 1 || len(fetchResp.Data.CreatedIDs) != 1 {
		t.Fatalf("fetch response = %+v, want one created record", fetchResp.Data)
	}
	id := fetchResp.Data.CreatedIDs[0]

	w = doRequest(router, http.MethodGet, "/api/v1/fines", token)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /fines = %d", w.Code)
	}
	var listResp struct {
		Total int64 `json:"total"`
		Items []struct {
			ID                       int64   `json:"id"`
			FineAmount               float64 `json:"fine_amount"`
			DiscountedAmount         float64 `json:"discounted_amount"`
			DiscountAvailable        bool    `json:"discount_available"`
			DaysRemainingForDiscount int     `json:"days_remaining_for_discount"`
		} `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if listResp.Total != 1 || len(listResp.Items) != 1 {
		t.Fatalf("list response = %+v, want one record", listResp)
	}
	item := listResp.Items[0]
	if item.FineAmount != 15000 || item.DiscountedAmount != 7500 {
		t.Errorf("amounts = %v/%v, want 15000/7500", item.FineAmount, item.DiscountedAmount)
	}
	// Violation was 3 days ago with a 7 day window.
	if !item.DiscountAvailable || item.DaysRemainingForDiscount != 4 {
		t.Errorf("derived fields = %v/%d, want true/4", item.DiscountAvailable, item.DaysRemainingForDiscount)
	}

	w = doRequest(router, http.MethodPatch, "/api/v1/fines/"+itoa(id)+"/mark-paid", token)
	if w.Code != http.StatusOK {
		t.Fatalf("PATCH mark-paid = %d, body %s", w.Code, w.Body.String())
	}

	w = doRequest(router, http.MethodGet, "/api/v1/fines/"+itoa(id), token)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /fines/:id = %d", w.Code)
	}
	var getResp struct {
		Data struct {
			IsPaid bool `json:"is_paid"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &getResp); err != nil {
		t.Fatalf("decode get response: %v", err)
	}
	if !getResp.Data.IsPaid {
		t.Fatalf("is_paid = false after mark-paid")
	}
}

func TestGetFineNotFound(t *testing.T) {
	router := setupRouter(t, &fakeFetcher{}, &fakeAcquirer{})

	w := doRequest(router, http.MethodGet, "/api/v1/fines/9999", testToken(t, testSecret))
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET missing fine = %d, want 404", w.Code)
	}
}

func TestListRejectsInvalidDateRange(t *testing.T) {
	router := setupRouter(t, &fakeFetcher{}, &fakeAcquirer{})
	token := testToken(t, testSecret)

	target := "/api/v1/fines?violation_date_from=2024-03-01T00:00:00Z&violation_date_to=2024-01-01T00:00:00Z"
	w := doRequest(router, http.MethodGet, target, token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("GET /fines with inverted range = %d, want 400", w.Code)
	}
}

func TestFetchRequiresParams(t *testing.T) {
	router := setupRouter(t, &fakeFetcher{}, &fakeAcquirer{})

	w := doRequest(router, http.MethodPost, "/api/v1/fines/fetch?plate_number=A123BC02", testToken(t, testSecret))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("POST /fines/fetch without passport = %d, want 400", w.Code)
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
