package ledger

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func serve(t *testing.T, h *Handler, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.Routes().ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestHandlerRecordSale(t *testing.T) {
	order, products := threeLineOrder()
	repo := &memRepo{}
	h := NewHandler(newTestService(repo, stubProducts(products), nil))

	body := `{"order_id":"` + order.ID.String() + `","order_number":"OP-1001","tax_total":"10.00","items":[` +
		`{"product_id":"` + order.Items[0].ProductID.String() + `","unit_price":"33.33","quantity":1},` +
		`{"product_id":"` + order.Items[1].ProductID.String() + `","unit_price":"33.33","quantity":1}]}`

	w, env := serve(t, h, http.MethodPost, "/sales", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, env.Success)
	assert.Len(t, repo.entries, 2)
}

func TestHandlerRecordSaleValidation(t *testing.T) {
	h := NewHandler(newTestService(&memRepo{}, stubProducts{}, nil))

	w, env := serve(t, h, http.MethodPost, "/sales", `{"order_id":"`+uuid.NewString()+`","order_number":"OP-1","items":[]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Details, "items")

	w, _ = serve(t, h, http.MethodPost, "/sales", `{"unknown":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlerRecordRefundRejectsSubCentAmount(t *testing.T) {
	repo := &memRepo{}
	h := NewHandler(newTestService(repo, stubProducts{}, nil))

	w, env := serve(t, h, http.MethodPost, "/refunds", `{"order_id":"`+uuid.NewString()+`","amount":0.004,"reason":"late"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Details, "amount")
	assert.Empty(t, repo.entries)
}

func TestHandlerRecordSaleUnknownProduct(t *testing.T) {
	h := NewHandler(newTestService(&memRepo{}, stubProducts{}, nil))
	body := `{"order_id":"` + uuid.NewString() + `","order_number":"OP-1","items":[{"product_id":"` +
		uuid.NewString() + `","unit_price":"10","quantity":1}]}`

	w, _ := serve(t, h, http.MethodPost, "/sales", body)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlerGetNotFound(t *testing.T) {
	h := NewHandler(newTestService(&memRepo{}, nil, nil))

	w, _ := serve(t, h, http.MethodGet, "/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = serve(t, h, http.MethodGet, "/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlerListRejectsUnknownType(t *testing.T) {
	h := NewHandler(newTestService(&memRepo{}, nil, nil))

	w, _ := serve(t, h, http.MethodGet, "/?type=bonus", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, _ = serve(t, h, http.MethodGet, "/?limit=500", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, _ = serve(t, h, http.MethodGet, "/?page=9223372036854775807&limit=20", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHandlerSummary(t *testing.T) {
	repo := &memRepo{entries: []Entry{
		saleEntry(uuid.New(), "Watch", "1180", "800", "380", "0", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)),
	}}
	h := NewHandler(newTestService(repo, nil, nil))

	w, env := serve(t, h, http.MethodGet, "/summary?from=2026-03-01&to=2026-03-02", "")
	require.Equal(t, http.StatusOK, w.Code)

	var s Summary
	require.NoError(t, json.Unmarshal(env.Data, &s))
	assert.True(t, d("1180").Equal(s.TotalRevenue))

	w, _ = serve(t, h, http.MethodGet, "/summary?from=2026-03-05&to=2026-03-01", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlerExportCSV(t *testing.T) {
	repo := &memRepo{entries: []Entry{saleEntry(uuid.New(), "Ring", "10", "1", "9", "0", time.Now())}}
	h := NewHandler(newTestService(repo, nil, nil))

	w, _ := serve(t, h, http.MethodGet, "/export.csv", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.Equal(t, 2, strings.Count(w.Body.String(), "\n"))
}

func TestHandlerArchiveDisabled(t *testing.T) {
	h := NewHandler(newTestService(&memRepo{}, nil, nil))

	w, _ := serve(t, h, http.MethodPost, "/export", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
