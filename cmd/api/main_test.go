package main

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/opulence/opulence-api/internal/config"
	"github.com/opulence/opulence-api/internal/domain/coupon"
	"github.com/opulence/opulence-api/internal/domain/ledger"
	"github.com/opulence/opulence-api/internal/domain/product"
	"github.com/opulence/opulence-api/internal/domain/user"
	"github.com/opulence/opulence-api/internal/pkg/jwt"
)

func testRouter(t *testing.T) (http.Handler, *jwt.Service) {
	t.Helper()
	jwtSvc := jwt.NewService("secret", time.Minute)
	cfg := &config.Config{AllowedOrigins: []string{"http://localhost:3000"}}
	ledgerHandler := ledger.NewHandler(ledger.NewService(nil, nil, nil))
	couponHandler := coupon.NewHandler(coupon.NewService(nil, nil, coupon.Engine{}, nil, nil))
	return newRouter(cfg, jwtSvc, ledgerHandler, couponHandler), jwtSvc
}

func TestRouterHealth(t *testing.T) {
	r, _ := testRouter(t)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}

func TestRouterProtectsAdminRoutes(t *testing.T) {
	r, jwtSvc := testRouter(t)

	customerToken, err := jwtSvc.GenerateAccessToken(uuid.New(), "customer", true)
	if err != nil {
		t.Fatalf("token gen failed: %v", err)
	}

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"ledger without token", http.MethodGet, "/api/v1/admin/ledger", "", http.StatusUnauthorized},
		{"ledger as customer", http.MethodGet, "/api/v1/admin/ledger/summary", customerToken, http.StatusForbidden},
		{"coupon admin as customer", http.MethodPost, "/api/v1/admin/coupons", customerToken, http.StatusForbidden},
		{"send as customer", http.MethodPost, "/api/v1/admin/coupons/" + uuid.NewString() + "/send", customerToken, http.StatusForbidden},
		{"validate without token", http.MethodPost, "/api/v1/coupons/validate", "", http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)
			if rr.Code != tc.want {
				t.Fatalf("expected status %d, got %d", tc.want, rr.Code)
			}
		})
	}
}

type fakeProductRepo struct {
	products []product.Product
}

func (f *fakeProductRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]product.Product, error) {
	return f.products, nil
}

func TestProductLookupAdapterKeysByID(t *testing.T) {
	p := product.Product{
		ID:        uuid.New(),
		Name:      "Silk Scarf",
		Price:     decimal.RequireFromString("120.00"),
		CostPrice: decimal.RequireFromString("45.00"),
	}
	adapter := &productLookupAdapter{repo: &fakeProductRepo{products: []product.Product{p}}}

	snaps, err := adapter.Snapshots(context.Background(), []uuid.UUID{p.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, ok := snaps[p.ID]
	if !ok {
		t.Fatalf("snapshot for %s missing", p.ID)
	}
	if got.Name != "Silk Scarf" || !got.CostPrice.Equal(p.CostPrice) {
		t.Fatalf("unexpected snapshot %+v", got)
	}
}

type fakeUserRepo struct {
	users []user.User
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return nil, user.ErrUserNotFound
}

func (f *fakeUserRepo) RandomVerifiedCustomers(ctx context.Context, exclude []uuid.UUID, limit int) ([]user.User, error) {
	return f.users, nil
}

func TestAudienceAdapterUsesDisplayName(t *testing.T) {
	repo := &fakeUserRepo{users: []user.User{
		{ID: uuid.New(), Email: "ada@example.com", FirstName: sql.NullString{String: "Ada", Valid: true}, LastName: sql.NullString{String: "Lovelace", Valid: true}},
		{ID: uuid.New(), Email: "grace@example.com"},
	}}
	adapter := &audienceAdapter{repo: repo}

	got, err := adapter.RandomVerifiedCustomers(context.Background(), nil, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 recipients, got %d", len(got))
	}
	if got[0].Name != "Ada Lovelace" || got[1].Name != "grace" {
		t.Fatalf("unexpected names %q, %q", got[0].Name, got[1].Name)
	}
}
