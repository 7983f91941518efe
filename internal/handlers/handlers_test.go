package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"family-fund-backend/internal/identity"
	"family-fund-backend/internal/middleware"
	"family-fund-backend/internal/models"
	"family-fund-backend/internal/notify"
	"family-fund-backend/internal/routes"
	"family-fund-backend/internal/testutil"
)

const adminEmail = "treasurer@family.test"

type user struct {
	id    uuid.UUID
	email string
}

type api struct {
	t      *testing.T
	db     *gorm.DB
	router *gin.Engine
}

func newAPI(t *testing.T) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	r := gin.New()
	routes.RegisterRoutes(r, routes.Deps{
		DB:       db,
		Notifier: notify.NewStore(db),
		Resolver: identity.NewResolver([]string{adminEmail}),
		Log:      zerolog.Nop(),
	})
	return &api{t: t, db: db, router: r}
}

func newUser(email string) user {
	return user{id: uuid.New(), email: email}
}

func (a *api) do(as *user, method, path string, body interface{}) (int, map[string]interface{}) {
	a.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		req.Header.Set(middleware.HeaderUserID, as.id.String())
		req.Header.Set(middleware.HeaderUserEmail, as.email)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	out := map[string]interface{}{}
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			a.t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w.Code, out
}

func (a *api) expect(as *user, method, path string, body interface{}, want int) map[string]interface{} {
	a.t.Helper()
	code, out := a.do(as, method, path, body)
	if code != want {
		a.t.Fatalf("%s %s: status = %d, want %d (body %v)", method, path, code, want, out)
	}
	return out
}

func field(m map[string]interface{}, keys ...string) interface{} {
	var v interface{} = m
	for _, k := range keys {
		obj, ok := v.(map[string]interface{})
		if !ok {
			return nil
		}
		v = obj[k]
	}
	return v
}

// contribute submits a remittance as member and has admin verify it.
func (a *api) contribute(member, admin *user, amount string) {
	a.t.Helper()
	out := a.expect(member, http.MethodPost, "/api/remittances", gin.H{"amount": amount, "note": "monthly"}, http.StatusCreated)
	id := field(out, "remittance", "id")
	a.expect(admin, http.MethodPost, fmt.Sprintf("/api/remittances/%v/verify", id), nil, http.StatusOK)
}

func (a *api) createBudget(as *user, title, price string, qty int) string {
	a.t.Helper()
	out := a.expect(as, http.MethodPost, "/api/budgets", gin.H{
		"title": title,
		"items": []gin.H{{"name": title, "unit_price": price, "quantity": qty}},
	}, http.StatusCreated)
	return field(out, "budget", "id").(string)
}

func TestHealthIsOpen(t *testing.T) {
	a := newAPI(t)
	out := a.expect(nil, http.MethodGet, "/api/health", nil, http.StatusOK)
	if out["status"] != "ok" {
		t.Fatalf("health = %v", out)
	}
}

func TestIdentityRequired(t *testing.T) {
	a := newAPI(t)
	a.expect(nil, http.MethodGet, "/api/ledger/balance", nil, http.StatusUnauthorized)

	req := httptest.NewRequest(http.MethodGet, "/api/ledger/balance", nil)
	req.Header.Set(middleware.HeaderUserID, "not-a-uuid")
	req.Header.Set(middleware.HeaderUserEmail, "x@family.test")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestIdentityProvisionsUser(t *testing.T) {
	a := newAPI(t)
	member := newUser("wanjiru@family.test")
	a.expect(&member, http.MethodGet, "/api/ledger/balance", nil, http.StatusOK)
	a.expect(&member, http.MethodGet, "/api/ledger/balance", nil, http.StatusOK)

	if n := testutil.Count(t, a.db, &models.User{}, "id = ?", member.id); n != 1 {
		t.Fatalf("users = %d, want 1", n)
	}
}

func TestBudgetFlowOverHTTP(t *testing.T) {
	a := newAPI(t)
	admin := newUser(adminEmail)
	member := newUser("kamau@family.test")

	a.contribute(&member, &admin, "1000.00")
	out := a.expect(&member, http.MethodGet, "/api/ledger/balance", nil, http.StatusOK)
	if out["formatted"] != "1000.00" {
		t.Fatalf("balance = %v, want 1000.00", out["formatted"])
	}

	id := a.createBudget(&member, "School fees", "300.00", 2)

	out = a.expect(&member, http.MethodGet, "/api/budgets/"+id, nil, http.StatusOK)
	if got := field(out, "budget", "amount"); got != float64(60000) {
		t.Fatalf("amount = %v, want 60000", got)
	}

	// Members cannot approve.
	a.expect(&member, http.MethodPost, "/api/budgets/"+id+"/approve", gin.H{}, http.StatusForbidden)

	out = a.expect(&admin, http.MethodPost, "/api/budgets/"+id+"/approve", gin.H{"allocated_amount": "600.00"}, http.StatusOK)
	if got := field(out, "budget", "status"); got != string(models.BudgetApproved) {
		t.Fatalf("status = %v, want APPROVED", got)
	}

	out = a.expect(&member, http.MethodGet, "/api/ledger/balance", nil, http.StatusOK)
	if out["formatted"] != "400.00" {
		t.Fatalf("balance = %v, want 400.00", out["formatted"])
	}

	// Approving twice is an illegal transition.
	out = a.expect(&admin, http.MethodPost, "/api/budgets/"+id+"/approve", gin.H{}, http.StatusConflict)
	if out["from"] != string(models.BudgetApproved) {
		t.Fatalf("conflict body = %v", out)
	}

	out = a.expect(&member, http.MethodGet, "/api/notifications", nil, http.StatusOK)
	if list, _ := out["data"].([]interface{}); len(list) == 0 {
		t.Fatal("owner has no notifications after approval")
	}
}

func TestInsufficientFundsIs402(t *testing.T) {
	a := newAPI(t)
	admin := newUser(adminEmail)
	member := newUser("kamau@family.test")

	a.contribute(&member, &admin, "400.00")
	id := a.createBudget(&member, "Roof", "700.00", 1)

	out := a.expect(&admin, http.MethodPost, "/api/budgets/"+id+"/approve", gin.H{}, http.StatusPaymentRequired)
	if out["balance"] != "400.00" || out["requested"] != "700.00" {
		t.Fatalf("402 body = %v", out)
	}

	out = a.expect(&member, http.MethodGet, "/api/budgets/"+id, nil, http.StatusOK)
	if got := field(out, "budget", "status"); got != string(models.BudgetPending) {
		t.Fatalf("status = %v, want PENDING", got)
	}
}

func TestExpenditureWithSupplementary(t *testing.T) {
	a := newAPI(t)
	admin := newUser(adminEmail)
	member := newUser("kamau@family.test")

	a.contribute(&member, &admin, "1000.00")
	id := a.createBudget(&member, "Uniforms", "50.00", 4)
	a.expect(&admin, http.MethodPost, "/api/budgets/"+id+"/approve", gin.H{}, http.StatusOK)

	out := a.expect(&member, http.MethodGet, "/api/budgets/"+id, nil, http.StatusOK)
	items := field(out, "budget", "items").([]interface{})
	itemID := items[0].(map[string]interface{})["id"]

	out = a.expect(&member, http.MethodPost, "/api/budgets/"+id+"/expenditures", gin.H{
		"title":                 "Uniform purchase",
		"items":                 []gin.H{{"budget_item_id": itemID, "amount": "60.00"}},
		"request_supplementary": true,
	}, http.StatusCreated)
	if got := field(out, "result", "overage"); got != float64(1000) {
		t.Fatalf("overage = %v, want 1000", got)
	}
	suppID := field(out, "result", "supplementary", "id")
	if suppID == nil {
		t.Fatal("no supplementary request created")
	}

	a.expect(&admin, http.MethodPost, fmt.Sprintf("/api/supplementary/%v/approve", suppID), nil, http.StatusOK)
	out = a.expect(&admin, http.MethodPost, fmt.Sprintf("/api/supplementary/%v/approve", suppID), nil, http.StatusConflict)
	if out["status"] != string(models.SupplementaryApproved) {
		t.Fatalf("second approval body = %v", out)
	}

	out = a.expect(&member, http.MethodGet, "/api/ledger/balance", nil, http.StatusOK)
	if out["formatted"] != "790.00" {
		t.Fatalf("balance = %v, want 790.00", out["formatted"])
	}
}

func TestForeignLineItemIs422(t *testing.T) {
	a := newAPI(t)
	admin := newUser(adminEmail)
	member := newUser("kamau@family.test")

	a.contribute(&member, &admin, "1000.00")
	id := a.createBudget(&member, "Books", "20.00", 5)
	a.expect(&admin, http.MethodPost, "/api/budgets/"+id+"/approve", gin.H{}, http.StatusOK)

	out := a.expect(&member, http.MethodPost, "/api/budgets/"+id+"/expenditures", gin.H{
		"title": "Books",
		"items": []gin.H{{"budget_item_id": uuid.NewString(), "amount": "20.00"}},
	}, http.StatusUnprocessableEntity)
	if out["item_id"] == nil {
		t.Fatalf("422 body = %v", out)
	}
}

func TestBadAmountIs400(t *testing.T) {
	a := newAPI(t)
	member := newUser("kamau@family.test")
	a.expect(&member, http.MethodPost, "/api/remittances", gin.H{"amount": "12.345"}, http.StatusBadRequest)
	a.expect(&member, http.MethodPost, "/api/remittances", gin.H{"amount": "ten"}, http.StatusBadRequest)
	a.expect(&member, http.MethodGet, "/api/budgets/not-a-uuid", nil, http.StatusBadRequest)
	a.expect(&member, http.MethodGet, "/api/budgets/"+uuid.NewString(), nil, http.StatusNotFound)
}

func TestDeleteUserOverHTTP(t *testing.T) {
	a := newAPI(t)
	admin := newUser(adminEmail)
	member := newUser("kamau@family.test")

	a.contribute(&member, &admin, "100.00")
	a.createBudget(&member, "Rent", "10.00", 1)

	path := "/api/users/" + member.id.String()
	out := a.expect(&admin, http.MethodGet, path+"/dependents", nil, http.StatusOK)
	if total, _ := out["total"].(float64); total == 0 {
		t.Fatalf("dependents = %v", out)
	}

	a.expect(&member, http.MethodDelete, path, nil, http.StatusForbidden)

	out = a.expect(&admin, http.MethodDelete, path, nil, http.StatusConflict)
	if out["counts"] == nil {
		t.Fatalf("409 body = %v", out)
	}

	a.expect(&admin, http.MethodDelete, path+"?force=true", nil, http.StatusOK)
	if n := testutil.Count(t, a.db, &models.Budget{}, ""); n != 0 {
		t.Fatalf("budgets left = %d", n)
	}
	a.expect(&admin, http.MethodGet, path+"/dependents", nil, http.StatusNotFound)

	// The gateway may still vouch for the removed user.
	a.expect(&member, http.MethodGet, "/api/ledger/balance", nil, http.StatusUnauthorized)
	if n := testutil.Count(t, a.db, &models.User{}, "id = ?", member.id); n != 0 {
		t.Fatalf("deleted user was provisioned again")
	}
}

func TestIdentityEmailHeldByAnotherUser(t *testing.T) {
	a := newAPI(t)
	first := newUser("njeri@family.test")
	a.expect(&first, http.MethodGet, "/api/ledger/balance", nil, http.StatusOK)

	impostor := newUser("NJERI@family.test")
	out := a.expect(&impostor, http.MethodPost, "/api/budgets", gin.H{
		"title": "Trip",
		"items": []gin.H{{"name": "Bus", "unit_price": "10.00", "quantity": 1}},
	}, http.StatusConflict)
	if out["error"] == nil {
		t.Fatalf("409 body = %v", out)
	}
	if n := testutil.Count(t, a.db, &models.Budget{}, ""); n != 0 {
		t.Fatalf("budgets = %d, want 0", n)
	}
}
