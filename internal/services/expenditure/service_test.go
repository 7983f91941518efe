package expenditure_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"family-fund-backend/internal/apperrors"
	"family-fund-backend/internal/identity"
	"family-fund-backend/internal/models"
	"family-fund-backend/internal/services/expenditure"
	"family-fund-backend/internal/testutil"
)

type fixture struct {
	db     *gorm.DB
	svc    *expenditure.Service
	rec    *testutil.Recorder
	admin  identity.Caller
	member identity.Caller
	other  identity.Caller
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	rec := &testutil.Recorder{}
	admin := testutil.CreateUser(t, db, "Treasurer")
	member := testutil.CreateUser(t, db, "Otieno")
	other := testutil.CreateUser(t, db, "Njeri")
	return &fixture{
		db:     db,
		svc:    expenditure.NewService(db, rec, zerolog.Nop()),
		rec:    rec,
		admin:  identity.Caller{ID: admin.ID, Email: admin.Email, Role: identity.RoleAdmin},
		member: identity.Caller{ID: member.ID, Email: member.Email, Role: identity.RoleMember},
		other:  identity.Caller{ID: other.ID, Email: other.Email, Role: identity.RoleMember},
	}
}

// budget stores a budget owned by the member with one item per unit price.
func (f *fixture) budget(t *testing.T, status models.BudgetStatus, prices ...int64) (models.Budget, []models.BudgetItem) {
	t.Helper()
	b := models.Budget{ID: uuid.New(), Title: "Household", Status: status, CreatorID: f.member.ID}
	items := make([]models.BudgetItem, len(prices))
	for i, p := range prices {
		items[i] = models.BudgetItem{ID: uuid.New(), BudgetID: b.ID, Name: "item", UnitPrice: p, Quantity: 1}
		b.Amount += p
	}
	b.AllocatedAmount = b.Amount
	if err := f.db.Create(&b).Error; err != nil {
		t.Fatal(err)
	}
	if len(items) > 0 {
		if err := f.db.Create(&items).Error; err != nil {
			t.Fatal(err)
		}
	}
	return b, items
}

func amount(n int64) *int64 { return &n }

// Overspend on an item priced 5,000 raises a 2,000 request in
// the same unit of work.
func TestCreate_OverageRaisesSupplementary(t *testing.T) {
	f := setup(t)
	b, items := f.budget(t, models.BudgetApproved, 5000)

	res, err := f.svc.Create(context.Background(), f.member, expenditure.CreateRequest{
		BudgetID:             b.ID,
		Title:                "School shoes",
		Items:                []expenditure.LineInput{{BudgetItemID: items[0].ID, Amount: 7000}},
		RequestSupplementary: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Overage != 2000 || res.Expenditure.Amount != 7000 {
		t.Errorf("overage = %d amount = %d", res.Overage, res.Expenditure.Amount)
	}
	if res.Supplementary == nil {
		t.Fatal("no supplementary request created")
	}

	var stored models.SupplementaryRequest
	if err := f.db.First(&stored, "expenditure_id = ?", res.Expenditure.ID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.Amount != 2000 || stored.Status != models.SupplementaryPending || stored.BudgetID != b.ID {
		t.Errorf("stored request = %+v", stored)
	}
	if n := testutil.Count(t, f.db, &models.ExpenditureItem{}, "expenditure_id = ?", res.Expenditure.ID); n != 1 {
		t.Errorf("expenditure items = %d, want 1", n)
	}
}

func TestCreate_NoSupplementaryWithoutOptIn(t *testing.T) {
	f := setup(t)
	b, items := f.budget(t, models.BudgetDisbursed, 5000)

	res, err := f.svc.Create(context.Background(), f.member, expenditure.CreateRequest{
		BudgetID: b.ID,
		Title:    "School shoes",
		Items:    []expenditure.LineInput{{BudgetItemID: items[0].ID, Amount: 7000}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Overage != 2000 || res.Supplementary != nil {
		t.Errorf("overage = %d supplementary = %v", res.Overage, res.Supplementary)
	}
	if n := testutil.Count(t, f.db, &models.SupplementaryRequest{}, ""); n != 0 {
		t.Errorf("requests = %d, want 0", n)
	}
}

func TestCreate_InvalidLineItemWritesNothing(t *testing.T) {
	f := setup(t)
	b, items := f.budget(t, models.BudgetApproved, 5000)
	_, foreign := f.budget(t, models.BudgetApproved, 900)

	_, err := f.svc.Create(context.Background(), f.member, expenditure.CreateRequest{
		BudgetID: b.ID,
		Title:    "Mixed receipts",
		Items: []expenditure.LineInput{
			{BudgetItemID: items[0].ID, Amount: 9000},
			{BudgetItemID: foreign[0].ID, Amount: 100},
		},
		RequestSupplementary: true,
	})
	var invalid *apperrors.InvalidLineItemError
	if !errors.As(err, &invalid) {
		t.Fatalf("error = %v, want InvalidLineItemError", err)
	}
	for _, model := range []interface{}{&models.Expenditure{}, &models.ExpenditureItem{}, &models.SupplementaryRequest{}, &models.AuditLog{}} {
		if n := testutil.Count(t, f.db, model, ""); n != 0 {
			t.Errorf("%T rows = %d, want 0", model, n)
		}
	}
}

func TestCreate_ExplicitAmountMustMatch(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	b, items := f.budget(t, models.BudgetApproved, 5000, 3000)
	lines := []expenditure.LineInput{
		{BudgetItemID: items[0].ID, Amount: 4000},
		{BudgetItemID: items[1].ID, Amount: 3000},
	}

	var invalid *apperrors.ValidationError
	_, err := f.svc.Create(ctx, f.member, expenditure.CreateRequest{BudgetID: b.ID, Title: "Groceries", Amount: amount(6000), Items: lines})
	if !errors.As(err, &invalid) || invalid.Field != "amount" {
		t.Fatalf("error = %v, want ValidationError on amount", err)
	}

	res, err := f.svc.Create(ctx, f.member, expenditure.CreateRequest{BudgetID: b.ID, Title: "Groceries", Amount: amount(7000), Items: lines})
	if err != nil {
		t.Fatal(err)
	}
	if res.Expenditure.Amount != 7000 || res.Overage != 0 {
		t.Errorf("amount = %d overage = %d", res.Expenditure.Amount, res.Overage)
	}
}

func TestCreate_Guards(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	pending, pendingItems := f.budget(t, models.BudgetPending, 1000)
	approved, approvedItems := f.budget(t, models.BudgetApproved, 1000)

	var invalid *apperrors.ValidationError
	_, err := f.svc.Create(ctx, f.member, expenditure.CreateRequest{
		BudgetID: pending.ID, Title: "Early", Items: []expenditure.LineInput{{BudgetItemID: pendingItems[0].ID, Amount: 10}},
	})
	if !errors.As(err, &invalid) {
		t.Errorf("pending budget error = %v, want ValidationError", err)
	}

	var forbidden *apperrors.ForbiddenError
	_, err = f.svc.Create(ctx, f.other, expenditure.CreateRequest{
		BudgetID: approved.ID, Title: "Not mine", Items: []expenditure.LineInput{{BudgetItemID: approvedItems[0].ID, Amount: 10}},
	})
	if !errors.As(err, &forbidden) {
		t.Errorf("stranger error = %v, want ForbiddenError", err)
	}

	if _, err := f.svc.Create(ctx, f.member, expenditure.CreateRequest{BudgetID: approved.ID, Items: []expenditure.LineInput{{BudgetItemID: approvedItems[0].ID, Amount: 10}}}); !errors.As(err, &invalid) {
		t.Errorf("missing title error = %v, want ValidationError", err)
	}
}

func TestCreate_AdminOverageNotifiesOwner(t *testing.T) {
	f := setup(t)
	b, items := f.budget(t, models.BudgetApproved, 1000)

	res, err := f.svc.Create(context.Background(), f.admin, expenditure.CreateRequest{
		BudgetID:             b.ID,
		Title:                "Paid on behalf",
		Items:                []expenditure.LineInput{{BudgetItemID: items[0].ID, Amount: 1500}},
		RequestSupplementary: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Supplementary == nil || res.Supplementary.RequesterID != f.admin.ID {
		t.Fatalf("supplementary = %+v", res.Supplementary)
	}
	if sent := f.rec.For(f.member.ID); len(sent) != 1 {
		t.Errorf("owner notifications = %d, want 1", len(sent))
	}
}

func TestReview(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	b, items := f.budget(t, models.BudgetApproved, 2000)
	res, err := f.svc.Create(ctx, f.member, expenditure.CreateRequest{
		BudgetID: b.ID, Title: "Gas refill", Items: []expenditure.LineInput{{BudgetItemID: items[0].ID, Amount: 1800}},
	})
	if err != nil {
		t.Fatal(err)
	}
	id := res.Expenditure.ID

	var forbidden *apperrors.ForbiddenError
	if _, err := f.svc.Review(ctx, f.member, id, true, ""); !errors.As(err, &forbidden) {
		t.Errorf("member review error = %v, want ForbiddenError", err)
	}

	got, err := f.svc.Review(ctx, f.admin, id, true, "receipts checked")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.ExpenditureApproved || got.ReviewerID == nil || len(got.Items) != 1 {
		t.Errorf("reviewed = %+v", got)
	}

	var processed *apperrors.AlreadyProcessedError
	if _, err := f.svc.Review(ctx, f.admin, id, false, ""); !errors.As(err, &processed) {
		t.Errorf("second review error = %v, want AlreadyProcessedError", err)
	}
	if sent := f.rec.For(f.member.ID); len(sent) != 1 || sent[0].Title != "Expenditure approved" {
		t.Errorf("notifications = %+v", sent)
	}

	if _, err := f.svc.Get(ctx, f.other, id); !errors.As(err, &forbidden) {
		t.Errorf("stranger get error = %v, want ForbiddenError", err)
	}
	list, err := f.svc.ForBudget(ctx, f.member, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("ForBudget = %d, want 1", len(list))
	}
}
