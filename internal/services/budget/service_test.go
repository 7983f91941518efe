package budget_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"testing/quick"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"family-fund-backend/internal/apperrors"
	"family-fund-backend/internal/identity"
	"family-fund-backend/internal/models"
	"family-fund-backend/internal/repository"
	"family-fund-backend/internal/services/budget"
	"family-fund-backend/internal/services/ledger"
	"family-fund-backend/internal/testutil"
)

type fixture struct {
	db     *gorm.DB
	ledger *ledger.Store
	svc    *budget.Service
	rec    *testutil.Recorder
	admin  identity.Caller
	member identity.Caller
	other  identity.Caller
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	store := ledger.NewStore(db, zerolog.Nop())
	rec := &testutil.Recorder{}

	admin := testutil.CreateUser(t, db, "Treasurer")
	member := testutil.CreateUser(t, db, "Amina")
	other := testutil.CreateUser(t, db, "Baraka")

	return &fixture{
		db:     db,
		ledger: store,
		svc:    budget.NewService(db, store, rec, zerolog.Nop()),
		rec:    rec,
		admin:  identity.Caller{ID: admin.ID, Email: admin.Email, Role: identity.RoleAdmin},
		member: identity.Caller{ID: member.ID, Email: member.Email, Role: identity.RoleMember},
		other:  identity.Caller{ID: other.ID, Email: other.Email, Role: identity.RoleMember},
	}
}

func (f *fixture) fund(t *testing.T, amount int64) {
	t.Helper()
	err := f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.ledger.Credit(tx, amount, ledger.Cause{EntityType: "remittance", EntityID: uuid.New()})
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) balance(t *testing.T) int64 {
	t.Helper()
	b, err := f.ledger.Balance(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func (f *fixture) create(t *testing.T, items ...budget.ItemInput) *models.Budget {
	t.Helper()
	if len(items) == 0 {
		items = []budget.ItemInput{{Name: "Uniforms", UnitPrice: 5000, Quantity: 2}}
	}
	b, err := f.svc.Create(context.Background(), f.member, budget.CreateRequest{Title: "School term", Items: items})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func allocate(n int64) *int64 { return &n }

// budgetIn drives a fresh budget into the given status through the service.
func (f *fixture) budgetIn(t *testing.T, status models.BudgetStatus) *models.Budget {
	t.Helper()
	ctx := context.Background()
	b := f.create(t)

	var err error
	switch status {
	case models.BudgetPending:
	case models.BudgetRevisionRequested:
		_, err = f.svc.RequestRevision(ctx, f.admin, b.ID, "Please split transport costs.")
	case models.BudgetRejected:
		_, err = f.svc.Reject(ctx, f.admin, b.ID, "not now")
	case models.BudgetRevoked:
		_, err = f.svc.Revoke(ctx, f.member, b.ID, "plans changed")
	case models.BudgetApproved, models.BudgetPartiallyDisbursed, models.BudgetDisbursed:
		f.fund(t, b.Amount)
		if _, err = f.svc.Approve(ctx, f.admin, b.ID, budget.ApproveRequest{}); err != nil {
			break
		}
		switch status {
		case models.BudgetPartiallyDisbursed:
			_, err = f.svc.Disburse(ctx, f.admin, b.ID, budget.DisburseRequest{Amount: b.Amount / 2})
		case models.BudgetDisbursed:
			_, err = f.svc.Disburse(ctx, f.admin, b.ID, budget.DisburseRequest{Amount: b.Amount})
		}
	}
	if err != nil {
		t.Fatalf("drive budget to %s: %v", status, err)
	}

	got := f.reload(t, b.ID)
	if got.Status != status {
		t.Fatalf("budget is %s, want %s", got.Status, status)
	}
	return got
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *models.Budget {
	t.Helper()
	var b models.Budget
	if err := f.db.First(&b, "id = ?", id).Error; err != nil {
		t.Fatal(err)
	}
	return &b
}

func TestCreate_AmountIsSumOfItems(t *testing.T) {
	f := setup(t)
	b := f.create(t,
		budget.ItemInput{Name: "Books", UnitPrice: 1250, Quantity: 4},
		budget.ItemInput{Name: "Bag", UnitPrice: 3000, Quantity: 1},
	)

	if b.Amount != 8000 {
		t.Errorf("Amount = %d, want 8000", b.Amount)
	}
	if b.Status != models.BudgetPending || b.Priority != models.PriorityMedium {
		t.Errorf("Status/Priority = %s/%s", b.Status, b.Priority)
	}
	if n := testutil.Count(t, f.db, &models.BudgetItem{}, "budget_id = ?", b.ID); n != 2 {
		t.Errorf("items = %d, want 2", n)
	}
}

func TestCreate_Validation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	cases := []budget.CreateRequest{
		{Title: "", Items: []budget.ItemInput{{Name: "x", UnitPrice: 1, Quantity: 1}}},
		{Title: "No items"},
		{Title: "Zero price", Items: []budget.ItemInput{{Name: "x", UnitPrice: 0, Quantity: 1}}},
		{Title: "Zero qty", Items: []budget.ItemInput{{Name: "x", UnitPrice: 10, Quantity: 0}}},
		{Title: "Bad priority", Priority: "SOMEDAY", Items: []budget.ItemInput{{Name: "x", UnitPrice: 10, Quantity: 1}}},
	}
	for _, req := range cases {
		_, err := f.svc.Create(ctx, f.member, req)
		var invalid *apperrors.ValidationError
		if !errors.As(err, &invalid) {
			t.Errorf("Create(%q) error = %v, want ValidationError", req.Title, err)
		}
	}
	if n := testutil.Count(t, f.db, &models.Budget{}, ""); n != 0 {
		t.Errorf("budgets = %d, want 0", n)
	}
}

func TestCreate_RejectsOverflowingTotals(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	cases := []budget.CreateRequest{
		{Title: "Line overflow", Items: []budget.ItemInput{{Name: "x", UnitPrice: 1 << 52, Quantity: 4097}}},
		{Title: "Sum overflow", Items: []budget.ItemInput{
			{Name: "a", UnitPrice: 1 << 52, Quantity: 2},
			{Name: "b", UnitPrice: 1, Quantity: 1},
		}},
	}
	for _, req := range cases {
		_, err := f.svc.Create(ctx, f.member, req)
		var invalid *apperrors.ValidationError
		if !errors.As(err, &invalid) {
			t.Errorf("Create(%q) error = %v, want ValidationError", req.Title, err)
		}
	}
	if n := testutil.Count(t, f.db, &models.Budget{}, ""); n != 0 {
		t.Errorf("budgets = %d, want 0", n)
	}
}

func TestUpdateItems(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	b := f.create(t)

	got, err := f.svc.UpdateItems(ctx, f.member, b.ID, []budget.ItemInput{
		{Name: "Shoes", UnitPrice: 2500, Quantity: 2},
		{Name: "Socks", UnitPrice: 300, Quantity: 5},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.Amount != 6500 || len(got.Items) != 2 {
		t.Errorf("Amount = %d items = %d", got.Amount, len(got.Items))
	}

	var forbidden *apperrors.ForbiddenError
	if _, err := f.svc.UpdateItems(ctx, f.other, b.ID, []budget.ItemInput{{Name: "x", UnitPrice: 1, Quantity: 1}}); !errors.As(err, &forbidden) {
		t.Errorf("non-owner UpdateItems error = %v, want ForbiddenError", err)
	}

	approved := f.budgetIn(t, models.BudgetApproved)
	var invalid *apperrors.InvalidStateTransitionError
	if _, err := f.svc.UpdateItems(ctx, f.member, approved.ID, []budget.ItemInput{{Name: "x", UnitPrice: 1, Quantity: 1}}); !errors.As(err, &invalid) {
		t.Errorf("UpdateItems on APPROVED error = %v, want InvalidStateTransitionError", err)
	}
}

// Approval debits the pool, a second approval that does
// not fit fails and leaves everything as it was.
func TestApprove_DebitsLedgerAtomically(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.fund(t, 100000)

	first := f.create(t, budget.ItemInput{Name: "Rent", UnitPrice: 60000, Quantity: 1})
	got, err := f.svc.Approve(ctx, f.admin, first.ID, budget.ApproveRequest{AllocatedAmount: allocate(60000)})
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.BudgetApproved || got.AllocatedAmount != 60000 {
		t.Errorf("budget = %s / %d", got.Status, got.AllocatedAmount)
	}
	if got.ApproverID == nil || *got.ApproverID != f.admin.ID || got.ApprovedAt == nil {
		t.Errorf("approver not stamped: %v %v", got.ApproverID, got.ApprovedAt)
	}
	if bal := f.balance(t); bal != 40000 {
		t.Errorf("balance = %d, want 40000", bal)
	}

	second := f.create(t, budget.ItemInput{Name: "Car repair", UnitPrice: 50000, Quantity: 1})
	_, err = f.svc.Approve(ctx, f.admin, second.ID, budget.ApproveRequest{AllocatedAmount: allocate(50000)})
	var insufficient *apperrors.InsufficientFundsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("second approval error = %v, want InsufficientFundsError", err)
	}
	if insufficient.Balance != 40000 || insufficient.Requested != 50000 {
		t.Errorf("error detail = %+v", insufficient)
	}
	if bal := f.balance(t); bal != 40000 {
		t.Errorf("balance = %d, want 40000", bal)
	}
	after := f.reload(t, second.ID)
	if after.Status != models.BudgetPending || after.AllocatedAmount != 0 || after.ApproverID != nil {
		t.Errorf("failed approval mutated budget: %+v", after)
	}
	if n := testutil.Count(t, f.db, &models.AuditLog{}, "entity_id = ? AND action = ?", second.ID, budget.ActionApproved); n != 0 {
		t.Errorf("approval audit rows = %d, want 0", n)
	}
}

func TestApprove_DefaultsToAmountAndAuditsOnce(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	b := f.create(t)
	f.fund(t, b.Amount)

	got, err := f.svc.Approve(ctx, f.admin, b.ID, budget.ApproveRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if got.AllocatedAmount != b.Amount || got.DisbursementType != models.DisbursementFull {
		t.Errorf("allocated %d type %s", got.AllocatedAmount, got.DisbursementType)
	}

	var logs []models.AuditLog
	f.db.Where("entity_type = ? AND entity_id = ? AND action = ?", budget.EntityType, b.ID, budget.ActionApproved).Find(&logs)
	if len(logs) != 1 {
		t.Fatalf("approval audit rows = %d, want 1", len(logs))
	}
	var changes map[string]interface{}
	if err := json.Unmarshal(logs[0].Changes, &changes); err != nil {
		t.Fatal(err)
	}
	if changes["from"] != "PENDING" || changes["to"] != "APPROVED" || changes["actor"] != f.admin.ID.String() {
		t.Errorf("changes = %v", changes)
	}

	sent := f.rec.For(f.member.ID)
	if len(sent) != 1 || sent[0].Title != "Budget approved" {
		t.Errorf("owner notifications = %+v", sent)
	}
}

func TestApprove_RequiresAdmin(t *testing.T) {
	f := setup(t)
	b := f.create(t)
	f.fund(t, b.Amount)

	var forbidden *apperrors.ForbiddenError
	if _, err := f.svc.Approve(context.Background(), f.member, b.ID, budget.ApproveRequest{}); !errors.As(err, &forbidden) {
		t.Fatalf("error = %v, want ForbiddenError", err)
	}
	if bal := f.balance(t); bal != b.Amount {
		t.Errorf("balance = %d, want %d", bal, b.Amount)
	}
}

func TestApprove_NotifierFailureDoesNotFailApproval(t *testing.T) {
	f := setup(t)
	f.rec.Err = errors.New("push gateway down")
	b := f.create(t)
	f.fund(t, b.Amount)

	if _, err := f.svc.Approve(context.Background(), f.admin, b.ID, budget.ApproveRequest{}); err != nil {
		t.Fatalf("Approve error = %v", err)
	}
	if got := f.reload(t, b.ID); got.Status != models.BudgetApproved {
		t.Errorf("status = %s", got.Status)
	}
}

func TestNotFound(t *testing.T) {
	f := setup(t)
	_, err := f.svc.Approve(context.Background(), f.admin, uuid.New(), budget.ApproveRequest{})
	var missing *apperrors.NotFoundError
	if !errors.As(err, &missing) || missing.Entity != "budget" {
		t.Errorf("error = %v, want NotFoundError", err)
	}
}

type snapshot struct {
	budget       models.Budget
	balance      int64
	audits       int64
	transactions int64
	batches      int64
	revisions    int64
}

func (f *fixture) snapshot(t *testing.T, id uuid.UUID) snapshot {
	t.Helper()
	return snapshot{
		budget:       *f.reload(t, id),
		balance:      f.balance(t),
		audits:       testutil.Count(t, f.db, &models.AuditLog{}, ""),
		transactions: testutil.Count(t, f.db, &models.Transaction{}, ""),
		batches:      testutil.Count(t, f.db, &models.Batch{}, "budget_id = ?", id),
		revisions:    testutil.Count(t, f.db, &models.BudgetRevision{}, "budget_id = ?", id),
	}
}

func (s snapshot) equal(o snapshot) bool {
	a, b := s.budget, o.budget
	return a.Status == b.Status &&
		a.Amount == b.Amount &&
		a.AllocatedAmount == b.AllocatedAmount &&
		a.UpdatedAt.Equal(b.UpdatedAt) &&
		s.balance == o.balance &&
		s.audits == o.audits &&
		s.transactions == o.transactions &&
		s.batches == o.batches &&
		s.revisions == o.revisions
}

// Every (from, to) pair outside the transition table fails without
// touching budget, ledger or audit trail.
func TestIllegalTransitionsMutateNothing(t *testing.T) {
	ctx := context.Background()

	ops := map[models.BudgetStatus]func(f *fixture, id uuid.UUID) error{
		models.BudgetApproved: func(f *fixture, id uuid.UUID) error {
			_, err := f.svc.Approve(ctx, f.admin, id, budget.ApproveRequest{})
			return err
		},
		models.BudgetRejected: func(f *fixture, id uuid.UUID) error {
			_, err := f.svc.Reject(ctx, f.admin, id, "no")
			return err
		},
		models.BudgetRevisionRequested: func(f *fixture, id uuid.UUID) error {
			_, err := f.svc.RequestRevision(ctx, f.admin, id, "Please add receipts for each item.")
			return err
		},
		models.BudgetPending: func(f *fixture, id uuid.UUID) error {
			_, err := f.svc.Resubmit(ctx, f.member, id, nil)
			return err
		},
		models.BudgetRevoked: func(f *fixture, id uuid.UUID) error {
			_, err := f.svc.Revoke(ctx, f.member, id, "no longer needed")
			return err
		},
		models.BudgetPartiallyDisbursed: func(f *fixture, id uuid.UUID) error {
			_, err := f.svc.Disburse(ctx, f.admin, id, budget.DisburseRequest{Amount: 1})
			return err
		},
		models.BudgetDisbursed: func(f *fixture, id uuid.UUID) error {
			_, err := f.svc.Disburse(ctx, f.admin, id, budget.DisburseRequest{Amount: 1})
			return err
		},
	}

	for _, from := range budget.Statuses {
		for _, to := range budget.Statuses {
			if budget.CanTransition(from, to) {
				continue
			}
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				f := setup(t)
				b := f.budgetIn(t, from)
				f.fund(t, 1000000)

				before := f.snapshot(t, b.ID)
				err := ops[to](f, b.ID)

				var invalid *apperrors.InvalidStateTransitionError
				if !errors.As(err, &invalid) {
					t.Fatalf("error = %v, want InvalidStateTransitionError", err)
				}
				if invalid.From != string(from) {
					t.Errorf("From = %s, want %s", invalid.From, from)
				}
				if after := f.snapshot(t, b.ID); !before.equal(after) {
					t.Errorf("state mutated:\nbefore %+v\nafter  %+v", before, after)
				}
			})
		}
	}
}

func TestRequestRevisionAndResubmit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	b := f.create(t)

	var invalid *apperrors.ValidationError
	if _, err := f.svc.RequestRevision(ctx, f.admin, b.ID, "  too short "); !errors.As(err, &invalid) {
		t.Fatalf("short reason error = %v, want ValidationError", err)
	}

	got, err := f.svc.RequestRevision(ctx, f.admin, b.ID, "Please split the transport costs per child.")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.BudgetRevisionRequested {
		t.Fatalf("status = %s", got.Status)
	}

	var forbidden *apperrors.ForbiddenError
	if _, err := f.svc.Resubmit(ctx, f.other, b.ID, nil); !errors.As(err, &forbidden) {
		t.Errorf("non-owner resubmit error = %v, want ForbiddenError", err)
	}

	got, err = f.svc.Resubmit(ctx, f.member, b.ID, []budget.ItemInput{
		{Name: "Transport child A", UnitPrice: 1500, Quantity: 20},
		{Name: "Transport child B", UnitPrice: 1500, Quantity: 20},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.BudgetPending || got.Amount != 60000 {
		t.Errorf("after resubmit: %s %d", got.Status, got.Amount)
	}

	revs, err := f.svc.Revisions(ctx, f.member, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Revisions(ctx, f.other, b.ID); !errors.As(err, &forbidden) {
		t.Errorf("non-owner revisions error = %v, want ForbiddenError", err)
	}
	if len(revs) != 1 || revs[0].Status != models.RevisionAddressed || revs[0].RequestedBy != f.admin.ID {
		t.Errorf("revisions = %+v", revs)
	}
}

func TestRevoke_WritesOffWithoutRefund(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	b := f.budgetIn(t, models.BudgetPartiallyDisbursed)
	balance := f.balance(t)

	var invalid *apperrors.ValidationError
	if _, err := f.svc.Revoke(ctx, f.admin, b.ID, " "); !errors.As(err, &invalid) {
		t.Fatalf("blank reason error = %v, want ValidationError", err)
	}
	var forbidden *apperrors.ForbiddenError
	if _, err := f.svc.Revoke(ctx, f.other, b.ID, "not mine"); !errors.As(err, &forbidden) {
		t.Fatalf("stranger revoke error = %v, want ForbiddenError", err)
	}

	got, err := f.svc.Revoke(ctx, f.admin, b.ID, "family decided to postpone")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.BudgetRevoked {
		t.Fatalf("status = %s", got.Status)
	}
	if bal := f.balance(t); bal != balance {
		t.Errorf("balance = %d, want unchanged %d", bal, balance)
	}

	var entry models.AuditLog
	if err := f.db.Where("entity_id = ? AND action = ?", b.ID, budget.ActionRevoked).First(&entry).Error; err != nil {
		t.Fatal(err)
	}
	var changes map[string]interface{}
	json.Unmarshal(entry.Changes, &changes)
	want := float64(b.AllocatedAmount - b.AllocatedAmount/2)
	if changes["unreleased"] != want {
		t.Errorf("unreleased = %v, want %v", changes["unreleased"], want)
	}
}

func TestDisburse(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	b := f.create(t, budget.ItemInput{Name: "Fees", UnitPrice: 30000, Quantity: 1})
	f.fund(t, 30000)
	if _, err := f.svc.Approve(ctx, f.admin, b.ID, budget.ApproveRequest{}); err != nil {
		t.Fatal(err)
	}

	res, err := f.svc.Disburse(ctx, f.admin, b.ID, budget.DisburseRequest{Amount: 10000, Method: "mpesa", Reference: "QX1"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Budget.Status != models.BudgetPartiallyDisbursed || res.Completed != 10000 || res.Remaining != 20000 {
		t.Errorf("after first: %s completed %d remaining %d", res.Budget.Status, res.Completed, res.Remaining)
	}

	_, err = f.svc.Disburse(ctx, f.admin, b.ID, budget.DisburseRequest{Amount: 25000})
	var exceeds *apperrors.ExceedsAllocationError
	if !errors.As(err, &exceeds) || exceeds.Remaining != 20000 {
		t.Fatalf("over-disbursement error = %v", err)
	}

	res, err = f.svc.Disburse(ctx, f.admin, b.ID, budget.DisburseRequest{Amount: 20000})
	if err != nil {
		t.Fatal(err)
	}
	if res.Budget.Status != models.BudgetDisbursed || res.Remaining != 0 {
		t.Errorf("after final: %s remaining %d", res.Budget.Status, res.Remaining)
	}
	if bal := f.balance(t); bal != 0 {
		t.Errorf("disbursement touched the ledger: balance %d", bal)
	}
	if sent := f.rec.For(f.member.ID); len(sent) != 3 {
		t.Errorf("owner notifications = %d, want 3", len(sent))
	}

	activity, err := f.svc.Activity(ctx, f.member, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	var payouts int64
	for _, tx := range activity.Transactions {
		if tx.Type == models.TransactionDisbursement {
			payouts += tx.Amount
		}
	}
	if payouts != 30000 {
		t.Errorf("disbursed in activity = %d, want 30000", payouts)
	}
	actions := map[string]int{}
	for _, entry := range activity.Audit {
		actions[entry.Action]++
	}
	if actions[budget.ActionCreated] != 1 || actions[budget.ActionApproved] != 1 || actions[budget.ActionDisbursed] != 2 {
		t.Errorf("audit actions = %v", actions)
	}

	var forbidden *apperrors.ForbiddenError
	if _, err := f.svc.Activity(ctx, f.other, b.ID); !errors.As(err, &forbidden) {
		t.Errorf("stranger activity error = %v, want ForbiddenError", err)
	}
}

func TestDisburse_FailedOutcomeRecordsOnly(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	b := f.budgetIn(t, models.BudgetApproved)

	res, err := f.svc.Disburse(ctx, f.admin, b.ID, budget.DisburseRequest{Amount: 1000, Outcome: "failed"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Transaction.Status != models.TransactionFailed {
		t.Errorf("transaction status = %s", res.Transaction.Status)
	}
	if got := f.reload(t, b.ID); got.Status != models.BudgetApproved {
		t.Errorf("status = %s, want APPROVED", got.Status)
	}
	if res.Completed != 0 {
		t.Errorf("completed = %d, want 0", res.Completed)
	}
	if n := testutil.Count(t, f.db, &models.AuditLog{}, "entity_id = ? AND action = ?", b.ID, budget.ActionDisbursementFailed); n != 1 {
		t.Errorf("failure audit rows = %d, want 1", n)
	}
}

// Completed disbursements never exceed the allocation, and the budget is
// DISBURSED exactly when they reach it.
func TestDisburseProperty(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.fund(t, 1<<40)

	property := func(amounts []uint16) bool {
		b, err := f.svc.Create(ctx, f.member, budget.CreateRequest{
			Title: "Groceries",
			Items: []budget.ItemInput{{Name: "Food", UnitPrice: 100000, Quantity: 1}},
		})
		if err != nil {
			return false
		}
		if _, err := f.svc.Approve(ctx, f.admin, b.ID, budget.ApproveRequest{}); err != nil {
			return false
		}

		var completed int64
		for _, a := range amounts {
			amount := int64(a)*4 + 1
			_, err := f.svc.Disburse(ctx, f.admin, b.ID, budget.DisburseRequest{Amount: amount})

			var exceeds *apperrors.ExceedsAllocationError
			var invalid *apperrors.InvalidStateTransitionError
			switch {
			case err == nil:
				completed += amount
			case errors.As(err, &exceeds):
				if amount <= 100000-completed {
					return false
				}
			case errors.As(err, &invalid):
				if completed != 100000 {
					return false
				}
			default:
				return false
			}

			status := f.reload(t, b.ID).Status
			if completed > 100000 {
				return false
			}
			if (completed == 100000) != (status == models.BudgetDisbursed) {
				return false
			}
		}
		return true
	}

	if err := quick.Check(property, &quick.Config{MaxCount: 15}); err != nil {
		t.Error(err)
	}
}

func TestBatches_ApproveConfigureAndDisburse(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	b := f.create(t, budget.ItemInput{Name: "Build", UnitPrice: 90000, Quantity: 1})
	f.fund(t, 90000)

	got, err := f.svc.Approve(ctx, f.admin, b.ID, budget.ApproveRequest{DisbursementType: models.DisbursementBatches, BatchCount: 4})
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Batches) != 4 {
		t.Fatalf("batches = %d, want 4", len(got.Batches))
	}
	for _, batch := range got.Batches {
		if batch.Amount != 22500 {
			t.Errorf("batch %d amount = %d, want 22500", batch.Sequence, batch.Amount)
		}
	}
	oldIDs := map[uuid.UUID]bool{}
	for _, batch := range got.Batches {
		oldIDs[batch.ID] = true
	}

	got, err = f.svc.ConfigureDisbursement(ctx, f.admin, b.ID, models.DisbursementBatches, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Batches) != 3 {
		t.Fatalf("batches after regenerate = %d, want 3", len(got.Batches))
	}
	if n := testutil.Count(t, f.db, &models.Batch{}, "budget_id = ?", b.ID); n != 3 {
		t.Errorf("stored batches = %d, want 3", n)
	}
	for _, batch := range got.Batches {
		if oldIDs[batch.ID] {
			t.Errorf("batch %s survived regeneration", batch.ID)
		}
	}
	if got.Batches[2].Amount != 30000 {
		t.Errorf("last batch = %d, want 30000", got.Batches[2].Amount)
	}

	var invalid *apperrors.ValidationError
	if _, err := f.svc.DisburseBatch(ctx, f.admin, got.Batches[1].ID, "bank", ""); !errors.As(err, &invalid) {
		t.Errorf("out-of-order batch error = %v, want ValidationError", err)
	}

	res, err := f.svc.DisburseBatch(ctx, f.admin, got.Batches[0].ID, "bank", "TRX-1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Budget.Status != models.BudgetPartiallyDisbursed || res.Completed != 30000 {
		t.Errorf("after batch 1: %s %d", res.Budget.Status, res.Completed)
	}

	var processed *apperrors.AlreadyProcessedError
	if _, err := f.svc.DisburseBatch(ctx, f.admin, got.Batches[0].ID, "bank", ""); !errors.As(err, &processed) {
		t.Errorf("repeat batch error = %v, want AlreadyProcessedError", err)
	}

	var transition *apperrors.InvalidStateTransitionError
	if _, err := f.svc.ConfigureDisbursement(ctx, f.admin, b.ID, models.DisbursementFull, 0); !errors.As(err, &transition) {
		t.Errorf("reconfigure after payout error = %v, want InvalidStateTransitionError", err)
	}

	for _, batch := range got.Batches[1:] {
		if res, err = f.svc.DisburseBatch(ctx, f.admin, batch.ID, "bank", ""); err != nil {
			t.Fatal(err)
		}
	}
	if res.Budget.Status != models.BudgetDisbursed || res.Remaining != 0 {
		t.Errorf("after all batches: %s remaining %d", res.Budget.Status, res.Remaining)
	}
}

func TestDisburseBatch_LocksBudgetBeforeBatch(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	b := f.create(t, budget.ItemInput{Name: "Fence", UnitPrice: 40000, Quantity: 1})
	f.fund(t, 40000)

	got, err := f.svc.Approve(ctx, f.admin, b.ID, budget.ApproveRequest{DisbursementType: models.DisbursementBatches, BatchCount: 2})
	if err != nil {
		t.Fatal(err)
	}

	var locked []string
	err = f.db.Callback().Query().After("gorm:query").Register("test:lock_order", func(tx *gorm.DB) {
		if _, ok := tx.Statement.Clauses["FOR"]; ok {
			locked = append(locked, tx.Statement.Table)
		}
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.DisburseBatch(ctx, f.admin, got.Batches[0].ID, "bank", ""); err != nil {
		t.Fatal(err)
	}
	if len(locked) < 2 || locked[0] != "budgets" || locked[1] != "batches" {
		t.Errorf("lock order = %v, want budgets then batches", locked)
	}
}

func TestApprove_RejectsBadBatchCount(t *testing.T) {
	f := setup(t)
	b := f.create(t)
	f.fund(t, b.Amount)

	var invalid *apperrors.ValidationError
	_, err := f.svc.Approve(context.Background(), f.admin, b.ID, budget.ApproveRequest{DisbursementType: models.DisbursementBatches, BatchCount: 13})
	if !errors.As(err, &invalid) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if f.balance(t) != b.Amount {
		t.Error("ledger debited despite invalid request")
	}
}

func TestStatsAndFunding(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.budgetIn(t, models.BudgetPending)
	approved := f.budgetIn(t, models.BudgetApproved)
	f.budgetIn(t, models.BudgetRejected)

	stats, err := f.svc.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 3 {
		t.Errorf("Total = %d, want 3", stats.Total)
	}
	if st := stats.ByStatus[models.BudgetApproved]; st.Count != 1 || st.Sum != approved.AllocatedAmount {
		t.Errorf("approved stats = %+v", st)
	}
	if st := stats.ByStatus[models.BudgetDisbursed]; st.Count != 0 {
		t.Errorf("disbursed stats = %+v", st)
	}

	supp := models.SupplementaryRequest{
		ID:          uuid.New(),
		BudgetID:    approved.ID,
		Amount:      2500,
		RequesterID: f.member.ID,
		Status:      models.SupplementaryApproved,
	}
	if err := f.db.Create(&supp).Error; err != nil {
		t.Fatal(err)
	}

	funding, err := f.svc.Funding(ctx, f.member, approved.ID)
	if err != nil {
		t.Fatal(err)
	}
	if funding.Supplementary != 2500 || funding.Total != approved.AllocatedAmount+2500 {
		t.Errorf("funding = %+v", funding)
	}

	var forbidden *apperrors.ForbiddenError
	if _, err := f.svc.Funding(ctx, f.other, approved.ID); !errors.As(err, &forbidden) {
		t.Errorf("stranger funding error = %v, want ForbiddenError", err)
	}
}

func TestList_MembersSeeOwnBudgets(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.create(t)
	f.create(t)
	if _, err := f.svc.Create(ctx, f.other, budget.CreateRequest{
		Title: "Bike",
		Items: []budget.ItemInput{{Name: "Bike", UnitPrice: 9000, Quantity: 1}},
	}); err != nil {
		t.Fatal(err)
	}

	mine, err := f.svc.List(ctx, f.member, repository.BudgetFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 2 {
		t.Errorf("member sees %d budgets, want 2", len(mine))
	}
	all, err := f.svc.List(ctx, f.admin, repository.BudgetFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("admin sees %d budgets, want 3", len(all))
	}
}
