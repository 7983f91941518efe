package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	handler "family-fund-backend/internal/handlers"
	"family-fund-backend/internal/identity"
	"family-fund-backend/internal/logger"
	"family-fund-backend/internal/middleware"
	"family-fund-backend/internal/notify"
	"family-fund-backend/internal/services/budget"
	"family-fund-backend/internal/services/expenditure"
	"family-fund-backend/internal/services/ledger"
	"family-fund-backend/internal/services/remittance"
	"family-fund-backend/internal/services/supplementary"
	"family-fund-backend/internal/services/users"
)

type Deps struct {
	DB       *gorm.DB
	Notifier notify.Notifier
	Resolver *identity.Resolver
	Log      zerolog.Logger
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	ledgerStore := ledger.NewStore(d.DB, logger.Component(d.Log, "ledger"))

	budgetService := budget.NewService(d.DB, ledgerStore, d.Notifier, logger.Component(d.Log, "budget"))
	expenditureService := expenditure.NewService(d.DB, d.Notifier, logger.Component(d.Log, "expenditure"))
	supplementaryService := supplementary.NewService(d.DB, ledgerStore, d.Notifier, logger.Component(d.Log, "supplementary"))
	remittanceService := remittance.NewService(d.DB, ledgerStore, d.Notifier, logger.Component(d.Log, "remittance"))
	coordinator := users.NewCoordinator(d.DB, logger.Component(d.Log, "users"))

	httpLog := logger.Component(d.Log, "http")
	ledgerHandler := handler.NewLedgerHandler(ledgerStore, httpLog)
	budgetHandler := handler.NewBudgetHandler(budgetService, httpLog)
	expenditureHandler := handler.NewExpenditureHandler(expenditureService, httpLog)
	supplementaryHandler := handler.NewSupplementaryHandler(supplementaryService, httpLog)
	remittanceHandler := handler.NewRemittanceHandler(remittanceService, httpLog)
	userHandler := handler.NewUserHandler(coordinator, httpLog)
	notificationHandler := handler.NewNotificationHandler(notify.NewStore(d.DB), httpLog)

	api := r.Group("/api")

	// Health check
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	authed := api.Group("")
	authed.Use(middleware.Identity(d.DB, d.Resolver, httpLog))

	// Ledger
	authed.GET("/ledger/balance", ledgerHandler.Balance)
	authed.GET("/ledger/history", ledgerHandler.History)

	// Budget lifecycle
	budgets := authed.Group("/budgets")
	budgets.POST("", budgetHandler.Create)
	budgets.GET("", budgetHandler.List)
	budgets.GET("/stats", budgetHandler.Stats)
	budgets.GET("/:id", budgetHandler.Get)
	budgets.GET("/:id/funding", budgetHandler.Funding)
	budgets.GET("/:id/activity", budgetHandler.Activity)
	budgets.PUT("/:id/items", budgetHandler.UpdateItems)
	budgets.POST("/:id/approve", budgetHandler.Approve)
	budgets.POST("/:id/reject", budgetHandler.Reject)
	budgets.POST("/:id/revision", budgetHandler.RequestRevision)
	budgets.GET("/:id/revisions", budgetHandler.Revisions)
	budgets.POST("/:id/resubmit", budgetHandler.Resubmit)
	budgets.POST("/:id/revoke", budgetHandler.Revoke)
	budgets.PUT("/:id/disbursement", budgetHandler.ConfigureDisbursement)
	budgets.POST("/:id/disburse", budgetHandler.Disburse)
	budgets.POST("/:id/expenditures", expenditureHandler.Create)
	budgets.GET("/:id/expenditures", expenditureHandler.ListForBudget)
	budgets.POST("/:id/supplementary", supplementaryHandler.Create)
	budgets.GET("/:id/supplementary", supplementaryHandler.ListForBudget)

	authed.POST("/batches/:id/disburse", budgetHandler.DisburseBatch)

	expenditures := authed.Group("/expenditures")
	expenditures.GET("/:id", expenditureHandler.Get)
	expenditures.POST("/:id/approve", expenditureHandler.Approve)
	expenditures.POST("/:id/reject", expenditureHandler.Reject)

	supp := authed.Group("/supplementary")
	supp.GET("/:id", supplementaryHandler.Get)
	supp.POST("/:id/approve", supplementaryHandler.Approve)
	supp.POST("/:id/reject", supplementaryHandler.Reject)

	remittances := authed.Group("/remittances")
	remittances.POST("", remittanceHandler.Submit)
	remittances.GET("", remittanceHandler.List)
	remittances.GET("/:id", remittanceHandler.Get)
	remittances.POST("/:id/verify", remittanceHandler.Verify)
	remittances.POST("/:id/reject", remittanceHandler.Reject)

	// Admin user management
	usersGroup := authed.Group("/users")
	usersGroup.GET("/:id/dependents", userHandler.Dependents)
	usersGroup.DELETE("/:id", userHandler.Delete)

	authed.GET("/notifications", notificationHandler.ListUnread)
}
