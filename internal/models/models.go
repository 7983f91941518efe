package models

// All lists every model in dependency order, parents first, for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Preference{},
		&SystemSetting{},
		&Budget{},
		&BudgetItem{},
		&Batch{},
		&BudgetRevision{},
		&Expenditure{},
		&ExpenditureItem{},
		&SupplementaryRequest{},
		&Transaction{},
		&Remittance{},
		&Project{},
		&Vote{},
		&Report{},
		&Notification{},
		&AuditLog{},
	}
}
