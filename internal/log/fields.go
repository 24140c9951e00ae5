package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldOperation   = "operation"
	FieldError       = "error"
	FieldErrorType   = "error_type"
	FieldAccount     = "account"
	FieldAccountID   = "account_id"
	FieldCounterpart = "counterpart"
	FieldAmount      = "amount"
	FieldBalance     = "balance"
	FieldPeriod      = "period"
	FieldExpenseID   = "expense_id"
	FieldIncomeID    = "income_id"
	FieldCategory    = "category"
	FieldBackend     = "backend"
	FieldMessageID   = "message_id"
	FieldDuration    = "duration_ms"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentLedger  = "ledger"
	ComponentStorage = "storage"
	ComponentBackend = "backend"
	ComponentCLI     = "cli"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentSheets  = "sheets"
	ComponentCache   = "cache"
)

// Operations defines standard operation names
const (
	OpCreateAccount  = "create_account"
	OpRenameAccount  = "rename_account"
	OpRemoveAccount  = "remove_account"
	OpSetDefault     = "set_default_account"
	OpAdjustBalance  = "adjust_balance"
	OpAddExpense     = "add_expense"
	OpEditExpense    = "edit_expense"
	OpPayExpense     = "pay_expense"
	OpMarkPaid       = "mark_paid"
	OpMarkUnpaid     = "mark_unpaid"
	OpRemoveExpense  = "remove_expense"
	OpAddIncome      = "add_income"
	OpEditIncome     = "edit_income"
	OpProcessIncome  = "process_income"
	OpRemoveIncome   = "remove_income"
	OpTransfer       = "transfer"
	OpSetBudget      = "set_budget"
	OpRemoveBudget   = "remove_budget"
	OpRecomputeSpend = "recompute_spend"
	OpRestore        = "restore"
	OpLoad           = "load"
	OpPublish        = "publish"
	OpSync           = "sync"
	OpStartup        = "startup"
	OpShutdown       = "shutdown"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypeConflict      = "conflict_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithAccount adds account name and its balance
func (f LogFields) WithAccount(name string, balance string) LogFields {
	f[FieldAccount] = name
	f[FieldBalance] = balance
	return f
}

// WithAmount adds the amount moved by an operation
func (f LogFields) WithAmount(amount string) LogFields {
	f[FieldAmount] = amount
	return f
}

// WithPeriod adds the MM/YYYY period key
func (f LogFields) WithPeriod(period string) LogFields {
	f[FieldPeriod] = period
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
