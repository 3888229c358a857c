package log

// Field keys shared by every component so log queries can rely on them.
const (
	FieldComponent = "component"
	FieldOperation = "operation"
	FieldError     = "error"

	// HTTP
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldDurationHuman = "duration_human"
	FieldUserAgent     = "user_agent"
	FieldReferer       = "referer"
	FieldSuccess       = "success"

	// Domain
	FieldYear          = "year"
	FieldMonth         = "month"
	FieldTransactionID = "transaction_id"
	FieldTxType        = "transaction_type"
	FieldCategory      = "category"
	FieldAmountCents   = "amount_cents"
	FieldStatus        = "budget_status"

	// Messaging
	FieldEventAction = "event_action"
	FieldEventID     = "event_id"
)

const (
	ComponentApp         = "app"
	ComponentWorker      = "worker"
	ComponentHTTP        = "http"
	ComponentTemplate    = "template"
	ComponentCharts      = "charts"
	ComponentSecurity    = "security"
	ComponentTrace       = "trace"
	ComponentTransaction = "transaction"
	ComponentBudget      = "budget"
	ComponentDashboard   = "dashboard"
	ComponentCache       = "cache"
	ComponentBackend     = "backend"
	ComponentStorage     = "storage"
	ComponentSheets      = "sheets"
	ComponentNotify      = "notify"
)

const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
	OpRender = "render"
)

// Error types tag failed requests with a coarse category.
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields collects key/value pairs before they are handed to slog.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError records err's message. A nil err leaves f unchanged.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithTransaction(id int64, txType string, amountCents int64, category string) LogFields {
	f[FieldTransactionID] = id
	f[FieldTxType] = txType
	f[FieldAmountCents] = amountCents
	f[FieldCategory] = category
	return f
}

// ToSlice flattens f into alternating keys and values.
func (f LogFields) ToSlice() []any {
	out := make([]any, 0, len(f)*2)
	for k, v := range f {
		out = append(out, k, v)
	}
	return out
}
