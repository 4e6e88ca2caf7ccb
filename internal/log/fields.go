package log

// Field names shared by every component.
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldUserID      = "user_id"
	FieldCollection  = "collection"
	FieldDocumentID  = "document_id"
	FieldWalletID    = "wallet_id"
	FieldCategoryID  = "category_id"
	FieldTxType      = "tx_type"
	FieldAmount      = "amount"
	FieldYear        = "year"
	FieldMonth       = "month"
	FieldLedgerMode  = "ledger_mode"
	FieldBackend     = "backend"
	FieldSheetsRange = "sheets_range"
)

const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentFinance = "finance"
	ComponentLedger  = "ledger"
	ComponentSession = "session"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentSheets  = "sheets"
	ComponentCache   = "cache"
	ComponentBackend = "backend"
	ComponentAudit   = "audit"
)

const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpExport   = "export"
	OpAudit    = "audit"
	OpSeed     = "seed"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields is a small builder for structured log attributes.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithUser(userID string) LogFields {
	f[FieldUserID] = userID
	return f
}

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

// WithTransaction adds the balance-relevant fields of a transaction.
func (f LogFields) WithTransaction(id, txType string, amount int64, walletID string) LogFields {
	if id != "" {
		f[FieldDocumentID] = id
	}
	f[FieldTxType] = txType
	f[FieldAmount] = amount
	f[FieldWalletID] = walletID
	return f
}

func (f LogFields) WithDocument(collection, id string) LogFields {
	f[FieldCollection] = collection
	f[FieldDocumentID] = id
	return f
}

func (f LogFields) WithHTTPRequest(method, path string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	return f
}

// ToSlice flattens the fields into slog key/value arguments.
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
