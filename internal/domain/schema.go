package domain

// Source column names.
const (
	ColTransactionID   = "transaction_id"
	ColSenderPhone     = "sender_phone"
	ColReceiverPhone   = "receiver_phone"
	ColTransactionType = "transaction_type"
	ColAmount          = "amount"
	ColFee             = "fee"
	ColTransactionDate = "transaction_date"
	ColLocation        = "location"
	ColCurrency        = "currency"
	ColStatus          = "status"
	ColFraudRiskScore  = "fraud_risk_score"
	ColMerchantID      = "merchant_id"
	ColReferenceNumber = "reference_number"
	ColChannel         = "channel"
	ColCategory        = "category"
)

type Kind string

const (
	KindText      Kind = "text"
	KindDecimal   Kind = "decimal"
	KindInteger   Kind = "integer"
	KindTimestamp Kind = "timestamp"
)

// Field declares one input column.
type Field struct {
	Name     string
	Kind     Kind
	Required bool
}

// InputSchema is the declared shape of a raw batch, in source order.
var InputSchema = []Field{
	{Name: ColTransactionID, Kind: KindText, Required: true},
	{Name: ColSenderPhone, Kind: KindText},
	{Name: ColReceiverPhone, Kind: KindText},
	{Name: ColTransactionType, Kind: KindText},
	{Name: ColAmount, Kind: KindDecimal, Required: true},
	{Name: ColFee, Kind: KindDecimal},
	{Name: ColTransactionDate, Kind: KindTimestamp, Required: true},
	{Name: ColLocation, Kind: KindText},
	{Name: ColCurrency, Kind: KindText},
	{Name: ColStatus, Kind: KindText},
	{Name: ColFraudRiskScore, Kind: KindInteger},
	{Name: ColMerchantID, Kind: KindText},
	{Name: ColReferenceNumber, Kind: KindText},
	{Name: ColChannel, Kind: KindText},
	{Name: ColCategory, Kind: KindText},
}

// LookupField returns the declared field for name.
func LookupField(name string) (Field, bool) {
	for _, f := range InputSchema {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// CanonicalColumns is the persisted column order of a canonical record.
var CanonicalColumns = []string{
	"transaction_id", "sender_phone", "receiver_phone", "transaction_type",
	"amount", "fee", "transaction_date", "date_part_date", "year", "month",
	"day_of_week", "hour_of_day", "location", "currency", "status",
	"fraud_risk_score", "fraud_category", "merchant_id", "reference_number",
	"channel", "category", "sender_region", "receiver_region",
	"transaction_volume_category", "is_suspicious_velocity",
	"time_since_prev_transaction",
}

// Batch is one extract: the declared columns that were present on input and
// the rows in arrival order.
type Batch struct {
	columns map[string]bool
	Rows    []RawTransaction
}

// NewBatch builds a batch. Column names outside InputSchema are ignored.
func NewBatch(columns []string, rows []RawTransaction) *Batch {
	b := &Batch{columns: make(map[string]bool, len(columns)), Rows: rows}
	for _, c := range columns {
		if _, ok := LookupField(c); ok {
			b.columns[c] = true
		}
	}
	return b
}

// Has reports whether col was present on input.
func (b *Batch) Has(col string) bool {
	return b.columns[col]
}

// Columns returns the present columns in schema order.
func (b *Batch) Columns() []string {
	var out []string
	for _, f := range InputSchema {
		if b.columns[f.Name] {
			out = append(out, f.Name)
		}
	}
	return out
}

// Len returns the number of rows.
func (b *Batch) Len() int {
	return len(b.Rows)
}

// Filter returns a batch with the same columns holding the rows keep accepts.
func (b *Batch) Filter(keep func(RawTransaction) bool) *Batch {
	out := &Batch{columns: b.columns}
	for _, r := range b.Rows {
		if keep(r) {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

// MissingRequired lists required columns absent from the batch.
func (b *Batch) MissingRequired() []string {
	var missing []string
	for _, f := range InputSchema {
		if f.Required && !b.columns[f.Name] {
			missing = append(missing, f.Name)
		}
	}
	return missing
}
