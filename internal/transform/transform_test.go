package transform

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wakala/mpesa-analytics/internal/domain"
)

func sp(s string) *string { return &s }

func score(v int64) *int64 { return &v }

func amount(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func allColumns() []string {
	cols := make([]string, 0, len(domain.InputSchema))
	for _, f := range domain.InputSchema {
		cols = append(cols, f.Name)
	}
	return cols
}

// txn builds a fully populated raw row.
func txn(id, sender, date, amt string) domain.RawTransaction {
	return domain.RawTransaction{
		TransactionID:   id,
		SenderPhone:     sp(sender),
		ReceiverPhone:   sp("254799999999"),
		TransactionType: sp("P2P_TRANSFER"),
		Amount:          amount(amt),
		Fee:             amount("1.00"),
		TransactionDate: sp(date),
		Location:        sp("Nairobi"),
		Currency:        sp("KES"),
		Status:          sp("COMPLETED"),
		FraudRiskScore:  score(15),
		MerchantID:      sp("MERCHANT_1001"),
		ReferenceNumber: sp("REF-" + id),
		Channel:         sp("APP"),
		Category:        sp("Person-to-Person"),
	}
}

func byID(t *testing.T, out []domain.Transaction) map[string]domain.Transaction {
	t.Helper()
	m := make(map[string]domain.Transaction, len(out))
	for _, tx := range out {
		m[tx.TransactionID] = tx
	}
	return m
}

type recordingObserver struct {
	validated []ValidationReport
	cleaned   []CleanStats
	enriched  []int
}

func (r *recordingObserver) Validated(v ValidationReport) { r.validated = append(r.validated, v) }
func (r *recordingObserver) Cleaned(s CleanStats)         { r.cleaned = append(r.cleaned, s) }
func (r *recordingObserver) Enriched(n int)               { r.enriched = append(r.enriched, n) }

func TestTransform_DuplicateIDKeepsFirstSeen(t *testing.T) {
	b := domain.NewBatch(allColumns(), []domain.RawTransaction{
		txn("TXN001", "254712345678", "2024-01-01 10:00:00", "1000.00"),
		txn("TXN001", "254712345678", "2024-01-01 11:00:00", "2500.00"),
		txn("TXN002", "254712345679", "2024-01-02 09:00:00", "2000.00"),
	})

	out, err := New(nil).Transform(b)
	require.NoError(t, err)
	require.Len(t, out, 2)

	got := byID(t, out)
	assert.True(t, got["TXN001"].Amount.Equal(decimal.RequireFromString("1000.00")))
}

func TestTransform_SenderVelocity(t *testing.T) {
	b := domain.NewBatch(allColumns(), []domain.RawTransaction{
		txn("T3", "254700000001", "2024-01-01 10:10:00", "50"),
		txn("T1", "254700000001", "2024-01-01 10:00:00", "50"),
		txn("T2", "254700000001", "2024-01-01 10:03:00", "50"),
	})

	out, err := New(nil).Transform(b)
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, []string{"T1", "T2", "T3"}, []string{out[0].TransactionID, out[1].TransactionID, out[2].TransactionID})

	assert.Nil(t, out[0].TimeSincePrevTransaction)
	assert.Equal(t, 0, out[0].IsSuspiciousVelocity)

	require.NotNil(t, out[1].TimeSincePrevTransaction)
	assert.InDelta(t, 3.0, *out[1].TimeSincePrevTransaction, 1e-9)
	assert.Equal(t, 1, out[1].IsSuspiciousVelocity)

	require.NotNil(t, out[2].TimeSincePrevTransaction)
	assert.InDelta(t, 7.0, *out[2].TimeSincePrevTransaction, 1e-9)
	assert.Equal(t, 0, out[2].IsSuspiciousVelocity)
}

func TestTransform_VelocityIsPerSender(t *testing.T) {
	b := domain.NewBatch(allColumns(), []domain.RawTransaction{
		txn("A1", "254700000001", "2024-01-01 10:00:00", "50"),
		txn("B1", "254700000002", "2024-01-01 10:01:00", "50"),
	})

	out, err := New(nil).Transform(b)
	require.NoError(t, err)

	for _, tx := range out {
		assert.Nil(t, tx.TimeSincePrevTransaction, tx.TransactionID)
		assert.Equal(t, 0, tx.IsSuspiciousVelocity, tx.TransactionID)
	}
}

func TestTransform_NoSenderHasNoVelocity(t *testing.T) {
	b := domain.NewBatch(
		[]string{domain.ColTransactionID, domain.ColAmount, domain.ColTransactionDate},
		[]domain.RawTransaction{
			{TransactionID: "A", Amount: amount("50"), TransactionDate: sp("2024-01-01 10:00:00")},
			{TransactionID: "B", Amount: amount("50"), TransactionDate: sp("2024-01-01 10:01:00")},
			{TransactionID: "C", Amount: amount("50"), TransactionDate: sp("2024-01-01 10:02:00")},
		},
	)

	out, err := New(nil).Transform(b)
	require.NoError(t, err)
	require.Len(t, out, 3)

	for _, tx := range out {
		assert.Equal(t, "", tx.SenderPhone, tx.TransactionID)
		assert.Nil(t, tx.TimeSincePrevTransaction, tx.TransactionID)
		assert.Equal(t, 0, tx.IsSuspiciousVelocity, tx.TransactionID)
	}
}

func TestTransform_EqualTimestampsKeepBatchOrder(t *testing.T) {
	b := domain.NewBatch(allColumns(), []domain.RawTransaction{
		txn("B", "254700000001", "2024-01-01 10:00:00", "50"),
		txn("A", "254700000001", "2024-01-01 10:00:00", "50"),
	})

	out, err := New(nil).Transform(b)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "B", out[0].TransactionID)
	assert.Equal(t, "A", out[1].TransactionID)
	require.NotNil(t, out[1].TimeSincePrevTransaction)
	assert.Equal(t, 0.0, *out[1].TimeSincePrevTransaction)
	assert.Equal(t, 1, out[1].IsSuspiciousVelocity)
}

func TestTransform_MissingAmountColumn(t *testing.T) {
	b := domain.NewBatch(
		[]string{domain.ColTransactionID, domain.ColSenderPhone, domain.ColTransactionDate},
		[]domain.RawTransaction{{TransactionID: "TXN001", TransactionDate: sp("2024-01-01")}},
	)
	obs := &recordingObserver{}

	out, err := New(obs).Transform(b)
	require.Error(t, err)
	assert.Nil(t, out)
	assert.True(t, errors.Is(err, domain.ErrSchema))

	var schemaErr *domain.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, []string{domain.ColAmount}, schemaErr.Missing)

	assert.Empty(t, obs.validated, "no stage runs on a schema error")
	assert.Empty(t, obs.cleaned)
	assert.Empty(t, obs.enriched)
}

func TestTransform_NilBatchIsSchemaError(t *testing.T) {
	_, err := New(nil).Transform(nil)
	assert.ErrorIs(t, err, domain.ErrSchema)
}

func TestTransform_EmptyBatch(t *testing.T) {
	obs := &recordingObserver{}

	out, err := New(obs).Transform(domain.NewBatch(allColumns(), nil))
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
	assert.Equal(t, []int{0}, obs.enriched)
}

func TestTransform_AbsentOptionalColumnsGetDefaults(t *testing.T) {
	b := domain.NewBatch(
		[]string{domain.ColTransactionID, domain.ColAmount, domain.ColTransactionDate},
		[]domain.RawTransaction{{
			TransactionID:   "TXN001",
			Amount:          amount("0"),
			TransactionDate: sp("2024-01-06 08:15:00"),
		}},
	)

	out, err := New(nil).Transform(b)
	require.NoError(t, err)
	require.Len(t, out, 1)

	tx := out[0]
	assert.True(t, tx.Fee.IsZero())
	assert.Equal(t, int64(0), tx.FraudRiskScore)
	assert.Equal(t, domain.FraudLowRisk, tx.FraudCategory)
	assert.Equal(t, domain.VolumeVerySmall, tx.TransactionVolumeCategory)
	assert.Equal(t, "", tx.SenderPhone)
	assert.Equal(t, "", tx.MerchantID)
	assert.Equal(t, OtherRegion, tx.SenderRegion)
	assert.Equal(t, OtherRegion, tx.ReceiverRegion)

	// 2024-01-06 is a Saturday.
	assert.Equal(t, "2024-01-06", tx.DatePartDate)
	assert.Equal(t, 5, tx.DayOfWeek)
	assert.Equal(t, 1, tx.IsWeekend)
	assert.Equal(t, 8, tx.HourOfDay)
	assert.Equal(t, 2024, tx.Year)
	assert.Equal(t, 1, tx.Month)
}

func TestTransform_RegionsFromSharedLocation(t *testing.T) {
	nairobi := txn("T1", "254700000001", "2024-01-01 10:00:00", "50")
	unknown := txn("T2", "254700000002", "2024-01-01 10:00:00", "50")
	unknown.Location = sp("Unknown City")

	out, err := New(nil).Transform(domain.NewBatch(allColumns(), []domain.RawTransaction{nairobi, unknown}))
	require.NoError(t, err)

	got := byID(t, out)
	assert.Equal(t, "Central Kenya", got["T1"].SenderRegion)
	assert.Equal(t, "Central Kenya", got["T1"].ReceiverRegion)
	assert.Equal(t, OtherRegion, got["T2"].SenderRegion)
	assert.Equal(t, OtherRegion, got["T2"].ReceiverRegion)
}

func TestTransform_Invariants(t *testing.T) {
	rows := []domain.RawTransaction{
		txn("T1", "254700000001", "2024-01-01 10:00:00", "150"),
		txn("T2", "254700000002", "2024-01-06 23:59:59", "-10"),
		txn("T3", "254700000003", "2024-01-07 00:00:00", "20000"),
		txn("T1", "254700000004", "2024-01-03 12:00:00", "75"),
		txn("T4", "254700000001", "2024-01-02 10:00:00", "9999.99"),
		txn("T5", "254700000005", "not a date", "10"),
		txn("T6", "254700000006", "2024-01-05 18:30:00", "600"),
	}
	rows[0].FraudRiskScore = score(250)
	rows[2].FraudRiskScore = score(-40)
	rows[4].FraudRiskScore = nil
	rows[6].Amount = decimal.NullDecimal{}

	inputIDs := map[string]bool{}
	for _, r := range rows {
		inputIDs[r.TransactionID] = true
	}

	out, err := New(nil).Transform(domain.NewBatch(allColumns(), rows))
	require.NoError(t, err)
	require.NotEmpty(t, out)

	seen := map[string]bool{}
	for _, tx := range out {
		assert.False(t, seen[tx.TransactionID], "duplicate id %s", tx.TransactionID)
		seen[tx.TransactionID] = true
		assert.True(t, inputIDs[tx.TransactionID])

		assert.False(t, tx.Amount.IsNegative(), tx.TransactionID)
		assert.GreaterOrEqual(t, tx.FraudRiskScore, int64(0))
		assert.LessOrEqual(t, tx.FraudRiskScore, int64(100))

		weekend := tx.DayOfWeek == 5 || tx.DayOfWeek == 6
		assert.Equal(t, weekend, tx.IsWeekend == 1, tx.TransactionID)
	}

	got := byID(t, out)
	assert.NotContains(t, got, "T2")
	assert.NotContains(t, got, "T5")
	assert.Equal(t, int64(100), got["T1"].FraudRiskScore)
	assert.Equal(t, int64(0), got["T3"].FraudRiskScore)
	assert.Equal(t, int64(0), got["T4"].FraudRiskScore)
}

func TestTransform_Idempotent(t *testing.T) {
	rows := []domain.RawTransaction{
		txn("T1", "254700000001", "2024-01-01T10:00:00Z", "150"),
		txn("T2", "254700000001", "2024-01-01T10:02:00Z", "3000"),
		txn("T3", "254700000002", "2024-01-06T09:00:00Z", "12000"),
	}
	rows[2].FraudRiskScore = score(85)

	first, err := New(nil).Transform(domain.NewBatch(allColumns(), rows))
	require.NoError(t, err)

	again := make([]domain.RawTransaction, 0, len(first))
	for i := range first {
		again = append(again, first[i].Raw())
	}
	second, err := New(nil).Transform(domain.NewBatch(allColumns(), again))
	require.NoError(t, err)
	require.Len(t, second, len(first))

	for i := range first {
		a, b := first[i], second[i]
		assert.Equal(t, a.TransactionID, b.TransactionID)
		assert.True(t, a.Amount.Equal(b.Amount))
		assert.True(t, a.Fee.Equal(b.Fee))
		assert.True(t, a.TransactionDate.Equal(b.TransactionDate))
		assert.Equal(t, a.DatePartDate, b.DatePartDate)
		assert.Equal(t, a.DayOfWeek, b.DayOfWeek)
		assert.Equal(t, a.FraudRiskScore, b.FraudRiskScore)
		assert.Equal(t, a.FraudCategory, b.FraudCategory)
		assert.Equal(t, a.TransactionVolumeCategory, b.TransactionVolumeCategory)
		assert.Equal(t, a.SenderRegion, b.SenderRegion)
		assert.Equal(t, a.TimeSincePrevTransaction, b.TimeSincePrevTransaction)
		assert.Equal(t, a.IsSuspiciousVelocity, b.IsSuspiciousVelocity)
	}
}

func TestTransform_ReportsToObserver(t *testing.T) {
	obs := &recordingObserver{}
	b := domain.NewBatch(allColumns(), []domain.RawTransaction{
		txn("T1", "254700000001", "2024-01-01 10:00:00", "10"),
		txn("T1", "254700000001", "2024-01-01 10:00:00", "10"),
		txn("T2", "254700000002", "2024-01-01 10:00:00", "-1"),
	})

	_, err := New(Observers(obs, NopObserver{})).Transform(b)
	require.NoError(t, err)

	require.Len(t, obs.validated, 1)
	assert.Equal(t, 1, obs.validated[0].DuplicateIDs)
	assert.Equal(t, 1, obs.validated[0].NegativeAmounts)

	require.Len(t, obs.cleaned, 1)
	assert.Equal(t, 3, obs.cleaned[0].InputRows)
	assert.Equal(t, 1, obs.cleaned[0].OutputRows)
	assert.Equal(t, 2, obs.cleaned[0].Dropped())
	assert.Equal(t, []int{1}, obs.enriched)
}

func TestVolumeCategoryFor(t *testing.T) {
	tests := []struct {
		amount string
		want   domain.VolumeCategory
	}{
		{"0", domain.VolumeVerySmall},
		{"0.01", domain.VolumeVerySmall},
		{"100", domain.VolumeVerySmall},
		{"100.01", domain.VolumeSmall},
		{"500", domain.VolumeSmall},
		{"500.50", domain.VolumeMedium},
		{"2000", domain.VolumeMedium},
		{"10000", domain.VolumeLarge},
		{"10000.01", domain.VolumeVeryLarge},
		{"50000", domain.VolumeVeryLarge},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			assert.Equal(t, tt.want, VolumeCategoryFor(decimal.RequireFromString(tt.amount)))
		})
	}
}

func TestFraudCategoryFor(t *testing.T) {
	tests := []struct {
		score int64
		want  domain.FraudCategory
	}{
		{0, domain.FraudLowRisk},
		{1, domain.FraudLowRisk},
		{30, domain.FraudLowRisk},
		{31, domain.FraudMediumRisk},
		{70, domain.FraudMediumRisk},
		{71, domain.FraudHighRisk},
		{100, domain.FraudHighRisk},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FraudCategoryFor(tt.score), "score %d", tt.score)
	}
}

func TestRegionFor(t *testing.T) {
	assert.Equal(t, "Central Kenya", RegionFor("Nairobi"))
	assert.Equal(t, "Coastal Kenya", RegionFor("Malindi"))
	assert.Equal(t, "North Eastern", RegionFor("Garissa"))
	assert.Equal(t, OtherRegion, RegionFor("Unknown City"))
	assert.Equal(t, OtherRegion, RegionFor(""))
}
