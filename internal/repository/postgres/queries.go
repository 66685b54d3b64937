package postgres

const canonicalColumns = `transaction_id, sender_phone, receiver_phone, transaction_type,
	amount, fee, transaction_date, date_part_date, year, month, day_of_week,
	hour_of_day, location, currency, status, fraud_risk_score, fraud_category,
	merchant_id, reference_number, channel, category, sender_region,
	receiver_region, transaction_volume_category, is_suspicious_velocity,
	time_since_prev_transaction`

// selectCanonical reads date_part_date back as YYYY-MM-DD text.
const selectCanonical = `transaction_id, sender_phone, receiver_phone, transaction_type,
	amount, fee, transaction_date, date_part_date::text, year, month, day_of_week,
	hour_of_day, location, currency, status, fraud_risk_score, fraud_category,
	merchant_id, reference_number, channel, category, sender_region,
	receiver_region, transaction_volume_category, is_suspicious_velocity,
	time_since_prev_transaction`

const summaryColumns = `summary_date::text, total_transactions, total_amount, total_fees,
	avg_transaction_amount, max_transaction_amount, unique_users,
	fraud_attempts, successful_transactions, failed_transactions`

const alertColumns = `alert_id, transaction_id, alert_timestamp, risk_score, alert_type,
	status, analyst_assigned, resolution_notes, resolved_timestamp`

const (
	InsertRawQuery = `
		INSERT INTO raw_transactions (transaction_id, sender_phone, receiver_phone,
			transaction_type, amount, fee, transaction_date, location, currency, status,
			fraud_risk_score, merchant_id, reference_number, channel, category)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (transaction_id) DO NOTHING
	`

	InsertTransformedQuery = `
		INSERT INTO transformed_transactions (` + canonicalColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,
			$21,$22,$23,$24,$25,$26)
		ON CONFLICT (transaction_id) DO NOTHING
	`

	CountLoadedSinceQuery = `
		SELECT COUNT(*) FROM transformed_transactions WHERE load_timestamp >= $1
	`

	DashboardStatsQuery = `
		SELECT
			COUNT(*),
			COALESCE(SUM(amount), 0),
			COALESCE(SUM(fee), 0),
			COUNT(DISTINCT sender_phone),
			COUNT(*) FILTER (WHERE status = 'COMPLETED'),
			COUNT(*) FILTER (WHERE status = 'FAILED'),
			COUNT(*) FILTER (WHERE fraud_risk_score > $1),
			COALESCE(SUM(is_suspicious_velocity), 0),
			(SELECT COUNT(*) FROM fraud_alerts WHERE status = 'OPEN'),
			COALESCE(MIN(date_part_date)::text, ''),
			COALESCE(MAX(date_part_date)::text, '')
		FROM transformed_transactions
	`

	VolumeByRegionQuery = `
		SELECT sender_region, COUNT(*), COALESCE(SUM(amount), 0)
		FROM transformed_transactions
		GROUP BY sender_region
		ORDER BY sender_region
	`

	UpsertDailySummaryQuery = `
		INSERT INTO daily_transaction_summary (summary_date, total_transactions,
			total_amount, total_fees, avg_transaction_amount, max_transaction_amount,
			unique_users, fraud_attempts, successful_transactions, failed_transactions)
		SELECT
			date_part_date,
			COUNT(*),
			SUM(amount),
			SUM(fee),
			ROUND(AVG(amount), 2),
			MAX(amount),
			COUNT(DISTINCT sender_phone),
			COUNT(CASE WHEN fraud_risk_score > $1 THEN 1 END),
			COUNT(CASE WHEN status = 'COMPLETED' THEN 1 END),
			COUNT(CASE WHEN status = 'FAILED' THEN 1 END)
		FROM transformed_transactions
		WHERE date_part_date = $2
		GROUP BY date_part_date
		ON CONFLICT (summary_date) DO UPDATE SET
			total_transactions = EXCLUDED.total_transactions,
			total_amount = EXCLUDED.total_amount,
			total_fees = EXCLUDED.total_fees,
			avg_transaction_amount = EXCLUDED.avg_transaction_amount,
			max_transaction_amount = EXCLUDED.max_transaction_amount,
			unique_users = EXCLUDED.unique_users,
			fraud_attempts = EXCLUDED.fraud_attempts,
			successful_transactions = EXCLUDED.successful_transactions,
			failed_transactions = EXCLUDED.failed_transactions
		RETURNING ` + summaryColumns

	GetSummaryQuery = `
		SELECT ` + summaryColumns + `
		FROM daily_transaction_summary
		WHERE summary_date = $1
	`

	CreateFraudAlertsQuery = `
		INSERT INTO fraud_alerts (transaction_id, alert_timestamp, risk_score, alert_type)
		SELECT transaction_id, transaction_date, fraud_risk_score, fraud_category
		FROM transformed_transactions
		WHERE fraud_risk_score > $1 AND status = 'COMPLETED'
		ORDER BY transaction_date, transaction_id
		ON CONFLICT (transaction_id) DO NOTHING
		RETURNING ` + alertColumns
)
