package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wakala/mpesa-analytics/internal/domain"
)

var locations = []string{
	"Nairobi", "Mombasa", "Kisumu", "Nakuru", "Eldoret",
	"Kisii", "Kitale", "Garissa", "Thika", "Malindi",
}

var channels = []string{"WEB", "USSD", "APP"}

type typeProfile struct {
	txnType  domain.TransactionType
	min, max float64
	category string
	merchant bool
}

var profiles = []typeProfile{
	{domain.TypeP2PTransfer, 100, 5000, "Person-to-Person", false},
	{domain.TypeMerchantPayment, 200, 10000, "Business Payments", true},
	{domain.TypeBillPayment, 1000, 50000, "Bills & Utilities", true},
	{domain.TypeAirtimeTopup, 50, 1000, "Airtime & Data", false},
	{domain.TypeWithdrawal, 500, 20000, "Cash Out", false},
	{domain.TypeDeposit, 100, 5000, "Cash In", false},
}

var feeRate = decimal.RequireFromString("0.0199")

func main() {
	count := flag.Int("n", 15000, "number of transactions")
	seed := flag.Int64("seed", 42, "random seed")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	baseDir := findTestdataDir()

	users := make([]string, 2000)
	for i := range users {
		users[i] = fmt.Sprintf("254%d", 700000000+rng.Intn(100000000))
	}

	now := time.Now()
	start := now.AddDate(0, 0, -30)
	idPrefix := "TXN_" + now.Format("20060102")

	path := filepath.Join(baseDir, "mpesa_transactions.csv")
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := make([]string, 0, len(domain.InputSchema))
	for _, col := range domain.InputSchema {
		header = append(header, col.Name)
	}
	w.Write(header)

	var flagged int
	for i := 0; i < *count; i++ {
		sender := users[rng.Intn(len(users))]
		receiver := sender
		for receiver == sender {
			receiver = users[rng.Intn(len(users))]
		}

		p := profiles[rng.Intn(len(profiles))]
		amount := decimal.NewFromFloat(p.min + rng.Float64()*(p.max-p.min)).Round(2)
		fee := amount.Mul(feeRate).Round(2)

		// Up to 30 days back, with hour and minute jitter.
		at := start.AddDate(0, 0, rng.Intn(31)).Add(
			time.Duration(rng.Intn(24))*time.Hour + time.Duration(rng.Intn(60))*time.Minute,
		)

		status := domain.StatusCompleted
		if rng.Float64() >= 0.98 {
			status = domain.StatusFailed
		}

		score := riskScore(rng, amount, p.txnType)
		if score > domain.HighRiskThreshold {
			flagged++
		}

		var merchantID string
		if p.merchant {
			merchantID = fmt.Sprintf("MERCHANT_%d", 1000+rng.Intn(9000))
		}

		w.Write([]string{
			fmt.Sprintf("%s_%06d", idPrefix, i),
			sender,
			receiver,
			string(p.txnType),
			amount.StringFixed(2),
			fee.StringFixed(2),
			at.Format("2006-01-02 15:04:05"),
			locations[rng.Intn(len(locations))],
			"KES",
			string(status),
			strconv.FormatInt(score, 10),
			merchantID,
			uuid.NewString(),
			channels[rng.Intn(len(channels))],
			p.category,
		})
	}

	fmt.Printf("Generated %d transactions (%d high risk) -> %s\n", *count, flagged, path)
}

// riskScore adds amount tier and type weights, a 2% suspicious bump and up to
// 10 points of noise, capped at 100.
func riskScore(rng *rand.Rand, amount decimal.Decimal, t domain.TransactionType) int64 {
	var score int64
	switch {
	case amount.GreaterThan(decimal.NewFromInt(50000)):
		score += 30
	case amount.GreaterThan(decimal.NewFromInt(10000)):
		score += 20
	case amount.GreaterThan(decimal.NewFromInt(5000)):
		score += 10
	}
	if t == domain.TypeP2PTransfer {
		score += 5
	}
	if rng.Float64() < 0.02 {
		score += 40
	}
	return min(100, score+int64(rng.Intn(11)))
}

func findTestdataDir() string {
	candidates := []string{
		"testdata",
		"../testdata",
		"../../testdata",
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			return c
		}
	}
	return "."
}
