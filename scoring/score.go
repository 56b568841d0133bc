// Package scoring computes the relationship score shown on contact records.
package scoring

import (
	"math"
	"time"
)

const (
	recencyWeight      = 35.0
	frequencyWeight    = 20.0
	dealWeight         = 25.0
	referralWeight     = 10.0
	completenessWeight = 10.0

	freshWindow = 7 * 24 * time.Hour
	staleWindow = 180 * 24 * time.Hour

	pointsPerInteraction = 2.0
	pointsPerClosedDeal  = 10.0
	pointsPerOpenDeal    = 5.0
	pointsPerReferral    = 5.0

	HotThreshold  = 70
	WarmThreshold = 40
)

const (
	TierHot  = "hot"
	TierWarm = "warm"
	TierCold = "cold"
)

// Signals are the inputs to Score. InteractionsLast90Days is expected to be
// counted by the caller over the 90 days preceding now.
type Signals struct {
	LastContactedAt        *time.Time
	InteractionsLast90Days int
	ClosedDeals            int
	OpenDeals              int
	ReferralsGiven         int
	HasEmail               bool
	HasPhone               bool
}

// Breakdown holds the points contributed by each signal.
type Breakdown struct {
	Recency      float64 `json:"recency"`
	Frequency    float64 `json:"frequency"`
	Deals        float64 `json:"deals"`
	Referrals    float64 `json:"referrals"`
	Completeness float64 `json:"completeness"`
}

type Result struct {
	Score     int       `json:"score"`
	Tier      string    `json:"tier"`
	Breakdown Breakdown `json:"breakdown"`
}

// Score is deterministic for a given (signals, now) pair and always returns
// a score within [0, 100].
func Score(s Signals, now time.Time) Result {
	b := Breakdown{
		Recency:      recency(s.LastContactedAt, now),
		Frequency:    capped(float64(s.InteractionsLast90Days)*pointsPerInteraction, frequencyWeight),
		Deals:        capped(float64(s.ClosedDeals)*pointsPerClosedDeal+float64(s.OpenDeals)*pointsPerOpenDeal, dealWeight),
		Referrals:    capped(float64(s.ReferralsGiven)*pointsPerReferral, referralWeight),
		Completeness: completeness(s.HasEmail, s.HasPhone),
	}

	total := int(math.Round(b.Recency + b.Frequency + b.Deals + b.Referrals + b.Completeness))
	if total > 100 {
		total = 100
	}
	if total < 0 {
		total = 0
	}

	return Result{Score: total, Tier: TierFor(total), Breakdown: b}
}

// TierFor buckets a score.
func TierFor(score int) string {
	switch {
	case score >= HotThreshold:
		return TierHot
	case score >= WarmThreshold:
		return TierWarm
	default:
		return TierCold
	}
}

func recency(last *time.Time, now time.Time) float64 {
	if last == nil {
		return 0
	}
	age := now.Sub(*last)
	if age <= freshWindow {
		return recencyWeight
	}
	if age >= staleWindow {
		return 0
	}
	remaining := float64(staleWindow-age) / float64(staleWindow-freshWindow)
	return recencyWeight * remaining
}

func completeness(hasEmail, hasPhone bool) float64 {
	points := 0.0
	if hasEmail {
		points += completenessWeight / 2
	}
	if hasPhone {
		points += completenessWeight / 2
	}
	return points
}

func capped(v, max float64) float64 {
	if v < 0 {
		return 0
	}
	return math.Min(v, max)
}
