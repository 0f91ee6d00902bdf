package services

import (
	"fmt"
	"math"
)

// Evidence is a user's accumulated progression evidence against one trigger.
type Evidence struct {
	TeachingHours float64
	RequiredHours float64

	DocumentsSubmitted int
	DocumentsRequired  int

	VideosSubmitted int
	VideosRequired  int

	EvaluationsCompleted int
	EvaluationsRequired  int

	DaysInRole    int
	MinDaysInRole int
}

// Component weights for the readiness score. Components with a zero
// requirement are inapplicable and their weight is redistributed over the
// rest, so the score stays a weighted mean of capped ratios: monotone in each
// ratio, 100 exactly when every applicable ratio reaches 1.0.
const (
	weightHours       = 0.30
	weightDocuments   = 0.20
	weightVideos      = 0.15
	weightEvaluations = 0.20
	weightTimeInRole  = 0.15
)

func cappedRatio(have, need float64) float64 {
	if need <= 0 {
		return 1
	}
	r := have / need
	if r > 1 {
		return 1
	}
	if r < 0 {
		return 0
	}
	return r
}

// ReadinessScore computes a [0,100] readiness measure from evidence ratios.
func ReadinessScore(ev Evidence) float64 {
	type component struct {
		weight float64
		ratio  float64
		active bool
	}
	components := []component{
		{weightHours, cappedRatio(ev.TeachingHours, ev.RequiredHours), ev.RequiredHours > 0},
		{weightDocuments, cappedRatio(float64(ev.DocumentsSubmitted), float64(ev.DocumentsRequired)), ev.DocumentsRequired > 0},
		{weightVideos, cappedRatio(float64(ev.VideosSubmitted), float64(ev.VideosRequired)), ev.VideosRequired > 0},
		{weightEvaluations, cappedRatio(float64(ev.EvaluationsCompleted), float64(ev.EvaluationsRequired)), ev.EvaluationsRequired > 0},
		{weightTimeInRole, cappedRatio(float64(ev.DaysInRole), float64(ev.MinDaysInRole)), ev.MinDaysInRole > 0},
	}

	var totalWeight, weighted float64
	for _, c := range components {
		if !c.active {
			continue
		}
		totalWeight += c.weight
		weighted += c.weight * c.ratio
	}
	if totalWeight == 0 {
		// Nothing is required; the user is trivially ready.
		return 100
	}
	return math.Round(weighted/totalWeight*10000) / 100
}

// EstimateTimeToComplete projects a human-readable duration from the user's
// current pace. Never negative, never undefined.
func EstimateTimeToComplete(ev Evidence) string {
	if ReadinessScore(ev) >= 100 {
		return "ready now"
	}

	remainingDays := 0.0
	if ev.MinDaysInRole > 0 && ev.DaysInRole < ev.MinDaysInRole {
		remainingDays = float64(ev.MinDaysInRole - ev.DaysInRole)
	}

	if ev.RequiredHours > 0 && ev.TeachingHours < ev.RequiredHours {
		remainingHours := ev.RequiredHours - ev.TeachingHours
		days := float64(ev.DaysInRole)
		if days < 1 {
			days = 1
		}
		pace := ev.TeachingHours / days // hours per day so far
		if pace <= 0 {
			return "insufficient activity to estimate"
		}
		if hourDays := remainingHours / pace; hourDays > remainingDays {
			remainingDays = hourDays
		}
	}

	if remainingDays <= 0 {
		// Remaining work is submissions/evaluations with no measurable pace.
		return "pending outstanding submissions"
	}
	weeks := int(math.Ceil(remainingDays / 7))
	if weeks <= 1 {
		return "about 1 week"
	}
	return fmt.Sprintf("about %d weeks", weeks)
}
