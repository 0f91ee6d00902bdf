package services

import "testing"

func TestReadinessScoreNothingRequired(t *testing.T) {
	if got := ReadinessScore(Evidence{}); got != 100 {
		t.Fatalf("score with no requirements = %v, want 100", got)
	}
}

func TestReadinessScoreFullCompletion(t *testing.T) {
	ev := Evidence{
		TeachingHours: 40, RequiredHours: 40,
		DocumentsSubmitted: 3, DocumentsRequired: 3,
		VideosSubmitted: 2, VideosRequired: 2,
		EvaluationsCompleted: 1, EvaluationsRequired: 1,
		DaysInRole: 90, MinDaysInRole: 90,
	}
	if got := ReadinessScore(ev); got != 100 {
		t.Fatalf("score with everything complete = %v, want 100", got)
	}
}

func TestReadinessScorePartialBelow100(t *testing.T) {
	ev := Evidence{
		TeachingHours: 40, RequiredHours: 40,
		DocumentsSubmitted: 2, DocumentsRequired: 3,
	}
	got := ReadinessScore(ev)
	if got >= 100 {
		t.Fatalf("score with an incomplete component = %v, want < 100", got)
	}
	if got <= 0 {
		t.Fatalf("score with progress = %v, want > 0", got)
	}
}

func TestReadinessScoreMonotone(t *testing.T) {
	base := Evidence{
		TeachingHours: 10, RequiredHours: 40,
		DocumentsSubmitted: 1, DocumentsRequired: 3,
		DaysInRole: 30, MinDaysInRole: 90,
	}
	prev := ReadinessScore(base)
	for hours := base.TeachingHours + 5; hours <= 50; hours += 5 {
		ev := base
		ev.TeachingHours = hours
		got := ReadinessScore(ev)
		if got < prev {
			t.Fatalf("score decreased from %v to %v as hours grew to %v", prev, got, hours)
		}
		prev = got
	}
}

func TestReadinessScoreOvershootCapped(t *testing.T) {
	ev := Evidence{
		TeachingHours: 400, RequiredHours: 40,
		DocumentsSubmitted: 0, DocumentsRequired: 1,
	}
	got := ReadinessScore(ev)
	if got >= 100 {
		t.Fatalf("overshooting one component must not mask another, got %v", got)
	}
}

func TestReadinessScoreInapplicableWeightRedistributed(t *testing.T) {
	// Only hours apply; full hours must mean full score even though other
	// component weights exist.
	ev := Evidence{TeachingHours: 40, RequiredHours: 40}
	if got := ReadinessScore(ev); got != 100 {
		t.Fatalf("score with only hours complete = %v, want 100", got)
	}
}

func TestEstimateTimeToComplete(t *testing.T) {
	cases := []struct {
		name string
		ev   Evidence
		want string
	}{
		{
			name: "ready",
			ev:   Evidence{TeachingHours: 40, RequiredHours: 40},
			want: "ready now",
		},
		{
			name: "no_pace",
			ev:   Evidence{TeachingHours: 0, RequiredHours: 40, DaysInRole: 10},
			want: "insufficient activity to estimate",
		},
		{
			name: "submissions_only",
			ev:   Evidence{DocumentsSubmitted: 0, DocumentsRequired: 2},
			want: "pending outstanding submissions",
		},
		{
			name: "one_week_left",
			ev:   Evidence{TeachingHours: 35, RequiredHours: 40, DaysInRole: 35},
			want: "about 1 week",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := EstimateTimeToComplete(tc.ev); got != tc.want {
				t.Fatalf("EstimateTimeToComplete=%q, want %q", got, tc.want)
			}
		})
	}
}

func TestEstimateTimeToCompleteTimeGate(t *testing.T) {
	ev := Evidence{
		TeachingHours: 40, RequiredHours: 40,
		DaysInRole: 20, MinDaysInRole: 90,
	}
	got := EstimateTimeToComplete(ev)
	if got != "about 10 weeks" {
		t.Fatalf("time-gated estimate = %q, want %q", got, "about 10 weeks")
	}
}
