package entities

import "time"

// UserProgress is the per-(user, section) advancement record.
type UserProgress struct {
	UserID             int64
	SectionID          string
	LastCompletedOrder int // never decreases
	Completions        int
	CorrectCount       int
	LastCompletedAt    *time.Time
}

// UserAggregate holds per-user running totals and the daily streak.
type UserAggregate struct {
	UserID         int64
	TotalCompleted int
	TotalCorrect   int
	TotalAnswers   int
	CurrentStreak  int
	LongestStreak  int
	LastStreakDate *time.Time // civil date of the last qualifying activity
	UpdatedAt      time.Time
}

// NewUserAggregate creates an empty aggregate for a user.
func NewUserAggregate(userID int64) *UserAggregate {
	return &UserAggregate{UserID: userID}
}

// Accuracy returns the share of correct answers in percent.
func (a *UserAggregate) Accuracy() float64 {
	if a.TotalAnswers == 0 {
		return 0
	}
	return float64(a.TotalCorrect) / float64(a.TotalAnswers) * 100
}

// ApplyCompletion adds one completion to the running totals and recomputes
// the streak for the civil date today.
//
// The streak stays unchanged when the last qualifying date is today,
// increments when it was yesterday and resets to 1 otherwise. A date earlier
// than the last qualifying one (clock skew) leaves the streak untouched.
func (a *UserAggregate) ApplyCompletion(correct, total int, today time.Time) {
	a.TotalCompleted++
	a.TotalCorrect += correct
	a.TotalAnswers += total

	today = DateOf(today)

	switch {
	case a.LastStreakDate == nil:
		a.CurrentStreak = 1
	case !today.After(*a.LastStreakDate):
		if a.CurrentStreak == 0 {
			a.CurrentStreak = 1
		}
		return
	case a.LastStreakDate.AddDate(0, 0, 1).Equal(today):
		a.CurrentStreak++
	default:
		a.CurrentStreak = 1
	}

	a.LastStreakDate = &today
	if a.CurrentStreak > a.LongestStreak {
		a.LongestStreak = a.CurrentStreak
	}
}

// SectionSummary combines a section with the user's advancement in it.
type SectionSummary struct {
	Section    GrammarSection
	Progress   *UserProgress // nil when the user never completed an item here
	TotalItems int
}

// Percentage returns the share of the section's items passed by the watermark.
func (s SectionSummary) Percentage() float64 {
	if s.TotalItems == 0 || s.Progress == nil {
		return 0
	}
	done := min(s.Progress.LastCompletedOrder, s.TotalItems)
	return float64(done) / float64(s.TotalItems) * 100
}

// ProgressSummary is the read model behind the progress view.
type ProgressSummary struct {
	Aggregate *UserAggregate
	Sections  []SectionSummary
}
