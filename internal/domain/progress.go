package domain

import "time"

type UserProgress struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	ModuleID           string     `json:"module_id"`
	ProgressPercentage float64    `json:"progress_percentage"`
	TimeSpentMinutes   int        `json:"time_spent_minutes"`
	CompletedAt        *time.Time `json:"completed_at"`
	CreatedAt          *time.Time `json:"created_at,omitempty"`
	UpdatedAt          *time.Time `json:"updated_at,omitempty"`
}

func (p UserProgress) Completed() bool { return p.CompletedAt != nil }

// ProgressUpdate is a partial update: nil fields are left untouched.
// AddMinutes and RaisePercentageTo are applied by the store against the stored
// values and take precedence over TimeSpentMinutes and ProgressPercentage.
type ProgressUpdate struct {
	ProgressPercentage *float64   `json:"progress_percentage,omitempty" validate:"omitempty,gte=0,lte=100"`
	TimeSpentMinutes   *int       `json:"time_spent_minutes,omitempty" validate:"omitempty,gte=0"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`

	AddMinutes        int      `json:"-" validate:"gte=0"`
	RaisePercentageTo *float64 `json:"-" validate:"omitempty,gte=0,lte=100"`
}

func (u ProgressUpdate) Completes() bool { return u.CompletedAt != nil }
