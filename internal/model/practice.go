package model

import (
	"time"

	"gorm.io/gorm"
)

// PracticeStatus tracks where a practice is in its lifecycle. Status and plan
// are independent axes: a practice can be active on any plan.
type PracticeStatus string

const (
	PracticeStatusOnboarding PracticeStatus = "onboarding"
	PracticeStatusPilot      PracticeStatus = "pilot"
	PracticeStatusActive     PracticeStatus = "active"
	PracticeStatusPaused     PracticeStatus = "paused"
	PracticeStatusChurned    PracticeStatus = "churned"
)

// PracticePlan is the subscription plan of a practice.
type PracticePlan string

const (
	PlanFreeTrial PracticePlan = "free_trial"
	PlanBasic     PracticePlan = "basic"
	PlanPro       PracticePlan = "pro"
)

// Practice represents a dental practice, the tenant of the platform.
// The AI receptionist itself lives on external platforms; this record only
// carries the opaque identifiers pointing at it.
type Practice struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	Name            string         `json:"name" gorm:"type:varchar(200);not null"`
	OwnerName       string         `json:"owner_name" gorm:"type:varchar(200)"`
	Email           string         `json:"email" gorm:"type:varchar(100);uniqueIndex"`
	Phone           string         `json:"phone" gorm:"type:varchar(50)"`
	Status          PracticeStatus `json:"status" gorm:"type:varchar(20);not null;default:'onboarding'"`
	Plan            PracticePlan   `json:"plan" gorm:"type:varchar(20);not null;default:'free_trial'"`
	AIPhoneNumber   *string        `json:"ai_phone_number,omitempty" gorm:"type:varchar(50)"`
	VapiAssistantID *string        `json:"vapi_assistant_id,omitempty" gorm:"type:varchar(100)"`
	TrialEndsAt     *time.Time     `json:"trial_ends_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-" gorm:"index"`
}

// ValidStatus reports whether s is a known practice status.
func ValidStatus(s PracticeStatus) bool {
	switch s {
	case PracticeStatusOnboarding, PracticeStatusPilot, PracticeStatusActive,
		PracticeStatusPaused, PracticeStatusChurned:
		return true
	}
	return false
}

// ValidPlan reports whether p is a known plan.
func ValidPlan(p PracticePlan) bool {
	switch p {
	case PlanFreeTrial, PlanBasic, PlanPro:
		return true
	}
	return false
}
