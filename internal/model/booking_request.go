package model

import (
	"time"

	"gorm.io/gorm"
)

// BookingStatus tracks a lead through the sales funnel.
type BookingStatus string

const (
	BookingStatusPending       BookingStatus = "pending"
	BookingStatusContacted     BookingStatus = "contacted"
	BookingStatusScheduled     BookingStatus = "scheduled"
	BookingStatusCompleted     BookingStatus = "completed"
	BookingStatusNotInterested BookingStatus = "not_interested"
	BookingStatusUnsubscribed  BookingStatus = "unsubscribed"
)

// BookingGoal is the reason a practice reached out.
type BookingGoal string

const (
	GoalMissedCalls    BookingGoal = "missed_calls"
	GoalAfterHours     BookingGoal = "after_hours"
	GoalOverflow       BookingGoal = "overflow"
	GoalReplaceService BookingGoal = "replace_service"
	GoalOther          BookingGoal = "other"
)

// BookingRequest is a marketing-site lead. Leads precede tenant assignment,
// so the table is not tenant-scoped; only admins may read it.
type BookingRequest struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	FirstName string         `json:"first_name" gorm:"type:varchar(100);not null"`
	LastName  string         `json:"last_name" gorm:"type:varchar(100);not null"`
	Email     string         `json:"email" gorm:"type:varchar(100);not null;index"`
	Phone     string         `json:"phone" gorm:"type:varchar(50)"`
	Goal      BookingGoal    `json:"goal" gorm:"type:varchar(30);default:'other'"`
	Details   string         `json:"details" gorm:"type:text"`
	Status    BookingStatus  `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	Notes     string         `json:"notes" gorm:"type:text"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// ValidBookingStatus reports whether s is a known lead status.
func ValidBookingStatus(s BookingStatus) bool {
	switch s {
	case BookingStatusPending, BookingStatusContacted, BookingStatusScheduled,
		BookingStatusCompleted, BookingStatusNotInterested, BookingStatusUnsubscribed:
		return true
	}
	return false
}

// ValidBookingGoal reports whether g is a known goal.
func ValidBookingGoal(g BookingGoal) bool {
	switch g {
	case GoalMissedCalls, GoalAfterHours, GoalOverflow, GoalReplaceService, GoalOther:
		return true
	}
	return false
}
