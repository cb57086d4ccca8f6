package models

import "time"

type Venue string

const (
	VenueIndoor  Venue = "indoor"
	VenueOutdoor Venue = "outdoor"
)

func (v Venue) Valid() bool {
	return v == VenueIndoor || v == VenueOutdoor
}

type ReservationStatus string

const (
	StatusReserved  ReservationStatus = "reserved"
	StatusCompleted ReservationStatus = "completed"
	StatusCancelled ReservationStatus = "cancelled"
)

// CanTransition allows reserved->completed and reserved->cancelled only.
func (s ReservationStatus) CanTransition(to ReservationStatus) bool {
	return s == StatusReserved && (to == StatusCompleted || to == StatusCancelled)
}

func (s ReservationStatus) Valid() bool {
	switch s {
	case StatusReserved, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type CoachingReservation struct {
	ID          string            `json:"reservation_id"`
	UserID      string            `json:"user_id"`
	CoachID     string            `json:"coach_id"`
	ScheduledAt time.Time         `json:"scheduled_at"`
	Venue       Venue             `json:"location_type"`
	Status      ReservationStatus `json:"status"`
	Price       int64             `json:"price"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}
