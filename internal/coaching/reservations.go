package coaching

import (
	"context"
	"strings"
	"time"

	"github.com/swing-coach/backend/internal/apperr"
	"github.com/swing-coach/backend/internal/db/models"
)

type ReservationInput struct {
	UserID      string
	CoachID     string
	ScheduledAt time.Time
	Venue       string
	Price       int64
}

func (s *Service) CreateReservation(ctx context.Context, in ReservationInput) (*models.CoachingReservation, error) {
	const op = "coaching.CreateReservation"
	venue := models.Venue(strings.ToLower(strings.TrimSpace(in.Venue)))
	switch {
	case strings.TrimSpace(in.UserID) == "" || strings.TrimSpace(in.CoachID) == "":
		return nil, apperr.New(apperr.KindValidation, op, "user_id and coach_id are required")
	case in.ScheduledAt.IsZero():
		return nil, apperr.New(apperr.KindValidation, op, "scheduled_at is required")
	case !venue.Valid():
		return nil, apperr.Newf(apperr.KindValidation, op, "location_type must be %q or %q", models.VenueIndoor, models.VenueOutdoor)
	case in.Price < 0:
		return nil, apperr.New(apperr.KindValidation, op, "price must be >= 0")
	}
	r := &models.CoachingReservation{
		UserID:      in.UserID,
		CoachID:     in.CoachID,
		ScheduledAt: in.ScheduledAt,
		Venue:       venue,
		Price:       in.Price,
	}
	if err := s.db.CreateReservation(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) GetReservation(ctx context.Context, id string) (*models.CoachingReservation, error) {
	return s.db.GetReservation(ctx, id)
}

// TransitionReservation moves a reservation forward. Completed and
// cancelled reservations are terminal.
func (s *Service) TransitionReservation(ctx context.Context, id, status string) (*models.CoachingReservation, error) {
	to := models.ReservationStatus(strings.ToLower(strings.TrimSpace(status)))
	if !to.Valid() {
		return nil, apperr.Newf(apperr.KindValidation, "coaching.TransitionReservation", "unknown status %q", status)
	}
	return s.db.TransitionReservation(ctx, id, to)
}
