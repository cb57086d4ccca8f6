package db

import (
	"context"

	"github.com/google/uuid"

	"github.com/swing-coach/backend/internal/apperr"
	"github.com/swing-coach/backend/internal/db/models"
)

const reservationColumns = `id, user_id, coach_id, scheduled_at, location_type, status, price, created_at, updated_at`

func (d *Database) CreateReservation(ctx context.Context, r *models.CoachingReservation) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.Status = models.StatusReserved
	r.CreatedAt = now()
	r.UpdatedAt = r.CreatedAt
	r.ScheduledAt = r.ScheduledAt.UTC()
	_, err := d.exec(ctx, d.db, `INSERT INTO coaching_reservations (`+reservationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.CoachID, r.ScheduledAt, string(r.Venue), string(r.Status), r.Price, r.CreatedAt, r.UpdatedAt)
	return err
}

func (d *Database) GetReservation(ctx context.Context, id string) (*models.CoachingReservation, error) {
	var r models.CoachingReservation
	var venue, status string
	err := d.queryRow(ctx, d.db, `SELECT `+reservationColumns+` FROM coaching_reservations WHERE id = ?`, id).
		Scan(&r.ID, &r.UserID, &r.CoachID, &r.ScheduledAt, &venue, &status, &r.Price, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "db.GetReservation", "reservation", id)
	}
	r.Venue = models.Venue(venue)
	r.Status = models.ReservationStatus(status)
	return &r, nil
}

// TransitionReservation moves a reservation from its current status to to.
// The update is conditional on the status read, so two racing transitions
// cannot both succeed.
func (d *Database) TransitionReservation(ctx context.Context, id string, to models.ReservationStatus) (*models.CoachingReservation, error) {
	const op = "db.TransitionReservation"
	r, err := d.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !r.Status.CanTransition(to) {
		return nil, apperr.Newf(apperr.KindConflict, op, "cannot move reservation from %s to %s", r.Status, to)
	}
	res, err := d.exec(ctx, d.db, `UPDATE coaching_reservations SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`, string(to), now(), id, string(r.Status))
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.Newf(apperr.KindConflict, op, "reservation %s changed concurrently", id)
	}
	return d.GetReservation(ctx, id)
}
