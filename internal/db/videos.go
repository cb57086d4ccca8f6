package db

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/swing-coach/backend/internal/db/models"
)

const videoColumns = `id, user_id, file_name, video_locator, thumbnail_locator, duration_sec,
	club_type, swing_form, swing_note, created_at, updated_at`

func scanVideo(row interface{ Scan(...any) error }) (*models.Video, error) {
	var v models.Video
	var thumb, club, form, note sql.NullString
	err := row.Scan(&v.ID, &v.UserID, &v.FileName, &v.VideoLocator, &thumb, &v.DurationSec,
		&club, &form, &note, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	v.ThumbLocator = stringPtr(thumb)
	v.ClubType = stringPtr(club)
	v.SwingForm = stringPtr(form)
	v.SwingNote = stringPtr(note)
	return &v, nil
}

// CreateVideo inserts v, assigning ID and timestamps when unset.
func (d *Database) CreateVideo(ctx context.Context, v *models.Video) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	v.CreatedAt = now()
	v.UpdatedAt = v.CreatedAt
	_, err := d.exec(ctx, d.db, `INSERT INTO videos (`+videoColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.UserID, v.FileName, v.VideoLocator, nullString(v.ThumbLocator), v.DurationSec,
		nullString(v.ClubType), nullString(v.SwingForm), nullString(v.SwingNote), v.CreatedAt, v.UpdatedAt)
	return err
}

func (d *Database) GetVideo(ctx context.Context, id string) (*models.Video, error) {
	v, err := scanVideo(d.queryRow(ctx, d.db, `SELECT `+videoColumns+` FROM videos WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "db.GetVideo", "video", id)
	}
	return v, nil
}

// ListVideos returns a user's videos, newest first. An empty userID lists all.
func (d *Database) ListVideos(ctx context.Context, userID string) ([]models.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos`
	var args []any
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := d.query(ctx, d.db, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	videos := []models.Video{}
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, *v)
	}
	return videos, rows.Err()
}

func (d *Database) SetVideoThumbnail(ctx context.Context, id, locator string) error {
	res, err := d.exec(ctx, d.db,
		`UPDATE videos SET thumbnail_locator = ?, updated_at = ? WHERE id = ?`, locator, now(), id)
	if err != nil {
		return err
	}
	return expectOne(res, "db.SetVideoThumbnail", "video", id)
}

// VideoMedia lists every locator owned by a video and its sections.
type VideoMedia struct {
	Video         string
	Thumbnail     string
	SectionImages []string
	AdviceAudio   []string
}

func (d *Database) VideoMedia(ctx context.Context, id string) (*VideoMedia, error) {
	v, err := d.GetVideo(ctx, id)
	if err != nil {
		return nil, err
	}
	m := &VideoMedia{Video: v.VideoLocator}
	if v.ThumbLocator != nil {
		m.Thumbnail = *v.ThumbLocator
	}

	m.SectionImages, err = d.collectStrings(ctx, `SELECT s.image_locator FROM swing_sections s
		JOIN section_groups g ON g.id = s.section_group_id
		WHERE g.video_id = ? AND s.image_locator IS NOT NULL`, id)
	if err != nil {
		return nil, err
	}
	m.AdviceAudio, err = d.collectStrings(ctx, `SELECT a.audio_locator FROM section_advices a
		JOIN swing_sections s ON s.id = a.section_id
		JOIN section_groups g ON g.id = s.section_group_id
		WHERE g.video_id = ? AND a.audio_locator IS NOT NULL`, id)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (d *Database) collectStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := d.query(ctx, d.db, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		if s != "" {
			out = append(out, s)
		}
	}
	return out, rows.Err()
}

// DeleteVideo removes the video row together with its group, sections and
// advices in one transaction.
func (d *Database) DeleteVideo(ctx context.Context, id string) error {
	return d.inTx(ctx, func(tx *sql.Tx) error {
		stmts := []string{
			`DELETE FROM section_advices WHERE section_id IN (
				SELECT s.id FROM swing_sections s JOIN section_groups g ON g.id = s.section_group_id
				WHERE g.video_id = ?)`,
			`DELETE FROM swing_sections WHERE section_group_id IN (
				SELECT id FROM section_groups WHERE video_id = ?)`,
			`DELETE FROM section_groups WHERE video_id = ?`,
		}
		for _, stmt := range stmts {
			if _, err := d.exec(ctx, tx, stmt, id); err != nil {
				return err
			}
		}
		res, err := d.exec(ctx, tx, `DELETE FROM videos WHERE id = ?`, id)
		if err != nil {
			return err
		}
		return expectOne(res, "db.DeleteVideo", "video", id)
	})
}
