package db

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/swing-coach/backend/internal/db/models"
)

const groupColumns = `id, video_id, overall_feedback, overall_feedback_summary, next_training_menu,
	next_training_menu_summary, feedback_created_at, created_at, updated_at`

func scanGroup(row interface{ Scan(...any) error }) (*models.SectionGroup, error) {
	var g models.SectionGroup
	var fb, fbSum, menu, menuSum sql.NullString
	var finalized sql.NullTime
	err := row.Scan(&g.ID, &g.VideoID, &fb, &fbSum, &menu, &menuSum, &finalized, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	g.OverallFeedback = stringPtr(fb)
	g.OverallFeedbackSummary = stringPtr(fbSum)
	g.NextTrainingMenu = stringPtr(menu)
	g.NextTrainingMenuSummary = stringPtr(menuSum)
	g.FeedbackCreatedAt = timePtr(finalized)
	return &g, nil
}

// EnsureSectionGroup returns the video's group, creating it on first use.
// Concurrent callers for the same video get the same row.
func (d *Database) EnsureSectionGroup(ctx context.Context, videoID string) (*models.SectionGroup, bool, error) {
	if _, err := d.GetVideo(ctx, videoID); err != nil {
		return nil, false, err
	}
	ts := now()
	res, err := d.exec(ctx, d.db, `INSERT INTO section_groups (id, video_id, created_at, updated_at)
		VALUES (?, ?, ?, ?) ON CONFLICT (video_id) DO NOTHING`,
		uuid.NewString(), videoID, ts, ts)
	if err != nil {
		return nil, false, err
	}
	n, _ := res.RowsAffected()
	g, err := d.GetSectionGroupByVideo(ctx, videoID)
	if err != nil {
		return nil, false, err
	}
	return g, n > 0, nil
}

func (d *Database) GetSectionGroup(ctx context.Context, id string) (*models.SectionGroup, error) {
	g, err := scanGroup(d.queryRow(ctx, d.db, `SELECT `+groupColumns+` FROM section_groups WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "db.GetSectionGroup", "section group", id)
	}
	return g, nil
}

func (d *Database) GetSectionGroupByVideo(ctx context.Context, videoID string) (*models.SectionGroup, error) {
	g, err := scanGroup(d.queryRow(ctx, d.db, `SELECT `+groupColumns+` FROM section_groups WHERE video_id = ?`, videoID))
	if err != nil {
		return nil, notFound(err, "db.GetSectionGroupByVideo", "section group for video", videoID)
	}
	return g, nil
}

// SaveGroupFeedback writes the four feedback columns. feedback_created_at is
// set only when the group is finalized and it was still empty.
func (d *Database) SaveGroupFeedback(ctx context.Context, g *models.SectionGroup) error {
	ts := now()
	var finalizedAt any
	if g.Finalized() {
		finalizedAt = ts
	}
	res, err := d.exec(ctx, d.db, `UPDATE section_groups SET
		overall_feedback = ?, overall_feedback_summary = ?,
		next_training_menu = ?, next_training_menu_summary = ?,
		feedback_created_at = COALESCE(feedback_created_at, ?),
		updated_at = ?
		WHERE id = ?`,
		nullString(g.OverallFeedback), nullString(g.OverallFeedbackSummary),
		nullString(g.NextTrainingMenu), nullString(g.NextTrainingMenuSummary),
		finalizedAt, ts, g.ID)
	if err != nil {
		return err
	}
	if err := expectOne(res, "db.SaveGroupFeedback", "section group", g.ID); err != nil {
		return err
	}
	fresh, err := d.GetSectionGroup(ctx, g.ID)
	if err != nil {
		return err
	}
	*g = *fresh
	return nil
}

// SetOverallSummary updates only the roll-up summary column.
func (d *Database) SetOverallSummary(ctx context.Context, groupID string, summary *string) (*models.SectionGroup, error) {
	g, err := d.GetSectionGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	g.OverallFeedbackSummary = summary
	if err := d.SaveGroupFeedback(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

const sectionColumns = `id, section_group_id, start_sec, end_sec, image_locator, tags, markup_json,
	coach_comment, coach_comment_summary, created_at, updated_at`

func scanSection(row interface{ Scan(...any) error }) (*models.SwingSection, error) {
	var s models.SwingSection
	var image, markup, comment, summary sql.NullString
	err := row.Scan(&s.ID, &s.GroupID, &s.StartSec, &s.EndSec, &image, &s.Tags, &markup,
		&comment, &summary, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.ImageLocator = stringPtr(image)
	if markup.Valid && markup.String != "" {
		s.Markup = json.RawMessage(markup.String)
	}
	s.CoachComment = stringPtr(comment)
	s.CommentSummary = stringPtr(summary)
	return &s, nil
}

func markupValue(m json.RawMessage) sql.NullString {
	if len(m) == 0 || string(m) == "null" {
		return sql.NullString{}
	}
	return sql.NullString{String: string(m), Valid: true}
}

func (d *Database) CreateSection(ctx context.Context, s *models.SwingSection) error {
	if _, err := d.GetSectionGroup(ctx, s.GroupID); err != nil {
		return err
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.CreatedAt = now()
	s.UpdatedAt = s.CreatedAt
	_, err := d.exec(ctx, d.db, `INSERT INTO swing_sections (`+sectionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.GroupID, s.StartSec, s.EndSec, nullString(s.ImageLocator), s.Tags, markupValue(s.Markup),
		nullString(s.CoachComment), nullString(s.CommentSummary), s.CreatedAt, s.UpdatedAt)
	return err
}

func (d *Database) GetSection(ctx context.Context, id string) (*models.SwingSection, error) {
	s, err := scanSection(d.queryRow(ctx, d.db, `SELECT `+sectionColumns+` FROM swing_sections WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "db.GetSection", "section", id)
	}
	return s, nil
}

// ListSections returns a group's sections in chronological order: ascending
// start offset, ties broken by creation time.
func (d *Database) ListSections(ctx context.Context, groupID string) ([]models.SwingSection, error) {
	rows, err := d.query(ctx, d.db, `SELECT `+sectionColumns+` FROM swing_sections
		WHERE section_group_id = ? ORDER BY start_sec ASC, created_at ASC, id ASC`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sections := []models.SwingSection{}
	for rows.Next() {
		s, err := scanSection(rows)
		if err != nil {
			return nil, err
		}
		sections = append(sections, *s)
	}
	return sections, rows.Err()
}

// UpdateSection writes every mutable column of s. Last write wins.
func (d *Database) UpdateSection(ctx context.Context, s *models.SwingSection) error {
	s.UpdatedAt = now()
	res, err := d.exec(ctx, d.db, `UPDATE swing_sections SET
		start_sec = ?, end_sec = ?, image_locator = ?, tags = ?, markup_json = ?,
		coach_comment = ?, coach_comment_summary = ?, updated_at = ?
		WHERE id = ?`,
		s.StartSec, s.EndSec, nullString(s.ImageLocator), s.Tags, markupValue(s.Markup),
		nullString(s.CoachComment), nullString(s.CommentSummary), s.UpdatedAt, s.ID)
	if err != nil {
		return err
	}
	return expectOne(res, "db.UpdateSection", "section", s.ID)
}

// SectionImageInUse reports whether any section still points at locator.
func (d *Database) SectionImageInUse(ctx context.Context, locator string) (bool, error) {
	var n int
	err := d.queryRow(ctx, d.db, `SELECT COUNT(*) FROM swing_sections WHERE image_locator = ?`, locator).Scan(&n)
	return n > 0, err
}

// SetSectionSummary stores summary only if the comment is still the one it
// was generated from.
func (d *Database) SetSectionSummary(ctx context.Context, id, comment, summary string) (bool, error) {
	res, err := d.exec(ctx, d.db, `UPDATE swing_sections SET coach_comment_summary = ?, updated_at = ?
		WHERE id = ? AND coach_comment = ?`, summary, now(), id, comment)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteSection removes a section and its advices.
func (d *Database) DeleteSection(ctx context.Context, id string) error {
	return d.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := d.exec(ctx, tx, `DELETE FROM section_advices WHERE section_id = ?`, id); err != nil {
			return err
		}
		res, err := d.exec(ctx, tx, `DELETE FROM swing_sections WHERE id = ?`, id)
		if err != nil {
			return err
		}
		return expectOne(res, "db.DeleteSection", "section", id)
	})
}

func (d *Database) CreateAdvice(ctx context.Context, a *models.SectionAdvice) error {
	if _, err := d.GetSection(ctx, a.SectionID); err != nil {
		return err
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = now()
	var phase sql.NullString
	if a.Phase != nil {
		phase = sql.NullString{String: string(*a.Phase), Valid: true}
	}
	_, err := d.exec(ctx, d.db, `INSERT INTO section_advices (id, section_id, phase, text, audio_locator, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.SectionID, phase, a.Text, nullString(a.AudioURL), a.CreatedAt)
	return err
}

func (d *Database) ListAdvices(ctx context.Context, sectionID string) ([]models.SectionAdvice, error) {
	rows, err := d.query(ctx, d.db, `SELECT id, section_id, phase, text, audio_locator, created_at
		FROM section_advices WHERE section_id = ? ORDER BY created_at ASC, id ASC`, sectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	advices := []models.SectionAdvice{}
	for rows.Next() {
		var a models.SectionAdvice
		var phase, audio sql.NullString
		if err := rows.Scan(&a.ID, &a.SectionID, &phase, &a.Text, &audio, &a.CreatedAt); err != nil {
			return nil, err
		}
		if phase.Valid {
			p := models.Phase(phase.String)
			a.Phase = &p
		}
		a.AudioURL = stringPtr(audio)
		advices = append(advices, a)
	}
	return advices, rows.Err()
}

// DeleteAdvice removes one advice and returns its audio locator, if any.
func (d *Database) DeleteAdvice(ctx context.Context, id string) (string, error) {
	var audio sql.NullString
	err := d.queryRow(ctx, d.db, `SELECT audio_locator FROM section_advices WHERE id = ?`, id).Scan(&audio)
	if err != nil {
		return "", notFound(err, "db.DeleteAdvice", "advice", id)
	}
	res, err := d.exec(ctx, d.db, `DELETE FROM section_advices WHERE id = ?`, id)
	if err != nil {
		return "", err
	}
	if err := expectOne(res, "db.DeleteAdvice", "advice", id); err != nil {
		return "", err
	}
	return audio.String, nil
}
