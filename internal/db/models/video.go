package models

import "time"

type Video struct {
	ID           string    `json:"video_id"`
	UserID       string    `json:"user_id"`
	FileName     string    `json:"file_name"`
	VideoLocator string    `json:"video_url"`
	ThumbLocator *string   `json:"thumbnail_url,omitempty"`
	DurationSec  float64   `json:"duration_sec"`
	ClubType     *string   `json:"club_type,omitempty"`
	SwingForm    *string   `json:"swing_form,omitempty"`
	SwingNote    *string   `json:"swing_note,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

