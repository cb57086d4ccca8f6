package db

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/swing-coach/backend/internal/apperr"
	"github.com/swing-coach/backend/internal/config"
	"github.com/swing-coach/backend/internal/db/models"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	d, err := Open(context.Background(), config.DatabaseConfig{
		Driver: "sqlite3",
		DSN:    filepath.Join(t.TempDir(), "test.db"),
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func seedVideo(t *testing.T, d *Database) *models.Video {
	t.Helper()
	v := &models.Video{UserID: "u1", FileName: "swing01.mp4", VideoLocator: "videos/x/swing01.mp4", DurationSec: 12}
	require.NoError(t, d.CreateVideo(context.Background(), v))
	return v
}

func TestRebind(t *testing.T) {
	pg := &Database{driver: "pgx"}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", pg.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))
	lite := &Database{driver: "sqlite3"}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestVideoRoundTrip(t *testing.T) {
	ctx := context.Background()
	d := newTestDB(t)
	club := "driver"
	v := &models.Video{UserID: "u1", FileName: "swing01.mp4", VideoLocator: "videos/a/swing01.mp4", DurationSec: 8.5, ClubType: &club}
	require.NoError(t, d.CreateVideo(ctx, v))

	got, err := d.GetVideo(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, "driver", *got.ClubType)
	assert.Nil(t, got.ThumbLocator)
	assert.Equal(t, 8.5, got.DurationSec)

	require.NoError(t, d.SetVideoThumbnail(ctx, v.ID, "videos/a/thumb.jpg"))
	got, err = d.GetVideo(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, "videos/a/thumb.jpg", *got.ThumbLocator)

	list, err := d.ListVideos(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
	list, err = d.ListVideos(ctx, "someone-else")
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = d.GetVideo(ctx, "missing")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestEnsureSectionGroupIsIdempotent(t *testing.T) {
	ctx := context.Background()
	d := newTestDB(t)
	v := seedVideo(t, d)

	g1, created, err := d.EnsureSectionGroup(ctx, v.ID)
	require.NoError(t, err)
	assert.True(t, created)
	g2, created, err := d.EnsureSectionGroup(ctx, v.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, g1.ID, g2.ID)

	_, _, err = d.EnsureSectionGroup(ctx, "no-such-video")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestEnsureSectionGroupConcurrent(t *testing.T) {
	ctx := context.Background()
	d := newTestDB(t)
	v := seedVideo(t, d)

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			g, _, err := d.EnsureSectionGroup(ctx, v.ID)
			if assert.NoError(t, err) {
				ids[i] = g.ID
			}
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestSectionRoundTripAndOrdering(t *testing.T) {
	ctx := context.Background()
	d := newTestDB(t)
	v := seedVideo(t, d)
	g, _, err := d.EnsureSectionGroup(ctx, v.ID)
	require.NoError(t, err)

	markup := json.RawMessage(`{"shapes":[{"type":"circle","x":10,"y":20,"r":5}]}`)
	for _, start := range []float64{3.25, 0.5, 1.75} {
		s := &models.SwingSection{GroupID: g.ID, StartSec: start, EndSec: start + 1.1, Tags: models.PhaseSet{models.PhaseTop}, Markup: markup}
		require.NoError(t, d.CreateSection(ctx, s))

		got, err := d.GetSection(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, start, got.StartSec)
		assert.Equal(t, start+1.1, got.EndSec)
		assert.Equal(t, models.PhaseSet{models.PhaseTop}, got.Tags)
		assert.JSONEq(t, string(markup), string(got.Markup))
	}

	list, err := d.ListSections(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []float64{0.5, 1.75, 3.25}, []float64{list[0].StartSec, list[1].StartSec, list[2].StartSec})
}

func TestSetSectionSummaryIgnoresStaleComment(t *testing.T) {
	ctx := context.Background()
	d := newTestDB(t)
	v := seedVideo(t, d)
	g, _, err := d.EnsureSectionGroup(ctx, v.ID)
	require.NoError(t, err)

	s := &models.SwingSection{GroupID: g.ID, StartSec: 0, EndSec: 1, CoachComment: models.StringPtr("new comment")}
	require.NoError(t, d.CreateSection(ctx, s))

	ok, err := d.SetSectionSummary(ctx, s.ID, "old comment", "old summary")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = d.SetSectionSummary(ctx, s.ID, "new comment", "summary")
	require.NoError(t, err)
	assert.True(t, ok)
	got, err := d.GetSection(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "summary", *got.CommentSummary)
}

func TestFeedbackCreatedAtSetOnce(t *testing.T) {
	ctx := context.Background()
	d := newTestDB(t)
	v := seedVideo(t, d)
	g, _, err := d.EnsureSectionGroup(ctx, v.ID)
	require.NoError(t, err)

	g.OverallFeedbackSummary = models.StringPtr("overall")
	require.NoError(t, d.SaveGroupFeedback(ctx, g))
	assert.Nil(t, g.FeedbackCreatedAt)

	g.NextTrainingMenuSummary = models.StringPtr("menu")
	require.NoError(t, d.SaveGroupFeedback(ctx, g))
	require.NotNil(t, g.FeedbackCreatedAt)
	first := *g.FeedbackCreatedAt

	time.Sleep(5 * time.Millisecond)
	g.NextTrainingMenuSummary = nil
	require.NoError(t, d.SaveGroupFeedback(ctx, g))
	require.NotNil(t, g.FeedbackCreatedAt)
	assert.True(t, first.Equal(*g.FeedbackCreatedAt))

	g.NextTrainingMenuSummary = models.StringPtr("menu v2")
	require.NoError(t, d.SaveGroupFeedback(ctx, g))
	assert.True(t, first.Equal(*g.FeedbackCreatedAt))
}

func TestDeleteVideoCascades(t *testing.T) {
	ctx := context.Background()
	d := newTestDB(t)
	v := seedVideo(t, d)
	g, _, err := d.EnsureSectionGroup(ctx, v.ID)
	require.NoError(t, err)
	s := &models.SwingSection{GroupID: g.ID, StartSec: 0, EndSec: 1, ImageLocator: models.StringPtr("captures/x/swing01_IM.jpg")}
	require.NoError(t, d.CreateSection(ctx, s))
	require.NoError(t, d.CreateAdvice(ctx, &models.SectionAdvice{SectionID: s.ID, Text: "shoulders", AudioURL: models.StringPtr("audio/a.webm")}))

	media, err := d.VideoMedia(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"captures/x/swing01_IM.jpg"}, media.SectionImages)
	assert.Equal(t, []string{"audio/a.webm"}, media.AdviceAudio)

	require.NoError(t, d.DeleteVideo(ctx, v.ID))

	for _, table := range []string{"videos", "section_groups", "swing_sections", "section_advices"} {
		var n int
		require.NoError(t, d.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
		assert.Zero(t, n, table)
	}
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(d.DeleteVideo(ctx, v.ID)))
}

func TestAdvices(t *testing.T) {
	ctx := context.Background()
	d := newTestDB(t)
	v := seedVideo(t, d)
	g, _, err := d.EnsureSectionGroup(ctx, v.ID)
	require.NoError(t, err)
	s := &models.SwingSection{GroupID: g.ID, StartSec: 0, EndSec: 1}
	require.NoError(t, d.CreateSection(ctx, s))

	top := models.PhaseTop
	a := &models.SectionAdvice{SectionID: s.ID, Phase: &top, Text: "wrist angle", AudioURL: models.StringPtr("audio/swing01_phase_advice_TP.webm")}
	require.NoError(t, d.CreateAdvice(ctx, a))
	require.NoError(t, d.CreateAdvice(ctx, &models.SectionAdvice{SectionID: s.ID, Text: "tempo"}))

	list, err := d.ListAdvices(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, models.PhaseTop, *list[0].Phase)

	audio, err := d.DeleteAdvice(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "audio/swing01_phase_advice_TP.webm", audio)

	require.NoError(t, d.DeleteSection(ctx, s.ID))
	list, err = d.ListAdvices(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	err = d.CreateAdvice(ctx, &models.SectionAdvice{SectionID: s.ID, Text: "x"})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestReservationTransitions(t *testing.T) {
	ctx := context.Background()
	d := newTestDB(t)

	r := &models.CoachingReservation{UserID: "u1", CoachID: "c1", ScheduledAt: time.Now().Add(48 * time.Hour), Venue: models.VenueIndoor, Price: 5500}
	require.NoError(t, d.CreateReservation(ctx, r))
	assert.Equal(t, models.StatusReserved, r.Status)

	got, err := d.TransitionReservation(ctx, r.ID, models.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
	assert.Equal(t, int64(5500), got.Price)

	_, err = d.TransitionReservation(ctx, r.ID, models.StatusCompleted)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	_, err = d.TransitionReservation(ctx, "missing", models.StatusCompleted)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
