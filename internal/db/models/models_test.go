package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseCodes(t *testing.T) {
	seen := map[string]bool{}
	for _, p := range Phases {
		code := p.Code()
		assert.Len(t, code, 2, p)
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
	assert.Len(t, Phases, 13)
	assert.Equal(t, "AD", PhaseAddress.Code())
	assert.Equal(t, "TP", PhaseTop.Code())
	assert.Equal(t, "IM", PhaseImpact.Code())
}

func TestParsePhase(t *testing.T) {
	tests := []struct {
		in      string
		want    Phase
		wantErr bool
	}{
		{in: "impact", want: PhaseImpact},
		{in: " Follow-Through ", want: PhaseFollowThrough},
		{in: "finish 2", want: PhaseFinish2},
		{in: "IM", want: PhaseImpact},
		{in: "tp", want: PhaseTop},
		{in: "other", want: PhaseOther},
		{in: "putting", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePhase(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPhaseSetScanAndValue(t *testing.T) {
	set, err := ParsePhaseSet("top, impact,,top")
	require.NoError(t, err)
	assert.Equal(t, PhaseSet{PhaseTop, PhaseImpact}, set)

	v, err := set.Value()
	require.NoError(t, err)
	assert.Equal(t, "top,impact", v)

	var scanned PhaseSet
	require.NoError(t, scanned.Scan([]byte("address,impact")))
	assert.Equal(t, PhaseSet{PhaseAddress, PhaseImpact}, scanned)

	require.NoError(t, scanned.Scan(nil))
	assert.Empty(t, scanned)

	assert.Error(t, scanned.Scan("address,chipping"))

	b, err := json.Marshal(PhaseSet(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(b))
}

func TestSectionState(t *testing.T) {
	s := &SwingSection{StartSec: 0, EndSec: 1}
	assert.Equal(t, SectionCreated, s.State())

	s.Tags = PhaseSet{PhaseTop}
	assert.Equal(t, SectionTagged, s.State())

	s.CoachComment = StringPtr("keep the left arm straight")
	assert.Equal(t, SectionCommented, s.State())
	assert.True(t, s.NeedsSummary())

	s.CommentSummary = StringPtr("left arm straight")
	assert.Equal(t, SectionSummarized, s.State())
	assert.False(t, s.NeedsSummary())
}

func TestGroupState(t *testing.T) {
	g := &SectionGroup{}
	assert.Equal(t, GroupEmpty, g.State())

	g.OverallFeedback = StringPtr("good tempo")
	assert.Equal(t, GroupHasOverallComment, g.State())

	g.OverallFeedbackSummary = StringPtr("tempo")
	assert.False(t, g.Finalized())

	g.NextTrainingMenuSummary = StringPtr("half swings")
	assert.True(t, g.Finalized())
	assert.Equal(t, GroupFinalized, g.State())
}

func TestReservationTransitions(t *testing.T) {
	assert.True(t, StatusReserved.CanTransition(StatusCompleted))
	assert.True(t, StatusReserved.CanTransition(StatusCancelled))
	assert.False(t, StatusReserved.CanTransition(StatusReserved))
	assert.False(t, StatusCancelled.CanTransition(StatusReserved))
	assert.False(t, StatusCancelled.CanTransition(StatusCompleted))
	assert.False(t, StatusCompleted.CanTransition(StatusCancelled))
}
