package leadsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"bluereach_backend/internal/events"
	runsrepo "bluereach_backend/internal/leadsync/repository"
	"bluereach_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRuns struct {
	runs []runsrepo.Run
	err  error
}

func (m *memRuns) Insert(_ context.Context, run runsrepo.Run) error {
	if m.err != nil {
		return m.err
	}
	m.runs = append(m.runs, run)
	return nil
}

type memArchive struct {
	bucket, folder, name string
	body                 []byte
	err                  error
}

func (m *memArchive) PutJSON(_ context.Context, bucket, folder, name string, body []byte) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.bucket, m.folder, m.name, m.body = bucket, folder, name, body
	return folder + "/" + name + ".json", nil
}

func completedEvent() events.SyncCompleted {
	campaignID := uuid.New()
	return events.SyncCompleted{
		BaseEvent:  events.NewBaseEvent(),
		RunID:      uuid.New(),
		Kind:       KindCampaign,
		Mode:       string(ModeLive),
		CampaignID: &campaignID,
		Imported:   3,
		Updated:    2,
		Errors:     []string{"x@example.com: boom"},
		Before:     events.Counts{Total: 10, Replied: 2, Positive: 1},
		After:      events.Counts{Total: 13, Replied: 3, Positive: 2},
		StartedAt:  time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC),
		FinishedAt: time.Date(2026, 5, 6, 7, 9, 0, 0, time.UTC),
		Report:     []byte(`{"ok":true}`),
	}
}

func TestRecorderStoresRunAndReport(t *testing.T) {
	runs := &memRuns{}
	archive := &memArchive{}
	rec := NewRecorder(runs, archive, "sync-reports", logger.New("test"))
	evt := completedEvent()

	require.NoError(t, rec.Handle(context.Background(), evt))

	require.Len(t, runs.runs, 1)
	run := runs.runs[0]
	assert.Equal(t, evt.RunID, run.ID)
	assert.Equal(t, evt.CampaignID, run.CampaignID)
	assert.Equal(t, 3, run.Imported)
	assert.Equal(t, 13, run.AfterTotal)
	assert.Equal(t, 1, run.BeforePositive)
	assert.Equal(t, evt.Errors, run.Errors)

	assert.Equal(t, "sync-reports", archive.bucket)
	assert.Equal(t, "campaign/2026-05-06", archive.folder)
	assert.Equal(t, evt.RunID.String(), archive.name)
	require.NotNil(t, run.ReportKey)
	assert.Equal(t, "campaign/2026-05-06/"+evt.RunID.String()+".json", *run.ReportKey)
}

func TestRecorderStoresRunWhenArchiveFails(t *testing.T) {
	runs := &memRuns{}
	rec := NewRecorder(runs, &memArchive{err: errors.New("bucket gone")}, "sync-reports", logger.New("test"))

	require.NoError(t, rec.Handle(context.Background(), completedEvent()))
	require.Len(t, runs.runs, 1)
	assert.Nil(t, runs.runs[0].ReportKey)
}

func TestRecorderReportsInsertFailure(t *testing.T) {
	rec := NewRecorder(&memRuns{err: errors.New("db down")}, nil, "", logger.New("test"))
	assert.Error(t, rec.Handle(context.Background(), completedEvent()))
}

func TestRecorderIgnoresOtherEvents(t *testing.T) {
	runs := &memRuns{}
	rec := NewRecorder(runs, nil, "", logger.New("test"))

	err := rec.Handle(context.Background(), events.LeadPositiveReplyDetected{BaseEvent: events.NewBaseEvent(), LeadID: uuid.New()})
	require.NoError(t, err)
	assert.Empty(t, runs.runs)
}
