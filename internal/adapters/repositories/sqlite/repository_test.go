package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/iwtcode/diagAdapter/internal/middleware/logging"
	"github.com/iwtcode/diagAdapter/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	logger := logging.NewLogger(&logging.Config{Enabled: false}, "test")
	repo, err := Open(filepath.Join(t.TempDir(), "db", "diag.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestReference_RoundTrip(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	ref, err := repo.LoadReference(ctx, "FOC1")
	require.NoError(t, err)
	assert.Nil(t, ref, "для нового изделия опорного времени нет")

	first := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SaveReference(ctx, "FOC1", first))
	second := first.Add(time.Hour)
	require.NoError(t, repo.SaveReference(ctx, "FOC1", second))

	ref, err = repo.LoadReference(ctx, "FOC1")
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.True(t, ref.Equal(second))
}

func TestECIDs_Replace(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveECIDs(ctx, "FOC1", []models.ECIDRecord{
		{ASIC: 0, Core: 0, Type: "Doppler", DieID: "AAA"},
		{ASIC: 0, Core: 1, Type: "Doppler", DieID: "BBB"},
	}))
	require.NoError(t, repo.SaveECIDs(ctx, "FOC1", []models.ECIDRecord{
		{ASIC: 1, Core: 0, Type: "Doppler", DieID: "CCC", CoreFreqMHz: 375},
	}))

	got, err := repo.GetECIDs(ctx, "FOC1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "CCC", got[0].DieID)
	assert.Equal(t, 375, got[0].CoreFreqMHz)
}

func TestRun_SaveAndList(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	report := &models.RunReport{
		RunID:  "run-1",
		Serial: "FOC1",
		Status: models.StepFail,
		Steps: []models.StepResult{
			{Name: "voltage_margin", Status: models.StepFail, Message: "1 of 2 rails out of limits",
				Margins: []models.MarginResult{{Label: "VDD", Actual: 1.2, Lower: 0.9, Upper: 1.1}},
				Started: now, Finished: now},
			{Name: "poe", Status: models.StepDisabled, Started: now, Finished: now},
		},
		Started:  now,
		Finished: now,
	}
	require.NoError(t, repo.SaveRun(ctx, report))
	require.NoError(t, repo.SaveRun(ctx, report), "повторное сохранение не дублирует шаги")

	steps, err := repo.GetStepResults(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, models.StepFail, steps[0].Status)
	require.Len(t, steps[0].Margins, 1)
	assert.Equal(t, "VDD", steps[0].Margins[0].Label)
	assert.True(t, steps[0].Started.Equal(now))
	assert.Equal(t, models.StepDisabled, steps[1].Status)

	require.NoError(t, repo.SaveStepResult(ctx, "run-1", "FOC1", models.StepResult{Name: "rtc", Status: models.StepPass, Started: now, Finished: now}))
	steps, err = repo.GetStepResults(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, steps, 3)
}
