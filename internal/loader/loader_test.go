package loader

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nicolovejoy/housing-data-v1/internal/models"
	"github.com/nicolovejoy/housing-data-v1/internal/store"
)

// mockStorage is a mock implementation of the Storage interface
type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) UpsertBatch(pairs []models.AreaRent) (int, int, error) {
	args := m.Called(pairs)
	return args.Int(0), args.Int(1), args.Error(2)
}

func (m *mockStorage) GetFingerprint() (models.Fingerprint, error) {
	args := m.Called()
	return args.Get(0).(models.Fingerprint), args.Error(1)
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewTestStore()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return logger
}

func countyRecord(name, state string, twoBedroom any) models.RawRecord {
	return models.RawRecord{
		Name:           name,
		Kind:           "county",
		StateCode:      state,
		TwoBedroomRent: twoBedroom,
	}
}

func generateRecords(count int) []models.RawRecord {
	records := make([]models.RawRecord, count)
	for i := range records {
		records[i] = countyRecord(fmt.Sprintf("Test County %04d", i), "KS", float64(800+i))
	}
	return records
}

func TestRunLoadsAndReports(t *testing.T) {
	s := setupTestStore(t)
	l := New(s, testLogger())

	records := []models.RawRecord{
		countyRecord("Fresno County", "CA", float64(1290)),
		countyRecord("Kings County", "NY", float64(2451)),
		{
			Name:           "San Francisco, CA HUD Metro FMR Area",
			Kind:           "metro",
			StateCode:      "CA",
			StateName:      "California",
			StudioRent:     float64(2197),
			TwoBedroomRent: float64(3253),
		},
	}

	report, err := l.Run(context.Background(), records, Options{Source: "fmr_data.json"})
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "fmr_data.json", report.Source)
	assert.Equal(t, 3, report.Received)
	assert.Equal(t, 3, report.Inserted)
	assert.Equal(t, 0, report.Updated)
	assert.Equal(t, 0, report.Rejected)
	assert.Equal(t, 0, report.Duplicates)

	assert.Equal(t, int64(3), report.Fingerprint.TotalAreas)
	require.NotNil(t, report.Fingerprint.MinTwoBedroom)
	require.NotNil(t, report.Fingerprint.MaxTwoBedroom)
	assert.Equal(t, 1290, *report.Fingerprint.MinTwoBedroom)
	assert.Equal(t, 3253, *report.Fingerprint.MaxTwoBedroom)
}

func TestRunIsIdempotent(t *testing.T) {
	s := setupTestStore(t)
	l := New(s, testLogger())
	records := generateRecords(25)

	first, err := l.Run(context.Background(), records, Options{BatchSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 25, first.Inserted)
	assert.Equal(t, 0, first.Updated)

	// The same input again converges to the same state: all updates, same
	// fingerprint, no extra rows.
	second, err := l.Run(context.Background(), records, Options{BatchSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 25, second.Updated)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)

	count, err := s.CountAreas(models.Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(25), count)
}

func TestRunSkipsRejectedRecords(t *testing.T) {
	s := setupTestStore(t)
	l := New(s, testLogger())

	records := []models.RawRecord{
		countyRecord("Fresno County", "CA", float64(1290)),
		{Name: "", Kind: "county", StateCode: "CA"},
		{Name: "Bad Kind", Kind: "village", StateCode: "CA"},
		{Name: "Bad State", Kind: "county", StateCode: "ZZ"},
		{Name: "Bad Rent", Kind: "county", StateCode: "CA", TwoBedroomRent: "lots"},
		countyRecord("Kings County", "NY", float64(2451)),
	}

	report, err := l.Run(context.Background(), records, Options{MaxRejectRatio: 0.9})
	require.NoError(t, err)

	assert.Equal(t, 6, report.Received)
	assert.Equal(t, 2, report.Inserted)
	assert.Equal(t, 4, report.Rejected)
	assert.Equal(t, map[models.RejectReason]int{
		models.ReasonMissingField:   1,
		models.ReasonInvalidEnum:    1,
		models.ReasonInvalidState:   1,
		models.ReasonInvalidNumeric: 1,
	}, report.RejectedByReason)

	count, err := s.CountAreas(models.Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestRunAbortsOverRejectionLimit(t *testing.T) {
	s := setupTestStore(t)
	l := New(s, testLogger())

	// 2 bad out of 10 is 20%, over the default 5%
	records := generateRecords(8)
	records = append(records,
		models.RawRecord{Name: "", Kind: "county", StateCode: "CA"},
		models.RawRecord{Name: "Bad Kind", Kind: "village", StateCode: "CA"},
	)

	report, err := l.Run(context.Background(), records, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRejectionLimit))

	// The report still describes what was seen, but nothing was written
	assert.Equal(t, 10, report.Received)
	assert.Equal(t, 2, report.Rejected)
	assert.Equal(t, 0, report.Inserted)

	count, err := s.CountAreas(models.Filter{})
	require.NoError(t, err)
	assert.Zero(t, count, "an aborted run must not write anything")
}

func TestRunAtRejectionLimitContinues(t *testing.T) {
	s := setupTestStore(t)
	l := New(s, testLogger())

	// Exactly 5% rejected with a 5% limit: the ratio must strictly exceed
	// the limit to abort.
	records := generateRecords(19)
	records = append(records, models.RawRecord{Name: "", Kind: "county", StateCode: "CA"})

	report, err := l.Run(context.Background(), records, Options{MaxRejectRatio: 0.05})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Rejected)
	assert.Equal(t, 19, report.Inserted)
}

func TestRunCollapsesDuplicates(t *testing.T) {
	s := setupTestStore(t)
	l := New(s, testLogger())

	records := []models.RawRecord{
		countyRecord("Fresno County", "CA", float64(1000)),
		countyRecord("Kings County", "NY", float64(2451)),
		countyRecord("Fresno County", "CA", float64(1100)),
		countyRecord("Fresno County", "CA", float64(1290)),
	}

	report, err := l.Run(context.Background(), records, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Inserted)
	assert.Equal(t, 2, report.Duplicates)

	// The last occurrence wins
	areas, err := s.GetAreas(models.Filter{NameContains: "fresno"}, 0, 1)
	require.NoError(t, err)
	require.Len(t, areas, 1)
	require.NotNil(t, areas[0].Rent)
	assert.Equal(t, 1290, *areas[0].Rent.TwoBedroomRent)
}

func TestRunRoundTripsEveryField(t *testing.T) {
	s := setupTestStore(t)
	l := New(s, testLogger())

	raw := models.RawRecord{
		Name:             "San Francisco, CA HUD Metro FMR Area",
		Kind:             "metro",
		StateCode:        "CA",
		StateName:        "California",
		StudioRent:       float64(2197),
		OneBedroomRent:   float64(2665),
		TwoBedroomRent:   float64(3253),
		ThreeBedroomRent: float64(4155),
		FourBedroomRent:  nil,
	}

	_, err := l.Run(context.Background(), []models.RawRecord{raw}, Options{})
	require.NoError(t, err)

	areas, err := s.GetAreas(models.Filter{}, 0, 1)
	require.NoError(t, err)
	require.Len(t, areas, 1)

	area := areas[0]
	assert.Equal(t, raw.Name, area.Name)
	assert.Equal(t, "CA", area.StateCode)
	assert.Equal(t, models.KindMetro, area.Kind)
	assert.Equal(t, "California", area.StateName)

	require.NotNil(t, area.Rent)
	require.NotNil(t, area.Rent.StudioRent)
	assert.Equal(t, 2197, *area.Rent.StudioRent)
	require.NotNil(t, area.Rent.OneBedroomRent)
	assert.Equal(t, 2665, *area.Rent.OneBedroomRent)
	require.NotNil(t, area.Rent.TwoBedroomRent)
	assert.Equal(t, 3253, *area.Rent.TwoBedroomRent)
	require.NotNil(t, area.Rent.ThreeBedroomRent)
	assert.Equal(t, 4155, *area.Rent.ThreeBedroomRent)
	assert.Nil(t, area.Rent.FourBedroomRent, "an absent figure must stay unknown, not zero")
}

func TestRunEmptyInput(t *testing.T) {
	s := setupTestStore(t)
	l := New(s, testLogger())

	report, err := l.Run(context.Background(), nil, Options{})
	require.NoError(t, err)
	assert.Zero(t, report.Received)
	assert.Zero(t, report.Inserted)
	assert.Zero(t, report.Fingerprint.TotalAreas)
}

func TestRunCancelledBeforeStart(t *testing.T) {
	s := setupTestStore(t)
	l := New(s, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := l.Run(ctx, generateRecords(5), Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, report.Inserted)

	count, err := s.CountAreas(models.Filter{})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRunCancelledBetweenBatches(t *testing.T) {
	s := setupTestStore(t)
	l := New(s, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	opts := Options{
		BatchSize: 2,
		Progress: func(done, total int) {
			// Cancel after the first batch commits
			if done == 2 {
				cancel()
			}
		},
	}

	report, err := l.Run(ctx, generateRecords(6), opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	// The committed batch stays, later batches never started
	assert.Equal(t, 2, report.Inserted)
	count, err := s.CountAreas(models.Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestRunStoreFailureIsNotRetried(t *testing.T) {
	mockStore := &mockStorage{}
	mockStore.On("UpsertBatch", mock.Anything).Return(0, 0, errors.New("disk I/O error")).Once()

	l := New(mockStore, testLogger())
	report, err := l.Run(context.Background(), generateRecords(3), Options{BatchSize: 10})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load batch")
	assert.Zero(t, report.Inserted)
	mockStore.AssertNumberOfCalls(t, "UpsertBatch", 1)
	mockStore.AssertExpectations(t)
}

func TestRunKeepsProgressFromEarlierBatches(t *testing.T) {
	mockStore := &mockStorage{}
	mockStore.On("UpsertBatch", mock.Anything).Return(2, 0, nil).Once()
	mockStore.On("UpsertBatch", mock.Anything).Return(0, 0, errors.New("disk I/O error")).Once()

	l := New(mockStore, testLogger())
	report, err := l.Run(context.Background(), generateRecords(4), Options{BatchSize: 2})

	require.Error(t, err)
	assert.Equal(t, 2, report.Inserted, "the report should carry committed progress")
	mockStore.AssertNumberOfCalls(t, "UpsertBatch", 2)
	mockStore.AssertExpectations(t)
}

func TestRunProgressCallback(t *testing.T) {
	s := setupTestStore(t)
	l := New(s, testLogger())

	var calls [][2]int
	opts := Options{
		BatchSize: 4,
		Progress: func(done, total int) {
			calls = append(calls, [2]int{done, total})
		},
	}

	_, err := l.Run(context.Background(), generateRecords(10), opts)
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{4, 10}, {8, 10}, {10, 10}}, calls)
}
