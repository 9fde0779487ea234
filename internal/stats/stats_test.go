package stats

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRepository implements Repository for testing
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateTables() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockRepository) AddCounters(deltas []Snapshot) error {
	args := m.Called(deltas)
	return args.Error(0)
}

func (m *MockRepository) Load() ([]Snapshot, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Snapshot), args.Error(1)
}

func (m *MockRepository) CleanupOldEntries(threshold int) (int64, error) {
	args := m.Called(threshold)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}

func TestCollectorConcurrentCounting(t *testing.T) {
	c := NewCollector()
	c.Register("Setup")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Forwarded("System")
				c.Dropped("Application")
			}
		}()
	}
	wg.Wait()
	c.SendError("System")

	snaps := c.Snapshot()
	require.Len(t, snaps, 3)
	assert.Equal(t, Snapshot{Channel: "Application", Counters: Counters{Dropped: 1000}}, snaps[0])
	assert.Equal(t, Snapshot{Channel: "Setup"}, snaps[1])
	assert.Equal(t, Snapshot{Channel: "System", Counters: Counters{Forwarded: 1000, SendErrors: 1}}, snaps[2])
	assert.Equal(t, Counters{Forwarded: 1000, Dropped: 1000, SendErrors: 1}, c.Totals())
}

func TestPersisterFlushWritesDeltas(t *testing.T) {
	repo := new(MockRepository)
	repo.On("CreateTables").Return(nil)

	c := NewCollector()
	p, err := NewPersister(c, repo, time.Hour)
	require.NoError(t, err)

	c.Forwarded("System")
	c.Forwarded("System")
	c.Dropped("Application")

	repo.On("AddCounters", []Snapshot{
		{Channel: "Application", Counters: Counters{Dropped: 1}},
		{Channel: "System", Counters: Counters{Forwarded: 2}},
	}).Return(nil).Once()
	require.NoError(t, p.Flush())

	// Only System moved since the previous flush.
	c.Forwarded("System")
	repo.On("AddCounters", []Snapshot{
		{Channel: "System", Counters: Counters{Forwarded: 1}},
	}).Return(nil).Once()
	require.NoError(t, p.Flush())

	// Nothing new, so the repository is not touched.
	require.NoError(t, p.Flush())

	repo.AssertExpectations(t)
	repo.AssertNumberOfCalls(t, "AddCounters", 2)
}

func TestPersisterFlushRetriesAfterFailure(t *testing.T) {
	repo := new(MockRepository)
	repo.On("CreateTables").Return(nil)

	c := NewCollector()
	p, err := NewPersister(c, repo, time.Hour)
	require.NoError(t, err)

	c.SendError("System")
	repo.On("AddCounters", []Snapshot{
		{Channel: "System", Counters: Counters{SendErrors: 1}},
	}).Return(errors.New("disk full")).Once()
	assert.Error(t, p.Flush())

	c.SendError("System")
	repo.On("AddCounters", []Snapshot{
		{Channel: "System", Counters: Counters{SendErrors: 2}},
	}).Return(nil).Once()
	assert.NoError(t, p.Flush())

	repo.AssertExpectations(t)
}

func TestPersisterCreateTablesFails(t *testing.T) {
	repo := new(MockRepository)
	repo.On("CreateTables").Return(errors.New("read-only"))

	_, err := NewPersister(NewCollector(), repo, 0)
	assert.Error(t, err)
}

func TestPersisterRunFlushesOnCancel(t *testing.T) {
	repo := new(MockRepository)
	repo.On("CreateTables").Return(nil)
	repo.On("AddCounters", mock.Anything).Return(nil)

	c := NewCollector()
	p, err := NewPersister(c, repo, time.Hour)
	require.NoError(t, err)
	c.Forwarded("Security")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	repo.AssertCalled(t, "AddCounters", []Snapshot{{Channel: "Security", Counters: Counters{Forwarded: 1}}})
}

func TestPersisterClose(t *testing.T) {
	repo := new(MockRepository)
	repo.On("CreateTables").Return(nil)
	repo.On("CleanupOldEntries", DefaultCleanupThreshold).Return(int64(2), nil)
	repo.On("Close").Return(nil)

	p, err := NewPersister(NewCollector(), repo, 0)
	require.NoError(t, err)
	assert.NoError(t, p.Close())
	repo.AssertExpectations(t)
}

func TestSQLiteRepository(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "stats.db")
	repo, err := NewSQLiteRepository(dbPath)
	require.NoError(t, err)
	defer repo.Close()
	assert.Equal(t, dbPath, repo.db.Path())

	require.NoError(t, repo.CreateTables())
	// Creating twice is harmless.
	require.NoError(t, repo.CreateTables())

	require.NoError(t, repo.AddCounters([]Snapshot{
		{Channel: "System", Counters: Counters{Forwarded: 3, Dropped: 1}},
		{Channel: "Application", Counters: Counters{SendErrors: 2}},
	}))
	require.NoError(t, repo.AddCounters([]Snapshot{
		{Channel: "System", Counters: Counters{Forwarded: 2}},
	}))

	snaps, err := repo.Load()
	require.NoError(t, err)
	assert.Equal(t, []Snapshot{
		{Channel: "Application", Counters: Counters{SendErrors: 2}},
		{Channel: "System", Counters: Counters{Forwarded: 5, Dropped: 1}},
	}, snaps)

	deleted, err := repo.CleanupOldEntries(1)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
