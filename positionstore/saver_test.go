package positionstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/vczyh/mysql-cdc/position"
)

type memoryStore struct {
	mu       sync.Mutex
	saves    []position.Position
	saveErr  error
	closeErr error
}

func (m *memoryStore) Load(context.Context) (position.Position, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saves) == 0 {
		return position.Position{}, false, nil
	}
	return m.saves[len(m.saves)-1], true, nil
}

func (m *memoryStore) Save(_ context.Context, p position.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves = append(m.saves, p)
	return nil
}

func (m *memoryStore) Close() error {
	return m.closeErr
}

func (m *memoryStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saves)
}

type source struct {
	mu  sync.Mutex
	pos position.Position
}

func (s *source) set(p position.Position) {
	s.mu.Lock()
	s.pos = p
	s.mu.Unlock()
}

func (s *source) get() position.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos.Clone()
}

func TestSaverFlushSkipsUnchanged(t *testing.T) {
	store := &memoryStore{}
	src := &source{}
	saver := NewSaver(store, src.get)
	ctx := context.Background()

	require.NoError(t, saver.Flush(ctx))
	assert.Equal(t, 0, store.count(), "a zero position is not saved")

	src.set(filePosition())
	require.NoError(t, saver.Flush(ctx))
	require.NoError(t, saver.Flush(ctx))
	assert.Equal(t, 1, store.count())

	src.set(gtidPosition(t))
	require.NoError(t, saver.Flush(ctx))
	assert.Equal(t, 2, store.count())

	p := gtidPosition(t)
	p.GTIDSet.AddGTID(p.GTIDSet.UUIDSets()[0].SID, 4)
	src.set(p)
	require.NoError(t, saver.Flush(ctx))
	assert.Equal(t, 3, store.count())
}

func TestSaverRun(t *testing.T) {
	store := &memoryStore{}
	src := &source{}
	saver := NewSaver(store, src.get, WithInterval(10*time.Millisecond), WithLogger(zaptest.NewLogger(t)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- saver.Run(ctx)
	}()

	src.set(filePosition())
	require.Eventually(t, func() bool {
		return store.count() == 1
	}, time.Second, 5*time.Millisecond)

	// saved once more on the way out
	p := filePosition()
	p.Pos = 500
	src.set(p)
	cancel()
	require.NoError(t, <-done)

	got, ok, err := store.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(500), got.Pos)
}

func TestSaverClose(t *testing.T) {
	errSave := errors.New("save failed")
	errClose := errors.New("close failed")
	store := &memoryStore{saveErr: errSave, closeErr: errClose}
	src := &source{pos: filePosition()}

	err := NewSaver(store, src.get).Close()
	assert.ErrorIs(t, err, errSave)
	assert.ErrorIs(t, err, errClose)
}
