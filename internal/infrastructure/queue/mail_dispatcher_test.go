package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/trackhub/auth-service/internal/core/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingMailer struct {
	mu    sync.Mutex
	order []string
	err   error
	done  chan struct{}
	want  int
}

func newRecordingMailer(want int) *recordingMailer {
	return &recordingMailer{done: make(chan struct{}), want: want}
}

func (r *recordingMailer) SendPasswordReset(_ context.Context, a *domain.Account, token string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, a.Email+":"+token)
	if len(r.order) == r.want {
		close(r.done)
	}
	return r.err
}

func TestMailDispatcher_DeliversInOrderPerRecipient(t *testing.T) {
	rec := newRecordingMailer(3)
	d := NewMailDispatcher(2, rec, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	account := &domain.Account{ID: "a1", Email: "alice@x.com"}
	for _, tok := range []string{"t1", "t2", "t3"} {
		require.NoError(t, d.SendPasswordReset(context.Background(), account, tok, time.Now().Add(time.Hour)))
	}

	select {
	case <-rec.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for deliveries")
	}
	cancel()
	d.Wait()

	assert.Equal(t, []string{"alice@x.com:t1", "alice@x.com:t2", "alice@x.com:t3"}, rec.order)
}

func TestMailDispatcher_DeliveryErrorDoesNotStopWorker(t *testing.T) {
	rec := newRecordingMailer(2)
	rec.err = errors.New("provider down")
	d := NewMailDispatcher(1, rec, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	account := &domain.Account{ID: "a1", Email: "bob@x.com"}
	require.NoError(t, d.SendPasswordReset(context.Background(), account, "t1", time.Now()))
	require.NoError(t, d.SendPasswordReset(context.Background(), account, "t2", time.Now()))

	select {
	case <-rec.done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker stopped after a failed delivery")
	}
	cancel()
	d.Wait()
}

func TestMailDispatcher_QueueFull(t *testing.T) {
	d := NewMailDispatcher(1, newRecordingMailer(-1), zerolog.Nop())
	account := &domain.Account{Email: "carol@x.com"}

	for i := 0; i < channelBuffer; i++ {
		require.NoError(t, d.SendPasswordReset(context.Background(), account, "t", time.Now()))
	}
	assert.ErrorIs(t, d.SendPasswordReset(context.Background(), account, "t", time.Now()), ErrQueueFull)
}

func TestMailDispatcher_ShardIndexIsStable(t *testing.T) {
	d := NewMailDispatcher(8, nil, zerolog.Nop())

	first := d.shardIndex("dave@x.com")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, d.shardIndex("dave@x.com"))
	}
	assert.GreaterOrEqual(t, first, 0)
	assert.Less(t, first, 8)
}

func TestNewMailDispatcher_DefaultWorkers(t *testing.T) {
	d := NewMailDispatcher(0, nil, zerolog.Nop())
	assert.Len(t, d.workers, defaultWorkers)
}
