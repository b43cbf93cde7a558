package queue

import (
	"context"
	"errors"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/trackhub/auth-service/internal/core/domain"
	"github.com/trackhub/auth-service/internal/core/ports"
	"github.com/trackhub/auth-service/internal/pkg/metrics"
)

const (
	defaultWorkers = 4
	channelBuffer  = 128
	sendTimeout    = 15 * time.Second
)

// ErrQueueFull is returned when the target worker has no buffer space left.
var ErrQueueFull = errors.New("mail queue is full")

type resetJob struct {
	account   domain.Account
	token     string
	expiresAt time.Time
}

// MailDispatcher delivers password reset emails on a fixed set of workers so
// request handlers never wait on the mail provider. Jobs are sharded by
// recipient, which keeps mails to the same address in order.
type MailDispatcher struct {
	workers []chan resetJob
	next    ports.Mailer
	log     zerolog.Logger
	wg      sync.WaitGroup
}

// NewMailDispatcher creates a MailDispatcher with numWorkers sharded workers
// delivering through next. If numWorkers <= 0, defaultWorkers is used.
func NewMailDispatcher(numWorkers int, next ports.Mailer, log zerolog.Logger) *MailDispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &MailDispatcher{
		workers: make([]chan resetJob, numWorkers),
		next:    next,
		log:     log.With().Str("component", "mail_dispatcher").Logger(),
	}
	for i := range d.workers {
		d.workers[i] = make(chan resetJob, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled;
// use Wait to block until they have exited.
func (d *MailDispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Wait blocks until every worker has returned.
func (d *MailDispatcher) Wait() {
	d.wg.Wait()
}

// SendPasswordReset implements ports.Mailer. It only enqueues; delivery
// errors are logged by the worker.
func (d *MailDispatcher) SendPasswordReset(_ context.Context, a *domain.Account, token string, expiresAt time.Time) error {
	idx := d.shardIndex(a.Email)
	job := resetJob{account: *a, token: token, expiresAt: expiresAt}

	select {
	case d.workers[idx] <- job:
		metrics.MailQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
		return nil
	default:
		metrics.MailDeliveriesTotal.WithLabelValues("dropped").Inc()
		return ErrQueueFull
	}
}

// shardIndex maps a recipient deterministically to a worker index.
func (d *MailDispatcher) shardIndex(recipient string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(recipient))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *MailDispatcher) runWorker(ctx context.Context, id int, ch <-chan resetJob) {
	defer d.wg.Done()
	label := strconv.Itoa(id)

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-ch:
			metrics.MailQueueDepth.WithLabelValues(label).Set(float64(len(ch)))
			d.deliver(ctx, id, job)
		}
	}
}

func (d *MailDispatcher) deliver(ctx context.Context, id int, job resetJob) {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if err := d.next.SendPasswordReset(sendCtx, &job.account, job.token, job.expiresAt); err != nil {
		metrics.MailDeliveriesTotal.WithLabelValues("failed").Inc()
		d.log.Error().Err(err).
			Str("account_id", job.account.ID).
			Int("worker_id", id).
			Msg("password reset delivery failed")
		return
	}
	metrics.MailDeliveriesTotal.WithLabelValues("sent").Inc()
}
