package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ignite/campaign-mailer/internal/domain"
	"github.com/ignite/campaign-mailer/internal/pkg/distlock"
	"github.com/ignite/campaign-mailer/internal/pkg/logger"
	"github.com/ignite/campaign-mailer/internal/service/campaign"
)

// =============================================================================
// CAMPAIGN PROCESSOR
// =============================================================================
// Runs the send orchestration for one campaign:
//   lock -> begin_send (draft -> sending) -> dispatch -> complete -> unlock
// either synchronously (Process) or on a background worker (Enqueue).

// ErrQueueFull is returned by Enqueue when the background queue is at capacity.
var ErrQueueFull = errors.New("campaign queue is full")

// ErrNotRunning is returned by Enqueue before Start or after Stop.
var ErrNotRunning = errors.New("campaign processor is not running")

// CampaignDispatcher sends a campaign that is already in the sending state.
type CampaignDispatcher interface {
	Send(ctx context.Context, c *domain.Campaign) domain.SendResult
}

// ProcessResult is the outcome of one orchestrated send.
type ProcessResult struct {
	Campaign *domain.Campaign  `json:"campaign"`
	Result   domain.SendResult `json:"result"`
}

type sendJob struct {
	campaign *domain.Campaign
	lock     distlock.DistLock
}

// CampaignProcessor handles campaign sending
type CampaignProcessor struct {
	campaigns  *campaign.Service
	dispatcher CampaignDispatcher
	locks      distlock.Factory

	numWorkers int
	lockTTL    time.Duration
	queue      chan sendJob

	// Stats
	totalDelivered int64
	totalFailed    int64
	totalSkipped   int64
	totalCampaigns int64

	// Control
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool
}

// CampaignProcessorConfig holds processor configuration
type CampaignProcessorConfig struct {
	NumWorkers int
	QueueSize  int
	// LockTTL is the send lock lifetime. Locks that support it are
	// extended every LockTTL/3 while a dispatch runs.
	LockTTL time.Duration
}

// DefaultProcessorConfig returns default configuration
func DefaultProcessorConfig() CampaignProcessorConfig {
	return CampaignProcessorConfig{
		NumWorkers: 2,
		QueueSize:  100,
		LockTTL:    time.Hour,
	}
}

// NewCampaignProcessor creates a new campaign processor
func NewCampaignProcessor(campaigns *campaign.Service, dispatcher CampaignDispatcher, locks distlock.Factory, config CampaignProcessorConfig) *CampaignProcessor {
	def := DefaultProcessorConfig()
	if config.NumWorkers <= 0 {
		config.NumWorkers = def.NumWorkers
	}
	if config.QueueSize <= 0 {
		config.QueueSize = def.QueueSize
	}
	if config.LockTTL <= 0 {
		config.LockTTL = def.LockTTL
	}

	return &CampaignProcessor{
		campaigns:  campaigns,
		dispatcher: dispatcher,
		locks:      locks,
		numWorkers: config.NumWorkers,
		lockTTL:    config.LockTTL,
		queue:      make(chan sendJob, config.QueueSize),
	}
}

func lockKey(campaignID string) string {
	return "campaign-send:" + campaignID
}

// acquire takes the per-campaign send lock and moves the campaign to sending.
// On any error the lock is released before returning.
func (p *CampaignProcessor) acquire(ctx context.Context, id string) (*domain.Campaign, distlock.DistLock, error) {
	lock := p.locks(lockKey(id))
	ok, err := lock.Acquire(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("acquire send lock: %w", err)
	}
	if !ok {
		return nil, nil, fmt.Errorf("%w: campaign %s is already sending", campaign.ErrInvalidState, id)
	}

	c, err := p.campaigns.BeginSend(ctx, id)
	if err != nil {
		p.release(ctx, lock, id)
		return nil, nil, err
	}
	return c, lock, nil
}

func (p *CampaignProcessor) release(ctx context.Context, lock distlock.DistLock, id string) {
	if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
		logger.Warn("release send lock failed", "campaign_id", id, "error", err)
	}
}

// keepAlive extends lock every lockTTL/3 until the returned stop func is
// called. Locks without an Extend method are left alone.
func (p *CampaignProcessor) keepAlive(ctx context.Context, lock distlock.DistLock, id string) (stop func()) {
	ext, ok := lock.(distlock.Extender)
	if !ok {
		return func() {}
	}
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(p.lockTTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := ext.Extend(context.WithoutCancel(ctx), p.lockTTL); err != nil {
					logger.Warn("extend send lock failed", "campaign_id", id, "error", err)
				}
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}

// run dispatches an already-sending campaign and records its completion.
// Completion uses a context detached from cancellation so a campaign
// always reaches a terminal state.
func (p *CampaignProcessor) run(ctx context.Context, c *domain.Campaign, lock distlock.DistLock) (*ProcessResult, error) {
	stop := p.keepAlive(ctx, lock, c.ID)
	result := p.dispatcher.Send(ctx, c)
	stop()

	atomic.AddInt64(&p.totalDelivered, int64(result.Delivered))
	atomic.AddInt64(&p.totalFailed, int64(result.Failed))
	atomic.AddInt64(&p.totalSkipped, int64(result.Skipped))
	atomic.AddInt64(&p.totalCampaigns, 1)

	done, err := p.campaigns.Complete(context.WithoutCancel(ctx), c.ID, result)
	if err != nil {
		logger.Error("complete campaign failed; campaign left in sending", "campaign_id", c.ID, "error", err)
		return &ProcessResult{Campaign: c, Result: result}, fmt.Errorf("complete campaign: %w", err)
	}
	return &ProcessResult{Campaign: done, Result: result}, nil
}

// sendContext detaches a synchronous send from its caller. Once the batch
// has started only processor shutdown cancels it.
func (p *CampaignProcessor) sendContext(ctx context.Context) (context.Context, context.CancelFunc) {
	sendCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.mu.RLock()
	shutdown := p.ctx
	p.mu.RUnlock()
	if shutdown == nil {
		return sendCtx, cancel
	}
	unregister := context.AfterFunc(shutdown, cancel)
	return sendCtx, func() {
		unregister()
		cancel()
	}
}

// Process sends campaign id synchronously and returns the final campaign.
// A campaign that is not a draft, or whose send lock is held elsewhere,
// yields campaign.ErrInvalidState. Cancelling ctx after the campaign has
// moved to sending does not interrupt the batch.
func (p *CampaignProcessor) Process(ctx context.Context, id string) (*ProcessResult, error) {
	c, lock, err := p.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	sendCtx, cancel := p.sendContext(ctx)
	defer cancel()
	defer p.release(sendCtx, lock, id)
	return p.run(sendCtx, c, lock)
}

// Enqueue moves campaign id to sending and hands the dispatch to a
// background worker. State errors are reported immediately.
func (p *CampaignProcessor) Enqueue(ctx context.Context, id string) (*domain.Campaign, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return nil, ErrNotRunning
	}
	if len(p.queue) >= cap(p.queue) {
		return nil, ErrQueueFull
	}

	c, lock, err := p.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	// Only Enqueue sends on the queue, under mu, after the capacity check.
	p.queue <- sendJob{campaign: c, lock: lock}
	logger.Info("campaign enqueued", "campaign_id", id)
	return c, nil
}

// Start begins the campaign processor workers
func (p *CampaignProcessor) Start() error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("processor already running")
	}
	p.running = true
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.mu.Unlock()

	logger.Info("campaign processor starting", "workers", p.numWorkers, "queue_size", cap(p.queue))

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return nil
}

// Stop gracefully stops the processor. Jobs still queued are dispatched
// with a cancelled context, which fails them quickly but still completes
// each campaign.
func (p *CampaignProcessor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()

	logger.Info("campaign processor stopping")
	p.wg.Wait()

	logger.Info("campaign processor stopped",
		"campaigns", atomic.LoadInt64(&p.totalCampaigns),
		"delivered", atomic.LoadInt64(&p.totalDelivered),
		"failed", atomic.LoadInt64(&p.totalFailed),
		"skipped", atomic.LoadInt64(&p.totalSkipped))
}

// Stats returns current processing statistics
func (p *CampaignProcessor) Stats() map[string]int64 {
	return map[string]int64{
		"campaigns":       atomic.LoadInt64(&p.totalCampaigns),
		"total_delivered": atomic.LoadInt64(&p.totalDelivered),
		"total_failed":    atomic.LoadInt64(&p.totalFailed),
		"total_skipped":   atomic.LoadInt64(&p.totalSkipped),
	}
}

// worker is the main processing loop for a single worker
func (p *CampaignProcessor) worker(workerNum int) {
	defer p.wg.Done()

	for {
		select {
		case job := <-p.queue:
			p.handle(workerNum, job)
		case <-p.ctx.Done():
			for {
				select {
				case job := <-p.queue:
					p.handle(workerNum, job)
				default:
					return
				}
			}
		}
	}
}

func (p *CampaignProcessor) handle(workerNum int, job sendJob) {
	defer p.release(p.ctx, job.lock, job.campaign.ID)
	if _, err := p.run(p.ctx, job.campaign, job.lock); err != nil {
		logger.Error("background send failed", "worker", workerNum, "campaign_id", job.campaign.ID, "error", err)
	}
}
