package dispatch

import (
	"container/heap"
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/golang-jwt/jwt/v4"
)

// Environment selects the dispatcher's network policy.
type Environment string

const (
	EnvLocalhost     Environment = "localhost"
	EnvExperimental  Environment = "experimental"
	EnvDevelop       Environment = "develop"
	EnvTestnet       Environment = "testnet"
	EnvMainnet       Environment = "mainnet"
)

// isLocal reports whether env should skip the network and just log+callback
// synchronously.
func (e Environment) isLocal() bool {
	return e == EnvLocalhost || e == EnvExperimental
}

// timestampHeap is a min-heap over bucket keys present in RESTChannel.buckets.
type timestampHeap []int64

func (h timestampHeap) Len() int            { return len(h) }
func (h timestampHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h timestampHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *timestampHeap) Push(x interface{}) { *h = append(*h, x.(int64)) }
func (h *timestampHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// RESTChannel implements the priority-scheduled REST downstream path: jobs
// live in a map<timestampSec, FIFO<DBJob>>, the scheduler always picks the
// smallest present timestamp, and retries are re-enqueued head (immediate)
// or tail (final attempt) of their bucket.
type RESTChannel struct {
	baseURL string
	env     Environment
	http    *http.Client

	credentialPath string
	jwtMu          sync.RWMutex
	jwtToken       string

	mu      sync.Mutex
	buckets map[int64]*list.List
	keys    timestampHeap

	wake chan struct{}
}

// NewRESTChannel constructs a RESTChannel. For non-local environments, call
// Authenticate once before Run.
func NewRESTChannel(baseURL string, env Environment) *RESTChannel {
	return &RESTChannel{
		baseURL: baseURL,
		env:     env,
		http:    &http.Client{Timeout: 10 * time.Second},
		buckets: make(map[int64]*list.List),
		wake:    make(chan struct{}, 1),
	}
}

// Authenticate performs the one-time credential POST and stores the JWT
// attached to every subsequent call.
func (r *RESTChannel) Authenticate(ctx context.Context, credentialPath string) error {
	if r.env.isLocal() {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+credentialPath, nil)
	if err != nil {
		return err
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch: auth request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("dispatch: auth failed with status %d", resp.StatusCode)
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("dispatch: auth response decode: %w", err)
	}
	if _, _, err := jwt.NewParser().ParseUnverified(body.Token, jwt.MapClaims{}); err != nil {
		return fmt.Errorf("dispatch: auth token malformed: %w", err)
	}
	r.jwtMu.Lock()
	r.jwtToken = body.Token
	r.jwtMu.Unlock()
	return nil
}

func (r *RESTChannel) token() string {
	r.jwtMu.RLock()
	defer r.jwtMu.RUnlock()
	return r.jwtToken
}

// Schedule inserts job into its timestamp bucket.
func (r *RESTChannel) Schedule(job DBJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pushBackLocked(job)
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *RESTChannel) pushBackLocked(job DBJob) {
	l, ok := r.buckets[job.TimestampSec]
	if !ok {
		l = list.New()
		r.buckets[job.TimestampSec] = l
		heap.Push(&r.keys, job.TimestampSec)
	}
	l.PushBack(job)
}

func (r *RESTChannel) pushFrontLocked(job DBJob) {
	l, ok := r.buckets[job.TimestampSec]
	if !ok {
		l = list.New()
		r.buckets[job.TimestampSec] = l
		heap.Push(&r.keys, job.TimestampSec)
	}
	l.PushFront(job)
}

// popNext returns the job at the smallest present timestamp bucket, FIFO
// within the bucket, deleting the bucket once it empties.
func (r *RESTChannel) popNext() (DBJob, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.keys.Len() > 0 {
		ts := r.keys[0]
		l, ok := r.buckets[ts]
		if !ok || l.Len() == 0 {
			heap.Pop(&r.keys)
			delete(r.buckets, ts)
			continue
		}
		e := l.Front()
		l.Remove(e)
		if l.Len() == 0 {
			heap.Pop(&r.keys)
			delete(r.buckets, ts)
		}
		return e.Value.(DBJob), true
	}
	return DBJob{}, false
}

// Run drives the fair scheduling loop until ctx is cancelled.
func (r *RESTChannel) Run(ctx context.Context) {
	for {
		job, ok := r.popNext()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-r.wake:
				continue
			case <-time.After(time.Second):
				continue
			}
		}
		r.process(ctx, job)
	}
}

func (r *RESTChannel) process(ctx context.Context, job DBJob) {
	if r.env.isLocal() {
		log.Info("dispatch: local env, skipping network", "method", job.Request.Method, "path", job.Request.Path)
		if job.SuccessFn != nil {
			job.SuccessFn(job.Args)
		}
		return
	}

	if err := r.issue(ctx, job); err != nil {
		log.Warn("dispatch: rest call failed", "path", job.Request.Path, "attempts", job.Attempts, "err", err)
		r.retry(job)
		return
	}
	if job.SuccessFn != nil {
		job.SuccessFn(job.Args)
	}
}

func (r *RESTChannel) issue(ctx context.Context, job DBJob) error {
	var body []byte
	if job.Request.Body != nil {
		b, err := json.Marshal(job.Request.Body)
		if err != nil {
			return err
		}
		body = b
	}
	req, err := http.NewRequestWithContext(ctx, job.Request.Method, r.baseURL+job.Request.Path, jsonReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if tok := r.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

// retry implements the attempt-count policy: drop at attempts>=10,
// re-enqueue to the tail at attempts>=9 (final attempt), otherwise to the
// head for an immediate (1s cooldown) retry.
func (r *RESTChannel) retry(job DBJob) {
	job.Attempts++
	if job.Attempts >= MaxAttempts {
		log.Error("dispatch: rest job exhausted retries, dropping", "path", job.Request.Path, "attempts", job.Attempts)
		return
	}
	job.TimestampSec = job.nextTimestamp(job.TimestampSec)

	r.mu.Lock()
	if job.Attempts >= finalAttemptThreshold {
		r.pushBackLocked(job)
	} else {
		r.pushFrontLocked(job)
	}
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}
