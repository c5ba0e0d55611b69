package integration

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Sternrassler/go-pagination/pkg/pagecache"
	"github.com/Sternrassler/go-pagination/pkg/pager"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	t.Cleanup(func() {
		redisClient.Close()
		container.Terminate(ctx)
	})

	return redisClient
}

// upstreamSource is an in-memory cursor source that counts its calls.
// Cursors are decimal offsets into items.
type upstreamSource struct {
	items    []string
	pageSize int

	mu      sync.Mutex
	calls   int
	gate    chan struct{}
	failErr error
}

func newUpstreamSource(pageSize int, items ...string) *upstreamSource {
	return &upstreamSource{items: items, pageSize: pageSize}
}

func (s *upstreamSource) List(ctx context.Context, cursor pager.Cursor) (pager.ListResult[string], error) {
	s.mu.Lock()
	s.calls++
	gate := s.gate
	failure := s.failErr
	s.failErr = nil
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return pager.ListResult[string]{}, ctx.Err()
		}
	}
	if failure != nil {
		return pager.ListResult[string]{}, failure
	}

	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(string(cursor))
		if err != nil {
			return pager.ListResult[string]{}, fmt.Errorf("bad cursor %q: %w", cursor, err)
		}
		offset = n
	}
	end := offset + s.pageSize
	if end > len(s.items) {
		end = len(s.items)
	}
	res := pager.ListResult[string]{
		Items:   append([]string(nil), s.items[offset:end]...),
		HasMore: end < len(s.items),
	}
	if res.HasMore {
		res.NextCursor = strconv.Itoa(end)
	}
	return res, nil
}

func (s *upstreamSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Hold blocks List calls until the returned release func is invoked.
func (s *upstreamSource) Hold() func() {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gate = gate
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.gate = nil
			s.mu.Unlock()
			close(gate)
		})
	}
}

func (s *upstreamSource) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

func newCached(t *testing.T, redisClient *redis.Client, upstream *upstreamSource, cfg pagecache.Config) *pagecache.CachedSource[string] {
	t.Helper()
	cached, err := pagecache.NewCachedSource[string](upstream, redisClient, cfg)
	if err != nil {
		t.Fatalf("NewCachedSource failed: %v", err)
	}
	return cached
}

// TestCacheMissThenHit verifies a page is fetched upstream once and then
// served from Redis.
func TestCacheMissThenHit(t *testing.T) {
	redisClient := setupRedis(t)
	upstream := newUpstreamSource(2, "a", "b", "c")
	cached := newCached(t, redisClient, upstream, pagecache.DefaultConfig("orders"))

	ctx := context.Background()

	first, err := cached.List(ctx, "")
	if err != nil {
		t.Fatalf("First List failed: %v", err)
	}
	if upstream.Calls() != 1 {
		t.Errorf("Upstream calls = %d, want 1", upstream.Calls())
	}

	second, err := cached.List(ctx, "")
	if err != nil {
		t.Fatalf("Second List failed: %v", err)
	}
	if upstream.Calls() != 1 {
		t.Errorf("Upstream calls after cached read = %d, want 1", upstream.Calls())
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Cached result %+v differs from original %+v", second, first)
	}
	if second.NextCursor != "2" || !second.HasMore {
		t.Errorf("Cached continuation = (%q, %v), want (2, true)", second.NextCursor, second.HasMore)
	}
}

// TestFullPaginationThroughCache walks all pages twice through the
// pagination facade; the second pass must be served entirely from Redis.
func TestFullPaginationThroughCache(t *testing.T) {
	redisClient := setupRedis(t)
	upstream := newUpstreamSource(2, "a", "b", "c", "d", "e")
	cached := newCached(t, redisClient, upstream, pagecache.DefaultConfig("orders"))

	ctx := context.Background()
	want := []string{"a", "b", "c", "d", "e"}

	for pass := 0; pass < 2; pass++ {
		results, err := pager.New[string, string](pager.FromCursors[string](cached), pager.Config[string, string]{
			Identify: func(s string) string { return s },
		})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		for results.State() != pager.StateCompleted {
			if err := results.FetchNextPage(ctx); err != nil {
				t.Fatalf("Pass %d FetchNextPage failed: %v", pass, err)
			}
		}
		if got := results.Elements(); !reflect.DeepEqual(got, want) {
			t.Errorf("Pass %d elements = %v, want %v", pass, got, want)
		}
	}

	if upstream.Calls() != 3 {
		t.Errorf("Upstream calls = %d, want 3 (second pass fully cached)", upstream.Calls())
	}
}

// TestSingleFlightOnMiss verifies concurrent misses for one cursor
// collapse into a single upstream call.
func TestSingleFlightOnMiss(t *testing.T) {
	redisClient := setupRedis(t)
	upstream := newUpstreamSource(2, "a", "b", "c")
	cached := newCached(t, redisClient, upstream, pagecache.DefaultConfig("orders"))

	release := upstream.Hold()
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = cached.List(ctx, "")
		}(i)
	}

	// Let every goroutine pass the cache-read stage before releasing.
	time.Sleep(200 * time.Millisecond)
	release()
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("Caller %d failed: %v", i, err)
		}
	}
	if upstream.Calls() != 1 {
		t.Errorf("Upstream calls = %d, want 1", upstream.Calls())
	}
}

// TestInvalidate verifies a single cursor can be evicted.
func TestInvalidate(t *testing.T) {
	redisClient := setupRedis(t)
	upstream := newUpstreamSource(2, "a", "b", "c")
	cached := newCached(t, redisClient, upstream, pagecache.DefaultConfig("orders"))

	ctx := context.Background()

	if _, err := cached.List(ctx, ""); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if err := cached.Invalidate(ctx, ""); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if _, err := cached.List(ctx, ""); err != nil {
		t.Fatalf("List after invalidation failed: %v", err)
	}
	if upstream.Calls() != 2 {
		t.Errorf("Upstream calls = %d, want 2", upstream.Calls())
	}
}

// TestInvalidateAll verifies namespace-wide eviction leaves other
// sources untouched.
func TestInvalidateAll(t *testing.T) {
	redisClient := setupRedis(t)
	orders := newUpstreamSource(2, "a", "b", "c", "d")
	users := newUpstreamSource(2, "u1", "u2")
	cachedOrders := newCached(t, redisClient, orders, pagecache.DefaultConfig("orders"))
	cachedUsers := newCached(t, redisClient, users, pagecache.DefaultConfig("users"))

	ctx := context.Background()

	// Warm both namespaces, orders with two cursors.
	if _, err := cachedOrders.List(ctx, ""); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if _, err := cachedOrders.List(ctx, "2"); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if _, err := cachedUsers.List(ctx, ""); err != nil {
		t.Fatalf("List failed: %v", err)
	}

	if err := cachedOrders.InvalidateAll(ctx); err != nil {
		t.Fatalf("InvalidateAll failed: %v", err)
	}

	// Both order cursors refetch upstream.
	if _, err := cachedOrders.List(ctx, ""); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if _, err := cachedOrders.List(ctx, "2"); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if orders.Calls() != 4 {
		t.Errorf("Order upstream calls = %d, want 4", orders.Calls())
	}

	// The users namespace still serves from cache.
	if _, err := cachedUsers.List(ctx, ""); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if users.Calls() != 1 {
		t.Errorf("User upstream calls = %d, want 1", users.Calls())
	}
}

// TestTTLExpiration verifies expired pages are refetched upstream.
func TestTTLExpiration(t *testing.T) {
	redisClient := setupRedis(t)
	upstream := newUpstreamSource(2, "a", "b")
	cfg := pagecache.DefaultConfig("orders")
	cfg.TTL = 1 * time.Second
	cached := newCached(t, redisClient, upstream, cfg)

	ctx := context.Background()

	if _, err := cached.List(ctx, ""); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if _, err := cached.List(ctx, ""); err != nil {
		t.Fatalf("Cached List failed: %v", err)
	}
	if upstream.Calls() != 1 {
		t.Fatalf("Upstream calls = %d, want 1 before expiry", upstream.Calls())
	}

	time.Sleep(1500 * time.Millisecond)

	if _, err := cached.List(ctx, ""); err != nil {
		t.Fatalf("List after expiry failed: %v", err)
	}
	if upstream.Calls() != 2 {
		t.Errorf("Upstream calls = %d, want 2 after expiry", upstream.Calls())
	}
}

// TestUpstreamErrorNotCached verifies failures propagate and are never
// stored.
func TestUpstreamErrorNotCached(t *testing.T) {
	redisClient := setupRedis(t)
	upstream := newUpstreamSource(2, "a", "b")
	cached := newCached(t, redisClient, upstream, pagecache.DefaultConfig("orders"))

	ctx := context.Background()
	boom := errors.New("upstream down")
	upstream.FailNext(boom)

	if _, err := cached.List(ctx, ""); !errors.Is(err, boom) {
		t.Fatalf("List error = %v, want upstream failure", err)
	}

	res, err := cached.List(ctx, "")
	if err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if !reflect.DeepEqual(res.Items, []string{"a", "b"}) {
		t.Errorf("Items = %v, want [a b]", res.Items)
	}
	if upstream.Calls() != 2 {
		t.Errorf("Upstream calls = %d, want 2", upstream.Calls())
	}
}
