package audit

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer store.Close()

	records := []Record{
		{Time: time.Now(), SessionID: "s1", Method: "initialize", Duration: time.Millisecond},
		{Time: time.Now(), SessionID: "s1", Method: "tools/call", Tool: "echo", Duration: 2 * time.Millisecond},
		{Time: time.Now(), SessionID: "s2", Method: "tools/list", ErrorCode: -32002},
	}
	if err := store.WriteBatch(records); err != nil {
		t.Fatalf("WriteBatch failed: %v", err)
	}

	n, err := store.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 records, got %d", n)
	}
}

func TestServiceFlushesOnStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	store, err := OpenSQLite(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer store.Close()

	svc := NewService(store, nil, WithBatchSize(100), WithFlushInterval(time.Hour))
	svc.Start()

	for i := 0; i < 10; i++ {
		svc.Log(Record{Time: time.Now(), SessionID: "s", Method: "tools/list"})
	}
	svc.Stop()

	n, err := store.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 10 {
		t.Errorf("expected 10 records after Stop, got %d", n)
	}

	// Stop is idempotent.
	svc.Stop()
}

func TestServiceDropsUnderBackpressure(t *testing.T) {
	// A store that blocks until released keeps the queue full.
	block := make(chan struct{})
	store := &blockingStore{release: block}

	svc := NewService(store, nil, WithChannelSize(2), WithFlushInterval(time.Hour), WithBatchSize(1))
	svc.Start()

	for i := 0; i < 10; i++ {
		svc.Log(Record{SessionID: "s", Method: "m"})
	}
	if svc.Dropped() == 0 {
		t.Error("expected drops with a full queue")
	}
	if svc.Depth() > svc.Capacity() {
		t.Errorf("depth %d exceeds capacity %d", svc.Depth(), svc.Capacity())
	}

	close(block)
	svc.Stop()
}

type blockingStore struct {
	release <-chan struct{}
	once    sync.Once
}

func (b *blockingStore) WriteBatch([]Record) error {
	b.once.Do(func() { <-b.release })
	return nil
}

func (b *blockingStore) Close() error { return nil }
