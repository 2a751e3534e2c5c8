package notify

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
)

// captureFlusher records delivered notifications in order.
type captureFlusher struct {
	mu   sync.Mutex
	sent [][]byte
	fail bool
}

func (f *captureFlusher) WriteNotification(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("transport gone")
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	f.sent = append(f.sent, cp)
	return nil
}

func (f *captureFlusher) methods(t *testing.T) []string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, raw := range f.sent {
		var env struct {
			Method string `json:"method"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("bad notification %s: %v", raw, err)
		}
		out[i] = env.Method
	}
	return out
}

func TestSinkFIFOOrdering(t *testing.T) {
	f := &captureFlusher{}
	s := NewSink(f, nil)

	s.Info("one")
	s.Progress(json.RawMessage(`"t"`), 0.5, nil)
	s.ToolsChanged()

	got := f.methods(t)
	want := []string{"notifications/message", "notifications/progress", "notifications/tools/list_changed"}
	if len(got) != len(want) {
		t.Fatalf("expected %d notifications, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestSinkClosedDropsSilently(t *testing.T) {
	f := &captureFlusher{}
	s := NewSink(f, nil)
	s.Close()
	s.Info("late")
	if len(f.sent) != 0 {
		t.Error("closed sink must not deliver")
	}
}

func TestSinkNilFlusherDrops(t *testing.T) {
	s := NewSink(nil, nil)
	// Must not panic, just drop with a debug log.
	s.Info("nowhere")
	s.Progress(json.RawMessage(`1`), 0.1, nil)
}

func TestSinkFlushFailureIsNonFatal(t *testing.T) {
	f := &captureFlusher{fail: true}
	s := NewSink(f, nil)
	s.Info("x") // transport gone: log and continue
	s.Close()
}

func TestProgressUsesBoundToken(t *testing.T) {
	f := &captureFlusher{}
	s := NewSink(f, nil, WithProgressToken(json.RawMessage(`"tok-9"`)))

	s.Progress(nil, 0.25, nil)
	if len(f.sent) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(f.sent))
	}
	var env struct {
		Params struct {
			ProgressToken json.RawMessage `json:"progressToken"`
			Progress      float64         `json:"progress"`
		} `json:"params"`
	}
	if err := json.Unmarshal(f.sent[0], &env); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if string(env.Params.ProgressToken) != `"tok-9"` {
		t.Errorf("token not echoed exactly: %s", env.Params.ProgressToken)
	}
	if env.Params.Progress != 0.25 {
		t.Errorf("unexpected progress: %v", env.Params.Progress)
	}
}

func TestProgressWithoutAnyTokenDrops(t *testing.T) {
	f := &captureFlusher{}
	s := NewSink(f, nil)
	s.Progress(nil, 0.5, nil)
	if len(f.sent) != 0 {
		t.Error("progress without a token should be dropped")
	}
}

func TestEmitHook(t *testing.T) {
	f := &captureFlusher{}
	var emitted []string
	s := NewSink(f, nil, WithEmitHook(func(m string) { emitted = append(emitted, m) }))
	s.Warn("w")
	s.PromptsChanged()
	if len(emitted) != 2 {
		t.Fatalf("expected 2 hook calls, got %d", len(emitted))
	}
	if emitted[1] != "notifications/prompts/list_changed" {
		t.Errorf("unexpected hook method: %s", emitted[1])
	}
}
