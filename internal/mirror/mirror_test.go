package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"samsung-ac-bridge/internal/protocol"
	"samsung-ac-bridge/internal/samsung"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func drain(m *Mirror) []Entry {
	var out []Entry
	for {
		select {
		case e := <-m.queue:
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestOnMessageGating(t *testing.T) {
	decoded := samsung.Number(21.5)
	tests := []struct {
		name      string
		settings  samsung.DebugSettings
		decoded   *samsung.Value
		bound     bool
		want      int
		wantRaw   bool
		wantValue bool
	}{
		{"all off", samsung.DebugSettings{}, &decoded, true, 0, false, false},
		{"decoded only, bound", samsung.DebugSettings{LogDecoded: true}, &decoded, true, 1, false, true},
		{"decoded only, unbound", samsung.DebugSettings{LogDecoded: true}, nil, false, 0, false, false},
		{"undefined only, unbound", samsung.DebugSettings{LogUndefined: true}, nil, false, 1, true, false},
		{"undefined only, bound", samsung.DebugSettings{LogUndefined: true}, &decoded, true, 0, false, false},
		{"undefined only, bound but undecodable", samsung.DebugSettings{LogUndefined: true}, nil, true, 0, false, false},
		{"raw only, bound but undecodable", samsung.DebugSettings{LogRaw: true}, nil, true, 1, true, false},
		{"raw only, bound", samsung.DebugSettings{LogRaw: true}, &decoded, true, 1, true, false},
		{"raw and decoded", samsung.DebugSettings{LogRaw: true, LogDecoded: true}, &decoded, true, 1, true, true},
		{"everything, unbound", samsung.DebugSettings{LogRaw: true, LogDecoded: true, LogUndefined: true}, nil, false, 1, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := tt.settings
			m := New(&settings, newTestLogger())
			m.OnMessage(samsung.DirectionRx, "20.00.00", protocol.MsgWaterTemperature, []byte{0x00, 0xd7}, tt.decoded, tt.bound)
			got := drain(m)
			if len(got) != tt.want {
				t.Fatalf("entries = %d, want %d", len(got), tt.want)
			}
			if tt.want == 0 {
				return
			}
			if (got[0].Raw != nil) != tt.wantRaw {
				t.Errorf("raw = %v, want present=%v", got[0].Raw, tt.wantRaw)
			}
			if (got[0].Decoded != nil) != tt.wantValue {
				t.Errorf("decoded = %v, want present=%v", got[0].Decoded, tt.wantValue)
			}
			if got[0].Undefined == tt.bound {
				t.Errorf("undefined = %v for bound=%v", got[0].Undefined, tt.bound)
			}
		})
	}
}

func TestOnMessageQueueFull(t *testing.T) {
	m := New(&samsung.DebugSettings{LogUndefined: true}, newTestLogger(), WithQueueSize(2))
	for i := 0; i < 5; i++ {
		m.OnMessage(samsung.DirectionRx, "z9", protocol.MsgPower, []byte{1}, nil, false)
	}
	if m.Dropped() != 3 {
		t.Errorf("Dropped = %d, want 3", m.Dropped())
	}
}

func TestRunSwallowsSinkErrors(t *testing.T) {
	got := make(chan Entry, 4)
	failing := SinkFunc(func(context.Context, Entry) error { return errors.New("down") })
	recording := SinkFunc(func(_ context.Context, e Entry) error {
		got <- e
		return nil
	})
	m := New(&samsung.DebugSettings{LogDecoded: true}, newTestLogger(), WithSink(failing))
	m.AddSink(recording)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	v := samsung.Bool(true)
	m.OnMessage(samsung.DirectionTx, "20.00.00", protocol.MsgPower, []byte{1}, &v, true)

	select {
	case e := <-got:
		if e.Direction != samsung.DirectionTx || e.Kind() != KindDecoded {
			t.Errorf("entry = %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("entry not published")
	}
	deadline := time.Now().Add(time.Second)
	for m.Failed() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if m.Failed() != 1 {
		t.Errorf("Failed = %d", m.Failed())
	}
}

func TestEntryJSON(t *testing.T) {
	v := samsung.Number(21.5)
	e := Entry{Direction: samsung.DirectionRx, Address: "20.00.00", ID: protocol.MsgWaterTemperature, Raw: []byte{0x00, 0xd7}, Decoded: &v}
	data, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out["id"] != "0x4237" || out["raw"] != "00d7" || out["value"] != 21.5 || out["kind"] != "decoded" || out["dir"] != "rx" {
		t.Errorf("json = %s", data)
	}
}

type fakeToken struct {
	done chan struct{}
	err  error
}

func newDoneToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type fakePublisher struct {
	open   bool
	topics []string
	err    error
}

func (p *fakePublisher) IsConnectionOpen() bool { return p.open }

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	p.topics = append(p.topics, topic)
	return newDoneToken(p.err)
}

func TestMQTTSink(t *testing.T) {
	pub := &fakePublisher{}
	sink := newMQTTSink(pub, "ac/debug")
	e := Entry{Address: "20.00.00", ID: protocol.MsgErrorCode, Undefined: true}

	if err := sink.Publish(context.Background(), e); !errors.Is(err, ErrSinkUnavailable) {
		t.Fatalf("err = %v, want ErrSinkUnavailable", err)
	}

	pub.open = true
	if err := sink.Publish(context.Background(), e); err != nil {
		t.Fatal(err)
	}
	if len(pub.topics) != 1 || pub.topics[0] != "ac/debug/undefined/20.00.00/8235" {
		t.Errorf("topics = %v", pub.topics)
	}

	pub.err = errors.New("broker said no")
	if err := sink.Publish(context.Background(), e); err == nil {
		t.Error("expected publish error")
	}
}
