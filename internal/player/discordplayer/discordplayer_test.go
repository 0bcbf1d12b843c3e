package discordplayer

import (
	"bytes"
	"context"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
)

// newTestController creates a Controller wired to a fake voice connection.
// The fake has no websocket, so speaking notifications fail and are logged,
// matching the behaviour the controller must tolerate.
func newTestController(opts ...Option) *Controller {
	vc := &discordgo.VoiceConnection{
		OpusSend: make(chan []byte, 64),
	}
	c := New(vc, opts...)
	c.disconnect = func() error { return nil }
	return c
}

func TestApplyGain(t *testing.T) {
	t.Parallel()

	pcm := []int16{1000, -1000, math.MaxInt16, math.MinInt16}
	applyGain(pcm, 0.5)
	want := []int16{500, -500, math.MaxInt16 / 2, math.MinInt16 / 2}
	for i := range want {
		if pcm[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, pcm[i], want[i])
		}
	}
}

func TestApplyGain_ClampsAtInt16Range(t *testing.T) {
	t.Parallel()

	pcm := []int16{30000, -30000}
	applyGain(pcm, 2.0)
	if pcm[0] != math.MaxInt16 {
		t.Errorf("positive overflow = %d, want %d", pcm[0], math.MaxInt16)
	}
	if pcm[1] != math.MinInt16 {
		t.Errorf("negative overflow = %d, want %d", pcm[1], math.MinInt16)
	}
}

func TestSetVolume_Clamps(t *testing.T) {
	t.Parallel()

	c := newTestController()
	if got := c.Gain(); got != 1.0 {
		t.Errorf("initial gain = %v, want 1.0", got)
	}

	c.SetVolume(-3)
	if got := c.Gain(); got != 0 {
		t.Errorf("gain = %v, want clamp to 0", got)
	}
	c.SetVolume(9)
	if got := c.Gain(); got != 2 {
		t.Errorf("gain = %v, want clamp to 2", got)
	}
	c.SetVolume(0.5)
	if got := c.Gain(); got != 0.5 {
		t.Errorf("gain = %v, want 0.5", got)
	}
}

func TestPlayPCM_EncodesFullFramesAndDrains(t *testing.T) {
	t.Parallel()

	c := newTestController()

	// Three full frames of silence plus a partial trailing frame, which is
	// dropped rather than padded.
	pcm := make([]byte, 3*frameBytes+100)
	if err := c.playPCM(context.Background(), bytes.NewReader(pcm)); err != nil {
		t.Fatalf("playPCM: %v", err)
	}

	got := len(c.vc.OpusSend)
	if got != 3 {
		t.Fatalf("sent %d opus packets, want 3", got)
	}
	for i := 0; i < got; i++ {
		if pkt := <-c.vc.OpusSend; len(pkt) == 0 {
			t.Error("received empty opus packet")
		}
	}
}

func TestPlayPCM_StopsOnCancel(t *testing.T) {
	t.Parallel()

	c := newTestController()
	c.vc.OpusSend = make(chan []byte) // unbuffered: the send must block

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.playPCM(ctx, bytes.NewReader(make([]byte, 10*frameBytes)))
	}()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("playPCM after cancel = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("playPCM did not return after cancel")
	}
}

func TestStopWithoutPlayback(t *testing.T) {
	t.Parallel()

	c := newTestController()
	if err := c.Stop(); err != nil {
		t.Errorf("Stop on idle controller = %v", err)
	}
	if _, playing := c.Playing(); playing {
		t.Error("idle controller reports playing")
	}
}

func TestFinish_NaturalEndTriggersCallback(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestController(WithOnFinish(func() { calls.Add(1) }))

	c.finish(c.streamSeq, true)
	if calls.Load() != 1 {
		t.Errorf("onFinish calls = %d, want 1 after natural end", calls.Load())
	}

	c.finish(c.streamSeq, false)
	if calls.Load() != 1 {
		t.Errorf("onFinish calls = %d, want no call after failure", calls.Load())
	}
}

func TestFinish_ReplacedStreamLeavesCurrentStateAlone(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestController(WithOnFinish(func() { calls.Add(1) }))

	// Stream 1 drains; before its finish runs, a new start replaces it.
	c.mu.Lock()
	c.streamSeq = 2
	c.title = "the replacement"
	c.playing = true
	_, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()
	defer cancel()

	c.finish(1, true)

	if calls.Load() != 0 {
		t.Error("a replaced stream must not fire onFinish")
	}
	title, playing := c.Playing()
	if !playing || title != "the replacement" {
		t.Errorf("Playing() = %q, %v; the replacement's state was clobbered", title, playing)
	}
	c.mu.Lock()
	if c.cancel == nil {
		t.Error("the replacement's cancel func was cleared")
	}
	c.mu.Unlock()
}

func TestFinish_AfterCloseDoesNotFireCallback(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestController(WithOnFinish(func() { calls.Add(1) }))

	seq := c.streamSeq
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	c.finish(seq, true)
	if calls.Load() != 0 {
		t.Error("a closed controller must not fire onFinish")
	}
}

func TestClose_Idempotent(t *testing.T) {
	t.Parallel()

	c := newTestController()
	if err := c.Close(); err != nil {
		t.Errorf("first Close = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
	if err := c.Stop(); err != nil {
		t.Errorf("Stop after Close = %v", err)
	}
}
