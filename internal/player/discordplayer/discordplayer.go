// Package discordplayer implements [player.Controller] on top of a Discord
// voice connection. Media is decoded to PCM by an external ffmpeg process,
// gain-adjusted, Opus-encoded, and pushed onto the voice connection's send
// channel in 20 ms frames.
//
// Remote URLs are resolved to a direct audio stream with yt-dlp before being
// handed to ffmpeg.
package discordplayer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
	"layeh.com/gopus"

	"github.com/MrWong99/roboto/internal/player"
)

// Discord voice uses 48 kHz stereo Opus at 20 ms frame size.
const (
	sampleRate  = 48000
	channels    = 2
	frameSizeMs = 20
	// frameSize is the number of samples per channel per 20 ms frame.
	frameSize = sampleRate * frameSizeMs / 1000 // 960
	// frameBytes is the PCM input size for one Opus frame:
	// 960 samples/channel × 2 channels × 2 bytes/sample.
	frameBytes = frameSize * channels * 2
)

var _ player.Controller = (*Controller)(nil)

// Controller plays media into one Discord voice connection. Create one per
// voice join via [New]; it lives until [Controller.Close].
type Controller struct {
	vc       *discordgo.VoiceConnection
	onFinish func()

	// disconnect leaves the voice channel. Overridable so tests can run
	// without a live gateway connection.
	disconnect func() error

	// gain holds the playback gain as math.Float64bits.
	gain atomic.Uint64

	mu      sync.Mutex
	title   string
	playing bool
	cancel  context.CancelFunc
	closed  bool

	// streamSeq identifies the current stream goroutine. A finished stream
	// may only clear state and fire onFinish while it is still the current
	// one; a replacement bumps the sequence and orphans the old goroutine.
	streamSeq uint64
}

// Option customises a [Controller].
type Option func(*Controller)

// WithOnFinish sets a callback invoked from the playback goroutine whenever a
// stream ends naturally. Stops and replacements do not trigger it. The bot
// uses it to schedule continuous-playback advancement.
func WithOnFinish(fn func()) Option {
	return func(c *Controller) { c.onFinish = fn }
}

// New creates a Controller for an established voice connection at full volume.
func New(vc *discordgo.VoiceConnection, opts ...Option) *Controller {
	c := &Controller{vc: vc, disconnect: vc.Disconnect}
	c.gain.Store(math.Float64bits(1.0))
	for _, o := range opts {
		o(c)
	}
	return c
}

// PlayFile implements [player.Controller]. Playback runs in a background
// goroutine; any current playback is replaced.
func (c *Controller) PlayFile(_ context.Context, path, title string) error {
	return c.start(path, title)
}

// PlayURL implements [player.Controller]. The URL is resolved to a direct
// audio stream and title with yt-dlp, then streamed like a local file.
func (c *Controller) PlayURL(ctx context.Context, url string) (string, error) {
	title, streamURL, err := resolveStream(ctx, url)
	if err != nil {
		return "", err
	}
	if err := c.start(streamURL, title); err != nil {
		return "", err
	}
	return title, nil
}

// start replaces the current playback with a new ffmpeg-fed stream.
func (c *Controller) start(src, title string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("discordplayer: controller is closed")
	}
	c.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.title = title
	c.playing = true
	c.streamSeq++

	go c.stream(ctx, src, title, c.streamSeq)
	return nil
}

// stream decodes src with ffmpeg and plays the resulting PCM. Runs in its own
// goroutine; seq ties its end-of-stream bookkeeping to the start call that
// spawned it.
func (c *Controller) stream(ctx context.Context, src, title string, seq uint64) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", src,
		"-f", "s16le",
		"-ar", fmt.Sprint(sampleRate),
		"-ac", fmt.Sprint(channels),
		"-loglevel", "quiet",
		"pipe:1",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		slog.Error("discordplayer: ffmpeg pipe", "title", title, "err", err)
		c.finish(seq, false)
		return
	}
	if err := cmd.Start(); err != nil {
		slog.Error("discordplayer: start ffmpeg", "title", title, "err", err)
		c.finish(seq, false)
		return
	}
	defer cmd.Wait() //nolint:errcheck // killed on cancel

	err = c.playPCM(ctx, stdout)
	switch {
	case ctx.Err() != nil:
		// Stopped or replaced; the replacement owns the state now.
	case err != nil:
		slog.Warn("discordplayer: playback aborted", "title", title, "err", err)
		c.finish(seq, false)
	default:
		c.finish(seq, true)
	}
}

// playPCM reads interleaved s16le PCM from r frame by frame, applies the
// current gain, and sends Opus packets until r drains or ctx is cancelled.
func (c *Controller) playPCM(ctx context.Context, r io.Reader) error {
	enc, err := gopus.NewEncoder(sampleRate, channels, gopus.Audio)
	if err != nil {
		return fmt.Errorf("discordplayer: create opus encoder: %w", err)
	}

	c.setSpeaking(true)
	defer c.setSpeaking(false)

	buf := make([]byte, frameBytes)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}
			return fmt.Errorf("discordplayer: read pcm: %w", err)
		}

		pcm := bytesToPCM(buf)
		applyGain(pcm, c.Gain())
		opus, err := enc.Encode(pcm, frameSize, frameBytes)
		if err != nil {
			return fmt.Errorf("discordplayer: opus encode: %w", err)
		}

		select {
		case c.vc.OpusSend <- opus:
		case <-ctx.Done():
			return nil
		}
	}
}

// finish clears the playing state after a stream ends on its own. natural
// distinguishes a drained stream from a decode failure. A stream that was
// replaced or stopped between draining and reaching the lock is no longer
// the current one; it must neither touch state nor fire onFinish.
func (c *Controller) finish(seq uint64, natural bool) {
	c.mu.Lock()
	if seq != c.streamSeq || c.closed {
		c.mu.Unlock()
		return
	}
	c.playing = false
	c.cancel = nil
	c.mu.Unlock()

	if natural && c.onFinish != nil {
		c.onFinish()
	}
}

// Stop implements [player.Controller].
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	return nil
}

// stopLocked cancels the current stream. Caller holds c.mu.
func (c *Controller) stopLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.playing = false
	c.title = ""
}

// SetVolume implements [player.Controller]. The change applies from the next
// frame of the running stream.
func (c *Controller) SetVolume(gain float64) {
	if gain < 0 {
		gain = 0
	}
	if gain > 2 {
		gain = 2
	}
	c.gain.Store(math.Float64bits(gain))
}

// Gain returns the current playback gain.
func (c *Controller) Gain() float64 {
	return math.Float64frombits(c.gain.Load())
}

// Playing implements [player.Controller].
func (c *Controller) Playing() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.title, c.playing
}

// Close implements [player.Controller]. It stops playback and leaves the
// voice channel.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.stopLocked()
	c.mu.Unlock()

	if err := c.disconnect(); err != nil {
		return fmt.Errorf("discordplayer: disconnect voice: %w", err)
	}
	return nil
}

// setSpeaking sends a speaking notification to Discord, logging any errors.
func (c *Controller) setSpeaking(b bool) {
	if err := c.vc.Speaking(b); err != nil {
		slog.Warn("discordplayer: speaking notification", "speaking", b, "err", err)
	}
}

// resolveStream asks yt-dlp for the title and direct audio URL of a media
// page. The two --print directives emit one line each.
func resolveStream(ctx context.Context, url string) (title, streamURL string, err error) {
	cmd := exec.CommandContext(ctx, "yt-dlp",
		"-f", "bestaudio",
		"--no-playlist",
		"--print", "title",
		"--print", "urls",
		url,
	)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", "", fmt.Errorf("discordplayer: resolve %q: %w", url, err)
	}

	lines := strings.SplitN(strings.TrimSpace(out.String()), "\n", 2)
	if len(lines) != 2 || lines[1] == "" {
		return "", "", fmt.Errorf("discordplayer: resolve %q: unexpected yt-dlp output", url)
	}
	return strings.TrimSpace(lines[0]), strings.TrimSpace(lines[1]), nil
}

// bytesToPCM converts little-endian bytes to int16 PCM samples.
func bytesToPCM(b []byte) []int16 {
	pcm := make([]int16, len(b)/2)
	for i := range pcm {
		pcm[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return pcm
}

// applyGain scales samples in place, clamping at the int16 range.
func applyGain(pcm []int16, gain float64) {
	if gain == 1.0 {
		return
	}
	for i, s := range pcm {
		v := float64(s) * gain
		switch {
		case v > math.MaxInt16:
			pcm[i] = math.MaxInt16
		case v < math.MinInt16:
			pcm[i] = math.MinInt16
		default:
			pcm[i] = int16(v)
		}
	}
}
