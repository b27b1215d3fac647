package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// Recording format: 16 kHz mono signed 16-bit little endian.
const (
	SampleRate     = 16000
	Channels       = 1
	bytesPerSample = 2
	fragmentBytes  = 640 // 20ms
)

// ErrRecordingTooLong is reported by Stop when the recording hit the size cap.
var ErrRecordingTooLong = errors.New("recording exceeded maximum duration")

// Recording is one captured utterance.
type Recording struct {
	Device    Device
	PCM       []byte
	Truncated bool
}

// Duration is the length of the captured audio.
func (r Recording) Duration() time.Duration {
	return time.Duration(len(r.PCM)/(bytesPerSample*Channels)) * time.Second / SampleRate
}

// WAV encodes the recording for upload.
func (r Recording) WAV() []byte {
	return EncodeWAV(r.PCM, SampleRate, Channels)
}

// Capture accumulates PCM from one source until Stop.
type Capture struct {
	device Device
	client *pulse.Client
	stream *pulse.RecordStream
	limit  int

	mu        sync.Mutex
	pcm       []byte
	stopped   bool
	truncated bool
	done      chan struct{}
}

// StartCapture opens a record stream on device. maxDuration <= 0 disables the size cap.
// Cancelling ctx stops the capture.
func StartCapture(ctx context.Context, device Device, maxDuration time.Duration) (*Capture, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}

	source, err := client.SourceByID(device.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", device.ID, err)
	}

	c := newCapture(device, maxDuration)
	c.client = client

	stream, err := client.NewRecord(
		pulse.NewWriter(writerFunc(c.onPCM), pulseproto.FormatInt16LE),
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(SampleRate),
		pulse.RecordBufferFragmentSize(fragmentBytes),
		pulse.RecordMediaName("voxhook utterance"),
	)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}
	c.stream = stream
	stream.Start()

	go func() {
		select {
		case <-ctx.Done():
			_, _ = c.Stop()
		case <-c.done:
		}
	}()
	return c, nil
}

func newCapture(device Device, maxDuration time.Duration) *Capture {
	limit := 0
	if maxDuration > 0 {
		limit = int(maxDuration.Seconds() * SampleRate * bytesPerSample * Channels)
	}
	return &Capture{device: device, limit: limit, done: make(chan struct{})}
}

// Device returns the capture source.
func (c *Capture) Device() Device { return c.device }

// Stop ends the stream and returns everything captured. Repeated calls return the same
// recording.
func (c *Capture) Stop() (Recording, error) {
	c.mu.Lock()
	already := c.stopped
	c.stopped = true
	c.mu.Unlock()

	if !already {
		close(c.done)
		if c.stream != nil {
			c.stream.Stop()
			c.stream.Close()
		}
		if c.client != nil {
			c.client.Close()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	rec := Recording{Device: c.device, PCM: append([]byte(nil), c.pcm...), Truncated: c.truncated}
	if c.truncated {
		return rec, ErrRecordingTooLong
	}
	return rec, nil
}

func (c *Capture) onPCM(buf []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped || c.truncated {
		return 0, io.EOF
	}
	if c.limit > 0 && len(c.pcm)+len(buf) > c.limit {
		c.pcm = append(c.pcm, buf[:c.limit-len(c.pcm)]...)
		c.truncated = true
		return 0, io.EOF
	}
	c.pcm = append(c.pcm, buf...)
	return len(buf), nil
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) { return f(b) }
