package audio

import (
	"encoding/binary"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCaptureAccumulatesUntilStop(t *testing.T) {
	c := newCapture(Device{ID: "mic-1"}, 0)
	require.Equal(t, "mic-1", c.Device().ID)

	n, err := c.onPCM([]byte{1, 2, 3, 4})
	require.NoError(t, err)
	require.Equal(t, 4, n)
	_, err = c.onPCM([]byte{5, 6})
	require.NoError(t, err)

	rec, err := c.Stop()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6}, rec.PCM)
	require.False(t, rec.Truncated)

	n, err = c.onPCM([]byte{7})
	require.Zero(t, n)
	require.ErrorIs(t, err, io.EOF)

	again, err := c.Stop()
	require.NoError(t, err)
	require.Equal(t, rec, again)
}

func TestCaptureTruncatesAtLimit(t *testing.T) {
	c := newCapture(Device{}, 100*time.Millisecond)
	require.Equal(t, 3200, c.limit)

	_, err := c.onPCM(make([]byte, 3000))
	require.NoError(t, err)
	_, err = c.onPCM(make([]byte, 640))
	require.ErrorIs(t, err, io.EOF)

	rec, err := c.Stop()
	require.ErrorIs(t, err, ErrRecordingTooLong)
	require.True(t, rec.Truncated)
	require.Len(t, rec.PCM, 3200)
	require.Equal(t, 100*time.Millisecond, rec.Duration())
}

func TestEncodeWAVHeader(t *testing.T) {
	pcm := []byte{0x01, 0x00, 0xff, 0x7f}
	wav := EncodeWAV(pcm, SampleRate, Channels)

	require.Len(t, wav, 44+len(pcm))
	require.Equal(t, "RIFF", string(wav[0:4]))
	require.Equal(t, uint32(36+len(pcm)), binary.LittleEndian.Uint32(wav[4:8]))
	require.Equal(t, "WAVEfmt ", string(wav[8:16]))
	require.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[20:22]))
	require.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[22:24]))
	require.Equal(t, uint32(16000), binary.LittleEndian.Uint32(wav[24:28]))
	require.Equal(t, uint32(32000), binary.LittleEndian.Uint32(wav[28:32]))
	require.Equal(t, "data", string(wav[36:40]))
	require.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(wav[40:44]))
	require.Equal(t, pcm, wav[44:])

	require.Equal(t, wav, Recording{PCM: pcm}.WAV())
}
