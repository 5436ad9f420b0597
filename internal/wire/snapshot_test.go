package wire

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"respite/internal/core/breaks"
	"respite/internal/core/model"
)

func sampleSnapshot() Snapshot {
	return Snapshot{
		Origin:  Origin{Host: "desk", Instance: "2f1c"},
		SavedAt: time.Unix(1_700_000_000, 0),
		Mode:    model.ModeQuiet,
		Usage:   model.UsageReading,
		Breaks: []breaks.Snapshot{
			{Break: model.MicroBreak, Stage: breaks.StageIdle, Enabled: true, Limit: 3 * time.Minute, ElapsedActive: 95 * time.Second},
			{Break: model.RestBreak, Stage: breaks.StagePostponed, Enabled: true, Limit: 45 * time.Minute, ElapsedActive: 46 * time.Minute, ElapsedIdle: 12 * time.Second, PreludeCount: 2},
			{Break: model.DailyLimit, Enabled: false, Limit: 4 * time.Hour},
		},
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	snapshot := sampleSnapshot()
	decoded, err := DecodeSnapshot(EncodeSnapshot(snapshot))
	require.NoError(t, err)
	assert.Equal(t, snapshot.Origin, decoded.Origin)
	assert.True(t, snapshot.SavedAt.Equal(decoded.SavedAt))
	assert.Equal(t, snapshot.Mode, decoded.Mode)
	assert.Equal(t, snapshot.Usage, decoded.Usage)
	assert.Equal(t, snapshot.Breaks, decoded.Breaks)
}

func TestSnapshotSkipsUnknownTrailingFields(t *testing.T) {
	buffer := NewPacketBuffer(0)
	buffer.PackUint16(Magic)
	buffer.PackByte(Version)
	buffer.PackUint16(CommandBreakState)
	buffer.PackString("host")
	buffer.PackString("id")
	buffer.PackUint32(0)
	buffer.PackByte(0)
	buffer.PackByte(0)
	buffer.PackByte(2)
	for _, id := range []model.BreakID{model.RestBreak, model.MicroBreak} {
		pos := buffer.ReserveSize()
		buffer.PackByte(byte(id))
		buffer.PackByte(0)
		buffer.PackByte(1)
		buffer.PackUint32(60)
		buffer.PackUint32(30)
		buffer.PackUint32(0)
		buffer.PackUint16(0)
		buffer.PackString("field from a newer writer")
		buffer.UpdateSize(pos)
	}

	decoded, err := DecodeSnapshot(buffer.Bytes())
	require.NoError(t, err)
	require.Len(t, decoded.Breaks, 2)
	assert.Equal(t, model.RestBreak, decoded.Breaks[0].Break)
	assert.Equal(t, model.MicroBreak, decoded.Breaks[1].Break)
	assert.Equal(t, 30*time.Second, decoded.Breaks[1].ElapsedActive)
}

func TestSnapshotDecodeErrors(t *testing.T) {
	valid := EncodeSnapshot(sampleSnapshot())

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{name: "empty", data: nil, want: ErrTruncated},
		{name: "bad magic", data: append([]byte{0, 0}, valid[2:]...), want: ErrBadMagic},
		{name: "future version", data: append(append([]byte{}, valid[:2]...), append([]byte{Version + 1}, valid[3:]...)...), want: ErrUnsupportedVersion},
		{name: "unknown command", data: append(append([]byte{}, valid[:3]...), append([]byte{0, 9}, valid[5:]...)...), want: ErrUnknownCommand},
		{name: "truncated origin", data: valid[:8], want: ErrTruncated},
		{name: "truncated break", data: valid[:len(valid)-3], want: ErrTruncated},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := DecodeSnapshot(test.data)
			assert.ErrorIs(t, err, test.want)
		})
	}
}

func TestLocalOriginIsStable(t *testing.T) {
	first := LocalOrigin(context.Background())
	second := LocalOrigin(context.Background())
	assert.Equal(t, first, second)
	assert.NotEmpty(t, first.Host)
	assert.Len(t, first.Instance, 36)
}
