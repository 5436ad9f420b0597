package wire

import (
	"errors"
	"fmt"
	"time"

	"respite/internal/core/breaks"
	"respite/internal/core/model"
)

// Message header constants.
const (
	Magic             uint16 = 0x5254
	Version           byte   = 1
	CommandBreakState uint16 = 1
)

var (
	ErrTruncated          = errors.New("message truncated")
	ErrBadMagic           = errors.New("bad message magic")
	ErrUnsupportedVersion = errors.New("unsupported message version")
	ErrUnknownCommand     = errors.New("unknown message command")
)

// Origin identifies the process that produced a message.
type Origin struct {
	Host     string
	Instance string
}

// Snapshot is the break state of one process at a point in time.
type Snapshot struct {
	Origin  Origin
	SavedAt time.Time
	Mode    model.OperationMode
	Usage   model.UsageMode
	Breaks  []breaks.Snapshot
}

// EncodeSnapshot serializes a snapshot. Every break is written as a sized
// block so that readers skip fields they do not know.
func EncodeSnapshot(snapshot Snapshot) []byte {
	buffer := NewPacketBuffer(0)
	buffer.PackUint16(Magic)
	buffer.PackByte(Version)
	buffer.PackUint16(CommandBreakState)

	buffer.PackString(snapshot.Origin.Host)
	buffer.PackString(snapshot.Origin.Instance)
	buffer.PackUint32(uint32(max(snapshot.SavedAt.Unix(), 0)))
	buffer.PackByte(byte(snapshot.Mode))
	buffer.PackByte(byte(snapshot.Usage))

	buffer.PackByte(byte(len(snapshot.Breaks)))
	for _, state := range snapshot.Breaks {
		pos := buffer.ReserveSize()
		buffer.PackByte(byte(state.Break))
		buffer.PackByte(byte(state.Stage))
		buffer.PackByte(boolByte(state.Enabled))
		buffer.PackUint32(seconds(state.Limit))
		buffer.PackUint32(seconds(state.ElapsedActive))
		buffer.PackUint32(seconds(state.ElapsedIdle))
		buffer.PackUint16(uint16(min(max(state.PreludeCount, 0), 0xffff)))
		buffer.UpdateSize(pos)
	}

	out := make([]byte, buffer.BytesWritten())
	copy(out, buffer.Bytes())
	return out
}

// breakBlockSize is the size of a break block written by this version.
const breakBlockSize = 3 + 3*4 + 2

// DecodeSnapshot parses a message produced by EncodeSnapshot.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	buffer := NewPacketBuffer(len(data))
	buffer.PackRaw(data)

	var snapshot Snapshot
	if buffer.BytesAvailable() < 5 {
		return snapshot, fmt.Errorf("header: %w", ErrTruncated)
	}
	if magic := buffer.UnpackUint16(); magic != Magic {
		return snapshot, fmt.Errorf("%w: %#04x", ErrBadMagic, magic)
	}
	if version := buffer.UnpackByte(); version == 0 || version > Version {
		return snapshot, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	if command := buffer.UnpackUint16(); command != CommandBreakState {
		return snapshot, fmt.Errorf("%w: %d", ErrUnknownCommand, command)
	}

	var err error
	if snapshot.Origin.Host, err = unpackString(buffer); err != nil {
		return snapshot, fmt.Errorf("origin host: %w", err)
	}
	if snapshot.Origin.Instance, err = unpackString(buffer); err != nil {
		return snapshot, fmt.Errorf("origin instance: %w", err)
	}
	if buffer.BytesAvailable() < 4+1+1+1 {
		return snapshot, fmt.Errorf("state: %w", ErrTruncated)
	}
	snapshot.SavedAt = time.Unix(int64(buffer.UnpackUint32()), 0)
	snapshot.Mode = model.OperationMode(buffer.UnpackByte())
	snapshot.Usage = model.UsageMode(buffer.UnpackByte())

	count := int(buffer.UnpackByte())
	snapshot.Breaks = make([]breaks.Snapshot, 0, count)
	for index := 0; index < count; index++ {
		state, err := decodeBreak(buffer)
		if err != nil {
			return snapshot, fmt.Errorf("break %d: %w", index, err)
		}
		snapshot.Breaks = append(snapshot.Breaks, state)
	}
	return snapshot, nil
}

func decodeBreak(buffer *PacketBuffer) (breaks.Snapshot, error) {
	if buffer.BytesAvailable() < 2 {
		return breaks.Snapshot{}, ErrTruncated
	}
	size, end := buffer.ReadSize()
	if buffer.BytesAvailable() < size {
		return breaks.Snapshot{}, ErrTruncated
	}
	if err := buffer.Narrow(-1, size); err != nil {
		return breaks.Snapshot{}, err
	}

	var state breaks.Snapshot
	if buffer.BytesAvailable() < breakBlockSize {
		// An older writer may send fewer fields; missing ones stay zero.
		state.Break = model.BreakID(buffer.UnpackByte())
	} else {
		state.Break = model.BreakID(buffer.UnpackByte())
		state.Stage = breaks.Stage(buffer.UnpackByte())
		state.Enabled = buffer.UnpackByte() != 0
		state.Limit = time.Duration(buffer.UnpackUint32()) * time.Second
		state.ElapsedActive = time.Duration(buffer.UnpackUint32()) * time.Second
		state.ElapsedIdle = time.Duration(buffer.UnpackUint32()) * time.Second
		state.PreludeCount = int(buffer.UnpackUint16())
	}

	if err := buffer.Narrow(0, -1); err != nil {
		return breaks.Snapshot{}, err
	}
	buffer.SkipSize(end)
	return state, nil
}

func unpackString(buffer *PacketBuffer) (string, error) {
	if buffer.BytesAvailable() < 2 || buffer.BytesAvailable() < 2+int(buffer.PeekUint16(0)) {
		return "", ErrTruncated
	}
	return buffer.UnpackString(), nil
}

func seconds(duration time.Duration) uint32 {
	return uint32(min(max(duration/time.Second, 0), 0xffffffff))
}

func boolByte(value bool) byte {
	if value {
		return 1
	}
	return 0
}
