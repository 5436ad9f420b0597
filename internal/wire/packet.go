package wire

import (
	"encoding/binary"
	"errors"
)

// GrowSize is the minimum number of bytes added when a buffer grows.
const GrowSize = 1024

var (
	// ErrAlreadyNarrowed is returned when narrowing a buffer that is already narrowed.
	ErrAlreadyNarrowed = errors.New("packet buffer already narrowed")
	// ErrOutOfRange is returned for a narrow position outside the buffer.
	ErrOutOfRange = errors.New("position out of range")
)

// PacketBuffer is a growable byte buffer with independent read and write
// cursors. Multi-byte integers are big-endian and variable length fields
// carry a 16 bit length prefix.
//
// Positions passed to Poke, Insert and Narrow are relative to the start of
// the current view; Peek positions are relative to the read cursor. Unpack
// and Peek never fail: reading past the written data or the view returns a
// zero value and leaves the cursor where it was. The read cursor never
// passes the write cursor.
type PacketBuffer struct {
	data  []byte
	read  int
	write int

	// base and end delimit the current view within data.
	base     int
	end      int
	narrowed bool
}

// NewPacketBuffer allocates a buffer of the given size, 1024 bytes when size is 0.
func NewPacketBuffer(size int) *PacketBuffer {
	buffer := &PacketBuffer{}
	buffer.Create(size)
	return buffer
}

// Create discards the contents and allocates a fresh buffer.
func (buffer *PacketBuffer) Create(size int) {
	if size <= 0 {
		size = GrowSize
	}
	buffer.data = make([]byte, size)
	buffer.read, buffer.write = 0, 0
	buffer.base, buffer.end, buffer.narrowed = 0, size, false
}

// Resize changes the capacity, clamping the cursors. It restores a narrowed view.
func (buffer *PacketBuffer) Resize(size int) {
	buffer.unnarrow()
	if size <= 0 {
		size = GrowSize
	}
	if size == len(buffer.data) {
		return
	}
	data := make([]byte, size)
	copy(data, buffer.data)
	buffer.data = data
	buffer.read = min(buffer.read, size-1)
	buffer.write = min(buffer.write, size-1)
	buffer.end = size
}

// Grow adds at least size bytes of capacity. A narrowed view is kept.
func (buffer *PacketBuffer) Grow(size int) {
	size = max(size, GrowSize)
	data := make([]byte, len(buffer.data)+size)
	copy(data, buffer.data)
	buffer.data = data
	if !buffer.narrowed {
		buffer.end = len(data)
	}
}

// Clear empties the buffer without releasing memory.
func (buffer *PacketBuffer) Clear() {
	buffer.unnarrow()
	buffer.read, buffer.write = 0, 0
}

// Size returns the capacity of the current view.
func (buffer *PacketBuffer) Size() int {
	return buffer.end - buffer.base
}

// BytesRead returns the read cursor relative to the view.
func (buffer *PacketBuffer) BytesRead() int {
	return buffer.read - buffer.base
}

// BytesWritten returns the write cursor relative to the view.
func (buffer *PacketBuffer) BytesWritten() int {
	return buffer.write - buffer.base
}

// BytesAvailable returns the number of bytes left to read in the view.
func (buffer *PacketBuffer) BytesAvailable() int {
	return max(min(buffer.write, buffer.end)-buffer.read, 0)
}

// Bytes returns the written part of the view. The slice aliases the buffer.
func (buffer *PacketBuffer) Bytes() []byte {
	return buffer.data[buffer.base:min(buffer.write, buffer.end)]
}

// Narrowed reports whether a view is active.
func (buffer *PacketBuffer) Narrowed() bool {
	return buffer.narrowed
}

func (buffer *PacketBuffer) ensure(size int) {
	if need := buffer.write + size - len(buffer.data); need > 0 {
		buffer.Grow(need)
	}
}

func (buffer *PacketBuffer) PackByte(value byte) {
	buffer.ensure(1)
	buffer.data[buffer.write] = value
	buffer.write++
}

func (buffer *PacketBuffer) PackUint16(value uint16) {
	buffer.ensure(2)
	binary.BigEndian.PutUint16(buffer.data[buffer.write:], value)
	buffer.write += 2
}

func (buffer *PacketBuffer) PackUint32(value uint32) {
	buffer.ensure(4)
	binary.BigEndian.PutUint32(buffer.data[buffer.write:], value)
	buffer.write += 4
}

// PackBytes writes a length prefixed byte slice. Data longer than 65535
// bytes is truncated.
func (buffer *PacketBuffer) PackBytes(value []byte) {
	value = value[:min(len(value), 0xffff)]
	buffer.ensure(len(value) + 2)
	buffer.PackUint16(uint16(len(value)))
	buffer.write += copy(buffer.data[buffer.write:], value)
}

// PackString writes a length prefixed string.
func (buffer *PacketBuffer) PackString(value string) {
	buffer.PackBytes([]byte(value))
}

// PackRaw writes bytes without a length prefix.
func (buffer *PacketBuffer) PackRaw(value []byte) {
	buffer.ensure(len(value))
	buffer.write += copy(buffer.data[buffer.write:], value)
}

func (buffer *PacketBuffer) pokeAt(pos, size int) int {
	at := buffer.base + pos
	if need := at + size - len(buffer.data); need > 0 {
		buffer.Grow(need)
	}
	return at
}

// PokeByte overwrites a byte at pos without moving the write cursor.
func (buffer *PacketBuffer) PokeByte(pos int, value byte) {
	if pos < 0 {
		return
	}
	buffer.data[buffer.pokeAt(pos, 1)] = value
}

// PokeUint16 overwrites two bytes at pos without moving the write cursor.
func (buffer *PacketBuffer) PokeUint16(pos int, value uint16) {
	if pos < 0 {
		return
	}
	binary.BigEndian.PutUint16(buffer.data[buffer.pokeAt(pos, 2):], value)
}

// PokeString overwrites a length prefixed string at pos.
func (buffer *PacketBuffer) PokeString(pos int, value string) {
	if pos < 0 {
		return
	}
	value = value[:min(len(value), 0xffff)]
	at := buffer.pokeAt(pos, len(value)+2)
	binary.BigEndian.PutUint16(buffer.data[at:], uint16(len(value)))
	copy(buffer.data[at+2:], value)
}

// limit is the end of readable data: the write cursor or the view end,
// whichever comes first.
func (buffer *PacketBuffer) limit() int {
	return min(buffer.write, buffer.end)
}

func (buffer *PacketBuffer) UnpackByte() byte {
	if buffer.read+1 > buffer.limit() {
		return 0
	}
	value := buffer.data[buffer.read]
	buffer.read++
	return value
}

func (buffer *PacketBuffer) UnpackUint16() uint16 {
	if buffer.read+2 > buffer.limit() {
		return 0
	}
	value := binary.BigEndian.Uint16(buffer.data[buffer.read:])
	buffer.read += 2
	return value
}

func (buffer *PacketBuffer) UnpackUint32() uint32 {
	if buffer.read+4 > buffer.limit() {
		return 0
	}
	value := binary.BigEndian.Uint32(buffer.data[buffer.read:])
	buffer.read += 4
	return value
}

// UnpackBytes reads a length prefixed byte slice. It returns nil when the
// data is incomplete.
func (buffer *PacketBuffer) UnpackBytes() []byte {
	start := buffer.read
	size := int(buffer.UnpackUint16())
	if buffer.read == start || buffer.read+size > buffer.limit() {
		buffer.read = start
		return nil
	}
	value := make([]byte, size)
	copy(value, buffer.data[buffer.read:])
	buffer.read += size
	return value
}

// UnpackString reads a length prefixed string.
func (buffer *PacketBuffer) UnpackString() string {
	return string(buffer.UnpackBytes())
}

// UnpackRaw reads size bytes without a length prefix.
func (buffer *PacketBuffer) UnpackRaw(size int) []byte {
	if size < 0 || buffer.read+size > buffer.limit() {
		return nil
	}
	value := make([]byte, size)
	copy(value, buffer.data[buffer.read:])
	buffer.read += size
	return value
}

func (buffer *PacketBuffer) PeekByte(pos int) byte {
	at := buffer.read + pos
	if pos < 0 || at+1 > buffer.limit() {
		return 0
	}
	return buffer.data[at]
}

func (buffer *PacketBuffer) PeekUint16(pos int) uint16 {
	at := buffer.read + pos
	if pos < 0 || at+2 > buffer.limit() {
		return 0
	}
	return binary.BigEndian.Uint16(buffer.data[at:])
}

func (buffer *PacketBuffer) PeekUint32(pos int) uint32 {
	at := buffer.read + pos
	if pos < 0 || at+4 > buffer.limit() {
		return 0
	}
	return binary.BigEndian.Uint32(buffer.data[at:])
}

// PeekBytes reads a length prefixed byte slice at pos without consuming it.
func (buffer *PacketBuffer) PeekBytes(pos int) []byte {
	at := buffer.read + pos
	if pos < 0 || at+2 > buffer.limit() {
		return nil
	}
	size := int(buffer.PeekUint16(pos))
	if at+2+size > buffer.limit() {
		return nil
	}
	value := make([]byte, size)
	copy(value, buffer.data[at+2:])
	return value
}

func (buffer *PacketBuffer) PeekString(pos int) string {
	return string(buffer.PeekBytes(pos))
}

// Skip advances the read cursor, staying within the written data.
func (buffer *PacketBuffer) Skip(size int) {
	buffer.read = min(max(buffer.read+size, buffer.base), buffer.write)
}

// ReserveSize writes a placeholder length and returns its position for UpdateSize.
func (buffer *PacketBuffer) ReserveSize() int {
	pos := buffer.BytesWritten()
	buffer.PackUint16(0)
	return pos
}

// UpdateSize stores the number of bytes written after the placeholder at pos.
func (buffer *PacketBuffer) UpdateSize(pos int) {
	buffer.PokeUint16(pos, uint16(buffer.BytesWritten()-pos-2))
}

// ReadSize reads a length written by ReserveSize. It returns the length and
// the position just past the sized block, for use with SkipSize.
func (buffer *PacketBuffer) ReadSize() (size, end int) {
	size = int(buffer.UnpackUint16())
	return size, buffer.BytesRead() + size
}

// SkipSize moves the read cursor to end, as returned by ReadSize.
func (buffer *PacketBuffer) SkipSize(end int) {
	buffer.Skip(end - buffer.BytesRead())
}

// Insert opens a gap of size bytes at pos, shifting the written data after it.
func (buffer *PacketBuffer) Insert(pos, size int) {
	if pos < 0 || size <= 0 || pos >= buffer.BytesWritten() {
		return
	}
	buffer.ensure(size)
	at := buffer.base + pos
	copy(buffer.data[at+size:], buffer.data[at:buffer.write])
	clear(buffer.data[at : at+size])
	buffer.write += size
}

// Narrow restricts reading to size bytes starting at pos. A pos of -1 starts
// at the read cursor; a size that does not fit is clamped. Narrow(0, -1)
// restores the full buffer. Views do not nest.
func (buffer *PacketBuffer) Narrow(pos, size int) error {
	if pos == 0 && size == -1 {
		buffer.unnarrow()
		return nil
	}
	if buffer.narrowed {
		return ErrAlreadyNarrowed
	}
	if pos == -1 {
		pos = buffer.read
	}
	if pos < 0 || pos > buffer.write {
		return ErrOutOfRange
	}
	if size < 0 || size > len(buffer.data)-pos {
		size = len(buffer.data) - pos
	}
	buffer.base = pos
	buffer.end = pos + size
	buffer.read = pos
	buffer.narrowed = true
	return nil
}

// unnarrow restores the full view. The read cursor keeps its absolute position.
func (buffer *PacketBuffer) unnarrow() {
	if !buffer.narrowed {
		return
	}
	buffer.base = 0
	buffer.end = len(buffer.data)
	buffer.narrowed = false
}
