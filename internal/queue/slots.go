package queue

// DefaultSessionStride is the per-session capacity bound used when a clinic
// does not configure its own. A session's position count must stay below the
// stride so slot indexes from consecutive sessions never overlap.
const DefaultSessionStride = 1000

// Codec maps between (sessionIndex, positionWithinSession) pairs and the
// single slotIndex ordering key persisted on appointments. The encoding is
// sessionIndex*stride + position, so slot order sorts by session first and
// by allocation order within a session.
type Codec struct {
	stride int
}

// NewCodec builds a Codec for a clinic's configured stride. Non-positive
// strides fall back to DefaultSessionStride.
func NewCodec(stride int) Codec {
	if stride <= 0 {
		stride = DefaultSessionStride
	}
	return Codec{stride: stride}
}

func (c Codec) Stride() int {
	return c.stride
}

// SlotIndex composes the global ordering key for a position in a session.
// Injective for 0 <= position < stride.
func (c Codec) SlotIndex(sessionIndex, position int) int {
	return sessionIndex*c.stride + position
}

// SessionIndexOf recovers the session a slot index belongs to.
// Left inverse of SlotIndex.
func (c Codec) SessionIndexOf(slotIndex int) int {
	return slotIndex / c.stride
}

// PositionOf recovers the position within the session.
func (c Codec) PositionOf(slotIndex int) int {
	return slotIndex % c.stride
}
