package stun

// IsChannelData reports whether buf looks like a TURN ChannelData message
// (RFC 5766 Section 11.4): the first two bits of the channel number are
// 0b01, distinguishing it from a STUN message (0b00) on a demultiplexed
// socket, spec.md Section 4.3.
func IsChannelData(buf []byte) bool {
	if len(buf) < 4 {
		return false
	}
	return buf[0]&0xc0 == 0x40
}
