package lnurl

// MsatsPerSat is the wire-level amount unit ratio.
const MsatsPerSat = 1000

// ClampAmount normalizes a requested amount in sats into the range the
// endpoint advertises. The millisat bounds are narrowed to whole sats
// (min rounded up, max rounded down) so any clamped value is sendable.
// Malformed bounds (non-positive or inverted) return the request unchanged
// rather than producing a nonsense amount.
func ClampAmount(requestedSats int64, params *PayParams) int64 {
	if params == nil {
		return requestedSats
	}
	minSats := (params.MinSendable + MsatsPerSat - 1) / MsatsPerSat
	maxSats := params.MaxSendable / MsatsPerSat
	if params.MinSendable <= 0 || params.MaxSendable <= 0 || minSats > maxSats {
		return requestedSats
	}
	if requestedSats < minSats {
		return minSats
	}
	if requestedSats > maxSats {
		return maxSats
	}
	return requestedSats
}
