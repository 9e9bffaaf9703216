package apdu

// MaxSegmentsAccepted and MaxAPDULengthAccepted are packed together into a
// single wire octet on Confirmed-Request (and decoded from the equivalent
// octet advertised by a peer): bits 6..4 select a segment-count bucket,
// the bottom 4 bits select an APDU-length bucket.

var maxSegmentsTable = [...]int{0, 2, 4, 8, 16, 32, 64, 0} // 0 in slot 7 means "more than 64"

var maxApduLengthTable = [...]int{50, 128, 206, 480, 1024, 1476, 1476, 1476, 1476, 1476, 1476, 1476, 1476, 1476, 1476, 1476}

// EncodeMaxSegments returns the 3-bit bucket for a segment count.
// 0 means "unspecified/unknown", values above 64 map to the "more than 64"
// bucket (7) per the standard table.
func EncodeMaxSegments(n int) uint8 {
	switch {
	case n <= 0:
		return 0
	case n <= 2:
		return 1
	case n <= 4:
		return 2
	case n <= 8:
		return 3
	case n <= 16:
		return 4
	case n <= 32:
		return 5
	case n <= 64:
		return 6
	default:
		return 7
	}
}

// DecodeMaxSegments returns the segment count for a 3-bit bucket, or 0 if
// unknown (buckets 0 and 7 both collapse to "unknown/more than 64" per
// §3's DeviceInfo.maxSegmentsAccepted semantics — callers that need to
// distinguish "unspecified" from "known to exceed 64" should special-case
// bucket 7 themselves).
func DecodeMaxSegments(bucket uint8) int {
	if int(bucket) >= len(maxSegmentsTable) {
		return 0
	}
	return maxSegmentsTable[bucket]
}

// EncodeMaxAPDULength returns the 4-bit bucket whose value is the largest
// one not exceeding n (so a sender never advertises more than it can
// accept).
func EncodeMaxAPDULength(n int) uint8 {
	best := uint8(0)
	for i, v := range maxApduLengthTable {
		if v <= n {
			best = uint8(i)
		}
	}
	return best
}

// DecodeMaxAPDULength returns the APDU length for a 4-bit bucket.
func DecodeMaxAPDULength(bucket uint8) int {
	if int(bucket) >= len(maxApduLengthTable) {
		return maxApduLengthTable[len(maxApduLengthTable)-1]
	}
	return maxApduLengthTable[bucket]
}

// PackMaxSegsMaxResp packs a maxSegmentsAccepted bucket and a
// maxAPDULengthAccepted bucket into the single wire octet used by
// Confirmed-Request.
func PackMaxSegsMaxResp(maxSegsBucket, maxRespBucket uint8) byte {
	return (maxSegsBucket&0x07)<<4 | (maxRespBucket & 0x0F)
}

// UnpackMaxSegsMaxResp splits the wire octet back into its two buckets.
func UnpackMaxSegsMaxResp(b byte) (maxSegsBucket, maxRespBucket uint8) {
	return (b >> 4) & 0x07, b & 0x0F
}
