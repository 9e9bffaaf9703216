package ssm

import "errors"

// ErrWrongState is returned when an operation is attempted while the
// transaction is not in a state that accepts it (e.g. Request called on
// an already-active ClientSSM).
var ErrWrongState = errors.New("ssm: operation not valid in current state")

// ErrPeerCannotSegment is returned when a request or response would need
// segmentation but the peer's DeviceInfo says it cannot receive segments.
var ErrPeerCannotSegment = errors.New("ssm: message requires segmentation but peer does not support it")

// ErrLocalCannotSegment is returned when a request would need segmentation
// but this device's own configured segmentationSupported forbids it.
var ErrLocalCannotSegment = errors.New("ssm: message requires segmentation but local device cannot transmit segmented")

// ErrTooManySegments is returned when a request would need more segments
// than the peer's advertised maxSegmentsAccepted allows.
var ErrTooManySegments = errors.New("ssm: message would exceed peer's maxSegmentsAccepted")
