// Package perr defines the pipeline's error taxonomy (spec section 7).
// Every stage-fatal error is one of the sentinels below, wrapped with
// fmt.Errorf("...: %w", ...) so callers can still errors.Is against the
// category while retaining the specific cause in the message.
package perr

import "errors"

// InputFormat signals a malformed block, bad compression variant, or
// otherwise unparseable primitive stream. Terminal.
var InputFormat = errors.New("input format error")

// EndOfStream signals clean termination of the primitive source. Callers
// treat it as normal completion, not a failure.
var EndOfStream = errors.New("end of stream")

// UnsupportedFeature signals a header-advertised required feature the
// implementation does not recognize. Terminal.
var UnsupportedFeature = errors.New("unsupported feature")

// UnsupportedCompression signals a blob compressed with a codec the
// primitive source cannot decode (e.g. LZMA when built without it).
var UnsupportedCompression = errors.New("unsupported compression")

// InputIntegrity signals that an assembly invariant could not be
// satisfied by the input. Assembly returns it, ending the stage, when no
// referenced node survives; no tolerance for accumulated damage is
// tracked.
var InputIntegrity = errors.New("input integrity error")

// ProfileError signals the profile raised an error inside a callback;
// the affected primitive is dropped with a warning.
var ProfileError = errors.New("profile error")

// OutOfSpace signals the external-memory backing store could not grow.
// Terminal.
var OutOfSpace = errors.New("out of space")

// InvariantViolated signals a postcondition inside assembly, expansion,
// or contraction failed. Always fatal.
var InvariantViolated = errors.New("invariant violated")
