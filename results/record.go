package results

import (
	"time"

	"github.com/crytic/chainfixture/scenario"
	"github.com/fxamacker/cbor"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Record is the persisted outcome of one challenge run.
type Record struct {
	// ID uniquely identifies the run.
	ID string `cbor:"id"`

	// Challenge is the name of the challenge that ran.
	Challenge string `cbor:"challenge"`

	// Passed is true if the run passed.
	Passed bool `cbor:"passed"`

	// Phase is the last phase the run entered.
	Phase string `cbor:"phase"`

	// Error is the message of the error that failed the run, if any.
	Error string `cbor:"error,omitempty"`

	// StartedAt is when the run began, in unix nanoseconds.
	StartedAt int64 `cbor:"startedAt"`

	// DurationNanos is how long the run took.
	DurationNanos int64 `cbor:"duration"`
}

// NewRecord creates a Record with a new ID from a scenario result.
func NewRecord(result scenario.Result) Record {
	record := Record{
		ID:            uuid.NewString(),
		Challenge:     result.Name,
		Passed:        result.Passed,
		Phase:         string(result.Phase),
		StartedAt:     result.StartedAt.UnixNano(),
		DurationNanos: int64(result.Duration),
	}
	if result.Err != nil {
		record.Error = result.Err.Error()
	}
	return record
}

// Time returns the time the run began.
func (r Record) Time() time.Time {
	return time.Unix(0, r.StartedAt)
}

// Duration returns how long the run took.
func (r Record) Duration() time.Duration {
	return time.Duration(r.DurationNanos)
}

// encodeRecord encodes a record with canonical CBOR.
func encodeRecord(record Record) ([]byte, error) {
	data, err := cbor.Marshal(record, cbor.EncOptions{Sort: cbor.SortCanonical})
	if err != nil {
		return nil, errors.Wrap(err, "could not encode run record")
	}
	return data, nil
}

// decodeRecord decodes a record encoded by encodeRecord.
func decodeRecord(data []byte) (Record, error) {
	var record Record
	if err := cbor.Unmarshal(data, &record); err != nil {
		return Record{}, errors.Wrap(err, "could not decode run record")
	}
	return record, nil
}
