package weather

import "time"

// Status names the variant of a Result.
type Status string

const (
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result is exactly one of Loading, Success or Failure.
// The unexported method keeps the set of variants closed to this package.
type Result interface {
	Status() Status
	isResult()
}

// Loading means a resolution is in progress.
type Loading struct{}

// Success carries the resolved record. Cached is set when the record came
// from the local cache because the remote lookup failed.
type Success struct {
	Record Record
	Cached bool
}

// Failure carries a human-readable reason.
type Failure struct {
	Message string
}

func (Loading) Status() Status { return StatusLoading }
func (Success) Status() Status { return StatusSuccess }
func (Failure) Status() Status { return StatusError }

func (Loading) isResult() {}
func (Success) isResult() {}
func (Failure) isResult() {}

// Terminal reports whether r ends a resolution.
func Terminal(r Result) bool {
	switch r.(type) {
	case Success, Failure:
		return true
	default:
		return false
	}
}

// Envelope is the wire representation of a Result for a location.
type Envelope struct {
	Status    Status    `json:"status"`
	Location  string    `json:"location,omitempty"`
	Record    *Record   `json:"record,omitempty"`
	Cached    bool      `json:"cached,omitempty"`
	Message   string    `json:"message,omitempty"`
	Version   uint64    `json:"version,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewEnvelope flattens r into its wire form.
func NewEnvelope(location string, r Result, at time.Time) Envelope {
	env := Envelope{
		Status:    StatusLoading,
		Location:  location,
		UpdatedAt: at.UTC(),
	}
	switch v := r.(type) {
	case Success:
		rec := v.Record
		env.Status = StatusSuccess
		env.Record = &rec
		env.Cached = v.Cached
	case Failure:
		env.Status = StatusError
		env.Message = v.Message
	}
	return env
}
