package sheet

// NewRecords returns the records at positions [watermark, len(log)).
// A negative watermark is treated as 0. The result never aliases log.
func NewRecords(log []Record, watermark int) []Record {
	if watermark < 0 {
		watermark = 0
	}
	if watermark >= len(log) {
		return []Record{}
	}
	out := make([]Record, len(log)-watermark)
	copy(out, log[watermark:])
	return out
}

// State is the record log together with its watermark. Methods return new
// values and leave the receiver untouched.
type State struct {
	Log       []Record
	Watermark int
}

// NewState returns a state over the default seed with every seed row
// already processed.
func NewState() State {
	seed := Seed()
	return State{Log: seed, Watermark: len(seed)}
}

// New returns the New-Records View.
func (s State) New() []Record {
	return NewRecords(s.Log, s.Watermark)
}

// Append returns a state with r added to the end of the log.
func (s State) Append(r Record) State {
	log := make([]Record, len(s.Log), len(s.Log)+1)
	copy(log, s.Log)
	return State{Log: append(log, r), Watermark: s.Watermark}
}

// Advance moves the watermark to the current log length. It never moves it
// backward.
func (s State) Advance() State {
	if len(s.Log) > s.Watermark {
		s.Watermark = len(s.Log)
	}
	return s
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	log := make([]Record, len(s.Log))
	copy(log, s.Log)
	return State{Log: log, Watermark: s.Watermark}
}

// Normalize clamps the watermark into [0, len(Log)].
func (s State) Normalize() State {
	if s.Watermark < 0 {
		s.Watermark = 0
	}
	if s.Watermark > len(s.Log) {
		s.Watermark = len(s.Log)
	}
	return s
}
