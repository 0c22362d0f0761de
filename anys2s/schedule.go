package anys2s

// Schedule adapts the teacher forcing ratio between
// epochs.
//
// Every epoch counts towards Period. Epochs in which the
// training loss is at most Trigger times the validation
// loss count towards Consecutive, and any other epoch
// resets that count.
// When either count is reached, the ratio is multiplied by
// Decay (but kept above Floor), the period count restarts,
// and the consecutive count is decremented, so that each
// further qualifying epoch triggers another decay.
type Schedule struct {
	Decay       float64
	Floor       float64
	Trigger     float64
	Consecutive int
	Period      int

	ratio       float64
	consecutive int
	epochs      int
}

// NewSchedule creates a Schedule with the given starting
// ratio and the default rules.
func NewSchedule(ratio float64) *Schedule {
	return &Schedule{
		Decay:       0.7,
		Floor:       1e-5,
		Trigger:     0.2,
		Consecutive: 3,
		Period:      50,
		ratio:       ratio,
	}
}

// Ratio returns the current teacher forcing ratio.
func (s *Schedule) Ratio() float64 {
	return s.ratio
}

// SetRatio overrides the current ratio, such as when
// resuming from a checkpoint.
func (s *Schedule) SetRatio(r float64) {
	s.ratio = r
}

// ScheduleState is the part of a Schedule that changes
// from epoch to epoch.
type ScheduleState struct {
	Ratio       float64
	Consecutive int
	Epochs      int
}

// State returns the ratio and both epoch counts.
func (s *Schedule) State() ScheduleState {
	return ScheduleState{Ratio: s.ratio, Consecutive: s.consecutive, Epochs: s.epochs}
}

// SetState restores a state returned by State.
func (s *Schedule) SetState(st ScheduleState) {
	s.ratio = st.Ratio
	s.consecutive = st.Consecutive
	s.epochs = st.Epochs
}

// Update records the losses of an epoch and reports
// whether the ratio was decayed.
func (s *Schedule) Update(trainLoss, valLoss float64) bool {
	s.epochs++
	if trainLoss <= s.Trigger*valLoss {
		s.consecutive++
	} else {
		s.consecutive = 0
	}
	if s.consecutive >= s.Consecutive || s.epochs >= s.Period {
		s.ratio = max(s.Floor, s.Decay*s.ratio)
		s.consecutive--
		s.epochs = 0
		return true
	}
	return false
}
