package pipeline

// State is a step in the request lifecycle.
type State string

const (
	StateReceived       State = "received"
	StateValidated      State = "validated"
	StateStored         State = "stored"
	StateFrameExtracted State = "frame_extracted"
	StateClassified     State = "classified"
	StateAssembled      State = "assembled"
	StateCleanedUp      State = "cleaned_up"
	StateDone           State = "done"
	StateFailed         State = "failed"
)

// Stage names recorded on failures, logs, and metrics.
const (
	StageValidate = "validate"
	StageStore    = "store"
	StageExtract  = "extract"
	StageClassify = "classify"
	StageAssemble = "assemble"
	StageCleanup  = "cleanup"
)

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
