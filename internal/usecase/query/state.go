package query

// State is a step of the query pipeline. Every answered query records its path.
type State string

const (
	StateReceived        State = "received"
	StateRouted          State = "routed"
	StateVision          State = "vision"
	StateRetrieved       State = "retrieved"
	StateGenerated       State = "generated"
	StateScored          State = "scored"
	StateAutoApproved    State = "auto_approved"
	StateEscalated       State = "escalated"
	StateReturned        State = "returned"
	StatePendingApproval State = "pending_approval"
)

// Pipeline stages that may degrade without failing the query.
const (
	StageVision     = "vision"
	StageRetrieval  = "retrieval"
	StageGeneration = "generation"
)
