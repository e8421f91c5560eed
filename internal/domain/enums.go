package domain

// Provider identifiers accepted by the parse adapters and the cost calculator.
const (
	ProviderLlamaIndex   = "llamaindex"
	ProviderReducto      = "reducto"
	ProviderUnstructured = "unstructured"
	ProviderExtendAI     = "extendai"
)

// KnownProviders lists every provider the system can dispatch to, in display order.
var KnownProviders = []string{
	ProviderLlamaIndex,
	ProviderReducto,
	ProviderUnstructured,
	ProviderExtendAI,
}

// BattleLabels is the fixed label alphabet. A battle never has more sides than labels.
var BattleLabels = []string{"A", "B", "C", "D"}

// MaxBattleSides is the cap on providers in a single battle.
const MaxBattleSides = 4

// BattleStatus is the stored outcome of a battle run.
type BattleStatus string

const (
	BattleStatusSuccess BattleStatus = "SUCCESS"
	BattleStatusError   BattleStatus = "ERROR"
)

// BattleState tracks a battle through its persistence lifecycle.
type BattleState string

const (
	BattleStateCreated          BattleState = "CREATED"
	BattleStatePersisting       BattleState = "PERSISTING"
	BattleStatePersisted        BattleState = "PERSISTED"
	BattleStatePersistFailed    BattleState = "PERSIST_FAILED"
	BattleStateFeedbackRecorded BattleState = "FEEDBACK_RECORDED"
)

// BattlePreference is the legacy two-sided feedback shape.
type BattlePreference string

const (
	PreferenceABetter  BattlePreference = "A_BETTER"
	PreferenceBBetter  BattlePreference = "B_BETTER"
	PreferenceBothGood BattlePreference = "BOTH_GOOD"
	PreferenceBothBad  BattlePreference = "BOTH_BAD"
)

// FailurePolicy controls how the fan-out reacts to a failing provider.
type FailurePolicy string

const (
	FailureAllOrNothing FailurePolicy = "all_or_nothing"
	FailurePartial      FailurePolicy = "partial"
)

// Winner values for battle history when no single provider won.
const (
	WinnerTie  = "tie"
	WinnerNone = "none"
)

// AllowedExtensions maps upload file extensions (without dot) to content types.
var AllowedExtensions = map[string]string{
	"pdf": "application/pdf",
}
