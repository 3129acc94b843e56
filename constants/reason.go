package constants

// Claim reason labels assigned by the eligibility heuristic.
const (
	ReasonFallback           = "Lost inventory"
	ReasonLostInventory      = "Lost Inventory"
	ReasonDamagedInventory   = "Damaged Inventory"
	ReasonUnexplainedLoss    = "Unexplained Adjustment Loss"
	DispositionSellable      = "SELLABLE"
	EventTypeAdjustments     = "Adjustments"
	TransactionIDPlaceholder = "N/A"
	UnknownSKUPrefix         = "UNKNOWN-SKU-"
	DefaultUnitValue         = "8.50"
	DefaultMaxRows           = 10000
	DefaultRPCMaxRows        = 400
	DefaultMaxClaims         = 50
)

// EligibilityKeywords are matched against lower-cased reason, disposition and event type text.
var EligibilityKeywords = []string{
	"lost",
	"missing",
	"damaged",
	"warehouse",
	"dispose",
	"scrap",
	"defective",
	"destroy",
	"mismatch",
	"misplaced",
	"not returned",
	"customer_return",
	"adjustment",
	"reimburs",
	"claim",
}
