package domain

// PurchaseState tracks one purchase attempt through the coordinator.
type PurchaseState string

const (
	StatePending          PurchaseState = "pending"
	StateCatalogResolved  PurchaseState = "catalog_resolved"
	StateTransactionOpen  PurchaseState = "transaction_open"
	StateStockVerified    PurchaseState = "stock_verified"
	StateStockDecremented PurchaseState = "stock_decremented"
	StateRecordWritten    PurchaseState = "record_written"
	StateCommitted        PurchaseState = "committed"
	StateAborted          PurchaseState = "aborted"
)

var nextState = map[PurchaseState]PurchaseState{
	StatePending:          StateCatalogResolved,
	StateCatalogResolved:  StateTransactionOpen,
	StateTransactionOpen:  StateStockVerified,
	StateStockVerified:    StateStockDecremented,
	StateStockDecremented: StateRecordWritten,
	StateRecordWritten:    StateCommitted,
}

func (s PurchaseState) Terminal() bool {
	return s == StateCommitted || s == StateAborted
}

// CanTransition reports whether to is a legal successor of s. Any
// non-terminal state may abort.
func (s PurchaseState) CanTransition(to PurchaseState) bool {
	if s.Terminal() {
		return false
	}
	if to == StateAborted {
		return true
	}
	return nextState[s] == to
}
