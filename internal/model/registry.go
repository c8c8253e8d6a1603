package model

// RegistryEntry records one discovered pool contract.
type RegistryEntry struct {
	Address string `json:"address"`
	Ledger  uint32 `json:"ledger,omitempty"`
	EventID string `json:"event_id,omitempty"`
}
