package model

// PoolFailure records why a pool was left out of a listing.
type PoolFailure struct {
	Address string `json:"address"`
	Stage   string `json:"stage"`
	Error   string `json:"error"`
}
