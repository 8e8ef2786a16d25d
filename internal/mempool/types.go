package mempool

import "fmt"

// AddressStats represents the address summary returned by /api/address/{address}.
//
// Only the funded sums are used for deposit detection. Spent sums are decoded
// so log lines and tests can show the full picture.
type AddressStats struct {
	Address      string `json:"address"`
	ChainStats   Stats  `json:"chain_stats"`
	MempoolStats Stats  `json:"mempool_stats"`
}

// Stats represents transaction and balance statistics
type Stats struct {
	FundedTxoCount int64 `json:"funded_txo_count"`
	FundedTxoSum   int64 `json:"funded_txo_sum"`
	SpentTxoCount  int64 `json:"spent_txo_count"`
	SpentTxoSum    int64 `json:"spent_txo_sum"`
	TxCount        int64 `json:"tx_count"`
}

// TotalFunded is the cumulative value ever received by the address,
// confirmed plus unconfirmed.
func (s *AddressStats) TotalFunded() int64 {
	return s.ChainStats.FundedTxoSum + s.MempoolStats.FundedTxoSum
}

// Balance is funded minus spent across chain and mempool
func (s *AddressStats) Balance() int64 {
	return s.TotalFunded() - s.ChainStats.SpentTxoSum - s.MempoolStats.SpentTxoSum
}

// APIError is returned for non-200 explorer responses
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mempool API error %d: %s", e.StatusCode, e.Body)
}
