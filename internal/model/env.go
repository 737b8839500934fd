package model

import "github.com/holiman/uint256"

// Env is the host context an operation executes in.
type Env struct {
	Height uint64 `json:"height"`
	Time   uint64 `json:"time"`
}

// MessageInfo carries the caller and the native funds attached to a call.
type MessageInfo struct {
	Sender string  `json:"sender"`
	Funds  []Asset `json:"funds,omitempty"`
}

// FundsOf returns the attached amount of a native denom.
func (m MessageInfo) FundsOf(info AssetInfo) *uint256.Int {
	total := new(uint256.Int)
	for _, coin := range m.Funds {
		if coin.Info == info {
			total.Add(total, coin.AmountOrZero())
		}
	}
	return total
}
