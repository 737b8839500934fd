package model

import (
	"github.com/holiman/uint256"

	"metastablePool/internal/amp"
)

// PairInfo describes the pool's assets and share token.
type PairInfo struct {
	AssetInfos     [2]AssetInfo `json:"asset_infos"`
	AssetDecimals  [2]uint8     `json:"asset_decimals"`
	ContractAddr   string       `json:"contract_addr"`
	LiquidityToken AssetInfo    `json:"liquidity_token"`
}

// Index returns the position of info in the pair.
func (p PairInfo) Index(info AssetInfo) (int, bool) {
	for i, candidate := range p.AssetInfos {
		if candidate == info {
			return i, true
		}
	}
	return 0, false
}

// Config is the persisted pool configuration record.
type Config struct {
	PairInfo             PairInfo     `json:"pair_info"`
	Owner                string       `json:"owner"`
	Generator            string       `json:"generator,omitempty"`
	BlockTimeLast        uint64       `json:"block_time_last"`
	Price0CumulativeLast *uint256.Int `json:"price0_cumulative_last"`
	Price1CumulativeLast *uint256.Int `json:"price1_cumulative_last"`
	ErProviderAddr       string       `json:"er_provider_addr"`
	Amp                  amp.Schedule `json:"amp"`
	CommissionBps        uint16       `json:"commission_bps"`
	MinimumLiquidity     *uint256.Int `json:"minimum_liquidity"`
}

// Clone returns a deep copy.
func (c Config) Clone() Config {
	out := c
	out.Price0CumulativeLast = cloneOrZero(c.Price0CumulativeLast)
	out.Price1CumulativeLast = cloneOrZero(c.Price1CumulativeLast)
	out.MinimumLiquidity = cloneOrZero(c.MinimumLiquidity)
	return out
}

// State holds pool balances and total share supply.
type State struct {
	Balances   [2]*uint256.Int `json:"balances"`
	TotalShare *uint256.Int    `json:"total_share"`
}

// NewState returns an empty pool state.
func NewState() State {
	return State{
		Balances:   [2]*uint256.Int{new(uint256.Int), new(uint256.Int)},
		TotalShare: new(uint256.Int),
	}
}

// Clone returns a deep copy.
func (s State) Clone() State {
	return State{
		Balances:   [2]*uint256.Int{cloneOrZero(s.Balances[0]), cloneOrZero(s.Balances[1])},
		TotalShare: cloneOrZero(s.TotalShare),
	}
}

// Empty reports whether no shares are outstanding.
func (s State) Empty() bool {
	return s.TotalShare == nil || s.TotalShare.IsZero()
}

func cloneOrZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v.Clone()
}
