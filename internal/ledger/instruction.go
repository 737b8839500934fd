// Package ledger executes the token movements requested by pool operations.
package ledger

import (
	"fmt"

	"github.com/holiman/uint256"

	"metastablePool/internal/model"
)

// Kind is the type of a token movement.
type Kind string

const (
	KindTransfer Kind = "transfer"
	KindMint     Kind = "mint"
	KindBurn     Kind = "burn"
)

// Instruction moves, mints or burns an amount of an asset.
// From is empty for mints, To is empty for burns.
type Instruction struct {
	Kind   Kind            `json:"kind"`
	Asset  model.AssetInfo `json:"asset"`
	From   string          `json:"from,omitempty"`
	To     string          `json:"to,omitempty"`
	Amount *uint256.Int    `json:"amount"`
}

func Transfer(asset model.AssetInfo, from, to string, amount *uint256.Int) Instruction {
	return Instruction{Kind: KindTransfer, Asset: asset, From: from, To: to, Amount: amount.Clone()}
}

func Mint(asset model.AssetInfo, to string, amount *uint256.Int) Instruction {
	return Instruction{Kind: KindMint, Asset: asset, To: to, Amount: amount.Clone()}
}

func Burn(asset model.AssetInfo, from string, amount *uint256.Int) Instruction {
	return Instruction{Kind: KindBurn, Asset: asset, From: from, Amount: amount.Clone()}
}

func (i Instruction) String() string {
	switch i.Kind {
	case KindMint:
		return fmt.Sprintf("mint %s%s to %s", i.Amount.Dec(), i.Asset, i.To)
	case KindBurn:
		return fmt.Sprintf("burn %s%s from %s", i.Amount.Dec(), i.Asset, i.From)
	default:
		return fmt.Sprintf("transfer %s%s from %s to %s", i.Amount.Dec(), i.Asset, i.From, i.To)
	}
}
