package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/holiman/uint256"

	"metastablePool/internal/model"
)

var (
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInvalidInstruction = errors.New("invalid instruction")
)

// Bank is an in-memory multi-asset ledger with per-asset supply.
type Bank struct {
	mu       sync.RWMutex
	balances map[model.AssetInfo]map[string]*uint256.Int
	supply   map[model.AssetInfo]*uint256.Int
}

func NewBank() *Bank {
	return &Bank{
		balances: make(map[model.AssetInfo]map[string]*uint256.Int),
		supply:   make(map[model.AssetInfo]*uint256.Int),
	}
}

// Balance returns the holder's balance of asset.
func (b *Bank) Balance(asset model.AssetInfo, holder string) *uint256.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if v, ok := b.balances[asset][holder]; ok {
		return v.Clone()
	}
	return new(uint256.Int)
}

// Supply returns the total amount of asset in existence.
func (b *Bank) Supply(asset model.AssetInfo) *uint256.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if v, ok := b.supply[asset]; ok {
		return v.Clone()
	}
	return new(uint256.Int)
}

// Apply executes every instruction or none of them.
func (b *Bank) Apply(instructions []Instruction) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	staged := b.cloneLocked()
	for i, ins := range instructions {
		if err := staged.applyOne(ins); err != nil {
			return fmt.Errorf("instruction %d (%s): %w", i, ins, err)
		}
	}
	b.balances = staged.balances
	b.supply = staged.supply
	return nil
}

func (b *Bank) cloneLocked() *Bank {
	out := NewBank()
	for asset, holders := range b.balances {
		copied := make(map[string]*uint256.Int, len(holders))
		for holder, amount := range holders {
			copied[holder] = amount.Clone()
		}
		out.balances[asset] = copied
	}
	for asset, amount := range b.supply {
		out.supply[asset] = amount.Clone()
	}
	return out
}

func (b *Bank) applyOne(ins Instruction) error {
	if ins.Amount == nil {
		return ErrInvalidInstruction
	}
	if ins.Amount.IsZero() {
		return nil
	}
	switch ins.Kind {
	case KindTransfer:
		if ins.From == "" || ins.To == "" {
			return ErrInvalidInstruction
		}
		if err := b.debit(ins.Asset, ins.From, ins.Amount); err != nil {
			return err
		}
		b.credit(ins.Asset, ins.To, ins.Amount)
	case KindMint:
		if ins.To == "" {
			return ErrInvalidInstruction
		}
		b.credit(ins.Asset, ins.To, ins.Amount)
		b.addSupply(ins.Asset, ins.Amount)
	case KindBurn:
		if ins.From == "" {
			return ErrInvalidInstruction
		}
		supply, ok := b.supply[ins.Asset]
		if !ok || supply.Cmp(ins.Amount) < 0 {
			return fmt.Errorf("burn exceeds supply: %w", ErrInvalidInstruction)
		}
		if err := b.debit(ins.Asset, ins.From, ins.Amount); err != nil {
			return err
		}
		b.supply[ins.Asset] = new(uint256.Int).Sub(supply, ins.Amount)
	default:
		return fmt.Errorf("kind %q: %w", ins.Kind, ErrInvalidInstruction)
	}
	return nil
}

func (b *Bank) debit(asset model.AssetInfo, holder string, amount *uint256.Int) error {
	current, ok := b.balances[asset][holder]
	if !ok || current.Cmp(amount) < 0 {
		have := "0"
		if ok {
			have = current.Dec()
		}
		return fmt.Errorf("%s holds %s%s, needs %s: %w", holder, have, asset, amount.Dec(), ErrInsufficientFunds)
	}
	b.balances[asset][holder] = new(uint256.Int).Sub(current, amount)
	return nil
}

func (b *Bank) credit(asset model.AssetInfo, holder string, amount *uint256.Int) {
	holders, ok := b.balances[asset]
	if !ok {
		holders = make(map[string]*uint256.Int)
		b.balances[asset] = holders
	}
	if current, ok := holders[holder]; ok {
		holders[holder] = new(uint256.Int).Add(current, amount)
		return
	}
	holders[holder] = amount.Clone()
}

func (b *Bank) addSupply(asset model.AssetInfo, amount *uint256.Int) {
	if current, ok := b.supply[asset]; ok {
		b.supply[asset] = new(uint256.Int).Add(current, amount)
		return
	}
	b.supply[asset] = amount.Clone()
}

// Holding is one balance in a Snapshot.
type Holding struct {
	Asset  model.AssetInfo `json:"asset"`
	Holder string          `json:"holder"`
	Amount *uint256.Int    `json:"amount"`
}

// Snapshot is the persisted form of a Bank.
type Snapshot struct {
	Holdings []Holding `json:"holdings"`
	Supply   []Holding `json:"supply"`
}

// Snapshot returns the bank contents in a deterministic order.
func (b *Bank) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snap := Snapshot{}
	for asset, holders := range b.balances {
		for holder, amount := range holders {
			if amount.IsZero() {
				continue
			}
			snap.Holdings = append(snap.Holdings, Holding{Asset: asset, Holder: holder, Amount: amount.Clone()})
		}
	}
	for asset, amount := range b.supply {
		snap.Supply = append(snap.Supply, Holding{Asset: asset, Amount: amount.Clone()})
	}
	sortHoldings(snap.Holdings)
	sortHoldings(snap.Supply)
	return snap
}

// Restore replaces the bank contents with snap.
func (b *Bank) Restore(snap Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.restoreLocked(snap)
}

func (b *Bank) restoreLocked(snap Snapshot) {
	b.balances = make(map[model.AssetInfo]map[string]*uint256.Int)
	b.supply = make(map[model.AssetInfo]*uint256.Int)
	for _, h := range snap.Holdings {
		b.credit(h.Asset, h.Holder, h.Amount)
	}
	for _, s := range snap.Supply {
		b.addSupply(s.Asset, s.Amount)
	}
}

func sortHoldings(items []Holding) {
	sort.Slice(items, func(i, j int) bool {
		ai, aj := items[i].Asset.String(), items[j].Asset.String()
		if ai != aj {
			return ai < aj
		}
		return items[i].Holder < items[j].Holder
	})
}
