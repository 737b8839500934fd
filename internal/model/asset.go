package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// DefaultNativeDecimals is the precision assumed for native denoms.
const DefaultNativeDecimals = 6

// ErrAssetMismatch is returned when an asset or asset pair does not match what is expected.
var ErrAssetMismatch = errors.New("asset mismatch")

// AssetInfo identifies either a native denom or a token contract.
// Exactly one of Denom and Token is set.
type AssetInfo struct {
	Denom string
	Token common.Address
}

// NativeAsset returns the AssetInfo for a native denom.
func NativeAsset(denom string) AssetInfo {
	return AssetInfo{Denom: denom}
}

// TokenAsset returns the AssetInfo for a token contract.
func TokenAsset(addr common.Address) AssetInfo {
	return AssetInfo{Token: addr}
}

// IsNative reports whether the asset is a native denom.
func (a AssetInfo) IsNative() bool {
	return a.Denom != ""
}

// IsZero reports whether the asset is unset.
func (a AssetInfo) IsZero() bool {
	return a.Denom == "" && a.Token == (common.Address{})
}

// String returns the denom or the checksummed token address.
func (a AssetInfo) String() string {
	if a.IsNative() {
		return a.Denom
	}
	return a.Token.Hex()
}

// ParseAssetInfo treats hex addresses as tokens and anything else as a native denom.
func ParseAssetInfo(input string) (AssetInfo, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return AssetInfo{}, fmt.Errorf("empty asset")
	}
	if strings.HasPrefix(input, "0x") || strings.HasPrefix(input, "0X") {
		if !common.IsHexAddress(input) {
			return AssetInfo{}, fmt.Errorf("invalid token address: %s", input)
		}
		return TokenAsset(common.HexToAddress(input)), nil
	}
	if strings.ContainsAny(input, " \t,") {
		return AssetInfo{}, fmt.Errorf("invalid denom: %q", input)
	}
	return NativeAsset(input), nil
}

type nativeJSON struct {
	Denom string `json:"denom"`
}

type tokenJSON struct {
	ContractAddr common.Address `json:"contract_addr"`
}

type assetInfoJSON struct {
	NativeToken *nativeJSON `json:"native_token,omitempty"`
	Token       *tokenJSON  `json:"token,omitempty"`
}

func (a AssetInfo) MarshalJSON() ([]byte, error) {
	if a.IsNative() {
		return json.Marshal(assetInfoJSON{NativeToken: &nativeJSON{Denom: a.Denom}})
	}
	return json.Marshal(assetInfoJSON{Token: &tokenJSON{ContractAddr: a.Token}})
}

func (a *AssetInfo) UnmarshalJSON(data []byte) error {
	var raw assetInfoJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch {
	case raw.NativeToken != nil && raw.Token == nil:
		if raw.NativeToken.Denom == "" {
			return fmt.Errorf("empty native denom")
		}
		*a = NativeAsset(raw.NativeToken.Denom)
	case raw.Token != nil && raw.NativeToken == nil:
		*a = TokenAsset(raw.Token.ContractAddr)
	default:
		return fmt.Errorf("asset info must set exactly one of native_token or token")
	}
	return nil
}

// Asset is an amount of a given asset in raw units.
type Asset struct {
	Info   AssetInfo    `json:"info"`
	Amount *uint256.Int `json:"amount"`
}

// NewAsset builds an Asset, treating a nil amount as zero.
func NewAsset(info AssetInfo, amount *uint256.Int) Asset {
	if amount == nil {
		amount = new(uint256.Int)
	}
	return Asset{Info: info, Amount: amount}
}

// AmountOrZero returns the amount, or zero when unset.
func (a Asset) AmountOrZero() *uint256.Int {
	if a.Amount == nil {
		return new(uint256.Int)
	}
	return a.Amount
}

func (a Asset) String() string {
	return a.AmountOrZero().Dec() + a.Info.String()
}

// FormatAssets joins assets the way they appear in event attributes.
func FormatAssets(assets []Asset) string {
	parts := make([]string, 0, len(assets))
	for _, asset := range assets {
		parts = append(parts, asset.String())
	}
	return strings.Join(parts, ", ")
}
