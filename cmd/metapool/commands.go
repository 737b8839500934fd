package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"metastablePool/internal/api"
	"metastablePool/internal/config"
	"metastablePool/internal/model"
	"metastablePool/internal/pool"
)

// resultOutput is the JSON printed for a committed operation.
type resultOutput struct {
	Action       string            `json:"action"`
	Sender       string            `json:"sender"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	Instructions any               `json:"instructions,omitempty"`
	Data         any               `json:"data,omitempty"`
}

func output(res pool.Result) resultOutput {
	return resultOutput{
		Action:       res.Action,
		Sender:       res.Sender,
		Attributes:   res.Attributes,
		Instructions: res.Instructions,
		Data:         res.Data,
	}
}

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Instantiate the pool",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sender, _ := cmd.Flags().GetString("sender")
			return run(cmd, func(ctx context.Context, a *app) (any, error) {
				msg, err := a.instantiateMsg(ctx)
				if err != nil {
					return nil, err
				}
				if sender == "" {
					sender = msg.Owner
				}
				res, err := a.host.Instantiate(ctx, model.MessageInfo{Sender: sender}, msg)
				if err != nil {
					return nil, err
				}
				return output(res), nil
			})
		},
	}
	flags := cmd.Flags()
	flags.String("sender", "", "instantiating account, defaults to owner")
	flags.Int("decimals0", config.AutoDecimals, "asset0 decimals, -1 resolves natively or over RPC")
	flags.Int("decimals1", config.AutoDecimals, "asset1 decimals, -1 resolves natively or over RPC")
	flags.Uint64("amp", 100, "initial amplification coefficient")
	flags.Uint64("er-cache-btl", 10, "exchange rate cache blocks-to-live")
	flags.Uint16("commission-bps", 5, "swap commission in basis points")
	flags.String("minimum-liquidity", "", "shares locked on the first deposit, empty for the default")
	flags.String("owner", "", "pool owner")
	flags.String("share-token", "", "share token address, derived from contract-addr when empty")
	flags.String("generator", "", "staking generator that receives auto-staked shares")
	flags.String("contract-addr", "pool", "pool account address")
	return cmd
}

func (a *app) instantiateMsg(ctx context.Context) (model.InstantiateMsg, error) {
	p := a.cfg.Pool
	var msg model.InstantiateMsg
	for i, raw := range p.Assets {
		info, err := model.ParseAssetInfo(raw)
		if err != nil {
			return msg, fmt.Errorf("asset%d: %w", i, err)
		}
		decimals, err := a.resolveDecimals(ctx, info, p.Decimals[i])
		if err != nil {
			return msg, fmt.Errorf("asset%d decimals: %w", i, err)
		}
		msg.AssetInfos[i] = info
		msg.AssetDecimals[i] = decimals
	}

	share := model.TokenAsset(shareTokenFor(p.ContractAddr))
	if p.ShareToken != "" {
		info, err := model.ParseAssetInfo(p.ShareToken)
		if err != nil {
			return msg, fmt.Errorf("share-token: %w", err)
		}
		share = info
	}
	msg.LiquidityToken = share
	msg.ContractAddr = p.ContractAddr
	msg.Owner = p.Owner
	msg.Generator = p.Generator
	msg.CommissionBps = p.CommissionBps
	if p.MinimumLiquidity != "" {
		floor, err := model.ParseAmount(p.MinimumLiquidity)
		if err != nil {
			return msg, fmt.Errorf("minimum-liquidity: %w", err)
		}
		msg.MinimumLiquidity = floor
	}
	msg.InitParams = &model.MetastablePoolParams{
		Amp:            p.Amp,
		ErProviderAddr: p.ErProvider,
		ErCacheBTL:     p.ErCacheBTL,
	}
	return msg, nil
}

// shareTokenFor derives a deterministic share token address for a pool account.
func shareTokenFor(contractAddr string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte("share:" + contractAddr))[12:])
}

func (a *app) resolveDecimals(ctx context.Context, info model.AssetInfo, configured int) (uint8, error) {
	if configured != config.AutoDecimals {
		return uint8(configured), nil
	}
	if info.IsNative() {
		return model.DefaultNativeDecimals, nil
	}
	if a.client == nil {
		return 0, fmt.Errorf("token %s needs explicit decimals or --rpc", info)
	}
	return a.client.TokenDecimals(ctx, info.Token)
}

func newFundCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fund",
		Short: "Mint a pool asset to an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			holder, _ := cmd.Flags().GetString("holder")
			asset, err := assetFlag(cmd, "asset", "amount")
			if err != nil {
				return err
			}
			return run(cmd, func(ctx context.Context, a *app) (any, error) {
				if err := a.host.Fund(ctx, holder, asset); err != nil {
					return nil, err
				}
				balance, err := a.host.Balance(ctx, asset.Info, holder)
				if err != nil {
					return nil, err
				}
				return map[string]any{"holder": holder, "asset": asset.Info, "balance": balance}, nil
			})
		},
	}
	cmd.Flags().String("holder", "", "account to fund")
	cmd.Flags().String("asset", "", "asset to mint")
	cmd.Flags().String("amount", "", "raw amount")
	return cmd
}

func newProvideCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provide",
		Short: "Deposit liquidity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			sender, _ := flags.GetString("sender")
			receiver, _ := flags.GetString("receiver")
			autoStake, _ := flags.GetBool("auto-stake")
			raw := [2]string{}
			raw[0], _ = flags.GetString("amount0")
			raw[1], _ = flags.GetString("amount1")
			tolerance, err := decFlag(cmd, "slippage-tolerance")
			if err != nil {
				return err
			}
			return run(cmd, func(ctx context.Context, a *app) (any, error) {
				infos, err := a.pairAssets(ctx, a.store)
				if err != nil {
					return nil, err
				}
				msg := model.ProvideLiquidityMsg{SlippageTolerance: tolerance, AutoStake: autoStake, Receiver: receiver}
				info := model.MessageInfo{Sender: sender}
				for i := range infos {
					amount, err := model.ParseAmount(raw[i])
					if err != nil {
						return nil, fmt.Errorf("amount%d: %w", i, err)
					}
					msg.Assets[i] = model.NewAsset(infos[i], amount)
					if infos[i].IsNative() && !amount.IsZero() {
						info.Funds = append(info.Funds, msg.Assets[i])
					}
				}
				res, err := a.host.ProvideLiquidity(ctx, info, msg)
				if err != nil {
					return nil, err
				}
				return output(res), nil
			})
		},
	}
	flags := cmd.Flags()
	flags.String("sender", "", "depositing account")
	flags.String("amount0", "", "raw amount of asset0")
	flags.String("amount1", "", "raw amount of asset1")
	flags.String("slippage-tolerance", "", "maximum accepted slippage, e.g. 0.01")
	flags.Bool("auto-stake", false, "stake minted shares with the generator")
	flags.String("receiver", "", "share recipient, defaults to sender")
	return cmd
}

func newSwapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Swap one pool asset for the other",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sender, _ := cmd.Flags().GetString("sender")
			to, _ := cmd.Flags().GetString("to")
			offer, err := assetFlag(cmd, "offer-asset", "amount")
			if err != nil {
				return err
			}
			belief, err := decFlag(cmd, "belief-price")
			if err != nil {
				return err
			}
			maxSpread, err := decFlag(cmd, "max-spread")
			if err != nil {
				return err
			}
			return run(cmd, func(ctx context.Context, a *app) (any, error) {
				var (
					res pool.Result
					err error
				)
				if offer.Info.IsNative() {
					res, err = a.host.Swap(ctx, model.MessageInfo{Sender: sender, Funds: []model.Asset{offer}}, model.SwapMsg{
						OfferAsset:  offer,
						BeliefPrice: belief,
						MaxSpread:   maxSpread,
						To:          to,
					})
				} else {
					res, err = a.host.Receive(ctx, model.ReceiveMsg{
						Token:  offer.Info,
						Sender: sender,
						Amount: offer.Amount,
						Hook: model.ReceiveHook{Swap: &model.SwapHook{
							BeliefPrice: belief,
							MaxSpread:   maxSpread,
							To:          to,
						}},
					})
				}
				if err != nil {
					return nil, err
				}
				return output(res), nil
			})
		},
	}
	flags := cmd.Flags()
	flags.String("sender", "", "swapping account")
	flags.String("offer-asset", "", "asset offered")
	flags.String("amount", "", "raw offer amount")
	flags.String("belief-price", "", "expected price of the ask asset in the offer asset")
	flags.String("max-spread", "", "maximum accepted spread, default 0.005")
	flags.String("to", "", "recipient of the return, defaults to sender")
	return cmd
}

func newWithdrawCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Burn shares for the underlying assets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sender, _ := cmd.Flags().GetString("sender")
			raw, _ := cmd.Flags().GetString("share")
			share, err := model.ParseAmount(raw)
			if err != nil {
				return fmt.Errorf("share: %w", err)
			}
			return run(cmd, func(ctx context.Context, a *app) (any, error) {
				res, err := a.host.WithdrawLiquidity(ctx, sender, share)
				if err != nil {
					return nil, err
				}
				return output(res), nil
			})
		},
	}
	cmd.Flags().String("sender", "", "share holder")
	cmd.Flags().String("share", "", "raw share amount")
	return cmd
}

func newUpdateConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update-config",
		Short: "Change pool parameters (owner only)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			msg, err := updateConfigMsg(cmd)
			if err != nil {
				return err
			}
			sender, _ := cmd.Flags().GetString("sender")
			return run(cmd, func(ctx context.Context, a *app) (any, error) {
				res, err := a.host.UpdateConfig(ctx, model.MessageInfo{Sender: sender}, msg)
				if err != nil {
					return nil, err
				}
				return output(res), nil
			})
		},
	}
	flags := cmd.Flags()
	flags.String("sender", "", "owner account")
	flags.Uint64("next-amp", 0, "target amp of a new ramp")
	flags.Uint64("next-amp-time", 0, "unix time the ramp reaches next-amp")
	flags.Bool("stop-amp", false, "freeze the amp at its current value")
	flags.Uint64("new-btl", 0, "new exchange rate cache blocks-to-live")
	flags.String("new-provider", "", "new exchange rate provider address")
	return cmd
}

func updateConfigMsg(cmd *cobra.Command) (model.UpdateConfigMsg, error) {
	flags := cmd.Flags()
	var msg model.UpdateConfigMsg

	stop, _ := flags.GetBool("stop-amp")
	switch {
	case flags.Changed("next-amp") || flags.Changed("next-amp-time"):
		if stop {
			return msg, fmt.Errorf("--stop-amp cannot be combined with a ramp")
		}
		next, _ := flags.GetUint64("next-amp")
		at, _ := flags.GetUint64("next-amp-time")
		msg.Params = &model.UpdateParams{StartChangingAmp: &model.StartChangingAmp{NextAmp: next, NextAmpTime: at}}
	case stop:
		msg.Params = &model.UpdateParams{StopChangingAmp: &model.StopChangingAmp{}}
	}
	if flags.Changed("new-btl") {
		btl, _ := flags.GetUint64("new-btl")
		msg.ErCacheBTL = &btl
	}
	if flags.Changed("new-provider") {
		provider, _ := flags.GetString("new-provider")
		msg.ErProviderAddr = &provider
	}
	return msg, nil
}

func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Read pool state",
	}

	simple := func(use, short string, fn func(ctx context.Context, a *app) (any, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd, fn)
			},
		}
	}

	simulation := &cobra.Command{
		Use:   "simulation",
		Short: "Simulate a swap of an offer amount",
		RunE: func(cmd *cobra.Command, _ []string) error {
			offer, err := assetFlag(cmd, "asset", "amount")
			if err != nil {
				return err
			}
			return run(cmd, func(ctx context.Context, a *app) (any, error) {
				return a.host.Simulation(ctx, offer)
			})
		},
	}
	reverse := &cobra.Command{
		Use:   "reverse-simulation",
		Short: "Compute the offer needed for an ask amount",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ask, err := assetFlag(cmd, "asset", "amount")
			if err != nil {
				return err
			}
			return run(cmd, func(ctx context.Context, a *app) (any, error) {
				return a.host.ReverseSimulation(ctx, ask)
			})
		},
	}
	balance := &cobra.Command{
		Use:   "balance",
		Short: "Show an account balance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			holder, _ := cmd.Flags().GetString("holder")
			raw, _ := cmd.Flags().GetString("asset")
			info, err := model.ParseAssetInfo(raw)
			if err != nil {
				return err
			}
			return run(cmd, func(ctx context.Context, a *app) (any, error) {
				v, err := a.host.Balance(ctx, info, holder)
				if err != nil {
					return nil, err
				}
				return map[string]any{"holder": holder, "asset": info, "balance": v}, nil
			})
		},
	}
	for _, c := range []*cobra.Command{simulation, reverse, balance} {
		c.Flags().String("asset", "", "asset")
	}
	simulation.Flags().String("amount", "", "raw offer amount")
	reverse.Flags().String("amount", "", "raw ask amount")
	balance.Flags().String("holder", "", "account")

	cmd.AddCommand(
		simple("pool", "Show balances and total share", func(ctx context.Context, a *app) (any, error) {
			return a.host.Pool(ctx)
		}),
		simple("config", "Show pool configuration", func(ctx context.Context, a *app) (any, error) {
			return a.host.Config(ctx)
		}),
		simple("cumulative-prices", "Show TWAP accumulators projected to now", func(ctx context.Context, a *app) (any, error) {
			return a.host.CumulativePrices(ctx)
		}),
		simulation,
		reverse,
		balance,
	)
	return cmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pool over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.close()

			return api.NewServer(a.host, a.registry, a.logger).ListenAndServe(ctx, a.cfg.Listen)
		},
	}
	cmd.Flags().String("listen", ":8080", "HTTP listen address")
	return cmd
}

func assetFlag(cmd *cobra.Command, assetName, amountName string) (model.Asset, error) {
	rawAsset, _ := cmd.Flags().GetString(assetName)
	rawAmount, _ := cmd.Flags().GetString(amountName)
	info, err := model.ParseAssetInfo(rawAsset)
	if err != nil {
		return model.Asset{}, fmt.Errorf("%s: %w", assetName, err)
	}
	amount, err := model.ParseAmount(rawAmount)
	if err != nil {
		return model.Asset{}, fmt.Errorf("%s: %w", amountName, err)
	}
	return model.NewAsset(info, amount), nil
}

func decFlag(cmd *cobra.Command, name string) (*math.LegacyDec, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return nil, nil
	}
	d, err := math.LegacyNewDecFromStr(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &d, nil
}
