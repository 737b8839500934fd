package pool

import (
	"context"
	"fmt"

	"cosmossdk.io/math"
	"go.uber.org/zap"

	"metastablePool/internal/model"
	"metastablePool/internal/stableswap"
)

// UpdateConfig applies one parameter change. Only the owner may call it.
func (p *Pool) UpdateConfig(_ context.Context, env model.Env, info model.MessageInfo, msg model.UpdateConfigMsg) (Result, error) {
	tx := p.begin()
	if info.Sender != tx.Config.Owner {
		return Result{}, ErrUnauthorized
	}

	attrs := map[string]string{}
	updates := 0
	if msg.Params != nil {
		if err := p.applyParams(tx, env, *msg.Params, attrs); err != nil {
			return Result{}, err
		}
		updates++
	}
	if msg.ErCacheBTL != nil {
		if err := p.setCacheBTL(tx, *msg.ErCacheBTL, attrs); err != nil {
			return Result{}, err
		}
		updates++
	}
	if msg.ErProviderAddr != nil {
		if err := p.setProvider(tx, *msg.ErProviderAddr, attrs); err != nil {
			return Result{}, err
		}
		updates++
	}
	if updates == 0 {
		return Result{}, ErrInvalidParams
	}

	p.commit(tx)
	fields := []zap.Field{zap.String("sender", info.Sender)}
	for k, v := range attrs {
		fields = append(fields, zap.String(k, v))
	}
	p.logger.Info("update config", fields...)

	return Result{Action: "update_config", Sender: info.Sender, Attributes: attrs}, nil
}

func (p *Pool) applyParams(tx *Snapshot, env model.Env, params model.UpdateParams, attrs map[string]string) error {
	set := 0
	for _, given := range []bool{
		params.StartChangingAmp != nil,
		params.StopChangingAmp != nil,
		params.UpdateRateProvider != nil,
		params.UpdateErCacheBTL != nil,
	} {
		if given {
			set++
		}
	}
	if set != 1 {
		return ErrInvalidParams
	}

	switch {
	case params.StartChangingAmp != nil:
		ramp := params.StartChangingAmp
		if err := tx.Config.Amp.StartRamp(ramp.NextAmp, ramp.NextAmpTime, env.Time); err != nil {
			return err
		}
		attrs["next_amp"] = fmt.Sprint(ramp.NextAmp)
		attrs["next_amp_time"] = fmt.Sprint(ramp.NextAmpTime)
		p.metrics.SetAmp(tx.Config.Amp.Current(env.Time))
	case params.StopChangingAmp != nil:
		tx.Config.Amp.StopRamp(env.Time)
		attrs["amp"] = fmt.Sprint(tx.Config.Amp.InitAmp)
		p.metrics.SetAmp(tx.Config.Amp.InitAmp)
	case params.UpdateRateProvider != nil:
		return p.setProvider(tx, params.UpdateRateProvider.Address, attrs)
	case params.UpdateErCacheBTL != nil:
		return p.setCacheBTL(tx, params.UpdateErCacheBTL.BTL, attrs)
	}
	return nil
}

func (p *Pool) setCacheBTL(tx *Snapshot, btl uint64, attrs map[string]string) error {
	if err := tx.Cache.UpdateTTL(btl); err != nil {
		return err
	}
	attrs["er_cache_btl"] = fmt.Sprint(btl)
	return nil
}

// setProvider switches the rate oracle and drops the rate cached from the old one.
func (p *Pool) setProvider(tx *Snapshot, provider string, attrs map[string]string) error {
	if err := p.checkProvider(provider); err != nil {
		return err
	}
	tx.Config.ErProviderAddr = provider
	tx.Cache.Invalidate()
	attrs["er_provider_addr"] = provider
	return nil
}

func (p *Pool) checkProvider(provider string) error {
	if provider == "" {
		return ErrInvalidRateProvider
	}
	if p.querier == nil {
		return fmt.Errorf("%w: no querier configured", ErrInvalidRateProvider)
	}
	if err := p.querier.CheckAddress(provider); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRateProvider, err)
	}
	return nil
}

// Config reports the configuration with the amp in effect at env.
func (p *Pool) Config(env model.Env) model.ConfigResponse {
	cfg := p.snap.Config
	return model.ConfigResponse{
		BlockTimeLast:    cfg.BlockTimeLast,
		Owner:            cfg.Owner,
		CommissionBps:    cfg.CommissionBps,
		MinimumLiquidity: cfg.MinimumLiquidity.Clone(),
		Params: model.MetastablePoolConfig{
			Amp:            math.LegacyNewDec(int64(cfg.Amp.Current(env.Time))).QuoInt64(stableswap.AmpPrecision),
			AmpChanging:    cfg.Amp.Ramping(env.Time),
			ErProviderAddr: cfg.ErProviderAddr,
			ErCacheBTL:     p.snap.Cache.BTL,
		},
	}
}
