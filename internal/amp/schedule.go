// Package amp tracks the amplification coefficient of a pool as a linear ramp
// between two (amp, time) anchors.
package amp

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"metastablePool/internal/stableswap"
)

var (
	ErrIncorrectAmp       = fmt.Errorf("amp coefficient must be greater than 0 and less than or equal to %d", stableswap.MaxAmp)
	ErrMaxAmpChange       = fmt.Errorf("the difference between the old and new amp value must not exceed %d times", stableswap.MaxAmpChange)
	ErrMinAmpChangingTime = fmt.Errorf("amp coefficient cannot be changed more often than once per %d seconds", stableswap.MinAmpChangingTime)
	ErrInvalidSchedule    = errors.New("next amp time precedes init amp time")
)

// Schedule holds amplification anchors. Amp values are scaled by stableswap.AmpPrecision.
type Schedule struct {
	InitAmp     uint64 `json:"init_amp"`
	InitAmpTime uint64 `json:"init_amp_time"`
	NextAmp     uint64 `json:"next_amp"`
	NextAmpTime uint64 `json:"next_amp_time"`
}

// NewFlat returns a schedule pinned at amp (unscaled) starting at now.
func NewFlat(amp uint64, now uint64) (Schedule, error) {
	if amp == 0 || amp > stableswap.MaxAmp {
		return Schedule{}, ErrIncorrectAmp
	}
	scaled := amp * stableswap.AmpPrecision
	return Schedule{
		InitAmp:     scaled,
		InitAmpTime: now,
		NextAmp:     scaled,
		NextAmpTime: now,
	}, nil
}

// Validate checks the stored anchors.
func (s Schedule) Validate() error {
	for _, v := range []uint64{s.InitAmp, s.NextAmp} {
		if v == 0 || v > stableswap.MaxAmp*stableswap.AmpPrecision {
			return ErrIncorrectAmp
		}
	}
	if s.NextAmpTime < s.InitAmpTime {
		return ErrInvalidSchedule
	}
	return nil
}

// Current returns the scaled amplification in effect at now.
func (s Schedule) Current(now uint64) uint64 {
	if s.NextAmpTime <= s.InitAmpTime {
		return s.InitAmp
	}
	if now >= s.NextAmpTime {
		return s.NextAmp
	}

	var elapsed uint64
	if now > s.InitAmpTime {
		elapsed = now - s.InitAmpTime
	}
	total := s.NextAmpTime - s.InitAmpTime

	if s.NextAmp > s.InitAmp {
		return s.InitAmp + scaleDelta(s.NextAmp-s.InitAmp, elapsed, total)
	}
	return s.InitAmp - scaleDelta(s.InitAmp-s.NextAmp, elapsed, total)
}

// Ramping reports whether a ramp is in progress at now.
func (s Schedule) Ramping(now uint64) bool {
	return s.InitAmp != s.NextAmp && now < s.NextAmpTime
}

// StartRamp begins a linear ramp from the current value to nextAmp (unscaled),
// reached at nextAmpTime.
func (s *Schedule) StartRamp(nextAmp, nextAmpTime, now uint64) error {
	if nextAmp == 0 || nextAmp > stableswap.MaxAmp {
		return ErrIncorrectAmp
	}

	current := s.Current(now)
	next := nextAmp * stableswap.AmpPrecision
	if next*stableswap.MaxAmpChange < current || next > current*stableswap.MaxAmpChange {
		return ErrMaxAmpChange
	}

	if now < s.InitAmpTime+stableswap.MinAmpChangingTime || nextAmpTime < now+stableswap.MinAmpChangingTime {
		return ErrMinAmpChangingTime
	}

	s.InitAmp = current
	s.InitAmpTime = now
	s.NextAmp = next
	s.NextAmpTime = nextAmpTime
	return nil
}

// StopRamp freezes the schedule at its value at now.
func (s *Schedule) StopRamp(now uint64) {
	current := s.Current(now)
	s.InitAmp = current
	s.InitAmpTime = now
	s.NextAmp = current
	s.NextAmpTime = now
}

func scaleDelta(delta, elapsed, total uint64) uint64 {
	v := new(uint256.Int).Mul(uint256.NewInt(delta), uint256.NewInt(elapsed))
	v.Div(v, uint256.NewInt(total))
	return v.Uint64()
}
