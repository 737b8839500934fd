package amp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"metastablePool/internal/stableswap"
)

const day = stableswap.MinAmpChangingTime

func TestNewFlat(t *testing.T) {
	s, err := NewFlat(100, 1000)
	require.NoError(t, err)
	require.Equal(t, uint64(10000), s.Current(0))
	require.Equal(t, uint64(10000), s.Current(1000))
	require.Equal(t, uint64(10000), s.Current(1_000_000))
	require.False(t, s.Ramping(1000))

	_, err = NewFlat(0, 1000)
	require.ErrorIs(t, err, ErrIncorrectAmp)
	_, err = NewFlat(stableswap.MaxAmp+1, 1000)
	require.ErrorIs(t, err, ErrIncorrectAmp)
}

func TestRampUpDownAndStop(t *testing.T) {
	const t0 = uint64(1_000_000)
	s, err := NewFlat(100, t0)
	require.NoError(t, err)

	require.ErrorIs(t, s.StartRamp(stableswap.MaxAmp+1, t0+2*day, t0+day), ErrIncorrectAmp)
	require.ErrorIs(t, s.StartRamp(0, t0+2*day, t0+day), ErrIncorrectAmp)
	require.ErrorIs(t, s.StartRamp(100*stableswap.MaxAmpChange+1, t0+2*day, t0+day), ErrMaxAmpChange)
	require.ErrorIs(t, s.StartRamp(250, t0+2*day, t0+10), ErrMinAmpChangingTime)

	now := t0 + day
	require.ErrorIs(t, s.StartRamp(250, now+day-1, now), ErrMinAmpChangingTime)
	require.NoError(t, s.StartRamp(250, now+day, now))
	require.True(t, s.Ramping(now))

	require.Equal(t, uint64(10000), s.Current(now))
	require.Equal(t, uint64(17500), s.Current(now+day/2))
	require.Equal(t, uint64(25000), s.Current(now+day))
	require.Equal(t, uint64(25000), s.Current(now+10*day))

	// A second ramp right away is rejected.
	require.ErrorIs(t, s.StartRamp(300, now+3*day, now+1), ErrMinAmpChangingTime)

	now += day
	require.NoError(t, s.StartRamp(50, now+day, now))
	require.Equal(t, uint64(15000), s.Current(now+day/2))

	s.StopRamp(now + day/2)
	require.False(t, s.Ramping(now+day/2))
	require.Equal(t, uint64(15000), s.Current(now+day/2))
	require.Equal(t, uint64(15000), s.Current(now+5*day))
	require.NoError(t, s.Validate())
}

func TestCurrentMonotonic(t *testing.T) {
	s := Schedule{InitAmp: 10000, InitAmpTime: 100, NextAmp: 70000, NextAmpTime: 100 + 7*day}
	prev := s.Current(0)
	require.Equal(t, s.InitAmp, prev)
	for now := uint64(100); now <= 100+8*day; now += 3601 {
		cur := s.Current(now)
		require.GreaterOrEqual(t, cur, prev)
		prev = cur
	}
	require.Equal(t, s.NextAmp, s.Current(s.NextAmpTime))

	down := Schedule{InitAmp: 70000, InitAmpTime: 100, NextAmp: 10000, NextAmpTime: 100 + 7*day}
	prev = down.Current(100)
	for now := uint64(100); now <= 100+8*day; now += 3601 {
		cur := down.Current(now)
		require.LessOrEqual(t, cur, prev)
		prev = cur
	}
	require.Equal(t, down.NextAmp, down.Current(down.NextAmpTime))
}

func TestValidate(t *testing.T) {
	require.ErrorIs(t, Schedule{InitAmp: 0, NextAmp: 100}.Validate(), ErrIncorrectAmp)
	require.ErrorIs(t, Schedule{InitAmp: 100, NextAmp: 100, InitAmpTime: 5, NextAmpTime: 4}.Validate(), ErrInvalidSchedule)
}
