package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "turbo"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Trading.MinStake = 0
	cfg.Sweep.BatchSize = 0
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_stake")
	assert.Contains(t, err.Error(), "batch_size")
	assert.Contains(t, err.Error(), "redis: addr")
}

func TestValidateStakeBounds(t *testing.T) {
	cfg := Defaults()
	cfg.Trading.MaxStake = 0.5 // below min_stake of 1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_stake")

	cfg.Trading.MaxStake = 0 // disables the bound
	require.NoError(t, cfg.Validate())
}

func TestValidateS3OnlyWhenEnabled(t *testing.T) {
	cfg := Defaults()
	cfg.S3.Enabled = false
	cfg.S3.Bucket = ""
	require.NoError(t, cfg.Validate())

	cfg.S3.Enabled = true
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket")
}

func TestDurationUnmarshalText(t *testing.T) {
	var d duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration)

	assert.Error(t, d.UnmarshalText([]byte("not-a-duration")))
}

func TestTimeFrameDurations(t *testing.T) {
	cfg := Defaults()
	frames := cfg.Trading.TimeFrameDurations()
	require.NotEmpty(t, frames)
	assert.Equal(t, time.Minute, frames[0])
}
