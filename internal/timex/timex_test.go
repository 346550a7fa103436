package timex

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration_UnmarshalStringAndNumber(t *testing.T) {
	var cfg struct {
		A Duration `json:"a"`
		B Duration `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"30s","b":1000000000}`), &cfg))
	assert.Equal(t, 30*time.Second, cfg.A.Duration)
	assert.Equal(t, time.Second, cfg.B.Duration)
}

func TestDuration_UnmarshalInvalid(t *testing.T) {
	var d Duration
	require.Error(t, json.Unmarshal([]byte(`"soon"`), &d))
	require.Error(t, json.Unmarshal([]byte(`true`), &d))
}

func TestDuration_MarshalRoundTrip(t *testing.T) {
	b, err := json.Marshal(Duration{Duration: 90 * time.Second})
	require.NoError(t, err)
	assert.JSONEq(t, `"1m30s"`, string(b))
}

func TestFormatISO_MillisecondsUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	ts := time.Date(2024, 1, 15, 12, 0, 0, 123456789, loc)
	assert.Equal(t, "2024-01-15T10:00:00.123Z", FormatISO(ts))
}

func TestParseISO(t *testing.T) {
	got, err := ParseISO("2024-01-15T10:00:00.000Z")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)))

	got, err = ParseISO("2024-01-15T12:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15T10:00:00.000Z", FormatISO(got))

	_, err = ParseISO("yesterday")
	require.Error(t, err)
}
