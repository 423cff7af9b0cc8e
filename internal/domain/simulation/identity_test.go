package simulation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDeriveIdentity_NamingConvention(t *testing.T) {
	modTime := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	id := DeriveIdentity("/data/raw/Heat Pump_20240315_093000.csv", modTime)

	require.Equal(t, "Heat Pump", id.Name)
	require.Equal(t, "heat_pump_20240315_093000", id.ID)
	require.Equal(t, time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC), id.Timestamp)
}

func TestDeriveIdentity_FallsBackToModTime(t *testing.T) {
	modTime := time.Date(2024, 6, 1, 8, 15, 30, 500, time.UTC)
	id := DeriveIdentity("/data/raw/boiler.csv", modTime)

	require.Equal(t, "boiler", id.Name)
	require.Equal(t, "boiler_20240601_081530", id.ID)
}

func TestDeriveIdentity_InvalidTimestampUsesModTime(t *testing.T) {
	modTime := time.Date(2024, 6, 1, 8, 15, 30, 0, time.UTC)
	id := DeriveIdentity("/data/raw/loop_20241399_999999.csv", modTime)

	require.Equal(t, "loop_20241399_999999", id.Name)
	require.Equal(t, "loop_20241399_999999_20240601_081530", id.ID)
}

func TestDeriveIdentity_Stable(t *testing.T) {
	modTime := time.Now()
	a := DeriveIdentity("/x/run_20240101_000000.csv", modTime)
	b := DeriveIdentity("/x/run_20240101_000000.csv", modTime.Add(time.Hour))
	require.Equal(t, a.ID, b.ID)
}
