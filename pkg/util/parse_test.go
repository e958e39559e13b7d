package util

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseYesNo(t *testing.T) {
	for _, in := range []interface{}{"yes", "Yes", "true", "True", "1", 1, true, " Y "} {
		v, err := ParseYesNo(in)
		require.NoError(t, err, "%v", in)
		assert.True(t, v, "%v", in)
	}
	for _, in := range []interface{}{"no", "No", "false", "0", 0, false} {
		v, err := ParseYesNo(in)
		require.NoError(t, err, "%v", in)
		assert.False(t, v, "%v", in)
	}
	for _, in := range []interface{}{"maybe", "", nil, "2"} {
		_, err := ParseYesNo(in)
		assert.Error(t, err, "%v", in)
	}
}

func TestParseUnitsIsDecimal(t *testing.T) {
	cases := []struct {
		in   interface{}
		want int
	}{
		{"010", 10},
		{"08", 8},
		{" 7 ", 7},
		{"12.0", 12},
		{"0", 0},
		{"-3", -3},
		{float64(5), 5},
		{json.Number("09"), 9},
	}
	for _, tc := range cases {
		got, err := ParseUnits(tc.in)
		require.NoError(t, err, "%v", tc.in)
		assert.Equal(t, tc.want, got, "%v", tc.in)
	}
	for _, in := range []interface{}{nil, "", "abc", "1.5", "0x10"} {
		_, err := ParseUnits(in)
		assert.Error(t, err, "%v", in)
	}
}

func TestParseOverrides(t *testing.T) {
	got := ParseOverrides("Platelets=3, Plasma = 4,bad,Whole Blood=x")
	assert.Equal(t, map[string]int{"platelets": 3, "plasma": 4}, got)
	assert.Empty(t, ParseOverrides(""))
}

func TestGetDurationEnv(t *testing.T) {
	t.Setenv("POLL_TEST_A", "15s")
	t.Setenv("POLL_TEST_B", "300")
	t.Setenv("POLL_TEST_C", "soon")

	assert.Equal(t, 15*time.Second, GetDurationEnv("POLL_TEST_A", time.Second))
	assert.Equal(t, 300*time.Second, GetDurationEnv("POLL_TEST_B", time.Second))
	assert.Equal(t, time.Second, GetDurationEnv("POLL_TEST_C", time.Second))
	assert.Equal(t, time.Minute, GetDurationEnv("POLL_TEST_UNSET", time.Minute))
}
