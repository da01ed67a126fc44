package common

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTenantFromArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     map[string]interface{}
		expected string
	}{
		{name: "tenant set", args: map[string]interface{}{"tenant_id": "salon-1"}, expected: "salon-1"},
		{name: "tenant trimmed", args: map[string]interface{}{"tenant_id": "  salon-1 "}, expected: "salon-1"},
		{name: "missing", args: map[string]interface{}{}, expected: ""},
		{name: "nil args", args: nil, expected: ""},
		{name: "non-string", args: map[string]interface{}{"tenant_id": 42}, expected: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetTenantFromArgs(tt.args))
		})
	}
}

func TestRequiredStringArg(t *testing.T) {
	v, err := RequiredStringArg(map[string]interface{}{"date": "2026-03-02"}, "date")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", v)

	_, err = RequiredStringArg(map[string]interface{}{"date": " "}, "date")
	assert.EqualError(t, err, "date is required")
}

func TestIntArg(t *testing.T) {
	tests := []struct {
		name    string
		args    map[string]interface{}
		want    int
		wantErr bool
	}{
		{name: "missing uses default", args: map[string]interface{}{}, want: 7},
		{name: "json number", args: map[string]interface{}{"n": float64(30)}, want: 30},
		{name: "int", args: map[string]interface{}{"n": 5}, want: 5},
		{name: "fraction", args: map[string]interface{}{"n": 1.5}, wantErr: true},
		{name: "string", args: map[string]interface{}{"n": "5"}, wantErr: true},
		{name: "negative", args: map[string]interface{}{"n": float64(-5)}, want: -5},
		{name: "huge", args: map[string]interface{}{"n": 1e300}, wantErr: true},
		{name: "infinite", args: map[string]interface{}{"n": math.Inf(1)}, wantErr: true},
		{name: "not a number", args: map[string]interface{}{"n": math.NaN()}, wantErr: true},
		{name: "int64 overflow", args: map[string]interface{}{"n": int64(math.MaxInt64)}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IntArg(tt.args, "n", 7)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIntListArg(t *testing.T) {
	got, err := IntListArg(map[string]interface{}{"work_days": "1, 3,5"}, "work_days")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 5}, got)

	got, err = IntListArg(map[string]interface{}{}, "work_days")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = IntListArg(map[string]interface{}{"work_days": "1,x"}, "work_days")
	assert.EqualError(t, err, "work_days must be a comma-separated list of numbers")
}
