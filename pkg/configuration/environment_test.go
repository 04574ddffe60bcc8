package configuration

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAggregationOptions_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opts    AggregationOptions
		wantErr bool
	}{
		{name: "defaults", opts: AggregationOptions{MinLevel: 0, MaxLevel: 999, MinRespondents: 3, Smoothing: 5}},
		{name: "negative min level", opts: AggregationOptions{MinLevel: -1, MaxLevel: 5}, wantErr: true},
		{name: "inverted range", opts: AggregationOptions{MinLevel: 4, MaxLevel: 2}, wantErr: true},
		{name: "negative respondents", opts: AggregationOptions{MaxLevel: 5, MinRespondents: -1}, wantErr: true},
		{name: "negative smoothing", opts: AggregationOptions{MaxLevel: 5, Smoothing: -1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestDatabaseOptions_ConnectionString(t *testing.T) {
	t.Parallel()

	opts := DatabaseOptions{Name: "orgpulse", Host: "db", Port: "5433", User: "svc", Password: "secret"}
	require.Equal(t, "host=db port=5433 user=svc dbname=orgpulse password=secret sslmode=disable", opts.ConnectionString())
}
