package handler

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmount_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{name: "integer", body: `{"amount":10}`, want: "10"},
		{name: "negative fraction", body: `{"amount":-2.35}`, want: "-2.35"},
		{name: "quoted number", body: `{"amount":"10"}`, wantErr: true},
		{name: "quoted garbage", body: `{"amount":"ten"}`, wantErr: true},
		{name: "boolean", body: `{"amount":true}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req PostTransactionRequest
			err := json.Unmarshal([]byte(tt.body), &req)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, req.Amount)
			assert.True(t, req.Amount.Equal(decimal.RequireFromString(tt.want)))
		})
	}
}

func TestUpdateCardRequest_ToPatch(t *testing.T) {
	var req UpdateCardRequest
	require.NoError(t, json.Unmarshal([]byte(`{"balance":7.5,"operations":[{"amount":7.5,"description":"opening"}]}`), &req))

	patch := req.toPatch()

	require.NotNil(t, patch.Balance)
	assert.True(t, patch.Balance.Equal(decimal.RequireFromString("7.5")))
	require.Len(t, patch.Operations, 1)
	assert.True(t, patch.Operations[0].Amount.Equal(decimal.RequireFromString("7.5")))
	assert.Nil(t, UpdateCardRequest{}.toPatch().Balance)
}
