package model

import (
	"encoding/json"
	"testing"
)

func TestSettlementJSONStringAmounts(t *testing.T) {
	payload := Settlement{
		ID:           "5f0c",
		Kind:         SettlementSwap,
		Sender:       "alice",
		SellAsset:    "token-a",
		BuyAsset:     "token-b",
		AmountIn:     "340282366920938463463374607431768211455",
		AmountOut:    "30",
		PayoutStatus: PayoutPending,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if _, ok := decoded["amount_in"].(string); !ok {
		t.Fatalf("amount_in should be string")
	}
	if _, ok := decoded["amount_out"].(string); !ok {
		t.Fatalf("amount_out should be string")
	}
	if _, ok := decoded["source"]; ok {
		t.Fatalf("source should be omitted when nil")
	}
	if _, ok := decoded["payout_error"]; ok {
		t.Fatalf("payout_error should be omitted when empty")
	}
}
