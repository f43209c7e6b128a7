package erc20

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TransferEvent is a decoded ERC20 Transfer log.
type TransferEvent struct {
	Token common.Address
	From  common.Address
	To    common.Address
	Value *big.Int
}

// TransferTopic returns topic0 of the Transfer event.
func TransferTopic() (common.Hash, error) {
	parsed, err := ABI()
	if err != nil {
		return common.Hash{}, err
	}
	return parsed.Events["Transfer"].ID, nil
}

// DecodeTransfer decodes a Transfer log.
func DecodeTransfer(log types.Log) (TransferEvent, error) {
	parsed, err := ABI()
	if err != nil {
		return TransferEvent{}, err
	}
	event := parsed.Events["Transfer"]
	if len(log.Topics) == 0 || log.Topics[0] != event.ID {
		return TransferEvent{}, fmt.Errorf("not a transfer log")
	}

	indexedArgs := indexedArguments(event.Inputs)
	if len(log.Topics) != len(indexedArgs)+1 {
		return TransferEvent{}, fmt.Errorf("expected %d topics, got %d", len(indexedArgs)+1, len(log.Topics))
	}
	var indexed struct {
		From common.Address
		To   common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArgs, log.Topics[1:]); err != nil {
		return TransferEvent{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return TransferEvent{}, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	if len(values) != 1 {
		return TransferEvent{}, fmt.Errorf("unexpected transfer values: %d", len(values))
	}
	value, ok := values[0].(*big.Int)
	if !ok {
		return TransferEvent{}, fmt.Errorf("transfer value unexpected type %T", values[0])
	}

	return TransferEvent{
		Token: log.Address,
		From:  indexed.From,
		To:    indexed.To,
		Value: value,
	}, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}
