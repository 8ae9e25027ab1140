package parser

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"theragraph/internal/decoder"
	"theragraph/internal/events"
	"theragraph/internal/model"
)

// ParseLog turns one chain log into its canonical event. contractType is the
// configured type of the emitting contract: it labels unknown events and keys
// the event's partition. It never fails: undecodable payloads are carried as
// model.RawData.
func ParseLog(log types.Log, contractType string, now time.Time) model.ParsedEvent {
	kind := events.ClassifyTopics(log.Topics)

	var indexed []string
	var data model.EventData
	if len(log.Topics) > 0 {
		indexed, data = decoder.Decode(kind, log.Topics[1:], log.Data)
	} else {
		data = decoder.DecodePayload(kind, nil, log.Data)
	}
	if len(indexed) == 0 {
		indexed = nil
	}

	ev := model.ParsedEvent{
		EventType:       kind.String(),
		ContractAddress: strings.ToLower(log.Address.Hex()),
		ContractType:    ContractType(kind, indexed, contractType),
		BlockNumber:     log.BlockNumber,
		TransactionHash: log.TxHash.Hex(),
		LogIndex:        uint64(log.Index),
		Timestamp:       now.Unix(),
		IndexedParams:   indexed,
		Data:            data,
		Kind:            kind,
		SourceType:      contractType,
	}
	if len(log.Data) > 0 {
		ev.RawData = hexutil.Encode(log.Data)
	}
	return ev
}

// ContractType resolves the contract type of an event. ContentMinted carries
// its real sub-type in the third indexed param.
func ContractType(kind events.Kind, indexed []string, fallbackType string) string {
	contractType := fallbackType
	if kind != events.Unknown {
		contractType = string(kind.Family())
	}
	if kind == events.ContentMinted {
		if ct, ok := decoder.ContentTypeOf(indexed); ok {
			if family, ok := events.ContentTypeFamily(ct); ok {
				contractType = string(family)
			}
		}
	}
	return contractType
}

// PartitionKey keeps every event of one contract on the same partition. The
// prefix is the contract's configured type, so mints, likes and purchases of
// one contract share a key even though their ContractType differs.
func PartitionKey(ev model.ParsedEvent) string {
	contractType := ev.SourceType
	if contractType == "" {
		contractType = ev.ContractType
	}
	return contractType + "." + ev.ContractAddress
}
