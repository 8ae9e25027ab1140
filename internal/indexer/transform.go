package indexer

import (
	"time"

	"github.com/ethereum/go-ethereum/core/types"

	"theragraph/internal/decoder"
	"theragraph/internal/metrics"
	"theragraph/internal/model"
	"theragraph/internal/parser"
)

// parseLogs parses logs in provider order and records per-kind counters.
func parseLogs(indexer string, logs []types.Log, fallbackType string, now time.Time) []model.ParsedEvent {
	out := make([]model.ParsedEvent, 0, len(logs))
	for _, log := range logs {
		if log.Removed {
			continue
		}
		ev := parser.ParseLog(log, fallbackType, now)
		metrics.LogProcessedInc(indexer, ev.EventType)
		if _, raw := ev.Data.(model.RawData); raw && decoder.HasPayloadDecoder(ev.Kind) {
			metrics.DecodeFallbackInc(ev.EventType)
		}
		out = append(out, ev)
	}
	return out
}
