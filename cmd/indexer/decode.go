package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"theragraph/internal/config"
	"theragraph/internal/events"
	"theragraph/internal/model"
	"theragraph/internal/parser"
	"theragraph/internal/storage"
)

const replayBatchSize = 500

func runDecode(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDecode(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input path is required")
	}
	if cfg.Out == "" {
		return fmt.Errorf("output path is required")
	}
	if cfg.Errors == "" {
		return fmt.Errorf("errors path is required")
	}

	inputFile, err := os.Open(cfg.In)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer inputFile.Close()

	out := storage.NewJSONLSink[model.ParsedEvent](cfg.Out)
	if err := out.Truncate(); err != nil {
		return err
	}
	errs := storage.NewJSONLSink[model.DecodeError](cfg.Errors)
	if err := errs.Truncate(); err != nil {
		return err
	}

	logger.Info("decode start",
		zap.String("in", cfg.In),
		zap.String("out", cfg.Out),
		zap.String("errors", cfg.Errors),
		zap.String("fallback_type", cfg.FallbackType),
		zap.Int("signatures", len(events.Signatures())),
	)

	summary, err := replay(inputFile, cfg.FallbackType, time.Now(), out, errs)
	if err != nil {
		return err
	}

	kinds := make([]string, 0, len(summary.byKind))
	for kind := range summary.byKind {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		fields := []zap.Field{zap.String("event_type", kind), zap.Int("count", summary.byKind[kind])}
		if k, ok := events.ParseKind(kind); ok {
			fields = append(fields, zap.String("family", string(k.Family())), zap.String("topic", k.Topic()))
		}
		logger.Info("decoded kind", fields...)
	}

	logger.Info("decode complete",
		zap.Int("total", summary.total),
		zap.Int("decoded", summary.decoded),
		zap.Int("raw", summary.raw),
		zap.Int("failed", summary.failed),
		zap.Int("mints", summary.mints),
		zap.Int("likes", summary.likes),
		zap.Int("purchases", summary.purchases),
	)
	return nil
}

type replaySummary struct {
	total   int
	decoded int
	raw     int
	failed  int
	byKind  map[string]int

	mints     int
	likes     int
	purchases int
}

// replay parses every LogRecord line of r. Lines that are not valid records
// go to errs; everything else, including unknown events, goes to out.
func replay(r io.Reader, fallbackType string, now time.Time, out storage.Sink[model.ParsedEvent], errs storage.Sink[model.DecodeError]) (replaySummary, error) {
	summary := replaySummary{byKind: make(map[string]int)}

	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	parsed := make([]model.ParsedEvent, 0, replayBatchSize)
	var failures []model.DecodeError
	flush := func() error {
		if err := out.PutBatch(parsed); err != nil {
			return err
		}
		if err := errs.PutBatch(failures); err != nil {
			return err
		}
		parsed = parsed[:0]
		failures = failures[:0]
		return nil
	}

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		summary.total++

		var record model.LogRecord
		if err := json.Unmarshal(line, &record); err != nil {
			summary.failed++
			failures = append(failures, model.DecodeError{Line: lineNo, Error: err.Error()})
			continue
		}
		log, err := record.ToLog()
		if err != nil {
			summary.failed++
			failures = append(failures, decodeErrorFromRecord(lineNo, record, err))
			continue
		}

		ev := parser.ParseLog(log, fallbackType, now)
		if _, ok := ev.Data.(model.RawData); ok {
			summary.raw++
		}
		summary.decoded++
		summary.byKind[ev.EventType]++
		switch {
		case ev.Kind.IsMint():
			summary.mints++
		case ev.Kind.IsLike():
			summary.likes++
		case ev.Kind.IsPurchase():
			summary.purchases++
		}
		parsed = append(parsed, ev)

		if len(parsed) >= replayBatchSize {
			if err := flush(); err != nil {
				return summary, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return summary, fmt.Errorf("scan input: %w", err)
	}
	if err := flush(); err != nil {
		return summary, err
	}
	return summary, nil
}

func decodeErrorFromRecord(line int, record model.LogRecord, err error) model.DecodeError {
	topic0 := ""
	if len(record.Topics) > 0 {
		topic0 = record.Topics[0]
	}

	return model.DecodeError{
		Line:        line,
		BlockNumber: record.BlockNumber,
		TxHash:      record.TxHash,
		LogIndex:    record.LogIndex,
		Address:     record.Address,
		Topic0:      topic0,
		Error:       err.Error(),
	}
}
