package main

import (
	"encoding/json"
	"errors"
	"math/big"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"theragraph/internal/events"
	"theragraph/internal/model"
	"theragraph/internal/storage"
)

type memorySink[T any] struct {
	records []T
	err     error
}

func (s *memorySink[T]) PutBatch(records []T) error {
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, records...)
	return nil
}

func recordLine(t *testing.T, log types.Log) string {
	t.Helper()
	line, err := json.Marshal(model.NewLogRecord(log))
	require.NoError(t, err)
	return string(line)
}

func followLog() types.Log {
	return types.Log{
		Address: common.HexToAddress("0x280b971f9405aD604a4EaE50F3AD65Aa092F9f35"),
		Topics: []common.Hash{
			events.HashesFor(events.UserFollowed)[0],
			common.BytesToHash(common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa").Bytes()),
			common.BytesToHash(common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb").Bytes()),
		},
		Data:        common.BigToHash(big.NewInt(1700000500)).Bytes(),
		BlockNumber: 9903900,
		TxHash:      common.HexToHash("0x01"),
		Index:       3,
	}
}

func TestReplay(t *testing.T) {
	unknown := followLog()
	unknown.Topics = []common.Hash{common.HexToHash("0xdeadbeef")}
	unknown.Data = []byte{0x01, 0x02}

	input := strings.Join([]string{
		recordLine(t, followLog()),
		"",
		"{not json",
		`{"block_number":1,"tx_hash":"0x01","address":"nope","topics":[],"data":"0x"}`,
		recordLine(t, unknown),
	}, "\n")

	out := &memorySink[model.ParsedEvent]{}
	errs := &memorySink[model.DecodeError]{}
	now := time.Unix(1700000999, 0)

	summary, err := replay(strings.NewReader(input), "friends", now, out, errs)
	require.NoError(t, err)

	assert.Equal(t, 4, summary.total)
	assert.Equal(t, 2, summary.decoded)
	assert.Equal(t, 1, summary.raw)
	assert.Equal(t, 2, summary.failed)
	assert.Equal(t, map[string]int{"UserFollowed": 1, "Unknown": 1}, summary.byKind)

	require.Len(t, out.records, 2)
	assert.Equal(t, "UserFollowed", out.records[0].EventType)
	assert.Equal(t, "0x280b971f9405ad604a4eae50f3ad65aa092f9f35", out.records[0].ContractAddress)
	assert.Equal(t, int64(1700000999), out.records[0].Timestamp)
	assert.Equal(t, model.RawData{Hex: "0x0102"}, out.records[1].Data)

	require.Len(t, errs.records, 2)
	assert.Equal(t, 3, errs.records[0].Line)
	assert.Equal(t, 4, errs.records[1].Line)
	assert.Equal(t, "nope", errs.records[1].Address)
}

func TestReplaySinkError(t *testing.T) {
	out := &memorySink[model.ParsedEvent]{err: errors.New("disk full")}
	errs := &memorySink[model.DecodeError]{}

	_, err := replay(strings.NewReader(recordLine(t, followLog())), "friends", time.Now(), out, errs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestReplayWritesJSONL(t *testing.T) {
	dir := t.TempDir()
	out := storage.NewJSONLSink[model.ParsedEvent](filepath.Join(dir, "events.jsonl"))
	errs := storage.NewJSONLSink[model.DecodeError](filepath.Join(dir, "errors.jsonl"))

	summary, err := replay(strings.NewReader(recordLine(t, followLog())+"\n"), "friends", time.Now(), out, errs)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.decoded)
	assert.FileExists(t, filepath.Join(dir, "events.jsonl"))
	assert.NoFileExists(t, filepath.Join(dir, "errors.jsonl"))
}
