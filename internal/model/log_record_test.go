package model

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func TestLogRecordToLog(t *testing.T) {
	original := types.Log{
		Address:     common.HexToAddress("0x280b971f9405aD604a4EaE50F3AD65Aa092F9f35"),
		Topics:      []common.Hash{common.HexToHash("0xaaa"), common.HexToHash("0xbbb")},
		Data:        []byte{0xde, 0xad, 0xbe, 0xef},
		BlockNumber: 9903816,
		BlockHash:   common.HexToHash("0xabc123"),
		TxHash:      common.HexToHash("0xdef456"),
		TxIndex:     7,
		Index:       12,
	}

	line, err := json.Marshal(NewLogRecord(original))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var record LogRecord
	if err := json.Unmarshal(line, &record); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	got, err := record.ToLog()
	if err != nil {
		t.Fatalf("to log: %v", err)
	}
	if !reflect.DeepEqual(original, got) {
		t.Fatalf("log mismatch: %+v != %+v", original, got)
	}
}

func TestLogRecordToLogEmptyData(t *testing.T) {
	record := LogRecord{
		Address: "0x1111111111111111111111111111111111111111",
		Data:    "0x",
	}
	got, err := record.ToLog()
	if err != nil {
		t.Fatalf("to log: %v", err)
	}
	if len(got.Data) != 0 || len(got.Topics) != 0 {
		t.Fatalf("expected empty log, got %+v", got)
	}
}

func TestLogRecordToLogInvalid(t *testing.T) {
	cases := []LogRecord{
		{Address: "0x123"},
		{Address: "0x1111111111111111111111111111111111111111", Topics: []string{"0xzz"}},
		{Address: "0x1111111111111111111111111111111111111111", Topics: []string{"0x01"}},
		{Address: "0x1111111111111111111111111111111111111111", Data: "0xabc"},
	}
	for i, record := range cases {
		if _, err := record.ToLog(); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}
