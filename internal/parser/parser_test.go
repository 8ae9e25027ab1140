package parser

import (
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"theragraph/internal/decoder"
	"theragraph/internal/events"
	"theragraph/internal/model"
)

const (
	contractAddr = "0x280b971f9405aD604a4EaE50F3AD65Aa092F9f35"
	addrA        = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	addrB        = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	addrC        = "0xcccccccccccccccccccccccccccccccccccccccc"
)

var ingestTime = time.Unix(1700000600, 0)

func sigOf(t *testing.T, kind events.Kind) common.Hash {
	t.Helper()
	hashes := events.HashesFor(kind)
	require.NotEmpty(t, hashes, kind.String())
	return hashes[0]
}

func addrTopic(addr string) common.Hash {
	return common.BytesToHash(common.HexToAddress(addr).Bytes())
}

func uintTopic(v uint64) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(v))
}

func uintWords(values ...uint64) []byte {
	var out []byte
	for _, v := range values {
		out = append(out, uintTopic(v).Bytes()...)
	}
	return out
}

func newLog(topics []common.Hash, data []byte) types.Log {
	return types.Log{
		Address:     common.HexToAddress(contractAddr),
		Topics:      topics,
		Data:        data,
		BlockNumber: 9903900,
		TxHash:      common.HexToHash("0x01"),
		Index:       3,
	}
}

func TestParseLogCommonKinds(t *testing.T) {
	commentPayload := func() []byte {
		parsed, err := decoder.PayloadABI()
		require.NoError(t, err)
		data, err := parsed.Events["ContentCommented"].Inputs.NonIndexed().Pack(
			big.NewInt(7), "great shot", uint8(3), big.NewInt(1700000500))
		require.NoError(t, err)
		return data
	}()

	tests := []struct {
		name         string
		log          types.Log
		eventType    string
		contractType string
		indexed      []string
		data         model.EventData
	}{
		{
			name:         "mint",
			log:          newLog([]common.Hash{sigOf(t, events.ContentMinted), uintTopic(42), addrTopic(addrA), uintTopic(3)}, uintWords(100, 1700000500)),
			eventType:    "ContentMinted",
			contractType: "snap",
			indexed:      []string{"42", addrA, "3"},
			data:         model.MintedData{TokenID: "42", Creator: addrA, ContentType: "3", Price: "100", Timestamp: "1700000500"},
		},
		{
			name:         "like",
			log:          newLog([]common.Hash{sigOf(t, events.ContentLiked), uintTopic(42), addrTopic(addrB), addrTopic(addrC)}, uintWords(1, 1700000500)),
			eventType:    "ContentLiked",
			contractType: "friends",
			indexed:      []string{"42", addrB, addrC},
			data:         model.LikedData{TokenID: "42", Liker: addrB, Creator: addrC, Timestamp: "1700000500"},
		},
		{
			name:         "comment",
			log:          newLog([]common.Hash{sigOf(t, events.ContentCommented), uintTopic(42), addrTopic(addrB)}, commentPayload),
			eventType:    "ContentCommented",
			contractType: "friends",
			indexed:      []string{"42", addrB},
			data:         model.CommentedData{TokenID: "42", CommentID: "7", Commenter: addrB, Comment: "great shot", ContentType: "3", Timestamp: "1700000500"},
		},
		{
			name:         "follow",
			log:          newLog([]common.Hash{sigOf(t, events.UserFollowed), addrTopic(addrA), addrTopic(addrB)}, uintWords(1700000500)),
			eventType:    "UserFollowed",
			contractType: "friends",
			indexed:      []string{addrA, addrB},
			data:         model.FollowedData{Follower: addrA, Followed: addrB, Timestamp: "1700000500"},
		},
		{
			name:         "purchase",
			log:          newLog([]common.Hash{sigOf(t, events.PurchaseProcessed), uintTopic(42), addrTopic(addrB)}, uintWords(123)),
			eventType:    "PurchaseProcessed",
			contractType: "common",
			indexed:      []string{"42", addrB},
			data:         model.PurchaseData{TokenID: "42", Buyer: addrB, Amount: "123"},
		},
		{
			name:         "legacy mint",
			log:          newLog([]common.Hash{sigOf(t, events.ArtMinted), uintTopic(5)}, append(addrTopic(addrC).Bytes(), uintWords(0)...)),
			eventType:    "ArtMinted",
			contractType: "art",
			indexed:      []string{"5"},
			data:         model.MintedData{TokenID: "5", Creator: addrC},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := ParseLog(tt.log, "friends", ingestTime)

			assert.Equal(t, tt.eventType, ev.EventType)
			assert.Equal(t, tt.contractType, ev.ContractType)
			assert.Equal(t, tt.indexed, ev.IndexedParams)
			assert.Equal(t, tt.data, ev.Data)
			assert.Equal(t, "0x280b971f9405ad604a4eae50f3ad65aa092f9f35", ev.ContractAddress)
			assert.Equal(t, uint64(9903900), ev.BlockNumber)
			assert.Equal(t, uint64(3), ev.LogIndex)
			assert.Equal(t, int64(1700000600), ev.Timestamp)
			assert.NotEmpty(t, ev.RawData)
		})
	}
}

func TestParseLogContentTypeCorrection(t *testing.T) {
	tests := []struct {
		contentType uint64
		want        string
	}{
		{0, "art"},
		{1, "flix"},
		{2, "music"},
		{3, "snap"},
		{9, "friends"},
	}
	for _, tt := range tests {
		log := newLog([]common.Hash{sigOf(t, events.ContentMinted), uintTopic(1), addrTopic(addrA), uintTopic(tt.contentType)}, nil)
		ev := ParseLog(log, "ignored", ingestTime)
		assert.Equal(t, tt.want, ev.ContractType, "content type %d", tt.contentType)
	}
}

func TestParseLogUnknown(t *testing.T) {
	log := newLog([]common.Hash{common.HexToHash("0xdeadbeef"), uintTopic(1)}, []byte{0x01, 0x02})
	ev := ParseLog(log, "friends", ingestTime)

	assert.Equal(t, "Unknown", ev.EventType)
	assert.Equal(t, events.Unknown, ev.Kind)
	assert.Equal(t, "friends", ev.ContractType)
	assert.Equal(t, []string{"0x0000000000000000000000000000000000000000000000000000000000000001"}, ev.IndexedParams)
	assert.Equal(t, model.RawData{Hex: "0x0102"}, ev.Data)
	assert.Equal(t, "0x0102", ev.RawData)
}

func TestParseLogWithoutTopicsOrData(t *testing.T) {
	ev := ParseLog(newLog(nil, nil), "art", ingestTime)

	assert.Equal(t, "Unknown", ev.EventType)
	assert.Equal(t, "art", ev.ContractType)
	assert.Nil(t, ev.IndexedParams)
	assert.Nil(t, ev.Data)
	assert.Empty(t, ev.RawData)
}

func TestParseLogIsDeterministic(t *testing.T) {
	log := newLog([]common.Hash{sigOf(t, events.UserFollowed), addrTopic(addrA), addrTopic(addrB)}, uintWords(1700000500))

	first, err := json.Marshal(ParseLog(log, "friends", ingestTime))
	require.NoError(t, err)
	second, err := json.Marshal(ParseLog(log, "friends", ingestTime.Add(time.Hour)))
	require.NoError(t, err)

	var a, b map[string]interface{}
	require.NoError(t, json.Unmarshal(first, &a))
	require.NoError(t, json.Unmarshal(second, &b))
	delete(a, "timestamp")
	delete(b, "timestamp")
	assert.Equal(t, a, b)
}

func TestPartitionKey(t *testing.T) {
	ev := model.ParsedEvent{ContractType: "snap", ContractAddress: "0xabc"}
	assert.Equal(t, "snap.0xabc", PartitionKey(ev))

	ev.SourceType = "friends"
	assert.Equal(t, "friends.0xabc", PartitionKey(ev))
}

func TestPartitionKeySharedAcrossKinds(t *testing.T) {
	logs := []types.Log{
		newLog([]common.Hash{sigOf(t, events.ContentMinted), uintTopic(42), addrTopic(addrA), uintTopic(3)}, uintWords(100, 1700000500)),
		newLog([]common.Hash{sigOf(t, events.ContentLiked), uintTopic(42), addrTopic(addrB), addrTopic(addrC)}, uintWords(1, 1700000500)),
		newLog([]common.Hash{sigOf(t, events.PurchaseProcessed), uintTopic(42), addrTopic(addrB)}, uintWords(123)),
	}

	contractTypes := map[string]bool{}
	keys := map[string]bool{}
	for _, log := range logs {
		ev := ParseLog(log, "friends", ingestTime)
		contractTypes[ev.ContractType] = true
		keys[PartitionKey(ev)] = true
	}

	assert.Len(t, contractTypes, 3)
	assert.Equal(t, map[string]bool{"friends.0x280b971f9405ad604a4eae50f3ad65aa092f9f35": true}, keys)
}
