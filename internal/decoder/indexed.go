package decoder

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"theragraph/internal/events"
)

// ParamType is the rendering rule for one indexed topic.
type ParamType uint8

const (
	ParamBytes32 ParamType = iota
	ParamAddress
	ParamUint256
)

func (p ParamType) String() string {
	switch p {
	case ParamAddress:
		return "address"
	case ParamUint256:
		return "uint256"
	default:
		return "bytes32"
	}
}

var (
	tokenOnly     = []ParamType{ParamUint256}
	tokenAddr     = []ParamType{ParamUint256, ParamAddress}
	tokenAddrAddr = []ParamType{ParamUint256, ParamAddress, ParamAddress}
	tokenAddrUint = []ParamType{ParamUint256, ParamAddress, ParamUint256}
	addrOnly      = []ParamType{ParamAddress}
	addrAddr      = []ParamType{ParamAddress, ParamAddress}
	addrAddrUint  = []ParamType{ParamAddress, ParamAddress, ParamUint256}
)

// Positions not listed render as bytes32. Kinds without an entry are all bytes32.
var indexedLayouts = map[events.Kind][]ParamType{
	events.ContentMinted:     tokenAddrUint,
	events.ContentCopyMinted: tokenAddrUint,
	events.ContentLiked:      tokenAddrAddr,
	events.ContentUnliked:    tokenAddrAddr,
	events.ContentCommented:  tokenAddr,
	events.ContentBlocked:    tokenAddr,
	events.ContentBookmarked: tokenAddr,
	events.ContentShared:     tokenAddrAddr,

	events.Followed:       addrAddr,
	events.Unfollowed:     addrAddr,
	events.UserFollowed:   addrAddr,
	events.UserUnfollowed: addrAddr,
	events.UserBlocked:    addrAddr,
	events.UserUnblocked:  addrAddr,

	events.UsernameRegistered:     addrOnly,
	events.UserVerified:           addrOnly,
	events.UserUnverified:         addrOnly,
	events.UsernameTransferred:    addrAddr,
	events.ProfileUpdated:         addrOnly,
	events.ProfileUpdatedExtended: addrOnly,
	events.EarningsWithdrawn:      addrOnly,
	events.NotificationEvent:      addrAddr,

	events.Transfer:           addrAddrUint,
	events.PurchaseProcessed:  tokenAddr,
	events.RoyaltyDistributed: tokenAddr,
}

// Every legacy per-family event carries only the token id as its first topic.
func init() {
	for _, kind := range legacyKinds() {
		indexedLayouts[kind] = tokenOnly
	}
}

func legacyKinds() []events.Kind {
	return []events.Kind{
		events.SnapMinted, events.SnapLiked, events.SnapCommented, events.SnapBoughtAndMinted, events.SnapDeleted,
		events.ArtMinted, events.ArtLiked, events.ArtCommented, events.ArtBoughtAndMinted, events.ArtDeleted,
		events.MusicMinted, events.MusicLiked, events.MusicCommented, events.MusicBoughtAndMinted, events.MusicDeleted,
		events.FlixMinted, events.FlixLiked, events.FlixCommented, events.FlixBoughtAndMinted, events.FlixDeleted,
	}
}

// IndexedParamType returns the rendering rule for the indexed parameter at
// position (0 is the first topic after the signature).
func IndexedParamType(kind events.Kind, position int) ParamType {
	layout := indexedLayouts[kind]
	if position < 0 || position >= len(layout) {
		return ParamBytes32
	}
	return layout[position]
}

// FormatTopic renders a topic word according to its parameter type.
func FormatTopic(paramType ParamType, topic common.Hash) string {
	switch paramType {
	case ParamAddress:
		return hexutil.Encode(topic[common.HashLength-common.AddressLength:])
	case ParamUint256:
		return new(big.Int).SetBytes(topic[:]).String()
	default:
		return topic.Hex()
	}
}

// DecodeIndexed renders the indexed parameters of a log. topics excludes topic0.
func DecodeIndexed(kind events.Kind, topics []common.Hash) []string {
	out := make([]string, 0, len(topics))
	for i, topic := range topics {
		out = append(out, FormatTopic(IndexedParamType(kind, i), topic))
	}
	return out
}
