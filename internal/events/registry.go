package events

import (
	"bytes"
	"fmt"
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Canonical signatures hashed with keccak256.
var canonicalSignatures = []struct {
	signature string
	kind      Kind
}{
	{"SnapMinted(uint256,string,address)", SnapMinted},
	{"SnapLiked(uint256,address,uint256)", SnapLiked},
	{"SnapCommented(uint256,uint256,address,string)", SnapCommented},
	{"SnapBoughtAndMinted(uint256,address,address,uint256,uint256)", SnapBoughtAndMinted},
	{"SnapDeleted(uint256,address)", SnapDeleted},

	{"ArtMinted(uint256,string,address)", ArtMinted},
	{"ArtLiked(uint256,address,uint256)", ArtLiked},
	{"ArtCommented(uint256,uint256,address,string)", ArtCommented},
	{"ArtBoughtAndMinted(uint256,address,address,uint256,uint256)", ArtBoughtAndMinted},
	{"ArtDeleted(uint256,address)", ArtDeleted},

	{"MusicMinted(uint256,string,address)", MusicMinted},
	{"MusicLiked(uint256,address,uint256)", MusicLiked},
	{"MusicCommented(uint256,uint256,address,string)", MusicCommented},
	{"MusicBoughtAndMinted(uint256,address,address,uint256,uint256)", MusicBoughtAndMinted},
	{"MusicDeleted(uint256,address)", MusicDeleted},

	{"FlixMinted(uint256,string,address)", FlixMinted},
	{"FlixLiked(uint256,address,uint256)", FlixLiked},
	{"FlixCommented(uint256,uint256,address,string)", FlixCommented},
	{"FlixBoughtAndMinted(uint256,address,address,uint256,uint256)", FlixBoughtAndMinted},
	{"FlixDeleted(uint256,address)", FlixDeleted},

	{"Followed(address,address,string,string,uint256)", Followed},
	{"Unfollowed(address,address,string,string)", Unfollowed},
	{"UsernameRegistered(address,string)", UsernameRegistered},
	{"UsernameTransferred(address,address,string,uint256)", UsernameTransferred},
	{"ProfileUpdated(address,string,string,string,string)", ProfileUpdated},
	{"NotificationEvent(address,address,uint8,uint256,string,string,bytes32,string)", NotificationEvent},
	{"EarningsWithdrawn(address,uint256)", EarningsWithdrawn},
	{"UserFollowed(address,address,uint256)", UserFollowed},
	{"UserUnfollowed(address,address,uint256)", UserUnfollowed},
	{"UserVerified(address,string)", UserVerified},
	{"UserUnverified(address,string)", UserUnverified},
	{"UserBlocked(address,address)", UserBlocked},
	{"UserUnblocked(address,address)", UserUnblocked},

	{"Transfer(address,address,uint256)", Transfer},
	{"PurchaseProcessed(uint256,address,uint256)", PurchaseProcessed},
	{"RoyaltyDistributed(uint256,address,uint256)", RoyaltyDistributed},
	{"ContentShared(uint256,address,address,uint256)", ContentShared},
	{"TipSent(address,address,uint256,uint256)", TipSent},
	{"CollabProposed(uint256,address,address,uint256)", CollabProposed},
	{"BadgeAwarded(address,string,uint256)", BadgeAwarded},
	{"BadgeRemoved(address,string,uint256)", BadgeRemoved},
	{"PricesUpdated(uint128,uint128,uint128,uint128,uint128,uint64,uint64,uint256)", PricesUpdated},
}

// Deployed hashes whose signature strings use struct or enum parameters.
var literalSignatures = []struct {
	hash string
	kind Kind
}{
	{"0xe913bf0f321ec4538e6e03894963538ad29d5bc7610699f655b8d4be77ef3c31", ContentMinted},
	{"0x80c2e061ec45ed7331a60555bbadc701bd26c6335bcd10063bc2fe287d040f2f", ContentCopyMinted},
	{"0x8417b49947e6fe4baaaf043fd8bc39e9a14bdfcac1627dc1c35f75a8e844321b", ContentLiked},
	{"0x54a63e587e58f95e1fb1b3a87102a23fac1fa5dd3d99442cc97043cf031b8ac1", ContentUnliked},
	{"0x505d1203546d4a3699987fc90279e0a1dfe65117be15cac29d00ca3ed7a673b6", ContentCommented},
	{"0x62d3506db24551831d906a4161625343e801105b08beef50f2616a51fd17a7b8", ContentBlocked},
	{"0x4bbdc3b759094c64d5ae0d8d46654078d43716a6188ae8eb6bc36de1d06994c1", ContentBookmarked},
	{"0xff02d2c736810756fea3a252038a4e88a63bf500d03dc6e5aeccf306963f9757", ContentRequirementsUpdated},
	{"0x528a31b859c72723f16bde373bc45e6e13a4d24d709e07200855baccec618cff", ContentBurned},
	{"0x53e62c84b456cda6228f6c0acd671088271c8bb9627a72d3f8c3d631c8473724", UserFollowed},
	{"0x594a48474c36e0d85b16b86393fc3d3a2ed770e7b4f0915b2972d5fbdaa99329", UserUnfollowed},
	{"0x0a09fa67e91ea818e53d712f63caf32f685bed0c54acdb1cebf8f63a36b454aa", UsernameRegistered},
	{"0xdcb94c0b2c025b0736b4b62b1c595f2ca7ad4c711eada6026d477e87de9cca08", ProfileUpdated},
	{"0xb493045fc13318793ba6deaf400d8f23236835ab7c056d18196896cf98fbd9d9", ProfileUpdatedExtended},
	{"0x22b3126528cda4618d13b6945f5e96fe53a5125f386aa591ee89134e2681c621", UserVerified},
	{"0x4906653113399be7fcd9c1ea679e52a58c1efeb96169aaa8b1fd94339ce12b57", UserBlocked},
	{"0xe3698e4763ee4becca0f71e44047f2c0018e133a8c70ab056c2ad3641fefd54a", RoyaltyDistributed},
	{"0x90dac969af4a4897610ef8f0cd934c54409861eb7bd2205e552f8f2296ee5d3e", EarningsWithdrawn},
	{"0xc83ca0840994260dfd9b90ce0f552ac8a0424cae524b6dee6b476a78f6fbdc30", BurnedContentRevenue},
	{"0x08031759b0a2a99f63000784e546d7320d30692b97de1ea89a1645380cfb16f8", TreasuryUpdated},
	{"0x8c2ba571b537bdaa6702790f86f4a470d37ecd91a6d1e57acc410a039d4f6593", DailyLimitsUpdated},
	{"0x382768820017a6e69506da8e35e39b17315306885e94830a6b4d97aa3e3587ff", TokensRecovered},
}

var registry = sync.OnceValue(func() map[common.Hash]Kind {
	table := make(map[common.Hash]Kind, len(canonicalSignatures)+len(literalSignatures))
	add := func(hash common.Hash, kind Kind, source string) {
		if existing, ok := table[hash]; ok && existing != kind {
			panic(fmt.Sprintf("events: %s maps to both %s and %s", source, existing, kind))
		}
		table[hash] = kind
	}
	for _, entry := range canonicalSignatures {
		add(SignatureHash(entry.signature), entry.kind, entry.signature)
	}
	for _, entry := range literalSignatures {
		add(common.HexToHash(entry.hash), entry.kind, entry.hash)
	}
	return table
})

// SignatureHash returns the keccak256 topic of a canonical event signature.
func SignatureHash(signature string) common.Hash {
	return crypto.Keccak256Hash([]byte(signature))
}

// Classify maps a topic0 hash to its event kind. Unmatched hashes yield Unknown.
func Classify(topic0 common.Hash) Kind {
	if kind, ok := registry()[topic0]; ok {
		return kind
	}
	return Unknown
}

// ClassifyTopics classifies a log by its first topic.
func ClassifyTopics(topics []common.Hash) Kind {
	if len(topics) == 0 {
		return Unknown
	}
	return Classify(topics[0])
}

// Signatures returns a copy of the registry.
func Signatures() map[common.Hash]Kind {
	table := registry()
	out := make(map[common.Hash]Kind, len(table))
	for hash, kind := range table {
		out[hash] = kind
	}
	return out
}

// HashesFor returns every registered topic0 for kind.
func HashesFor(kind Kind) []common.Hash {
	var out []common.Hash
	for hash, k := range registry() {
		if k == kind {
			out = append(out, hash)
		}
	}
	slices.SortFunc(out, func(a, b common.Hash) int { return bytes.Compare(a[:], b[:]) })
	return out
}
