package events

import "fmt"

// Kind identifies a contract event understood by the indexer.
type Kind uint8

const (
	Unknown Kind = iota

	SnapMinted
	SnapLiked
	SnapCommented
	SnapBoughtAndMinted
	SnapDeleted

	ArtMinted
	ArtLiked
	ArtCommented
	ArtBoughtAndMinted
	ArtDeleted

	MusicMinted
	MusicLiked
	MusicCommented
	MusicBoughtAndMinted
	MusicDeleted

	FlixMinted
	FlixLiked
	FlixCommented
	FlixBoughtAndMinted
	FlixDeleted

	Followed
	Unfollowed
	UsernameRegistered
	UsernameTransferred
	ProfileUpdated
	ProfileUpdatedExtended
	NotificationEvent
	EarningsWithdrawn
	UserVerified
	UserUnverified
	UserBlocked
	UserUnblocked

	ContentMinted
	ContentCopyMinted
	ContentLiked
	ContentUnliked
	ContentCommented
	ContentBlocked
	ContentBookmarked
	ContentShared
	ContentRequirementsUpdated
	ContentBurned
	BurnedContentRevenue
	UserFollowed
	UserUnfollowed
	TreasuryUpdated
	DailyLimitsUpdated
	TokensRecovered
	BadgeAwarded
	BadgeRemoved
	TipSent
	PricesUpdated

	Transfer
	PurchaseProcessed
	RoyaltyDistributed
	CollabProposed

	kindCount
)

// Family is the logical contract family an event belongs to.
type Family string

const (
	FamilySnap    Family = "snap"
	FamilyArt     Family = "art"
	FamilyMusic   Family = "music"
	FamilyFlix    Family = "flix"
	FamilyFriends Family = "friends"
	FamilyCommon  Family = "common"
)

type flag uint8

const (
	flagMint flag = 1 << iota
	flagLike
	flagPurchase
	flagSocial
)

type kindInfo struct {
	name   string
	family Family
	flags  flag
}

var kinds = [kindCount]kindInfo{
	Unknown: {"Unknown", FamilyCommon, 0},

	SnapMinted:          {"SnapMinted", FamilySnap, flagMint},
	SnapLiked:           {"SnapLiked", FamilySnap, flagLike},
	SnapCommented:       {"SnapCommented", FamilySnap, 0},
	SnapBoughtAndMinted: {"SnapBoughtAndMinted", FamilySnap, flagPurchase},
	SnapDeleted:         {"SnapDeleted", FamilySnap, 0},

	ArtMinted:          {"ArtMinted", FamilyArt, flagMint},
	ArtLiked:           {"ArtLiked", FamilyArt, flagLike},
	ArtCommented:       {"ArtCommented", FamilyArt, 0},
	ArtBoughtAndMinted: {"ArtBoughtAndMinted", FamilyArt, flagPurchase},
	ArtDeleted:         {"ArtDeleted", FamilyArt, 0},

	MusicMinted:          {"MusicMinted", FamilyMusic, flagMint},
	MusicLiked:           {"MusicLiked", FamilyMusic, flagLike},
	MusicCommented:       {"MusicCommented", FamilyMusic, 0},
	MusicBoughtAndMinted: {"MusicBoughtAndMinted", FamilyMusic, flagPurchase},
	MusicDeleted:         {"MusicDeleted", FamilyMusic, 0},

	FlixMinted:          {"FlixMinted", FamilyFlix, flagMint},
	FlixLiked:           {"FlixLiked", FamilyFlix, flagLike},
	FlixCommented:       {"FlixCommented", FamilyFlix, 0},
	FlixBoughtAndMinted: {"FlixBoughtAndMinted", FamilyFlix, flagPurchase},
	FlixDeleted:         {"FlixDeleted", FamilyFlix, 0},

	Followed:               {"Followed", FamilyFriends, flagSocial},
	Unfollowed:             {"Unfollowed", FamilyFriends, flagSocial},
	UsernameRegistered:     {"UsernameRegistered", FamilyFriends, flagSocial},
	UsernameTransferred:    {"UsernameTransferred", FamilyFriends, flagSocial},
	ProfileUpdated:         {"ProfileUpdated", FamilyFriends, flagSocial},
	ProfileUpdatedExtended: {"ProfileUpdatedExtended", FamilyFriends, 0},
	NotificationEvent:      {"NotificationEvent", FamilyFriends, flagSocial},
	EarningsWithdrawn:      {"EarningsWithdrawn", FamilyFriends, flagSocial},
	UserVerified:           {"UserVerified", FamilyFriends, flagSocial},
	UserUnverified:         {"UserUnverified", FamilyFriends, flagSocial},
	UserBlocked:            {"UserBlocked", FamilyFriends, flagSocial},
	UserUnblocked:          {"UserUnblocked", FamilyFriends, flagSocial},

	ContentMinted:              {"ContentMinted", FamilyFriends, flagMint},
	ContentCopyMinted:          {"ContentCopyMinted", FamilyFriends, flagPurchase},
	ContentLiked:               {"ContentLiked", FamilyFriends, flagLike},
	ContentUnliked:             {"ContentUnliked", FamilyFriends, flagLike},
	ContentCommented:           {"ContentCommented", FamilyFriends, 0},
	ContentBlocked:             {"ContentBlocked", FamilyFriends, 0},
	ContentBookmarked:          {"ContentBookmarked", FamilyFriends, flagSocial},
	ContentShared:              {"ContentShared", FamilyFriends, flagSocial},
	ContentRequirementsUpdated: {"ContentRequirementsUpdated", FamilyFriends, 0},
	ContentBurned:              {"ContentBurned", FamilyFriends, 0},
	BurnedContentRevenue:       {"BurnedContentRevenue", FamilyCommon, 0},
	UserFollowed:               {"UserFollowed", FamilyFriends, flagSocial},
	UserUnfollowed:             {"UserUnfollowed", FamilyFriends, flagSocial},
	TreasuryUpdated:            {"TreasuryUpdated", FamilyFriends, 0},
	DailyLimitsUpdated:         {"DailyLimitsUpdated", FamilyFriends, 0},
	TokensRecovered:            {"TokensRecovered", FamilyFriends, 0},
	BadgeAwarded:               {"BadgeAwarded", FamilyFriends, flagSocial},
	BadgeRemoved:               {"BadgeRemoved", FamilyFriends, flagSocial},
	TipSent:                    {"TipSent", FamilyFriends, flagSocial},
	PricesUpdated:              {"PricesUpdated", FamilyFriends, flagSocial},

	Transfer:           {"Transfer", FamilyCommon, 0},
	PurchaseProcessed:  {"PurchaseProcessed", FamilyCommon, flagPurchase},
	RoyaltyDistributed: {"RoyaltyDistributed", FamilyCommon, 0},
	CollabProposed:     {"CollabProposed", FamilyCommon, 0},
}

var kindByName = func() map[string]Kind {
	out := make(map[string]Kind, kindCount)
	for k := Kind(0); k < kindCount; k++ {
		info := kinds[k]
		if info.name == "" || info.family == "" {
			panic(fmt.Sprintf("events: kind %d has no metadata", k))
		}
		out[info.name] = k
	}
	return out
}()

// Kinds returns every known kind except Unknown.
func Kinds() []Kind {
	out := make([]Kind, 0, kindCount-1)
	for k := Unknown + 1; k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

// ParseKind resolves a kind from its name.
func ParseKind(name string) (Kind, bool) {
	k, ok := kindByName[name]
	return k, ok
}

func (k Kind) valid() bool { return k < kindCount }

func (k Kind) String() string {
	if !k.valid() {
		return kinds[Unknown].name
	}
	return kinds[k].name
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, ok := ParseKind(string(text))
	if !ok {
		return fmt.Errorf("unknown event kind %q", text)
	}
	*k = parsed
	return nil
}

// Family returns the contract family the kind is emitted by.
func (k Kind) Family() Family {
	if !k.valid() {
		return FamilyCommon
	}
	return kinds[k].family
}

func (k Kind) has(f flag) bool { return k.valid() && kinds[k].flags&f != 0 }

func (k Kind) IsMint() bool     { return k.has(flagMint) }
func (k Kind) IsLike() bool     { return k.has(flagLike) }
func (k Kind) IsPurchase() bool { return k.has(flagPurchase) }

// IsSocial reports whether the kind is a user action routed to the social topic.
func (k Kind) IsSocial() bool { return k.has(flagSocial) }
