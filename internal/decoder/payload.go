package decoder

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"theragraph/internal/events"
	"theragraph/internal/model"
)

// payloadFunc builds the decoded payload from the rendered indexed params and
// the raw data. A nil result means the kind has nothing to report.
type payloadFunc func(indexed []string, data []byte) model.EventData

var payloadDecoders = map[events.Kind]payloadFunc{
	events.ContentMinted:          decodeContentMinted,
	events.ContentCopyMinted:      decodeContentCopyMinted,
	events.ContentLiked:           decodeContentLiked,
	events.ContentUnliked:         decodeContentLiked,
	events.ContentCommented:       decodeContentCommented,
	events.ContentBlocked:         decodeContentBlocked,
	events.ContentBookmarked:      decodeContentBookmarked,
	events.ContentShared:          decodeContentShared,
	events.Transfer:               decodeTransfer,
	events.PurchaseProcessed:      decodePurchase,
	events.Followed:               decodeFollowed,
	events.UserFollowed:           decodeUserFollowed,
	events.UserUnfollowed:         decodeUserFollowed,
	events.ProfileUpdatedExtended: decodeProfileUpdatedExtended,
}

func init() {
	for _, kind := range []events.Kind{events.SnapMinted, events.ArtMinted, events.MusicMinted, events.FlixMinted} {
		payloadDecoders[kind] = decodeLegacyMinted
	}
	for _, kind := range []events.Kind{events.SnapLiked, events.ArtLiked, events.MusicLiked, events.FlixLiked} {
		payloadDecoders[kind] = decodeLegacyLiked
	}
	for _, kind := range []events.Kind{events.SnapBoughtAndMinted, events.ArtBoughtAndMinted, events.MusicBoughtAndMinted, events.FlixBoughtAndMinted} {
		payloadDecoders[kind] = decodeLegacyBoughtAndMinted
	}
}

// Decode renders the indexed topics (topic0 excluded) and decodes the payload
// of a log of the given kind. It never fails: malformed payloads come back as
// model.RawData.
func Decode(kind events.Kind, topics []common.Hash, data []byte) ([]string, model.EventData) {
	indexed := DecodeIndexed(kind, topics)
	return indexed, DecodePayload(kind, indexed, data)
}

// DecodePayload decodes data for kind given already rendered indexed params.
func DecodePayload(kind events.Kind, indexed []string, data []byte) model.EventData {
	if fn, ok := payloadDecoders[kind]; ok {
		return fn(indexed, data)
	}
	return decodeDefault(indexed, data)
}

// HasPayloadDecoder reports whether kind has a dedicated payload shape.
func HasPayloadDecoder(kind events.Kind) bool {
	_, ok := payloadDecoders[kind]
	return ok
}

func param(indexed []string, i int) string {
	if i < len(indexed) {
		return indexed[i]
	}
	return ""
}

// truncated reports a payload that is present but shorter than n words.
func truncated(data []byte, n int) bool {
	return len(data) > 0 && len(data) < n*wordSize
}

func decodeDefault(_ []string, data []byte) model.EventData {
	if len(data) == 0 {
		return nil
	}
	return model.RawData{Hex: rawHex(data)}
}

func decodeContentMinted(indexed []string, data []byte) model.EventData {
	if truncated(data, 2) {
		return model.RawData{Hex: rawHex(data)}
	}
	return model.MintedData{
		TokenID:     param(indexed, 0),
		Creator:     param(indexed, 1),
		ContentType: param(indexed, 2),
		Price:       word(data, 0),
		Timestamp:   word(data, 1),
	}
}

func decodeContentCopyMinted(indexed []string, data []byte) model.EventData {
	if truncated(data, 2) {
		return model.RawData{Hex: rawHex(data)}
	}
	return model.CopyMintedData{
		OriginalID:  param(indexed, 0),
		Buyer:       param(indexed, 1),
		NewTokenID:  param(indexed, 2),
		ContentType: word(data, 0),
		Timestamp:   word(data, 1),
	}
}

// Word 0 is the content type, which the liked shape does not carry.
func decodeContentLiked(indexed []string, data []byte) model.EventData {
	if truncated(data, 2) {
		return model.RawData{Hex: rawHex(data)}
	}
	return model.LikedData{
		TokenID:   param(indexed, 0),
		Liker:     param(indexed, 1),
		Creator:   param(indexed, 2),
		Timestamp: word(data, 1),
	}
}

func decodeContentCommented(indexed []string, data []byte) model.EventData {
	out := model.CommentedData{
		TokenID:   param(indexed, 0),
		Commenter: param(indexed, 1),
	}
	if len(data) == 0 {
		return out
	}

	values, err := unpackPayload("ContentCommented", data)
	if err != nil {
		return model.RawData{Hex: rawHex(data)}
	}
	if out.CommentID, err = asDecimal(values[0]); err != nil {
		return model.RawData{Hex: rawHex(data)}
	}
	if out.Comment, err = asString(values[1]); err != nil {
		return model.RawData{Hex: rawHex(data)}
	}
	if out.ContentType, err = asDecimal(values[2]); err != nil {
		return model.RawData{Hex: rawHex(data)}
	}
	if out.Timestamp, err = asDecimal(values[3]); err != nil {
		return model.RawData{Hex: rawHex(data)}
	}
	return out
}

func decodeContentBlocked(indexed []string, _ []byte) model.EventData {
	return model.DeletedData{
		TokenID: param(indexed, 0),
		Deleter: param(indexed, 1),
	}
}

func decodeContentBookmarked(indexed []string, data []byte) model.EventData {
	if truncated(data, 2) {
		return model.RawData{Hex: rawHex(data)}
	}
	bookmarked := true
	if v, err := DecodeUint256(data, 0); err == nil {
		bookmarked = v.Sign() != 0
	}
	return model.BookmarkedData{
		TokenID:    param(indexed, 0),
		User:       param(indexed, 1),
		Bookmarked: bookmarked,
		Timestamp:  word(data, 1),
	}
}

func decodeContentShared(indexed []string, data []byte) model.EventData {
	if truncated(data, 1) {
		return model.RawData{Hex: rawHex(data)}
	}
	return model.SharedData{
		TokenID:   param(indexed, 0),
		Sharer:    param(indexed, 1),
		Recipient: param(indexed, 2),
		Timestamp: word(data, 0),
	}
}

// Minted(uint256 indexed tokenId, string uri, address creator): only the
// creator word is read; uri, price and timestamp stay empty.
func decodeLegacyMinted(indexed []string, data []byte) model.EventData {
	if len(data) < 2*wordSize {
		return model.RawData{Hex: rawHex(data)}
	}
	return model.MintedData{
		TokenID: param(indexed, 0),
		Creator: wordAddress(data, 0),
	}
}

// Liked(uint256 indexed tokenId, address liker, uint256 totalLikes) with an
// optional trailing timestamp.
func decodeLegacyLiked(indexed []string, data []byte) model.EventData {
	if len(data) == 0 {
		return nil
	}
	if len(data) < 2*wordSize {
		return model.RawData{Hex: rawHex(data)}
	}
	return model.LikedData{
		TokenID:    param(indexed, 0),
		Liker:      wordAddress(data, 0),
		TotalLikes: word(data, 1),
		Timestamp:  word(data, 2),
	}
}

// BoughtAndMinted(uint256 indexed tokenId, address buyer, address seller,
// uint256 price, uint256 newTokenId).
func decodeLegacyBoughtAndMinted(indexed []string, data []byte) model.EventData {
	if truncated(data, 4) {
		return model.RawData{Hex: rawHex(data)}
	}
	return model.BoughtAndMintedData{
		TokenID:    param(indexed, 0),
		Buyer:      wordAddress(data, 0),
		Seller:     wordAddress(data, 1),
		Price:      word(data, 2),
		NewTokenID: word(data, 3),
	}
}

func decodeTransfer(indexed []string, _ []byte) model.EventData {
	return model.TransferData{
		From:    param(indexed, 0),
		To:      param(indexed, 1),
		TokenID: param(indexed, 2),
	}
}

func decodePurchase(indexed []string, data []byte) model.EventData {
	if truncated(data, 1) {
		return model.RawData{Hex: rawHex(data)}
	}
	return model.PurchaseData{
		TokenID: param(indexed, 0),
		Buyer:   param(indexed, 1),
		Amount:  word(data, 0),
	}
}

func decodeFollowed(indexed []string, data []byte) model.EventData {
	out := model.FollowedData{
		Follower: param(indexed, 0),
		Followed: param(indexed, 1),
	}
	if len(data) == 0 {
		return out
	}

	values, err := unpackPayload("Followed", data)
	if err != nil {
		return model.RawData{Hex: rawHex(data)}
	}
	if err := decodeStrings(values, &out.FollowerUsername, &out.FollowedUsername); err != nil {
		return model.RawData{Hex: rawHex(data)}
	}
	if out.Timestamp, err = asDecimal(values[2]); err != nil {
		return model.RawData{Hex: rawHex(data)}
	}
	return out
}

func decodeUserFollowed(indexed []string, data []byte) model.EventData {
	if truncated(data, 1) {
		return model.RawData{Hex: rawHex(data)}
	}
	return model.FollowedData{
		Follower:  param(indexed, 0),
		Followed:  param(indexed, 1),
		Timestamp: word(data, 0),
	}
}

func decodeProfileUpdatedExtended(_ []string, data []byte) model.EventData {
	if len(data) == 0 {
		return nil
	}

	values, err := unpackPayload("ProfileUpdatedExtended", data)
	if err != nil {
		return model.RawData{Hex: rawHex(data)}
	}
	var out model.ProfileUpdatedExtendedData
	if err := decodeStrings(values, &out.Username, &out.ProfileHash, &out.Bio, &out.Website); err != nil {
		return model.RawData{Hex: rawHex(data)}
	}
	if out.Timestamp, err = asDecimal(values[4]); err != nil {
		return model.RawData{Hex: rawHex(data)}
	}
	return out
}

// ContentTypeOf extracts the numeric content type of a ContentMinted log from
// its rendered indexed params.
func ContentTypeOf(indexed []string) (uint64, bool) {
	v, ok := new(big.Int).SetString(param(indexed, 2), 10)
	if !ok || !v.IsUint64() {
		return 0, false
	}
	return v.Uint64(), true
}
