package model

import "theragraph/internal/events"

// ParsedEvent is the canonical decoded form of one contract log.
type ParsedEvent struct {
	EventType       string    `json:"event_type"`
	ContractAddress string    `json:"contract_address"`
	ContractType    string    `json:"contract_type"`
	BlockNumber     uint64    `json:"block_number"`
	TransactionHash string    `json:"transaction_hash"`
	LogIndex        uint64    `json:"log_index"`
	Timestamp       int64     `json:"timestamp"`
	IndexedParams   []string  `json:"indexed_params,omitempty"`
	Data            EventData `json:"data,omitempty"`
	RawData         string    `json:"raw_data,omitempty"`

	Kind events.Kind `json:"-"`
	// SourceType is the configured type of the emitting contract. Unlike
	// ContractType it does not vary with the kind.
	SourceType string `json:"-"`
}

// EventData is one of the decoded payload shapes below.
type EventData interface {
	eventData()
}

// MintedData is a content mint, current or legacy per-family.
type MintedData struct {
	TokenID     string `json:"token_id"`
	URI         string `json:"uri"`
	Creator     string `json:"creator"`
	ContentType string `json:"content_type"`
	Price       string `json:"price"`
	Timestamp   string `json:"timestamp"`
}

// CopyMintedData is a copy of existing content minted to a buyer.
type CopyMintedData struct {
	OriginalID  string `json:"original_id"`
	Buyer       string `json:"buyer"`
	NewTokenID  string `json:"new_token_id"`
	ContentType string `json:"content_type"`
	Timestamp   string `json:"timestamp"`
}

// LikedData is a like or unlike. TotalLikes is only set by legacy contracts.
type LikedData struct {
	TokenID    string `json:"token_id"`
	Liker      string `json:"liker"`
	Creator    string `json:"creator"`
	TotalLikes string `json:"total_likes"`
	Timestamp  string `json:"timestamp"`
}

// CommentedData is a comment left on a token.
type CommentedData struct {
	TokenID     string `json:"token_id"`
	CommentID   string `json:"comment_id"`
	Commenter   string `json:"commenter"`
	Comment     string `json:"comment"`
	ContentType string `json:"content_type"`
	Timestamp   string `json:"timestamp"`
}

// BookmarkedData toggles a bookmark.
type BookmarkedData struct {
	TokenID    string `json:"token_id"`
	User       string `json:"user"`
	Bookmarked bool   `json:"bookmarked"`
	Timestamp  string `json:"timestamp"`
}

// SharedData is a token shared from one user to another.
type SharedData struct {
	TokenID   string `json:"token_id"`
	Sharer    string `json:"sharer"`
	Recipient string `json:"recipient"`
	Timestamp string `json:"timestamp"`
}

// BoughtAndMintedData is a legacy purchase that minted a new token to the buyer.
type BoughtAndMintedData struct {
	TokenID    string `json:"token_id"`
	Buyer      string `json:"buyer"`
	Seller     string `json:"seller"`
	Price      string `json:"price"`
	NewTokenID string `json:"new_token_id"`
}

// DeletedData is blocked or deleted content.
type DeletedData struct {
	TokenID string `json:"token_id"`
	Deleter string `json:"deleter"`
}

// FollowedData is a follow or unfollow between two users.
type FollowedData struct {
	Follower         string `json:"follower"`
	Followed         string `json:"followed"`
	FollowerUsername string `json:"follower_username"`
	FollowedUsername string `json:"followed_username"`
	Timestamp        string `json:"timestamp"`
}

// ProfileUpdatedExtendedData is a profile update with its text fields.
type ProfileUpdatedExtendedData struct {
	Username    string `json:"username"`
	ProfileHash string `json:"profile_hash"`
	Bio         string `json:"bio"`
	Website     string `json:"website"`
	Timestamp   string `json:"timestamp"`
}

// TransferData is an ERC-721 transfer.
type TransferData struct {
	From    string `json:"from"`
	To      string `json:"to"`
	TokenID string `json:"token_id"`
}

// PurchaseData is a processed content purchase.
type PurchaseData struct {
	TokenID string `json:"token_id"`
	Buyer   string `json:"buyer"`
	Amount  string `json:"amount"`
}

// RawData carries an undecodable payload as 0x-prefixed hex.
type RawData struct {
	Hex string `json:"hex"`
}

func (MintedData) eventData()                 {}
func (CopyMintedData) eventData()             {}
func (LikedData) eventData()                  {}
func (CommentedData) eventData()              {}
func (BookmarkedData) eventData()             {}
func (SharedData) eventData()                 {}
func (BoughtAndMintedData) eventData()        {}
func (DeletedData) eventData()                {}
func (FollowedData) eventData()               {}
func (ProfileUpdatedExtendedData) eventData() {}
func (TransferData) eventData()               {}
func (PurchaseData) eventData()               {}
func (RawData) eventData()                    {}
