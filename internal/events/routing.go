package events

const (
	TopicUserActions      = "user.actions"
	TopicBlockchainEvents = "blockchain.events"
)

// Topic returns the default outbound topic for the kind.
func (k Kind) Topic() string {
	if k.IsSocial() {
		return TopicUserActions
	}
	return TopicBlockchainEvents
}

// ContentTypeFamily maps the numeric content type carried by ContentMinted to
// its family. The second result is false for values outside the enum.
func ContentTypeFamily(contentType uint64) (Family, bool) {
	switch contentType {
	case 0:
		return FamilyArt, true
	case 1:
		return FamilyFlix, true
	case 2:
		return FamilyMusic, true
	case 3:
		return FamilySnap, true
	default:
		return "", false
	}
}
