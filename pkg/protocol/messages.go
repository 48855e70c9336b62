package protocol

// MessageKind identifies one of the fixed protocol messages.
// The set is closed: clients learn the wire literal for each kind
// from the handshake reply and must not send anything else.
type MessageKind uint8

const (
	KindHandshake MessageKind = iota
	KindSyncFiles
	KindGetManagedDirectories
	KindGetNumberOfManagedFiles
	KindExit

	numKinds
)

var kindNames = [numKinds]string{
	KindHandshake:               "HANDSHAKE",
	KindSyncFiles:               "SYNC_FILES",
	KindGetManagedDirectories:   "GET_MANAGED_DIRECTORIES",
	KindGetNumberOfManagedFiles: "GET_NUMBER_OF_MANAGED_FILES",
	KindExit:                    "EXIT",
}

// String returns the stable name of the message kind. The names are part
// of the wire contract: they key the vocabulary table sent on handshake.
func (k MessageKind) String() string {
	if k >= numKinds {
		return "UNKNOWN"
	}
	return kindNames[k]
}

// Kinds returns all message kinds in enumeration order.
func Kinds() []MessageKind {
	kinds := make([]MessageKind, numKinds)
	for i := range kinds {
		kinds[i] = MessageKind(i)
	}
	return kinds
}

// Vocabulary is the immutable mapping from message kind to wire literal.
// One instance is shared read-only by every session; the whole table is
// serialized as the handshake reply so the peer learns the literals to use
// for the rest of the session.
type Vocabulary struct {
	tokens  [numKinds]string
	byToken map[string]MessageKind
}

// DefaultVocabulary returns the vocabulary with the canonical literals,
// where each kind's literal equals its name.
func DefaultVocabulary() Vocabulary {
	var tokens [numKinds]string
	copy(tokens[:], kindNames[:])
	return newVocabulary(tokens)
}

func newVocabulary(tokens [numKinds]string) Vocabulary {
	byToken := make(map[string]MessageKind, numKinds)
	for i, tok := range tokens {
		byToken[tok] = MessageKind(i)
	}
	return Vocabulary{tokens: tokens, byToken: byToken}
}

// Token returns the wire literal for the given kind.
func (v Vocabulary) Token(k MessageKind) string {
	if k >= numKinds {
		return ""
	}
	return v.tokens[k]
}

// Kind resolves a received wire literal back to its message kind.
// The second return value is false for literals outside the vocabulary.
func (v Vocabulary) Kind(token string) (MessageKind, bool) {
	k, ok := v.byToken[token]
	return k, ok
}

// BinaryAnswer is the two-valued client response to a per-file query.
// The encodings are fixed protocol constants and must match the peer
// bit-for-bit.
type BinaryAnswer int32

const (
	// AnswerYes means the client already has the file.
	AnswerYes BinaryAnswer = 1
	// AnswerNo means the client needs the file.
	AnswerNo BinaryAnswer = 2
)

// UnknownMessage is the structured error sent back when a client uses a
// literal outside the vocabulary. The server disconnects after sending it.
type UnknownMessage struct {
	Token string
}

func (e UnknownMessage) Error() string {
	return "unknown message: " + e.Token
}
