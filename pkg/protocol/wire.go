package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// The original implementation shipped these structures through an opaque
// object-stream serializer. This encoding replaces it with an explicit,
// versioned layout: strings are uint16 length-prefixed UTF-8, integers are
// BigEndian, and composite records carry a leading version byte.

const (
	// WireVersion is the version byte leading every composite record.
	WireVersion = byte(1)

	// ErrorCodeUnknownMessage is the code carried by the unknown-message
	// error record.
	ErrorCodeUnknownMessage = "unknown_message"

	maxStringLength = 8 * 1024
	maxListEntries  = 64 * 1024
)

var (
	// ErrStringTooLong indicates a string exceeds the wire limit.
	ErrStringTooLong = errors.New("string too long")
	// ErrListTooLong indicates a list exceeds the wire entry limit.
	ErrListTooLong = errors.New("list too long")
	// ErrUnsupportedVersion indicates a record with an unknown version byte.
	ErrUnsupportedVersion = errors.New("unsupported wire version")
)

// WriteString writes a uint16 length-prefixed UTF-8 string.
func WriteString(w io.Writer, s string) error {
	b := []byte(s)
	if len(b) > maxStringLength {
		return ErrStringTooLong
	}
	if err := writeUint16(w, uint16(len(b)), "string length"); err != nil {
		return err
	}
	return writeFull(w, b, "string bytes")
}

// ReadString reads a uint16 length-prefixed UTF-8 string.
func ReadString(r io.Reader) (string, error) {
	n, err := readUint16(r, "string length")
	if err != nil {
		return "", err
	}
	if int(n) > maxStringLength {
		return "", ErrStringTooLong
	}
	if n == 0 {
		return "", nil
	}
	buf := make([]byte, n)
	if err := readFull(r, buf, "string bytes"); err != nil {
		return "", err
	}
	return string(buf), nil
}

// WriteBool writes a single-byte boolean flag.
func WriteBool(w io.Writer, v bool) error {
	b := byte(0)
	if v {
		b = 1
	}
	return writeFull(w, []byte{b}, "bool")
}

// ReadBool reads a single-byte boolean flag. Any nonzero byte is true.
func ReadBool(r io.Reader) (bool, error) {
	var buf [1]byte
	if err := readFull(r, buf[:], "bool"); err != nil {
		return false, err
	}
	return buf[0] != 0, nil
}

// WriteCount writes a 4-byte BigEndian integer count.
func WriteCount(w io.Writer, n int32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(n))
	return writeFull(w, buf[:], "count")
}

// ReadCount reads a 4-byte BigEndian integer count.
func ReadCount(r io.Reader) (int32, error) {
	var buf [4]byte
	if err := readFull(r, buf[:], "count"); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(buf[:])), nil
}

// WriteLength writes an 8-byte BigEndian file length.
func WriteLength(w io.Writer, n int64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	return writeFull(w, buf[:], "length")
}

// ReadLength reads an 8-byte BigEndian file length.
func ReadLength(r io.Reader) (int64, error) {
	var buf [8]byte
	if err := readFull(r, buf[:], "length"); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(buf[:])), nil
}

// WriteAnswer writes a binary answer as a 4-byte BigEndian integer.
func WriteAnswer(w io.Writer, a BinaryAnswer) error {
	return WriteCount(w, int32(a))
}

// ReadAnswer reads a binary answer as a 4-byte BigEndian integer. The value
// is returned unvalidated: deployed peers only ever check for NO, so any
// other value means YES to the consumer.
func ReadAnswer(r io.Reader) (BinaryAnswer, error) {
	n, err := ReadCount(r)
	if err != nil {
		return 0, err
	}
	return BinaryAnswer(n), nil
}

// WriteVocabulary writes the full kind→literal table as the handshake reply:
// version byte, uint32 pair count, then (kind name, literal) string pairs in
// enumeration order.
func WriteVocabulary(w io.Writer, v Vocabulary) error {
	if err := writeFull(w, []byte{WireVersion}, "vocabulary version"); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(numKinds), "vocabulary count"); err != nil {
		return err
	}
	for _, k := range Kinds() {
		if err := WriteString(w, k.String()); err != nil {
			return fmt.Errorf("write vocabulary kind: %w", err)
		}
		if err := WriteString(w, v.Token(k)); err != nil {
			return fmt.Errorf("write vocabulary token: %w", err)
		}
	}
	return nil
}

// ReadVocabulary reads a vocabulary table written by WriteVocabulary.
// Pairs with unknown kind names are ignored so newer servers stay readable.
func ReadVocabulary(r io.Reader) (Vocabulary, error) {
	var zero Vocabulary
	ver, err := readVersion(r, "vocabulary")
	if err != nil {
		return zero, err
	}
	if ver != WireVersion {
		return zero, fmt.Errorf("%w: %d", ErrUnsupportedVersion, ver)
	}
	count, err := readUint32(r, "vocabulary count")
	if err != nil {
		return zero, err
	}
	if count > maxListEntries {
		return zero, ErrListTooLong
	}
	names := make(map[string]MessageKind, numKinds)
	for _, k := range Kinds() {
		names[k.String()] = k
	}
	var tokens [numKinds]string
	for i := uint32(0); i < count; i++ {
		name, err := ReadString(r)
		if err != nil {
			return zero, fmt.Errorf("read vocabulary kind: %w", err)
		}
		token, err := ReadString(r)
		if err != nil {
			return zero, fmt.Errorf("read vocabulary token: %w", err)
		}
		if k, ok := names[name]; ok {
			tokens[k] = token
		}
	}
	return newVocabulary(tokens), nil
}

// WriteStringList writes an ordered string sequence: version byte, uint32
// count, then each string.
func WriteStringList(w io.Writer, list []string) error {
	if len(list) > maxListEntries {
		return ErrListTooLong
	}
	if err := writeFull(w, []byte{WireVersion}, "list version"); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(len(list)), "list count"); err != nil {
		return err
	}
	for _, s := range list {
		if err := WriteString(w, s); err != nil {
			return fmt.Errorf("write list entry: %w", err)
		}
	}
	return nil
}

// ReadStringList reads a string sequence written by WriteStringList.
func ReadStringList(r io.Reader) ([]string, error) {
	ver, err := readVersion(r, "list")
	if err != nil {
		return nil, err
	}
	if ver != WireVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, ver)
	}
	count, err := readUint32(r, "list count")
	if err != nil {
		return nil, err
	}
	if count > maxListEntries {
		return nil, ErrListTooLong
	}
	list := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		s, err := ReadString(r)
		if err != nil {
			return nil, fmt.Errorf("read list entry: %w", err)
		}
		list = append(list, s)
	}
	return list, nil
}

// WriteUnknownMessage writes the unknown-message error record: version byte,
// error code, then the offending token.
func WriteUnknownMessage(w io.Writer, e UnknownMessage) error {
	if err := writeFull(w, []byte{WireVersion}, "error version"); err != nil {
		return err
	}
	if err := WriteString(w, ErrorCodeUnknownMessage); err != nil {
		return fmt.Errorf("write error code: %w", err)
	}
	if err := WriteString(w, e.Token); err != nil {
		return fmt.Errorf("write error token: %w", err)
	}
	return nil
}

// ReadUnknownMessage reads an error record written by WriteUnknownMessage.
func ReadUnknownMessage(r io.Reader) (UnknownMessage, error) {
	var zero UnknownMessage
	ver, err := readVersion(r, "error")
	if err != nil {
		return zero, err
	}
	if ver != WireVersion {
		return zero, fmt.Errorf("%w: %d", ErrUnsupportedVersion, ver)
	}
	code, err := ReadString(r)
	if err != nil {
		return zero, fmt.Errorf("read error code: %w", err)
	}
	if code != ErrorCodeUnknownMessage {
		return zero, fmt.Errorf("unexpected error code %q", code)
	}
	token, err := ReadString(r)
	if err != nil {
		return zero, fmt.Errorf("read error token: %w", err)
	}
	return UnknownMessage{Token: token}, nil
}

func readVersion(r io.Reader, op string) (byte, error) {
	var buf [1]byte
	if err := readFull(r, buf[:], op+" version"); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func readFull(r io.Reader, buf []byte, op string) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		return fmt.Errorf("wire read %s: %w", op, err)
	}
	return nil
}

func writeFull(w io.Writer, buf []byte, op string) error {
	written := 0
	for written < len(buf) {
		n, err := w.Write(buf[written:])
		if err != nil {
			return fmt.Errorf("wire write %s: %w", op, err)
		}
		written += n
	}
	return nil
}

func readUint16(r io.Reader, op string) (uint16, error) {
	var buf [2]byte
	if err := readFull(r, buf[:], op); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

func writeUint16(w io.Writer, v uint16, op string) error {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	return writeFull(w, buf[:], op)
}

func readUint32(r io.Reader, op string) (uint32, error) {
	var buf [4]byte
	if err := readFull(r, buf[:], op); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func writeUint32(w io.Writer, v uint32, op string) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return writeFull(w, buf[:], op)
}
