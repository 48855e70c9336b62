package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestVocabulary_HandshakeReplyRoundTrip(t *testing.T) {
	vocab := DefaultVocabulary()

	var buf bytes.Buffer
	if err := WriteVocabulary(&buf, vocab); err != nil {
		t.Fatalf("WriteVocabulary error: %v", err)
	}

	got, err := ReadVocabulary(&buf)
	if err != nil {
		t.Fatalf("ReadVocabulary error: %v", err)
	}

	for _, k := range Kinds() {
		if got.Token(k) != vocab.Token(k) {
			t.Errorf("kind %s: got token %q, want %q", k, got.Token(k), vocab.Token(k))
		}
	}

	// Every literal must resolve back to its kind.
	for _, k := range Kinds() {
		resolved, ok := got.Kind(vocab.Token(k))
		if !ok || resolved != k {
			t.Errorf("token %q resolved to (%v, %v), want (%v, true)", vocab.Token(k), resolved, ok, k)
		}
	}
}

func TestVocabulary_UnknownTokenNotResolved(t *testing.T) {
	vocab := DefaultVocabulary()
	if _, ok := vocab.Kind("frobnicate"); ok {
		t.Fatal("expected frobnicate to be outside the vocabulary")
	}
}

func TestReadAnswer_PassesThroughValuesOutsideEnumeration(t *testing.T) {
	// Peers may send anything here; only NO has a distinct meaning, so the
	// wire layer hands the raw value through instead of rejecting it.
	var buf bytes.Buffer
	if err := WriteCount(&buf, 7); err != nil {
		t.Fatalf("WriteCount error: %v", err)
	}

	got, err := ReadAnswer(&buf)
	if err != nil {
		t.Fatalf("ReadAnswer error: %v", err)
	}
	if got != BinaryAnswer(7) {
		t.Fatalf("got answer %d, want 7", got)
	}
	if got == AnswerNo {
		t.Fatal("off-enumeration value must not compare equal to NO")
	}
}

func TestReadAnswer_FixedEncodings(t *testing.T) {
	// YES=1 and NO=2 are protocol constants; a change here breaks deployed peers.
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, AnswerYes); err != nil {
		t.Fatalf("WriteAnswer error: %v", err)
	}
	if err := WriteAnswer(&buf, AnswerNo); err != nil {
		t.Fatalf("WriteAnswer error: %v", err)
	}
	want := []byte{0, 0, 0, 1, 0, 0, 0, 2}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("answer encoding = %v, want %v", buf.Bytes(), want)
	}
}

func TestStringList_PreservesOrder(t *testing.T) {
	dirs := []string{"mods", "config", "resourcepacks"}

	var buf bytes.Buffer
	if err := WriteStringList(&buf, dirs); err != nil {
		t.Fatalf("WriteStringList error: %v", err)
	}
	got, err := ReadStringList(&buf)
	if err != nil {
		t.Fatalf("ReadStringList error: %v", err)
	}

	if len(got) != len(dirs) {
		t.Fatalf("got %d entries, want %d", len(got), len(dirs))
	}
	for i := range dirs {
		if got[i] != dirs[i] {
			t.Errorf("entry %d = %q, want %q", i, got[i], dirs[i])
		}
	}
}

func TestUnknownMessage_CarriesOffendingToken(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteUnknownMessage(&buf, UnknownMessage{Token: "frobnicate"}); err != nil {
		t.Fatalf("WriteUnknownMessage error: %v", err)
	}

	got, err := ReadUnknownMessage(&buf)
	if err != nil {
		t.Fatalf("ReadUnknownMessage error: %v", err)
	}
	if got.Token != "frobnicate" {
		t.Fatalf("got token %q, want %q", got.Token, "frobnicate")
	}
}

func TestReadVocabulary_RejectsUnsupportedVersion(t *testing.T) {
	buf := bytes.NewBuffer([]byte{99, 0, 0, 0, 0})
	if _, err := ReadVocabulary(buf); !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("got error %v, want ErrUnsupportedVersion", err)
	}
}
