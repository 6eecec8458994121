package submission

import (
	"bytes"
	"errors"
	"mime/multipart"
	"strings"
	"testing"
)

func testEnvelope() *Envelope {
	return &Envelope{
		Payload:   []byte(`{"task_id":"t1"}`),
		Signature: "deadbeef",
		Artifact: Artifact{
			Filename:  "repro.tar",
			MediaType: "application/x-tar",
			Bytes:     []byte{0x01, 0x02, 0x03},
		},
	}
}

func TestEnvelope_EncodeDecodeRoundTrip(t *testing.T) {
	env := testEnvelope()
	body, contentType, err := env.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.HasPrefix(contentType, "multipart/form-data; boundary=") {
		t.Fatalf("unexpected content type %q", contentType)
	}

	got, err := Decode(body, contentType)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(got.Payload, env.Payload) {
		t.Fatalf("payload mismatch")
	}
	if got.Signature != env.Signature {
		t.Fatalf("signature mismatch")
	}
	if got.Artifact.Filename != env.Artifact.Filename ||
		got.Artifact.MediaType != env.Artifact.MediaType ||
		!bytes.Equal(got.Artifact.Bytes, env.Artifact.Bytes) {
		t.Fatalf("artifact mismatch: %+v", got.Artifact)
	}
}

func TestEnvelope_MarshalUnmarshalRoundTrip(t *testing.T) {
	env := testEnvelope()
	framed, err := env.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Unmarshal(framed)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !bytes.Equal(got.Payload, env.Payload) || got.Signature != env.Signature {
		t.Fatalf("round trip mismatch")
	}
}

func TestEnvelope_ValidateRejectsMissingParts(t *testing.T) {
	mutate := func(f func(*Envelope)) *Envelope {
		e := testEnvelope()
		f(e)
		return e
	}
	cases := []*Envelope{
		nil,
		mutate(func(e *Envelope) { e.Payload = nil }),
		mutate(func(e *Envelope) { e.Signature = "" }),
		mutate(func(e *Envelope) { e.Artifact.Bytes = nil }),
	}
	for i, e := range cases {
		err := e.Validate()
		if !errors.Is(err, ErrIncomplete) {
			t.Fatalf("case %d: expected ErrIncomplete, got %v", i, err)
		}
	}
	if err := testEnvelope().Validate(); err != nil {
		t.Fatalf("complete envelope rejected: %v", err)
	}
}

// buildBody writes an arbitrary multipart body for decoder edge cases.
func buildBody(t *testing.T, parts map[string]string) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, content := range parts {
		fw, err := w.CreateFormField(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes(), w.FormDataContentType()
}

func TestDecode_RejectsMissingPart(t *testing.T) {
	body, ct := buildBody(t, map[string]string{
		PartPayload:   `{"task_id":"t1"}`,
		PartSignature: "deadbeef",
	})
	_, err := Decode(body, ct)
	if !errors.Is(err, ErrIncomplete) {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
}

func TestDecode_RejectsUnknownPart(t *testing.T) {
	body, ct := buildBody(t, map[string]string{
		PartPayload:   `{"task_id":"t1"}`,
		PartSignature: "deadbeef",
		PartArtifact:  "bytes",
		"extra":       "data",
	})
	if _, err := Decode(body, ct); err == nil {
		t.Fatalf("expected error for unknown part")
	}
}

func TestDecode_RejectsDuplicatePart(t *testing.T) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, name := range []string{PartPayload, PartPayload} {
		fw, err := w.CreateFormField(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte("x")); err != nil {
			t.Fatal(err)
		}
	}
	_ = w.Close()

	if _, err := Decode(buf.Bytes(), w.FormDataContentType()); err == nil {
		t.Fatalf("expected error for duplicate part")
	}
}

func TestDecode_RejectsBadContentType(t *testing.T) {
	if _, err := Decode([]byte("x"), "text/plain"); err == nil {
		t.Fatalf("expected error for non-multipart content type")
	}
	if _, err := Decode([]byte("x"), "multipart/form-data"); err == nil {
		t.Fatalf("expected error for missing boundary")
	}
	if _, err := Decode([]byte("x"), ""); err == nil {
		t.Fatalf("expected error for empty content type")
	}
}

func TestUnmarshal_RejectsMissingFrame(t *testing.T) {
	if _, err := Unmarshal([]byte("no newline anywhere")); err == nil {
		t.Fatalf("expected error for missing content type frame")
	}
}
