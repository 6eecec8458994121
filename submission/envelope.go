// Package submission assembles and parses the wire unit of the protocol:
// the claim payload, its detached signature, and the artifact bytes,
// transmitted atomically as one multipart body.
package submission

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"strings"
)

// Wire part names. These are part of the protocol contract.
const (
	PartPayload   = "payload"
	PartSignature = "signature"
	PartArtifact  = "artifact"
)

// ErrIncomplete reports a submission missing one of its three parts. The
// receiver must reject such a submission rather than partially process it.
var ErrIncomplete = errors.New("submission: incomplete submission")

// Artifact is the raw binary part of a submission, with its filename hint
// and declared media type.
type Artifact struct {
	Filename  string
	MediaType string
	Bytes     []byte
}

// Envelope is one complete submission: claim payload JSON, hex signature,
// and artifact. The three parts travel together; there is no partial
// submission.
type Envelope struct {
	Payload   []byte
	Signature string
	Artifact  Artifact
}

// Validate checks that all three parts are present.
func (e *Envelope) Validate() error {
	if e == nil {
		return ErrIncomplete
	}
	if len(e.Payload) == 0 {
		return fmt.Errorf("%w: missing %s", ErrIncomplete, PartPayload)
	}
	if e.Signature == "" {
		return fmt.Errorf("%w: missing %s", ErrIncomplete, PartSignature)
	}
	if len(e.Artifact.Bytes) == 0 {
		return fmt.Errorf("%w: missing %s", ErrIncomplete, PartArtifact)
	}
	return nil
}

// Encode renders the envelope as a multipart body and returns the body plus
// its content type (including the boundary).
//
// The multipart framing is not canonical and never needs to be: the
// verifier re-derives canonical claim bytes from the parsed payload fields,
// not from the bytes as sent.
func (e *Envelope) Encode() (body []byte, contentType string, err error) {
	if err := e.Validate(); err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	pw, err := w.CreateFormField(PartPayload)
	if err != nil {
		return nil, "", err
	}
	if _, err := pw.Write(e.Payload); err != nil {
		return nil, "", err
	}

	sw, err := w.CreateFormField(PartSignature)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.WriteString(sw, e.Signature); err != nil {
		return nil, "", err
	}

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, PartArtifact, e.Artifact.Filename))
	mediaType := e.Artifact.MediaType
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	hdr.Set("Content-Type", mediaType)
	aw, err := w.CreatePart(hdr)
	if err != nil {
		return nil, "", err
	}
	if _, err := aw.Write(e.Artifact.Bytes); err != nil {
		return nil, "", err
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// Decode parses a multipart body back into an Envelope.
//
// Decoding is strict: each of the three parts must appear exactly once, and
// unknown parts are rejected. A missing part yields ErrIncomplete.
func Decode(body []byte, contentType string) (*Envelope, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("submission: invalid content type: %w", err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return nil, fmt.Errorf("submission: unexpected media type %q", mediaType)
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, errors.New("submission: missing multipart boundary")
	}

	var env Envelope
	seen := map[string]bool{}
	mr := multipart.NewReader(bytes.NewReader(body), boundary)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("submission: malformed multipart body: %w", err)
		}
		name := part.FormName()
		if seen[name] {
			return nil, fmt.Errorf("submission: duplicate part %q", name)
		}
		content, err := io.ReadAll(part)
		if err != nil {
			return nil, fmt.Errorf("submission: read part %q: %w", name, err)
		}
		seen[name] = true

		switch name {
		case PartPayload:
			env.Payload = content
		case PartSignature:
			env.Signature = strings.TrimSpace(string(content))
		case PartArtifact:
			env.Artifact = Artifact{
				Filename:  part.FileName(),
				MediaType: part.Header.Get("Content-Type"),
				Bytes:     content,
			}
		default:
			return nil, fmt.Errorf("submission: unknown part %q", name)
		}
	}

	if err := env.Validate(); err != nil {
		return nil, err
	}
	return &env, nil
}

// Marshal frames the envelope for a bytes-only transport: the content type
// line followed by the multipart body.
func (e *Envelope) Marshal() ([]byte, error) {
	body, contentType, err := e.Encode()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(contentType)+1+len(body))
	out = append(out, contentType...)
	out = append(out, '\n')
	return append(out, body...), nil
}

// Unmarshal is the inverse of Marshal.
func Unmarshal(data []byte) (*Envelope, error) {
	idx := bytes.IndexByte(data, '\n')
	if idx < 0 {
		return nil, errors.New("submission: missing content type frame")
	}
	return Decode(data[idx+1:], string(data[:idx]))
}
