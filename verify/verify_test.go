package verify

import (
	"strings"
	"testing"
	"time"

	"claimwire.io/claimwire/artifact"
	"claimwire.io/claimwire/cidutil"
	"claimwire.io/claimwire/claim"
	"claimwire.io/claimwire/keys"
	"claimwire.io/claimwire/storage/memory"
	"claimwire.io/claimwire/submission"
)

var verifyNow = time.Unix(1700000000, 0)

type fixedRand struct{ b byte }

func (r fixedRand) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.b
	}
	return len(p), nil
}

type fixture struct {
	verifier *Verifier
	builder  *submission.Builder
	identity keys.Identity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}
	id, err := keys.NewEd25519Identity(seed)
	if err != nil {
		t.Fatal(err)
	}
	dir, err := keys.NewDirectory(map[int64]string{1: id.PublicKeyString()})
	if err != nil {
		t.Fatal(err)
	}
	v, err := NewVerifier(dir, NewMemoryNonceStore(10*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	v.Now = func() time.Time { return verifyNow }

	b, err := submission.NewBuilder(id)
	if err != nil {
		t.Fatal(err)
	}
	b.Rand = fixedRand{b: 0x42}
	b.Now = func() time.Time { return verifyNow }
	return &fixture{verifier: v, builder: b, identity: id}
}

func (f *fixture) submit(t *testing.T) *submission.Envelope {
	t.Helper()
	env, _, err := f.builder.Build(submission.Request{
		TaskID:      "t1",
		MinerID:     1,
		Performance: 0.92,
		Hyperparameters: claim.Map(
			claim.Entry{Key: "lr", Value: claim.Float(0.001)},
		),
		Files: []artifact.File{
			{Name: "train.py", Content: []byte("hello")},
		},
	})
	if err != nil {
		t.Fatalf("build submission: %v", err)
	}
	return env
}

func wantReason(t *testing.T, err error, want Reason) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected rejection %s, got acceptance", want)
	}
	got, ok := ReasonOf(err)
	if !ok {
		t.Fatalf("expected rejection %s, got non-rejection error %v", want, err)
	}
	if got != want {
		t.Fatalf("reason %s, want %s (err: %v)", got, want, err)
	}
}

func TestVerify_AcceptsValidSubmission(t *testing.T) {
	f := newFixture(t)
	env := f.submit(t)
	r, err := f.verifier.Verify(env)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if r.MinerID != 1 || r.TaskID != "t1" {
		t.Fatalf("unexpected receipt %+v", r)
	}
	if !r.AcceptedAt.Equal(verifyNow) {
		t.Fatalf("AcceptedAt %v, want %v", r.AcceptedAt, verifyNow)
	}
	// Receipts are content addresses over what was accepted.
	c, _ := claim.ParsePayload(env.Payload)
	canonical, _ := c.CanonicalBytes()
	if r.ClaimCID != cidutil.CIDv1RawSHA256(canonical) {
		t.Fatalf("claim CID does not address canonical bytes")
	}
	if r.ArtifactCID != cidutil.CIDv1RawSHA256(env.Artifact.Bytes) {
		t.Fatalf("artifact CID does not address artifact bytes")
	}
}

func TestVerify_PersistsAcceptedSubmission(t *testing.T) {
	f := newFixture(t)
	ledger := memory.New()
	f.verifier.Ledger = ledger

	env := f.submit(t)
	if _, err := f.verifier.Verify(env); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	c, _ := claim.ParsePayload(env.Payload)
	canonical, _ := c.CanonicalBytes()
	for _, content := range [][]byte{canonical, env.Artifact.Bytes} {
		id, err := cidutil.CIDv1RawSHA256CID(content)
		if err != nil {
			t.Fatal(err)
		}
		if !ledger.Has(id) {
			t.Fatalf("accepted content %s not in ledger", id)
		}
	}
}

func TestVerify_RejectsIncomplete(t *testing.T) {
	f := newFixture(t)
	env := f.submit(t)
	env.Signature = ""
	_, err := f.verifier.Verify(env)
	wantReason(t, err, ReasonIncomplete)
}

func TestVerify_RejectsMalformedPayload(t *testing.T) {
	f := newFixture(t)
	env := f.submit(t)
	env.Payload = []byte("not json")
	_, err := f.verifier.Verify(env)
	wantReason(t, err, ReasonMalformedPayload)
}

func TestVerify_RejectsArtifactMismatch(t *testing.T) {
	f := newFixture(t)
	env := f.submit(t)
	env.Artifact.Bytes = append(env.Artifact.Bytes, 0x00)
	_, err := f.verifier.Verify(env)
	wantReason(t, err, ReasonBadHash)
}

func TestVerify_RejectsUnknownMiner(t *testing.T) {
	f := newFixture(t)
	env, _, err := f.builder.Build(submission.Request{
		TaskID:          "t1",
		MinerID:         99,
		Performance:     0.5,
		Hyperparameters: claim.Map(),
	})
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.verifier.Verify(env)
	wantReason(t, err, ReasonUnknownMiner)
}

func TestVerify_RejectsTamperedPayload(t *testing.T) {
	f := newFixture(t)
	env := f.submit(t)
	// Inflate the claimed score without re-signing.
	env.Payload = []byte(strings.Replace(string(env.Payload), "0.92", "0.99", 1))
	_, err := f.verifier.Verify(env)
	wantReason(t, err, ReasonBadSignature)
}

func TestVerify_RejectsWrongKeySignature(t *testing.T) {
	f := newFixture(t)
	env := f.submit(t)

	otherSeed := make([]byte, 32)
	for i := range otherSeed {
		otherSeed[i] = 0xAA
	}
	other, _ := keys.NewEd25519Identity(otherSeed)
	c, _ := claim.ParsePayload(env.Payload)
	canonical, _ := c.CanonicalBytes()
	env.Signature, _ = other.Sign(canonical)

	_, err := f.verifier.Verify(env)
	wantReason(t, err, ReasonBadSignature)
}

func TestVerify_RejectsStaleTimestamp(t *testing.T) {
	f := newFixture(t)
	f.builder.Now = func() time.Time { return verifyNow.Add(-6 * time.Minute) }
	_, err := f.verifier.Verify(f.submit(t))
	wantReason(t, err, ReasonStaleTimestamp)
}

func TestVerify_RejectsFutureTimestamp(t *testing.T) {
	f := newFixture(t)
	f.builder.Now = func() time.Time { return verifyNow.Add(2 * time.Minute) }
	_, err := f.verifier.Verify(f.submit(t))
	wantReason(t, err, ReasonStaleTimestamp)
}

func TestVerify_AcceptsWithinWindowBoundaries(t *testing.T) {
	f := newFixture(t)
	f.builder.Now = func() time.Time { return verifyNow.Add(-4 * time.Minute) }
	if _, err := f.verifier.Verify(f.submit(t)); err != nil {
		t.Fatalf("old-but-fresh submission rejected: %v", err)
	}
	f.builder.Now = func() time.Time { return verifyNow.Add(30 * time.Second) }
	f.builder.Rand = fixedRand{b: 0x43}
	if _, err := f.verifier.Verify(f.submit(t)); err != nil {
		t.Fatalf("slightly-ahead submission rejected: %v", err)
	}
}

func TestVerify_RejectsReplay(t *testing.T) {
	f := newFixture(t)
	env := f.submit(t)
	if _, err := f.verifier.Verify(env); err != nil {
		t.Fatalf("first submission rejected: %v", err)
	}
	_, err := f.verifier.Verify(env)
	wantReason(t, err, ReasonReplay)
}

func TestVerify_RejectedSubmissionDoesNotBurnNonce(t *testing.T) {
	f := newFixture(t)
	env := f.submit(t)

	// A forged copy fails the signature check and must not consume the
	// nonce the honest submission carries.
	forged := *env
	forged.Payload = []byte(strings.Replace(string(env.Payload), "0.92", "0.99", 1))
	_, err := f.verifier.Verify(&forged)
	wantReason(t, err, ReasonBadSignature)

	if _, err := f.verifier.Verify(env); err != nil {
		t.Fatalf("honest submission rejected after forged attempt: %v", err)
	}
}

func TestVerifyFramed(t *testing.T) {
	f := newFixture(t)
	framed, err := f.submit(t).Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.verifier.VerifyFramed(framed); err != nil {
		t.Fatalf("VerifyFramed: %v", err)
	}
	_, err = f.verifier.VerifyFramed([]byte("garbage"))
	wantReason(t, err, ReasonMalformedPayload)
}

func TestReasonOf(t *testing.T) {
	err := reject(ReasonReplay, "dup")
	if !IsRejection(err) {
		t.Fatalf("rejection not recognized")
	}
	if reason, _ := ReasonOf(err); reason != ReasonReplay {
		t.Fatalf("wrong reason %s", reason)
	}
	if IsRejection(nil) {
		t.Fatalf("nil misreported as rejection")
	}
}
