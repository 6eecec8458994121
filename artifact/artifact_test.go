package artifact

import (
	"archive/tar"
	"bytes"
	"testing"

	"claimwire.io/claimwire/claim"
	"claimwire.io/claimwire/digest"
)

func testHyper() claim.Value {
	return claim.Map(
		claim.Entry{Key: "lr", Value: claim.Float(0.001)},
		claim.Entry{Key: "layers", Value: claim.List(claim.Int(128), claim.Int(64))},
	)
}

func TestBuild_Deterministic(t *testing.T) {
	files := []File{
		{Name: "train.py", Content: []byte("print('train')\n")},
		{Name: "model.py", Content: []byte("print('model')\n")},
	}
	a, err := Build("repro.tar", testHyper(), files...)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// Same inputs in reversed order must produce byte-identical output.
	b, err := Build("repro.tar", testHyper(), files[1], files[0])
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !bytes.Equal(a.Bytes, b.Bytes) {
		t.Fatalf("bundle bytes depend on file order")
	}
	if a.Digest != b.Digest {
		t.Fatalf("digests differ: %s vs %s", a.Digest, b.Digest)
	}
}

func TestBuild_DigestMatchesBytes(t *testing.T) {
	a, err := Build("", testHyper())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want, err := digest.SumBytes(digest.Default, a.Bytes)
	if err != nil {
		t.Fatal(err)
	}
	if a.Digest != want {
		t.Fatalf("Digest %s does not match bundle bytes (%s)", a.Digest, want)
	}
	if a.Filename != "repro.tar" {
		t.Fatalf("empty name did not default: %s", a.Filename)
	}
	if a.MediaType != MediaType {
		t.Fatalf("unexpected media type %s", a.MediaType)
	}
}

func TestBuild_ContentChangesDigest(t *testing.T) {
	a, _ := Build("", testHyper(), File{Name: "train.py", Content: []byte("a")})
	b, _ := Build("", testHyper(), File{Name: "train.py", Content: []byte("b")})
	if a.Digest == b.Digest {
		t.Fatalf("different contents produced the same digest")
	}
}

func TestBuild_RejectsBadEntries(t *testing.T) {
	if _, err := Build("", testHyper(), File{Name: "../escape", Content: nil}); err == nil {
		t.Fatalf("expected error for path traversal entry")
	}
	if _, err := Build("", testHyper(),
		File{Name: "a.py", Content: []byte("1")},
		File{Name: "./a.py", Content: []byte("2")},
	); err == nil {
		t.Fatalf("expected error for duplicate entry")
	}
	if _, err := Build("", claim.List(claim.Int(1))); err == nil {
		t.Fatalf("expected error for non-object hyperparameters")
	}
}

func TestFiles_RoundTrip(t *testing.T) {
	a, err := Build("", testHyper(), File{Name: "sub/dir/train.py", Content: []byte("x")})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	files, err := Files(a.Bytes)
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	byName := map[string]string{}
	for _, f := range files {
		byName[f.Name] = string(f.Content)
	}
	if byName["sub/dir/train.py"] != "x" {
		t.Fatalf("missing reproduction file in %v", byName)
	}
	if _, ok := byName[HyperparametersFile]; !ok {
		t.Fatalf("missing %s entry", HyperparametersFile)
	}
}

func TestFiles_RejectsUnsafeArchive(t *testing.T) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	hdr := &tar.Header{Name: "../../etc/passwd", Mode: 0o644, Size: 1, Typeflag: tar.TypeReg}
	if err := tw.WriteHeader(hdr); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write([]byte("x")); err != nil {
		t.Fatal(err)
	}
	_ = tw.Close()

	if _, err := Files(buf.Bytes()); err == nil {
		t.Fatalf("expected error for traversal entry")
	}
}

func TestFiles_RejectsNonRegularEntries(t *testing.T) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	hdr := &tar.Header{Name: "link", Linkname: "target", Typeflag: tar.TypeSymlink}
	if err := tw.WriteHeader(hdr); err != nil {
		t.Fatal(err)
	}
	_ = tw.Close()

	if _, err := Files(buf.Bytes()); err == nil {
		t.Fatalf("expected error for symlink entry")
	}
}

func TestHyperparameters_Extraction(t *testing.T) {
	a, err := Build("", testHyper())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	v, err := Hyperparameters(a.Bytes)
	if err != nil {
		t.Fatalf("Hyperparameters: %v", err)
	}
	got, err := claim.Canonical(v)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := claim.Canonical(testHyper())
	if !bytes.Equal(got, want) {
		t.Fatalf("extracted hyperparameters differ: %s vs %s", got, want)
	}
}

func TestCleanEntryPath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"train.py", "train.py"},
		{"./train.py", "train.py"},
		{"/abs.py", "abs.py"},
		{"a\\b.py", "a/b.py"},
		{"a/../b", ""},
		{"..", ""},
		{"", ""},
		{"a//b", ""},
	}
	for _, tc := range cases {
		if got := cleanEntryPath(tc.in); got != tc.want {
			t.Fatalf("cleanEntryPath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
