// Package artifact builds the reproducibility bundle transmitted with a
// claim: the exact hyperparameters plus the code needed to reproduce the
// training run, packed as a deterministic TAR archive.
//
// Determinism matters because the bundle's content digest is bound into the
// signed claim: packing the same inputs twice must yield the same bytes,
// and therefore the same artifact_hash.
package artifact

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"claimwire.io/claimwire/claim"
	"claimwire.io/claimwire/digest"
)

// MediaType is the declared media type of the wire artifact part.
const MediaType = "application/x-tar"

// HyperparametersFile is the bundle entry holding the canonical JSON
// rendering of the claim's hyperparameters.
const HyperparametersFile = "hyperparameters.json"

var epoch0 = time.Unix(0, 0).UTC()

// File is a single named entry of a bundle.
type File struct {
	Name    string
	Content []byte
}

// Bundle is a packed artifact ready for hashing and transmission.
// Immutable once built.
type Bundle struct {
	Filename  string
	MediaType string
	Bytes     []byte

	// Digest is the lowercase hex content digest of Bytes, computed with
	// the protocol's default algorithm. This is the value that belongs in
	// the claim's artifact_hash field.
	Digest string
}

// ReadFile loads a reproduction file from disk with an explicit, checked
// read. The entry name is the file's base name.
func ReadFile(path string) (File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read artifact file %s: %w", path, err)
	}
	return File{Name: filepath.Base(path), Content: content}, nil
}

// Build packs hyperparameters plus reproduction files into a deterministic
// TAR bundle and computes its content digest.
//
// Entry order is lexicographic and TAR headers are normalized (zero mtime,
// fixed mode, no owner), so identical inputs always produce identical
// bundle bytes.
func Build(name string, hyper claim.Value, files ...File) (*Bundle, error) {
	if name == "" {
		name = "repro.tar"
	}
	if hyper.Kind() != claim.KindMap {
		return nil, fmt.Errorf("artifact: hyperparameters must be an object")
	}
	hyperJSON, err := claim.Canonical(hyper)
	if err != nil {
		return nil, err
	}

	byName := map[string][]byte{
		HyperparametersFile: append(hyperJSON, '\n'),
	}
	for _, f := range files {
		entry := cleanEntryPath(f.Name)
		if entry == "" {
			return nil, fmt.Errorf("artifact: invalid entry path %q", f.Name)
		}
		if _, dup := byName[entry]; dup {
			return nil, fmt.Errorf("artifact: duplicate entry %q", entry)
		}
		byName[entry] = f.Content
	}

	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, n := range names {
		if err := writeEntry(tw, n, byName[n]); err != nil {
			_ = tw.Close()
			return nil, err
		}
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}

	sum, err := digest.SumBytes(digest.Default, buf.Bytes())
	if err != nil {
		return nil, err
	}
	return &Bundle{
		Filename:  name,
		MediaType: MediaType,
		Bytes:     buf.Bytes(),
		Digest:    sum,
	}, nil
}

// Files unpacks a bundle received by the verifier side.
//
// Unpacking is fail-closed: non-regular entries and unsafe paths are
// rejected rather than skipped.
func Files(data []byte) ([]File, error) {
	tr := tar.NewReader(bytes.NewReader(data))
	var out []File
	seen := map[string]struct{}{}
	for {
		h, err := tr.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		name := cleanEntryPath(h.Name)
		if name == "" {
			return nil, fmt.Errorf("artifact: invalid entry path %q", h.Name)
		}
		if h.Typeflag != tar.TypeReg {
			return nil, fmt.Errorf("artifact: unexpected tar entry type %v (%s)", h.Typeflag, name)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("artifact: duplicate entry %q", name)
		}
		seen[name] = struct{}{}
		content, err := io.ReadAll(tr)
		if err != nil {
			return nil, err
		}
		out = append(out, File{Name: name, Content: content})
	}
}

// Hyperparameters extracts and parses the hyperparameters entry of a
// bundle.
func Hyperparameters(data []byte) (claim.Value, error) {
	files, err := Files(data)
	if err != nil {
		return claim.Value{}, err
	}
	for _, f := range files {
		if f.Name == HyperparametersFile {
			v, err := claim.ParseValue(bytes.TrimSuffix(f.Content, []byte("\n")))
			if err != nil {
				return claim.Value{}, err
			}
			if v.Kind() != claim.KindMap {
				return claim.Value{}, fmt.Errorf("artifact: %s is not an object", HyperparametersFile)
			}
			return v, nil
		}
	}
	return claim.Value{}, fmt.Errorf("artifact: missing %s", HyperparametersFile)
}

func writeEntry(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		Uid:      0,
		Gid:      0,
		Uname:    "",
		Gname:    "",
		ModTime:  epoch0,
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := io.Copy(tw, bytes.NewReader(content))
	return err
}

func cleanEntryPath(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return ""
	}

	parts := strings.Split(name, "/")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" || part == "." {
			return ""
		}
		if part == ".." {
			return ""
		}
		out = append(out, part)
	}
	return strings.Join(out, "/")
}
