// claimwire is the miner-side CLI: manage identity keys, pack
// reproducibility artifacts, and submit signed training claims.
package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"claimwire.io/claimwire/artifact"
	"claimwire.io/claimwire/claim"
	"claimwire.io/claimwire/digest"
	"claimwire.io/claimwire/grpcsubmit"
	"claimwire.io/claimwire/keys"
	"claimwire.io/claimwire/submission"
	"claimwire.io/claimwire/verify"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "key":
		return cmdKey(args[1:], out, errOut)
	case "hash":
		return cmdHash(args[1:], out, errOut)
	case "pack":
		return cmdPack(args[1:], out, errOut)
	case "canon":
		return cmdCanon(args[1:], out, errOut)
	case "submit":
		return cmdSubmit(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "claimwire: miner-side submission CLI")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  claimwire key init --name <name> [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  claimwire key export --name <name>")
	fmt.Fprintln(w, "  claimwire key list")
	fmt.Fprintln(w, "  claimwire hash [--alg sha256] <file>")
	fmt.Fprintln(w, "  claimwire pack --out <file> (--hyper-json <file> | --hyper K=V ...) [--include <file> ...]")
	fmt.Fprintln(w, "  claimwire canon <payload.json>")
	fmt.Fprintln(w, "  claimwire submit --server <addr> --task-id <id> --miner-id <n> --performance <score>")
	fmt.Fprintln(w, "                   (--hyper-json <file> | --hyper K=V ...) [--include <file> ...]")
	fmt.Fprintln(w, "                   (--seed-hex <64hex> | --signer <name> | --key-file <path>)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - --seed-hex must be 32 bytes (64 hex chars) ed25519 seed")
	fmt.Fprintln(w, "  - keys are stored under ~/.claimwire/keys/<name> (0600 seed files)")
	fmt.Fprintln(w, "  - pack writes a deterministic tar and prints its sha256 digest")
	fmt.Fprintln(w, "  - submit packs, signs, and sends one atomic submission")
}

type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func cmdKey(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: claimwire key <init|export|list> ...")
		return 2
	}
	ks, err := keys.CreateKeyStore("")
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}

	switch args[0] {
	case "init":
		fs := flag.NewFlagSet("key init", flag.ContinueOnError)
		fs.SetOutput(errOut)
		name := fs.String("name", "", "key name")
		seedHex := fs.String("seed-hex", "", "ed25519 seed (64 hex chars); random if absent")
		force := fs.Bool("force", false, "overwrite an existing key")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		var seed []byte
		if *seedHex != "" {
			seed, err = keys.ParseSeedHex(*seedHex)
			if err != nil {
				fmt.Fprintln(errOut, err)
				return 1
			}
		} else {
			seed = make([]byte, 32)
			if _, err := io.ReadFull(rand.Reader, seed); err != nil {
				fmt.Fprintln(errOut, err)
				return 1
			}
		}
		pub, path, err := ks.Initialize(*name, seed, *force)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		fmt.Fprintf(out, "%s\t%s\n", pub, path)
		return 0
	case "export":
		fs := flag.NewFlagSet("key export", flag.ContinueOnError)
		fs.SetOutput(errOut)
		name := fs.String("name", "", "key name")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		pub, err := ks.Export(*name)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		fmt.Fprintln(out, pub)
		return 0
	case "list":
		entries, err := ks.List()
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		for _, e := range entries {
			fmt.Fprintf(out, "%s\t%s\n", e.Name, e.PublicKey)
		}
		return 0
	default:
		fmt.Fprintf(errOut, "unknown key subcommand: %s\n", args[0])
		return 2
	}
}

func cmdHash(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("hash", flag.ContinueOnError)
	fs.SetOutput(errOut)
	alg := fs.String("alg", string(digest.Default), "digest algorithm (sha256, sha512, sha3-256)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: claimwire hash [--alg sha256] <file>")
		return 2
	}
	sum, err := digest.SumFile(digest.Alg(*alg), fs.Arg(0))
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	fmt.Fprintln(out, sum)
	return 0
}

func cmdPack(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("pack", flag.ContinueOnError)
	fs.SetOutput(errOut)
	outPath := fs.String("out", "", "output bundle path")
	hyperJSON := fs.String("hyper-json", "", "hyperparameters JSON file")
	var hyperKV, include stringList
	fs.Var(&hyperKV, "hyper", "hyperparameter K=V (repeatable)")
	fs.Var(&include, "include", "reproduction file to include (repeatable)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *outPath == "" {
		fmt.Fprintln(errOut, "missing required --out flag")
		return 2
	}

	bundle, err := buildBundle(*outPath, *hyperJSON, hyperKV, include)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if err := os.WriteFile(*outPath, bundle.Bytes, 0o644); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	fmt.Fprintln(out, bundle.Digest)
	return 0
}

func cmdCanon(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(errOut, "usage: claimwire canon <payload.json>")
		return 2
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	c, err := claim.ParsePayload(data)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	canonical, err := c.CanonicalBytes()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	_, _ = out.Write(canonical)
	return 0
}

func cmdSubmit(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	fs.SetOutput(errOut)
	server := fs.String("server", "127.0.0.1:8443", "submission server address")
	taskID := fs.String("task-id", "", "task identifier")
	minerID := fs.Int64("miner-id", 0, "miner identifier")
	performance := fs.Float64("performance", 0, "claimed performance score")
	hyperJSON := fs.String("hyper-json", "", "hyperparameters JSON file")
	artifactName := fs.String("artifact-name", "repro.tar", "artifact filename hint")
	seedHex := fs.String("seed-hex", "", "ed25519 seed (64 hex chars)")
	signer := fs.String("signer", "", "stored key name")
	keyFile := fs.String("key-file", "", "seed file path")
	maxMsg := fs.Int("max-msg-bytes", 64<<20, "max gRPC message size")
	var hyperKV, include stringList
	fs.Var(&hyperKV, "hyper", "hyperparameter K=V (repeatable)")
	fs.Var(&include, "include", "reproduction file to include (repeatable)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *taskID == "" || *minerID <= 0 {
		fmt.Fprintln(errOut, "missing required --task-id / --miner-id flags")
		return 2
	}

	ks, err := keys.CreateKeyStore("")
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	identity, err := ks.Load(*seedHex, *signer, *keyFile)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}

	hyper, err := loadHyper(*hyperJSON, hyperKV)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	files, err := loadFiles(include)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}

	builder, err := submission.NewBuilder(identity)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	env, c, err := builder.Build(submission.Request{
		TaskID:          *taskID,
		MinerID:         *minerID,
		Performance:     *performance,
		Hyperparameters: hyper,
		Files:           files,
		ArtifactName:    *artifactName,
	})
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}

	client, err := grpcsubmit.Dial(*server, grpcsubmit.DialOptions{MaxMsgBytes: *maxMsg})
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer client.Close()

	receipt, err := client.Submit(context.Background(), env)
	if err != nil {
		if reason, ok := verify.ReasonOf(err); ok {
			fmt.Fprintf(errOut, "rejected (%s): %v\n", reason, err)
			return 1
		}
		fmt.Fprintln(errOut, err)
		return 1
	}

	fmt.Fprintf(out, "accepted\tnonce=%d\tclaim=%s\tartifact=%s\n", c.Nonce, receipt.ClaimCID, receipt.ArtifactCID)
	return 0
}

func buildBundle(outPath, hyperJSON string, hyperKV, include []string) (*artifact.Bundle, error) {
	hyper, err := loadHyper(hyperJSON, hyperKV)
	if err != nil {
		return nil, err
	}
	files, err := loadFiles(include)
	if err != nil {
		return nil, err
	}
	name := outPath
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	return artifact.Build(name, hyper, files...)
}

func loadFiles(paths []string) ([]artifact.File, error) {
	var files []artifact.File
	for _, p := range paths {
		f, err := artifact.ReadFile(p)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// loadHyper builds the hyperparameter map from a JSON file or K=V flags.
// K=V values parse as int, then float, then bool, then string.
func loadHyper(hyperJSON string, kv []string) (claim.Value, error) {
	if hyperJSON != "" {
		data, err := os.ReadFile(hyperJSON)
		if err != nil {
			return claim.Value{}, err
		}
		v, err := claim.ParseValue(data)
		if err != nil {
			return claim.Value{}, err
		}
		if v.Kind() != claim.KindMap {
			return claim.Value{}, fmt.Errorf("%s: hyperparameters must be a JSON object", hyperJSON)
		}
		return v, nil
	}

	var entries []claim.Entry
	for _, pair := range kv {
		k, raw, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return claim.Value{}, fmt.Errorf("invalid --hyper %q, want K=V", pair)
		}
		entries = append(entries, claim.Entry{Key: k, Value: parseScalar(raw)})
	}
	if len(entries) == 0 {
		return claim.Value{}, fmt.Errorf("no hyperparameters given (use --hyper-json or --hyper)")
	}
	return claim.Map(entries...), nil
}

func parseScalar(raw string) claim.Value {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return claim.Int(i)
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return claim.Float(f)
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return claim.Bool(b)
	}
	if strings.HasPrefix(raw, "[") || strings.HasPrefix(raw, "{") {
		if v, err := claim.ParseValue([]byte(raw)); err == nil {
			return v
		}
	}
	return claim.String(raw)
}
