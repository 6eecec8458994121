// claimwire-submitd is the verification daemon: it receives signed training
// submissions over gRPC, verifies them, and records accepted claims and
// artifacts in a content-addressed ledger.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"claimwire.io/claimwire/grpcsubmit"
	"claimwire.io/claimwire/keys"
	"claimwire.io/claimwire/storage"
	"claimwire.io/claimwire/storage/localfs"
	"claimwire.io/claimwire/storage/memory"
	"claimwire.io/claimwire/verify"
)

type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("claimwire-submitd", flag.ExitOnError)
	listen := fs.String("listen", "127.0.0.1:8443", "listen address")
	keysFile := fs.String("keys", "", "path to the miner key registry (JSON, miner id -> public key)")
	maxBehind := fs.Duration("max-behind", verify.DefaultWindow.MaxBehind, "oldest accepted claim timestamp")
	maxAhead := fs.Duration("max-ahead", verify.DefaultWindow.MaxAhead, "allowed forward clock skew")
	nonceTTL := fs.Duration("nonce-ttl", 0, "replay record lifetime (0 = 2x max-behind)")
	maxMsg := fs.Int("max-msg-bytes", 64<<20, "max gRPC message size (bounds artifact size)")
	logLevel := fs.String("log-level", "info", "logrus level")
	var casDirs stringList
	fs.Var(&casDirs, "cas-dir", "ledger directory for accepted submissions (repeatable; in-memory if absent)")
	_ = fs.Parse(args)

	level, err := log.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	log.SetLevel(level)

	if *keysFile == "" {
		fmt.Fprintln(os.Stderr, "missing required -keys flag")
		return 2
	}
	dir, err := keys.LoadDirectory(*keysFile)
	if err != nil {
		log.WithError(err).Error("load key registry")
		return 1
	}
	log.WithField("miners", dir.Len()).Info("key registry loaded")

	ledger, err := openLedger(casDirs)
	if err != nil {
		log.WithError(err).Error("open ledger")
		return 1
	}

	ttl := *nonceTTL
	if ttl <= 0 {
		ttl = 2 * *maxBehind
	}

	verifier, err := verify.NewVerifier(dir, verify.NewMemoryNonceStore(ttl))
	if err != nil {
		log.WithError(err).Error("construct verifier")
		return 1
	}
	verifier.Window = verify.Window{MaxBehind: *maxBehind, MaxAhead: *maxAhead}
	verifier.Ledger = ledger

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		log.WithError(err).Error("listen")
		return 1
	}
	defer lis.Close()

	s := grpc.NewServer(
		grpc.MaxRecvMsgSize(*maxMsg),
		grpc.MaxSendMsgSize(*maxMsg),
	)
	grpcsubmit.RegisterSubmissionsServer(s, &grpcsubmit.Server{Verifier: verifier})

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(lis) }()
	log.WithField("addr", lis.Addr().String()).Info("claimwire-submitd listening")

	select {
	case sig := <-sigs:
		log.WithField("signal", sig.String()).Info("shutting down")
		done := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			s.Stop()
		}
		return 0
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Error("serve")
			return 1
		}
		return 0
	}
}

func openLedger(dirs []string) (storage.CAS, error) {
	if len(dirs) == 0 {
		log.Warn("no -cas-dir configured, accepted submissions kept in memory only")
		return memory.New(), nil
	}
	if len(dirs) == 1 {
		return localfs.New(dirs[0])
	}
	backends := make([]storage.NamedCAS, 0, len(dirs))
	for _, d := range dirs {
		cas, err := localfs.New(d)
		if err != nil {
			return nil, err
		}
		backends = append(backends, storage.NamedCAS{Name: d, CAS: cas})
	}
	return storage.ReplicatingCAS{Backends: backends}, nil
}
