// Command phc inspects, produces and checks PHC password hash strings.
//
//	phc inspect <hash>
//	phc hash            reads the password from the terminal or stdin
//	phc verify <hash>   exit status 0 on match, 1 on mismatch
//
// New hashes use the Argon2id parameters from the AUTH_ARGON2_* variables.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/conduitblog/authcore"
	"github.com/conduitblog/authcore/internal/logger"
	"github.com/conduitblog/authcore/password"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"
	"golang.org/x/term"
)

type config struct {
	LogLevel  string `env:"LOG_LEVEL, default=info"`
	LogPretty bool   `env:"LOG_PRETTY, default=false"`
	Password  authcore.PasswordConfig
}

const (
	exitOK       = 0
	exitMismatch = 1
	exitUsage    = 2
	exitFailure  = 3
)

// readPassword is swapped out in tests.
var readPassword = term.ReadPassword

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr, envconfig.OsLookuper()))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, lookuper envconfig.Lookuper) int {
	var cfg config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		fmt.Fprintf(stderr, "phc: %v\n", err)
		return exitUsage
	}
	log := logger.New(logger.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty, Output: stderr})

	fs := flag.NewFlagSet("phc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: phc inspect <hash> | phc hash | phc verify <hash>")
	}
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return exitUsage
	}

	switch cmd, rest := fs.Arg(0), fs.Args()[1:]; cmd {
	case "inspect":
		if len(rest) != 1 {
			fs.Usage()
			return exitUsage
		}
		return inspect(log, rest[0], stdout)
	case "hash":
		return hash(log, cfg, stdin, stdout, stderr)
	case "verify":
		if len(rest) != 1 {
			fs.Usage()
			return exitUsage
		}
		return verify(log, cfg, rest[0], stdin, stdout, stderr)
	default:
		fs.Usage()
		return exitUsage
	}
}

func parseStored(s string) (password.Hash, error) {
	if strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") {
		if h, err := password.FromModularCrypt(s); err == nil {
			return h, nil
		}
	}
	return password.Parse(s)
}

func inspect(log zerolog.Logger, encoded string, stdout io.Writer) int {
	h, err := parseStored(encoded)
	if err != nil {
		log.Error().Err(err).Msg("parse failed")
		return exitFailure
	}

	fmt.Fprintf(stdout, "algorithm: %s\n", h.Algorithm())
	if v, ok := h.Version(); ok {
		fmt.Fprintf(stdout, "version:   %d\n", v)
	}
	for name, value := range h.Params().All() {
		fmt.Fprintf(stdout, "param:     %s=%s\n", name, value)
	}
	fmt.Fprintf(stdout, "salt:      %d bytes\n", len(h.Salt()))
	fmt.Fprintf(stdout, "output:    %d bytes\n", len(h.Output()))
	fmt.Fprintf(stdout, "phc:       %s\n", h)

	if _, err := h.AlgorithmParams(); err != nil {
		fmt.Fprintf(stdout, "usable:    no (%v)\n", err)
	} else {
		fmt.Fprintln(stdout, "usable:    yes")
	}
	return exitOK
}

func newHasher(cfg config) (*password.Hasher, error) {
	return password.NewHasher(password.Config{
		Memory:           cfg.Password.Memory,
		Time:             cfg.Password.Time,
		Parallelism:      cfg.Password.Parallelism,
		SaltLength:       cfg.Password.SaltLength,
		KeyLength:        cfg.Password.KeyLength,
		MaxPasswordBytes: cfg.Password.MaxPasswordBytes,
		MaxVerifyMemory:  cfg.Password.MaxVerifyMemory,
		MaxVerifyTime:    cfg.Password.MaxVerifyTime,
	})
}

func hash(log zerolog.Logger, cfg config, stdin io.Reader, stdout, stderr io.Writer) int {
	hasher, err := newHasher(cfg)
	if err != nil {
		log.Error().Err(err).Msg("invalid argon2 parameters")
		return exitUsage
	}
	plaintext, err := readSecret(stdin, stderr)
	if err != nil {
		log.Error().Err(err).Msg("read password failed")
		return exitFailure
	}

	h, err := hasher.HashPassword(plaintext)
	if err != nil {
		log.Error().Err(err).Msg("hash failed")
		return exitFailure
	}
	fmt.Fprintln(stdout, h)
	return exitOK
}

func verify(log zerolog.Logger, cfg config, encoded string, stdin io.Reader, stdout, stderr io.Writer) int {
	hasher, err := newHasher(cfg)
	if err != nil {
		log.Error().Err(err).Msg("invalid argon2 parameters")
		return exitUsage
	}
	stored, err := parseStored(encoded)
	if err != nil {
		log.Error().Err(err).Msg("parse failed")
		return exitFailure
	}
	plaintext, err := readSecret(stdin, stderr)
	if err != nil {
		log.Error().Err(err).Msg("read password failed")
		return exitFailure
	}

	if err := hasher.VerifyPassword(plaintext, stored); err != nil {
		if errors.Is(err, password.ErrInvalidPassword) {
			fmt.Fprintln(stdout, "mismatch")
			return exitMismatch
		}
		log.Error().Err(err).Msg("verify failed")
		return exitFailure
	}

	fmt.Fprintln(stdout, "match")
	if hasher.NeedsUpgrade(stored) {
		log.Info().Str("algorithm", stored.Algorithm().String()).Msg("hash is below the configured parameters")
	}
	return exitOK
}

// readSecret reads a password without echo from a terminal, or one line from
// any other reader.
func readSecret(stdin io.Reader, prompt io.Writer) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Password: ")
		pw, err := readPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", err
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
