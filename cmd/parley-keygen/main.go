// Command parley-keygen writes signing material for access credentials:
// an RS256 PEM key pair for the jwt format, or a v4.public secret for paseto.
package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"os"

	paseto "aidanwoods.dev/go-paseto"
	"github.com/spf13/pflag"
)

type options struct {
	format  string
	bits    int
	privOut string
	pubOut  string
	force   bool
}

func main() {
	var opts options
	fs := pflag.NewFlagSet("parley-keygen", pflag.ContinueOnError)
	fs.StringVarP(&opts.format, "format", "f", "jwt", "credential format: jwt or paseto")
	fs.IntVar(&opts.bits, "bits", 2048, "RSA key size for jwt")
	fs.StringVar(&opts.privOut, "private-out", "jwt_private.key", "private key path for jwt")
	fs.StringVar(&opts.pubOut, "public-out", "jwt_public.key", "public key path for jwt")
	fs.BoolVar(&opts.force, "force", false, "overwrite existing files")

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	if err := run(opts, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "parley-keygen:", err)
		os.Exit(1)
	}
}

func run(opts options, stdout io.Writer) error {
	switch opts.format {
	case "jwt":
		return writeRSAPair(opts)
	case "paseto":
		secret := paseto.NewV4AsymmetricSecretKey()
		_, err := fmt.Fprintf(stdout, "PARLEY_PASETO_V4_SECRET_KEY_HEX=%s\n", secret.ExportHex())
		return err
	default:
		return fmt.Errorf("unknown format %q", opts.format)
	}
}

func writeRSAPair(opts options) error {
	if opts.bits < 2048 {
		return fmt.Errorf("rsa key size %d below 2048", opts.bits)
	}
	key, err := rsa.GenerateKey(rand.Reader, opts.bits)
	if err != nil {
		return err
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return err
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return err
	}

	if err := writePEM(opts.privOut, "PRIVATE KEY", privDER, 0o600, opts.force); err != nil {
		return err
	}
	return writePEM(opts.pubOut, "PUBLIC KEY", pubDER, 0o644, opts.force)
}

func writePEM(path, blockType string, der []byte, perm os.FileMode, force bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, perm)
	if err != nil {
		return err
	}
	if err := pem.Encode(f, &pem.Block{Type: blockType, Bytes: der}); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
