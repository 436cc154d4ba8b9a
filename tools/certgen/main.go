// Package main writes development TLS material for the storefront server:
// a local CA plus a server certificate signed by it. Point the server at
// server.crt/server.key and the client's ca option at ca.crt.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atinyakov/GophShop/internal/certgen"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("certgen", flag.ContinueOnError)
	fs.SetOutput(out)
	dir := fs.String("dir", "certs", "output directory")
	hosts := fs.String("hosts", "localhost,127.0.0.1", "comma-separated server names and IPs")
	caCert := fs.String("ca-cert", "", "existing CA certificate to sign with")
	caKey := fs.String("ca-key", "", "existing CA key to sign with")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var names []string
	for _, h := range strings.Split(*hosts, ",") {
		if h = strings.TrimSpace(h); h != "" {
			names = append(names, h)
		}
	}

	var (
		ca  *certgen.Authority
		err error
	)
	if *caCert != "" || *caKey != "" {
		ca, err = certgen.LoadAuthority(*caCert, *caKey)
	} else {
		ca, err = certgen.NewAuthority("GophShop Dev CA")
	}
	if err != nil {
		return err
	}

	b, err := ca.WriteBundle(*dir, names...)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "CA:     %s\nServer: %s, %s\n", b.CACert, b.ServerCert, b.ServerKey)
	return nil
}
