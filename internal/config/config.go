// Package config provides functionality for managing configuration options
// for the storefront client and server using command-line flags, a JSON
// config file and environment variables.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
)

// Options holds the configuration values for the application.
type Options struct {
	// Addr defines the storefront server's listening address (ip:port).
	Addr string `json:"addr"`

	// APIURL is the base URL of the commerce backend.
	APIURL string `json:"api_url"`

	// StorefrontURL is the base URL of the storefront page server. Credential
	// cookies are scoped to this origin.
	StorefrontURL string `json:"storefront_url"`

	// CredentialsFile is the path of the durable local credential store.
	CredentialsFile string `json:"credentials_file"`

	// RedisURL selects a shared redis credential store instead of the file
	// store when set.
	RedisURL string `json:"redis_url"`

	// CAFile is an optional PEM bundle that replaces the system roots for
	// outbound TLS.
	CAFile string `json:"ca_file"`

	// TLSCert and TLSKey make the storefront server listen with HTTPS when
	// both are set.
	TLSCert string `json:"tls_cert"`
	TLSKey  string `json:"tls_key"`

	// LogLevel is the zap level name.
	LogLevel string `json:"log_level"`

	// Config is the path to the Config file.
	Config string `json:"-"`
}

// Default returns the built-in defaults.
func Default() *Options {
	return &Options{
		Addr:            "localhost:8080",
		APIURL:          "http://localhost:4000/api",
		StorefrontURL:   "http://localhost:8080",
		CredentialsFile: "credentials.json",
		LogLevel:        "info",
		Config:          "config.json",
	}
}

// NewFlagSet registers every option as a flag on a new FlagSet writing into o.
func NewFlagSet(name string, o *Options) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&o.Addr, "a", o.Addr, "run storefront server on ip:port")
	fs.StringVar(&o.APIURL, "api", o.APIURL, "commerce backend base URL")
	fs.StringVar(&o.StorefrontURL, "storefront", o.StorefrontURL, "storefront server base URL")
	fs.StringVar(&o.CredentialsFile, "credentials", o.CredentialsFile, "path to the local credential store")
	fs.StringVar(&o.RedisURL, "redis", o.RedisURL, "redis URL for a shared credential store")
	fs.StringVar(&o.CAFile, "ca", o.CAFile, "extra CA bundle for backend TLS")
	fs.StringVar(&o.TLSCert, "tls-cert", o.TLSCert, "storefront server TLS certificate")
	fs.StringVar(&o.TLSKey, "tls-key", o.TLSKey, "storefront server TLS key")
	fs.StringVar(&o.LogLevel, "log-level", o.LogLevel, "log level")
	fs.StringVar(&o.Config, "config", o.Config, "path to config file")
	fs.StringVar(&o.Config, "c", o.Config, "path to config file (shorthand)")
	return fs
}

// Load applies the JSON config file and then environment variables on top of
// the flag values already stored in o. A missing config file is not an error.
func Load(o *Options) error {
	if configPath := os.Getenv("CONFIG"); configPath != "" {
		o.Config = configPath
	}

	if o.Config != "" {
		data, err := os.ReadFile(o.Config)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return fmt.Errorf("error while reading config file: %w", err)
		default:
			if err := json.Unmarshal(data, o); err != nil {
				return fmt.Errorf("error while parsing config file: %w", err)
			}
		}
	}

	overrides := map[string]*string{
		"SERVER_ADDRESS":   &o.Addr,
		"API_URL":          &o.APIURL,
		"STOREFRONT_URL":   &o.StorefrontURL,
		"CREDENTIALS_FILE": &o.CredentialsFile,
		"REDIS_URL":        &o.RedisURL,
		"CA_FILE":          &o.CAFile,
		"TLS_CERT_FILE":    &o.TLSCert,
		"TLS_KEY_FILE":     &o.TLSKey,
		"LOG_LEVEL":        &o.LogLevel,
	}
	for env, dst := range overrides {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}

	return nil
}

// TLSEnabled reports whether the server has a certificate and key to serve.
func (o *Options) TLSEnabled() bool {
	return o.TLSCert != "" && o.TLSKey != ""
}

// Parse parses args into a fresh Options and applies Load.
func Parse(name string, args []string) (*Options, error) {
	o := Default()
	if err := NewFlagSet(name, o).Parse(args); err != nil {
		return nil, err
	}
	if err := Load(o); err != nil {
		return nil, err
	}
	return o, nil
}
