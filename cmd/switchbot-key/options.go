package main

import (
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/naotama2002/switchbot-key/internal/config"
	"github.com/naotama2002/switchbot-key/internal/httpclient"
	"github.com/naotama2002/switchbot-key/internal/urlhandler"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configFile   string
	scheme       string
	listenAddr   string
	timeout      time.Duration
	responseType string
}

func (o *rootOptions) bindFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVar(&o.configFile, "config", "", "config file (default <user config dir>/switchbot-key/config.yaml)")
	f.StringVar(&o.scheme, "scheme", config.DefaultScheme, "URL scheme the login redirects to")
	f.StringVar(&o.listenAddr, "listen", config.DefaultListenAddr, "loopback address that receives the redirect")
	f.DurationVar(&o.timeout, "timeout", 0, "give up waiting for the login after this long (0 waits forever)")
	f.StringVar(&o.responseType, "response-type", config.ResponseTypeToken, "token (implicit) or code (PKCE)")
}

// load reads the config file and environment, then applies the flags the
// user set explicitly.
func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configFile != "" {
		cfg, err = config.LoadFile(o.configFile, true)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("scheme") {
		cfg.Scheme = o.scheme
	}
	if flags.Changed("listen") {
		cfg.ListenAddr = o.listenAddr
	}
	if flags.Changed("timeout") {
		cfg.CallbackTimeout = o.timeout
	}
	if flags.Changed("response-type") {
		cfg.ResponseType = o.responseType
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newRegistrar(cfg *config.Config) (urlhandler.Registrar, error) {
	return urlhandler.New(runtime.GOOS, urlhandler.Options{
		ApplicationsDir: cfg.ApplicationsDir,
		BundleDir:       cfg.BundleDir,
		WindowsRoot:     cfg.WindowsRoot,
	})
}

func newHTTPClient() *httpclient.Client {
	return httpclient.New(httpclient.DefaultConfig())
}
