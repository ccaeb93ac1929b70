package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/Iron-Ham/ndvlink/internal/config"
	"github.com/Iron-Ham/ndvlink/internal/errors"
	"github.com/Iron-Ham/ndvlink/internal/logging"
	"github.com/Iron-Ham/ndvlink/internal/ndv"

	// Registers the offline fixture transport.
	_ "github.com/Iron-Ham/ndvlink/internal/ndv/fixture"
)

// app carries the state shared by all commands of one invocation.
type app struct {
	v      *viper.Viper
	fs     afero.Fs
	stdin  io.Reader
	cfg    *config.Config
	logger *logging.Logger

	// readPassword prompts for the logon password. It returns "" when no
	// terminal is attached.
	readPassword func(prompt string) (string, error)
	pw           *string
}

func newApp() *app {
	return &app{
		v:            viper.New(),
		fs:           afero.NewOsFs(),
		stdin:        os.Stdin,
		readPassword: terminalPassword,
	}
}

// Execute runs the root command
func Execute() error {
	a := newApp()
	defer a.close()
	err := a.rootCmd().Execute()
	a.logFailure(err)
	return err
}

// logFailure records a failed command in the diagnostic log with its
// classification. Cobra has already printed the message.
func (a *app) logFailure(err error) {
	if err == nil || a.logger == nil {
		return
	}
	a.logger.Error("command failed",
		"error", err.Error(),
		"severity", errors.GetSeverity(err).String(),
		"retryable", errors.IsRetryable(err),
		"user_facing", errors.IsUserFacing(err),
	)
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ndvlink",
		Short: "Browse and edit Natural sources on a development server",
		Long: `ndvlink connects to a Natural development server, lists libraries and
objects, and reads or writes object sources.

Every command opens one connection, runs a single request sequence over it
and disconnects. Use --fixture to work against a YAML description of a
server instead of a live one.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig()
		},
	}

	// Global flags
	pf := root.PersistentFlags()
	pf.StringP("config", "c", "", "config file (default is $HOME/.config/ndvlink/config.yaml)")
	pf.String("host", "", "development server host")
	pf.Int("port", ndv.DefaultPort, "development server port")
	pf.StringP("user", "u", "", "logon user id")
	pf.String("codepage", ndv.DefaultClientCodepage, "single-byte client codepage")
	pf.String("transport", "fixture", "transport driver ("+strings.Join(ndv.Transports(), ", ")+")")
	pf.String("fixture", "", "YAML fixture served by the fixture transport")
	pf.String("log-level", "warn", "log level: debug, info, warn, error")

	bindings := map[string]string{
		"config":                 "config",
		"server.host":            "host",
		"server.port":            "port",
		"server.user":            "user",
		"server.client_codepage": "codepage",
		"server.transport":       "transport",
		"server.fixture":         "fixture",
		"logging.level":          "log-level",
	}
	for key, flag := range bindings {
		_ = a.v.BindPFlag(key, pf.Lookup(flag))
	}

	root.AddCommand(
		a.libsCmd(),
		a.lsCmd(),
		a.areasCmd(),
		a.catCmd(),
		a.putCmd(),
		a.resolveCmd(),
		a.configCmd(),
	)
	return root
}

func (a *app) initConfig() error {
	v := a.v

	// Set defaults first so they're available even without a config file
	config.SetDefaultsOn(v)
	v.SetFs(a.fs)

	if cfgFile := v.GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(config.ConfigDir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("NDVLINK")
	// Replace dots with underscores for nested keys in env vars
	// e.g., NDVLINK_SERVER_HOST for server.host
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// A missing default config file is fine; an explicit one must exist
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if v.GetString("config") != "" || !errors.As(err, &notFound) {
			return errors.Wrap(err, "failed to read config")
		}
	}

	cfg, err := config.LoadFrom(v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := logging.NewLogger(cfg.Logging.File, cfg.Logging.Level, logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

func (a *app) close() {
	if a.logger != nil {
		_ = a.logger.Close()
	}
}

// password returns the logon password from NDVLINK_PASSWORD, or prompts
// for it on a terminal. A prompted password is asked for once per run.
func (a *app) password() (string, error) {
	if pw := a.v.GetString("password"); pw != "" {
		return pw, nil
	}
	if a.pw != nil {
		return *a.pw, nil
	}
	pw, err := a.readPassword(fmt.Sprintf("Password for %s@%s: ", strings.ToUpper(a.cfg.Server.User), a.cfg.Server.Host))
	if err != nil {
		return "", err
	}
	a.pw = &pw
	return pw, nil
}

func terminalPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", nil
	}
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", errors.Wrap(err, "failed to read password")
	}
	return string(pw), nil
}

// connect opens a client on the configured transport. The caller must
// Close it.
func (a *app) connect() (*ndv.Client, error) {
	s := a.cfg.Server

	transport, err := ndv.NewTransport(s.Transport, ndv.TransportOptions{
		Fixture: s.Fixture,
		Fs:      a.fs,
		Logger:  a.logger,
	})
	if err != nil {
		return nil, err
	}

	password, err := a.password()
	if err != nil {
		return nil, err
	}

	backoff := ndv.DefaultBackoff()
	backoff.InitialDelay = s.RetryBackoff()
	client := ndv.NewClient(transport, ndv.ClientConfig{
		PageLimit:      a.cfg.Listing.PageLimit,
		ConnectRetries: s.ConnectRetries,
		Backoff:        backoff,
	}, a.logger)

	err = client.Connect(ndv.ConnectParams{
		Host:           s.Host,
		Port:           s.Port,
		User:           s.User,
		Password:       password,
		Parameters:     s.Parameters,
		ClientCodepage: s.ClientCodepage,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}
