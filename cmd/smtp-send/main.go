// Package main is the entry point for the smtp-send command.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/shineum/smtp-send-lite/internal/config"
	"github.com/shineum/smtp-send-lite/internal/transport/graph"
	"github.com/shineum/smtp-send-lite/internal/transport/ses"
	"github.com/shineum/smtp-send-lite/internal/transport/stdout"
	smtptls "github.com/shineum/smtp-send-lite/internal/tls"
	"github.com/shineum/smtp-send-lite/sendmail"
)

// listFlag collects a repeatable string flag.
type listFlag []string

func (l *listFlag) String() string {
	return strings.Join(*l, ", ")
}

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

type options struct {
	configPath string
	to         listFlag
	cc         listFlag
	bcc        listFlag
	subject    string
	body       string
	bodyFile   string
	html       bool
	attach     listFlag
	dryRun     bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		slog.Error("failed to send message", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out, logOut io.Writer) error {
	opts, err := parseFlags(args, logOut)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if opts.dryRun {
		cfg.Transport = config.TransportStdout
	}

	setupLogger(logOut, cfg.Logging.Level)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	recipients, err := parseRecipients(opts)
	if err != nil {
		return err
	}

	sender, err := buildSender(cfg)
	if err != nil {
		return err
	}

	content, err := buildContent(opts)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	sendOpts, err := transportOptions(ctx, cfg, out)
	if err != nil {
		return err
	}
	sendOpts = append(sendOpts, sendmail.WithLogger(slog.Default()))

	slog.Info("sending message",
		"transport", cfg.Transport,
		"from", sender.Address(),
		"recipients", len(recipients),
		"attachments", len(content.Attachments()),
	)

	if err := sendmail.Send(ctx, sender, content, recipients, sendOpts...); err != nil {
		return err
	}

	slog.Info("message sent", "transport", cfg.Transport)
	return nil
}

func parseFlags(args []string, output io.Writer) (*options, error) {
	opts := &options{}

	fs := flag.NewFlagSet("smtp-send", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&opts.configPath, "config", "", "path to YAML configuration file (optional)")
	fs.Var(&opts.to, "to", "To recipient, `addr` or \"Name <addr>\" (repeatable)")
	fs.Var(&opts.cc, "cc", "Cc recipient (repeatable)")
	fs.Var(&opts.bcc, "bcc", "Bcc recipient, envelope only (repeatable)")
	fs.StringVar(&opts.subject, "subject", "", "message subject")
	fs.StringVar(&opts.body, "body", "", "message body")
	fs.StringVar(&opts.bodyFile, "body-file", "", "read the message body from a UTF-8 file")
	fs.BoolVar(&opts.html, "html", false, "send the body as text/html")
	fs.Var(&opts.attach, "attach", "file to attach (repeatable)")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "print the message instead of sending it")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if opts.body != "" && opts.bodyFile != "" {
		return nil, errors.New("-body and -body-file are mutually exclusive")
	}
	return opts, nil
}

// loadConfig loads configuration from the specified path (YAML + env override)
// or from environment variables only if no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// setupLogger configures the global slog logger with JSON output and the
// specified log level.
func setupLogger(w io.Writer, level string) {
	var logLevel slog.Level

	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

func parseRecipients(opts *options) ([]sendmail.Recipient, error) {
	groups := []struct {
		role  sendmail.Role
		flags listFlag
	}{
		{sendmail.To, opts.to},
		{sendmail.Cc, opts.cc},
		{sendmail.Bcc, opts.bcc},
	}

	var recipients []sendmail.Recipient
	for _, g := range groups {
		for _, s := range g.flags {
			r, err := sendmail.ParseRecipient(s, g.role)
			if err != nil {
				return nil, fmt.Errorf("-%s %q: %w", strings.ToLower(g.role.String()), s, err)
			}
			recipients = append(recipients, r)
		}
	}
	return recipients, nil
}

func buildSender(cfg *config.Config) (*sendmail.Sender, error) {
	provider, err := cfg.SenderProvider()
	if err != nil {
		// Only the smtp transport dials the provider host, and Validate
		// has already rejected a bad provider for it.
		provider = sendmail.Custom(cfg.Sender.Host)
	}

	var senderOpts []sendmail.SenderOption
	if cfg.Sender.From != "" {
		senderOpts = append(senderOpts, sendmail.WithFromAddress(cfg.Sender.From))
	}

	if cfg.Sender.PasswordFile != "" {
		return sendmail.NewSenderFromSecretFile(cfg.Sender.Username, cfg.Sender.PasswordFile,
			cfg.Sender.DisplayName, provider, cfg.Sender.ReplyTo, senderOpts...)
	}
	return sendmail.NewSender(cfg.Sender.Username, cfg.Sender.Password,
		cfg.Sender.DisplayName, provider, cfg.Sender.ReplyTo, senderOpts...)
}

func buildContent(opts *options) (*sendmail.Content, error) {
	if opts.bodyFile != "" {
		return sendmail.NewContentFromBodyFile(opts.subject, opts.bodyFile, opts.html, opts.attach...)
	}
	return sendmail.NewContent(opts.subject, opts.body, opts.html, opts.attach...)
}

// transportOptions selects the delivery backend. The smtp transport is the
// sendmail default and only needs its port and TLS settings.
func transportOptions(ctx context.Context, cfg *config.Config, out io.Writer) ([]sendmail.Option, error) {
	switch cfg.Transport {
	case config.TransportSMTP:
		tlsConfig, err := smtptls.ClientConfig(cfg.TLS.ServerName, cfg.TLS.CAFile, cfg.TLS.InsecureSkipVerify)
		if err != nil {
			return nil, fmt.Errorf("failed to setup TLS: %w", err)
		}
		if cfg.TLS.InsecureSkipVerify {
			slog.Warn("TLS certificate verification is disabled")
		}
		return []sendmail.Option{
			sendmail.WithPort(cfg.Sender.Port),
			sendmail.WithTLSConfig(tlsConfig),
		}, nil

	case config.TransportSES:
		t, err := ses.New(ctx, ses.Config{
			Region:           cfg.SES.Region,
			AccessKeyID:      cfg.SES.AccessKeyID,
			SecretAccessKey:  cfg.SES.SecretAccessKey,
			ConfigurationSet: cfg.SES.ConfigurationSet,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create SES transport: %w", err)
		}
		return []sendmail.Option{sendmail.WithTransport(t)}, nil

	case config.TransportGraph:
		return []sendmail.Option{sendmail.WithTransport(graph.New(graph.Config{
			TenantID:     cfg.Graph.TenantID,
			ClientID:     cfg.Graph.ClientID,
			ClientSecret: cfg.Graph.ClientSecret,
		}))}, nil

	case config.TransportStdout:
		return []sendmail.Option{sendmail.WithTransport(stdout.NewWithWriter(out))}, nil

	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}
