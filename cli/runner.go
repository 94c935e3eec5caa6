// Package cli implements the authsession command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/viant/authsession"
	"github.com/viant/authsession/config"
	"github.com/viant/authsession/schema"
	"github.com/viant/authsession/session"
	"github.com/viant/authsession/transport"
)

// Run parses args and executes the selected command
func Run(args []string) error {
	return run(context.Background(), args, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	options := &Options{}
	parser := flags.NewParser(options, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return err
	}
	cfg, err := config.Read(options.Config)
	if err != nil {
		return err
	}
	if options.BaseURL != "" {
		cfg.Service.BaseURL = options.BaseURL
	}
	if err = cfg.Validate(); err != nil {
		return err
	}
	logger := authsession.NewLogger(cfg.Log, stderr)
	registry := prometheus.NewRegistry()
	metrics, err := transport.NewMetrics(registry)
	if err != nil {
		return err
	}
	manager, closer, err := authsession.NewManager(ctx, cfg, logger, session.WithMetrics(metrics))
	if err != nil {
		return err
	}
	defer closer()
	if cfg.Service.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Service.Timeout)
		defer cancel()
	}

	if parser.Active == nil {
		return fmt.Errorf("command was empty")
	}
	switch parser.Active.Name {
	case "login":
		err = login(ctx, manager, &options.Login, stdout)
	case "register":
		err = register(ctx, manager, &options.Register, stdout)
	case "logout":
		if err = manager.Logout(ctx); err == nil {
			_, _ = fmt.Fprintln(stdout, "logged out")
		}
	case "status":
		err = status(ctx, manager, stdout)
	case "get":
		err = get(ctx, manager, cfg.Service.BaseURL, options.Get.Args.Path, stdout)
	default:
		err = fmt.Errorf("unsupported command: %v", parser.Active.Name)
	}
	if options.Metrics {
		printMetrics(registry, stdout)
	}
	return err
}

func login(ctx context.Context, manager *session.Manager, cmd *LoginCommand, stdout io.Writer) error {
	response, err := manager.Login(ctx, &schema.LoginRequest{Username: cmd.Username, Password: cmd.Password})
	if err != nil {
		return fmt.Errorf("login failed: %v", schema.Message(err))
	}
	_, _ = fmt.Fprintf(stdout, "logged in as %v\n", response.User.Username)
	return nil
}

func register(ctx context.Context, manager *session.Manager, cmd *RegisterCommand, stdout io.Writer) error {
	response, err := manager.Register(ctx, &schema.RegisterRequest{Username: cmd.Username, Password: cmd.Password, Email: cmd.Email})
	if err != nil {
		return fmt.Errorf("register failed: %v", schema.Message(err))
	}
	_, _ = fmt.Fprintf(stdout, "registered %v\n", response.User.Username)
	return nil
}

func status(ctx context.Context, manager *session.Manager, stdout io.Writer) error {
	state, err := manager.IsAuthenticated(ctx)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(stdout, state.String())
	return nil
}

func get(ctx context.Context, manager *session.Manager, baseURL, path string, stdout io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, transport.Endpoint(baseURL, path), nil)
	if err != nil {
		return err
	}
	resp, err := manager.Client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = fmt.Fprintln(stdout, resp.Status)
	_, err = io.Copy(stdout, resp.Body)
	return err
}

func printMetrics(gatherer prometheus.Gatherer, w io.Writer) {
	families, err := gatherer.Gather()
	if err != nil {
		return
	}
	var lines []string
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			var labels []string
			for _, label := range metric.GetLabel() {
				labels = append(labels, label.GetName()+"="+label.GetValue())
			}
			lines = append(lines, fmt.Sprintf("%v{%v} %v", family.GetName(), strings.Join(labels, ","), metric.GetCounter().GetValue()))
		}
	}
	sort.Strings(lines)
	for _, line := range lines {
		_, _ = fmt.Fprintln(w, line)
	}
}
