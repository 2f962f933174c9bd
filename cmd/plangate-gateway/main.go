package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/netgrid-io/plangate/internal/api"
	"github.com/netgrid-io/plangate/internal/auth"
	"github.com/netgrid-io/plangate/internal/celrule"
	"github.com/netgrid-io/plangate/internal/config"
	"github.com/netgrid-io/plangate/internal/engine"
	"github.com/netgrid-io/plangate/internal/gateway"
)

func main() {
	if err := runFn(os.Args[1:], os.Getenv, listenAndServe, newServer); err != nil {
		fatalf("server error: %v", err)
	}
}

var runFn = run
var fatalf = log.Fatalf

func newServer(cfg config.Config) (*http.Server, error) {
	rules := engine.DefaultRules()
	for _, rc := range cfg.Rules {
		rule, err := celrule.New(celrule.Spec{
			Name:        rc.Name,
			Description: rc.Description,
			Required:    rc.Required,
			Expr:        rc.Expr,
		})
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	service := gateway.NewService(
		engine.New(rules),
		gateway.NewInMemoryStore(cfg.RetentionLimit),
		cfg.Environments,
	)

	h := &api.Handler{
		Auth:    auth.NewAuthenticatorFromEnv(),
		Service: service,
	}
	return &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewRouter(h),
		ReadHeaderTimeout: 5 * time.Second,
	}, nil
}

type envFn func(string) string
type listenFn func(*http.Server) error
type serverFactory func(cfg config.Config) (*http.Server, error)

func run(args []string, getenv envFn, listen listenFn, factory serverFactory) error {
	fs := flag.NewFlagSet("plangate-gateway", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to plangate config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfgFile := *configPath
	if cfgFile == "" {
		cfgFile = getenv("PLANGATE_CONFIG_PATH")
	}

	cfg := config.Default()
	if cfgFile != "" {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	if addr := getenv("PLANGATE_LISTEN_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}

	server, err := factory(cfg)
	if err != nil {
		return err
	}

	log.Printf("plangate-gateway listening on %s", cfg.ListenAddr)
	if err := listen(server); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func listenAndServe(server *http.Server) error {
	return server.ListenAndServe()
}
