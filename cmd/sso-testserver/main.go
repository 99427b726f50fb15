package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"git.sr.ht/~jakintosh/sso/internal/api"
	"git.sr.ht/~jakintosh/sso/internal/clients"
	"git.sr.ht/~jakintosh/sso/internal/database"
	"git.sr.ht/~jakintosh/sso/internal/provider"
	"git.sr.ht/~jakintosh/sso/pkg/server"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds all command-line configuration
type Config struct {
	ListenAddr   string
	ClientName   string
	ClientSecret string
	ClientToken  string
	LoginURL     string
	RegisterURL  string
	Users        []UserCredentials
	DataDir      string
	Keep         bool
	Quiet        bool
}

// UserCredentials holds username and password
type UserCredentials struct {
	Username string
	Password string
}

// OutputContract is the JSON structure emitted on stdout
type OutputContract struct {
	BaseURL string       `json:"base_url"`
	Paths   OutputPaths  `json:"paths"`
	Client  OutputClient `json:"client"`
	Calls   []string     `json:"calls"`
	Users   []OutputUser `json:"users"`
}

type OutputPaths struct {
	DataDir    string `json:"data_dir"`
	DBPath     string `json:"db_path"`
	ClientsDir string `json:"clients_dir"`
}

type OutputClient struct {
	Name   string `json:"name"`
	Secret string `json:"secret"`
	Token  string `json:"token"`
}

type OutputUser struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserFlag is a custom flag type for repeatable --user flags
type UserFlag []UserCredentials

func (u *UserFlag) String() string {
	return fmt.Sprintf("%v", *u)
}

func (u *UserFlag) Set(value string) error {
	username, password, ok := strings.Cut(value, ":")
	if !ok {
		return fmt.Errorf("user must be in format 'username:password'")
	}
	*u = append(*u, UserCredentials{Username: username, Password: password})
	return nil
}

func main() {
	cfg := parseFlags()

	log := logrus.New()
	if cfg.Quiet {
		log.SetOutput(io.Discard)
	}

	workspace, cleanup, err := createWorkspace(cfg)
	if err != nil {
		log.Fatalf("failed to create workspace: %v", err)
	}
	defer cleanup()

	if err := writeClientDefinition(workspace.ClientsDir, cfg); err != nil {
		log.Fatalf("failed to write client definition: %v", err)
	}

	db, err := database.NewSQLiteStore(workspace.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	registry, err := clients.Load(workspace.ClientsDir, clients.WithLogger(log))
	if err != nil {
		log.Fatalf("failed to load clients: %v", err)
	}

	p := provider.New(
		db.IdentityStore(),
		db.TokenStore(),
		db.ContextStore(),
		registry,
		provider.PasswordModeProduction,
		log,
	)
	if err := seedUsers(p, cfg.Users); err != nil {
		log.Fatalf("failed to seed users: %v", err)
	}

	srv := server.New(provider.Build(p, cfg.LoginURL, cfg.RegisterURL), server.WithLogger(log))
	router := api.New(srv, api.WithLogger(log)).Router()

	// ephemeral port unless --listen says otherwise
	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}
	defer listener.Close()

	addr := listener.Addr().(*net.TCPAddr)
	contract := OutputContract{
		BaseURL: fmt.Sprintf("http://%s:%d", addr.IP, addr.Port),
		Paths: OutputPaths{
			DataDir:    workspace.DataDir,
			DBPath:     workspace.DBPath,
			ClientsDir: workspace.ClientsDir,
		},
		Client: OutputClient{
			Name:   cfg.ClientName,
			Secret: cfg.ClientSecret,
			Token:  cfg.ClientToken,
		},
		Users: make([]OutputUser, len(cfg.Users)),
	}
	for _, call := range srv.EnabledCalls() {
		contract.Calls = append(contract.Calls, string(call))
	}
	for i, user := range cfg.Users {
		contract.Users[i] = OutputUser{Username: user.Username, Password: user.Password}
	}

	encoder := json.NewEncoder(os.Stdout)
	if err := encoder.Encode(contract); err != nil {
		log.Fatalf("failed to encode JSON contract: %v", err)
	}

	httpServer := &http.Server{Handler: router}
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.Serve(listener)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErr:
		log.Errorf("server error: %v", err)
	case <-ctx.Done():
		log.Info("received signal, shutting down")
		_ = httpServer.Shutdown(context.Background())
	}
}

func parseFlags() Config {
	var cfg Config
	var users UserFlag

	flag.StringVar(&cfg.ListenAddr, "listen", "127.0.0.1:0", "Listen address (default uses ephemeral port)")
	flag.StringVar(&cfg.ClientName, "client-name", "test-app", "Client application name")
	flag.StringVar(&cfg.ClientSecret, "client-secret", "secret", "Client secret")
	flag.StringVar(&cfg.ClientToken, "client-token", "token", "Client token")
	flag.StringVar(&cfg.LoginURL, "login-url", "", "Hosted login page URL (enables generateLoginUrl with --register-url)")
	flag.StringVar(&cfg.RegisterURL, "register-url", "", "Hosted register page URL")
	flag.Var(&users, "user", "User credentials in format 'username:password' (repeatable)")
	flag.StringVar(&cfg.DataDir, "data-dir", "", "Data directory (uses temp dir if not set)")
	flag.BoolVar(&cfg.Keep, "keep", false, "Keep data directory on exit")
	flag.BoolVar(&cfg.Quiet, "quiet", false, "Suppress log output")

	flag.Parse()

	if len(users) == 0 {
		cfg.Users = []UserCredentials{{Username: "test", Password: "test"}}
	} else {
		cfg.Users = users
	}

	return cfg
}

type Workspace struct {
	DataDir    string
	DBPath     string
	ClientsDir string
}

func createWorkspace(cfg Config) (*Workspace, func(), error) {
	var dataDir string
	var shouldCleanup bool

	if cfg.DataDir != "" {
		dataDir = cfg.DataDir
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, nil, err
		}
	} else {
		tempDir, err := os.MkdirTemp("", "sso-testserver-*")
		if err != nil {
			return nil, nil, err
		}
		dataDir = tempDir
		shouldCleanup = !cfg.Keep
	}

	workspace := &Workspace{
		DataDir:    dataDir,
		DBPath:     filepath.Join(dataDir, "db.sqlite"),
		ClientsDir: filepath.Join(dataDir, "clients"),
	}
	if err := os.MkdirAll(workspace.ClientsDir, 0755); err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if shouldCleanup {
			os.RemoveAll(dataDir)
		}
	}

	return workspace, cleanup, nil
}

func writeClientDefinition(clientsDir string, cfg Config) error {
	def := clients.Definition{
		Name:   cfg.ClientName,
		Secret: cfg.ClientSecret,
		Token:  cfg.ClientToken,
	}

	data, err := yaml.Marshal(def)
	if err != nil {
		return fmt.Errorf("marshal client YAML: %w", err)
	}

	path := filepath.Join(clientsDir, cfg.ClientName+".yaml")
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write client file: %w", err)
	}

	return nil
}

func seedUsers(p *provider.Provider, users []UserCredentials) error {
	for _, user := range users {
		ok, err := p.RegisterUser(context.Background(), user.Username, user.Password)
		if err != nil {
			return fmt.Errorf("register %s: %w", user.Username, err)
		}
		if !ok {
			return fmt.Errorf("register %s: refused", user.Username)
		}
	}

	return nil
}
