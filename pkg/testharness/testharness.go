// Package testharness runs an sso-testserver process for integration tests
// of applications that talk to an sso server.
package testharness

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"testing"
	"time"

	"git.sr.ht/~jakintosh/sso/pkg/client"
)

// BinaryEnvVar names the variable holding the sso-testserver path.
const BinaryEnvVar = "SSO_TESTSERVER_BIN"

// Config holds configuration for starting the test harness.
type Config struct {
	ClientName   string
	ClientSecret string
	ClientToken  string
	LoginURL     string
	RegisterURL  string
	Users        []User
	ListenAddr   string
	DataDir      string
	Keep         bool
	BinaryPath   string
	Quiet        bool
}

// User holds test user credentials.
type User struct {
	Username string
	Password string
}

// Harness represents a running sso-testserver instance.
type Harness struct {
	BaseURL      string
	ClientName   string
	ClientSecret string
	ClientToken  string
	Calls        []string
	Users        []User

	cmd    *exec.Cmd
	cancel context.CancelFunc
}

// outputContract matches the JSON structure from sso-testserver
type outputContract struct {
	BaseURL string       `json:"base_url"`
	Client  outputClient `json:"client"`
	Calls   []string     `json:"calls"`
	Users   []outputUser `json:"users"`
}

type outputClient struct {
	Name   string `json:"name"`
	Secret string `json:"secret"`
	Token  string `json:"token"`
}

type outputUser struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Available reports whether an sso-testserver binary can be found.
func Available(cfg Config) bool {
	return findBinary(cfg.BinaryPath) != ""
}

// Start spawns an sso-testserver and returns a handle to it.
// It registers cleanup with t.Cleanup().
func Start(t *testing.T, cfg Config) *Harness {
	t.Helper()

	binaryPath := findBinary(cfg.BinaryPath)
	if binaryPath == "" {
		t.Fatalf("sso-testserver binary not found (check PATH or set Config.BinaryPath or %s)", BinaryEnvVar)
	}

	ctx, cancel := context.WithCancel(context.Background())

	cmd := exec.CommandContext(ctx, binaryPath, buildArgs(cfg)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		t.Fatalf("failed to create stdout pipe: %v", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		t.Fatalf("failed to create stderr pipe: %v", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		t.Fatalf("failed to start sso-testserver: %v", err)
	}

	// first stdout line is the JSON contract
	scanner := bufio.NewScanner(stdout)
	if !scanner.Scan() {
		cancel()
		cmd.Wait()
		t.Fatal("failed to read JSON contract from sso-testserver")
	}

	var contract outputContract
	if err := json.Unmarshal(scanner.Bytes(), &contract); err != nil {
		cancel()
		cmd.Wait()
		t.Fatalf("failed to parse JSON contract: %v", err)
	}

	if !cfg.Quiet {
		go func() {
			for scanner.Scan() {
				t.Logf("[sso-testserver] %s", scanner.Text())
			}
		}()

		go func() {
			stderrScanner := bufio.NewScanner(stderr)
			for stderrScanner.Scan() {
				t.Logf("[sso-testserver stderr] %s", stderrScanner.Text())
			}
		}()
	}

	harness := &Harness{
		BaseURL:      contract.BaseURL,
		ClientName:   contract.Client.Name,
		ClientSecret: contract.Client.Secret,
		ClientToken:  contract.Client.Token,
		Calls:        contract.Calls,
		Users:        make([]User, len(contract.Users)),
		cmd:          cmd,
		cancel:       cancel,
	}
	for i, user := range contract.Users {
		harness.Users[i] = User{Username: user.Username, Password: user.Password}
	}

	t.Cleanup(func() {
		if err := harness.Close(); err != nil {
			t.Logf("warning: harness cleanup failed: %v", err)
		}
	})

	return harness
}

// Client returns a client for the harness server. The test server speaks
// plain HTTP, so the client is built with client.WithInsecureServerURL.
func (h *Harness) Client(
	t *testing.T,
	opts ...client.Option,
) *client.Client {
	t.Helper()
	opts = append(opts, client.WithInsecureServerURL())
	c, err := client.New(h.BaseURL, h.ClientSecret, h.ClientToken, opts...)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return c
}

// Close terminates the sso-testserver process.
func (h *Harness) Close() error {
	if h.cancel != nil {
		h.cancel()
	}

	if h.cmd == nil || h.cmd.Process == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- h.cmd.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		if err := h.cmd.Process.Kill(); err != nil {
			return fmt.Errorf("force kill: %w", err)
		}
		return fmt.Errorf("timeout waiting for graceful shutdown, process killed")
	}
}

func findBinary(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
	}

	if envPath := os.Getenv(BinaryEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	if pathBinary, err := exec.LookPath("sso-testserver"); err == nil {
		return pathBinary
	}

	return ""
}

func buildArgs(cfg Config) []string {
	var args []string

	if cfg.ClientName != "" {
		args = append(args, "--client-name", cfg.ClientName)
	}
	if cfg.ClientSecret != "" {
		args = append(args, "--client-secret", cfg.ClientSecret)
	}
	if cfg.ClientToken != "" {
		args = append(args, "--client-token", cfg.ClientToken)
	}
	if cfg.LoginURL != "" {
		args = append(args, "--login-url", cfg.LoginURL)
	}
	if cfg.RegisterURL != "" {
		args = append(args, "--register-url", cfg.RegisterURL)
	}
	if cfg.ListenAddr != "" {
		args = append(args, "--listen", cfg.ListenAddr)
	}
	if cfg.DataDir != "" {
		args = append(args, "--data-dir", cfg.DataDir)
	}
	if cfg.Keep {
		args = append(args, "--keep")
	}
	if cfg.Quiet {
		args = append(args, "--quiet")
	}
	for _, user := range cfg.Users {
		args = append(args, "--user", fmt.Sprintf("%s:%s", user.Username, user.Password))
	}

	return args
}
