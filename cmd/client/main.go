package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"git.sr.ht/~jakintosh/warrant/pkg/client"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

func main() {
	var (
		server  string
		email   string
		path    string
		watch   time.Duration
		verbose bool
	)
	flag.StringVar(&server, "server", "http://localhost:8080", "warrant server base URL")
	flag.StringVar(&email, "email", "", "account email (prompted when empty)")
	flag.StringVar(&path, "path", "/api/me", "path to GET once logged in")
	flag.DurationVar(&watch, "watch", 0, "repeat the request at this interval until interrupted")
	flag.BoolVar(&verbose, "v", false, "log token refreshes")
	flag.Parse()

	log := logrus.New()
	log.SetOutput(os.Stderr)
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, server, email, path, watch, log); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, server, email, path string, watch time.Duration, log *logrus.Logger) error {
	m, err := client.New(server, client.WithLogger(log))
	if err != nil {
		return err
	}

	if email == "" {
		if email, err = prompt("Email: "); err != nil {
			return err
		}
	}
	password, err := readPassword("Password: ")
	if err != nil {
		return err
	}

	user, err := m.Login(ctx, email, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "logged in as %s (%s)\n", user.Email, user.Role)
	defer m.Logout(context.Background())

	if watch <= 0 {
		return fetch(ctx, m, server+path)
	}

	m.Start(ctx)
	ticker := time.NewTicker(watch)
	defer ticker.Stop()
	for {
		if err := fetch(ctx, m, server+path); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-m.SessionEnded():
			return client.ErrSessionEnded
		case <-ticker.C:
		}
	}
}

func fetch(ctx context.Context, m *client.Manager, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	res, err := m.Do(req)
	if err != nil {
		if errors.Is(err, client.ErrSessionEnded) {
			return fmt.Errorf("session ended, log in again: %w", err)
		}
		return err
	}
	defer res.Body.Close()

	fmt.Fprintf(os.Stderr, "%s\n", res.Status)
	_, err = io.Copy(os.Stdout, res.Body)
	fmt.Println()
	return err
}

func prompt(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func readPassword(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return prompt(label)
	}
	fmt.Fprint(os.Stderr, label)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
