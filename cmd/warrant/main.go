package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"git.sr.ht/~jakintosh/warrant/internal/api"
	"git.sr.ht/~jakintosh/warrant/internal/config"
	"git.sr.ht/~jakintosh/warrant/internal/database"
	"git.sr.ht/~jakintosh/warrant/internal/logging"
	"git.sr.ht/~jakintosh/warrant/internal/metrics"
	"git.sr.ht/~jakintosh/warrant/internal/rbac"
	"git.sr.ht/~jakintosh/warrant/internal/service"
	"git.sr.ht/~jakintosh/warrant/pkg/tokens"
	"github.com/sirupsen/logrus"
)

// UserCredentials seeds one identity at startup.
type UserCredentials struct {
	Email    string
	Password string
	Role     rbac.Role
}

// UserFlag is a custom flag type for repeatable -user flags
type UserFlag []UserCredentials

func (u *UserFlag) String() string {
	emails := make([]string, len(*u))
	for i, c := range *u {
		emails[i] = c.Email
	}
	return strings.Join(emails, ",")
}

func (u *UserFlag) Set(value string) error {
	parts := strings.SplitN(value, ":", 3)
	if len(parts) != 3 {
		return fmt.Errorf("user must be in format 'email:password:role'")
	}
	role, err := rbac.ParseRole(parts[2])
	if err != nil {
		return err
	}
	*u = append(*u, UserCredentials{Email: parts[0], Password: parts[1], Role: role})
	return nil
}

func main() {
	var (
		configPath string
		envFile    string
		users      UserFlag
	)
	flag.StringVar(&configPath, "config", "", "path to a YAML config file")
	flag.StringVar(&envFile, "env", "", "path to a .env file (default .env if present)")
	flag.Var(&users, "user", "seed an identity as email:password:role (repeatable)")
	flag.Parse()

	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, closer, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	if err := run(cfg, users, log); err != nil {
		log.WithError(err).Fatal("server failed")
	}
}

func run(cfg *config.Config, users UserFlag, log *logrus.Logger) error {
	ctx := context.Background()

	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	policy, stopWatch, err := loadPolicy(cfg.PolicyFile, log)
	if err != nil {
		return err
	}
	defer stopWatch()

	codec, err := tokens.NewCodec([]byte(cfg.AccessSecret), []byte(cfg.RefreshSecret))
	if err != nil {
		return err
	}

	svc := service.New(
		db.IdentityStore(),
		codec,
		service.PasswordModeProduction,
		service.WithTTLs(cfg.AccessTTL, cfg.RefreshTTL),
		service.WithLogger(log),
	)
	log.WithFields(logrus.Fields{
		"access_ttl":  svc.AccessTTL().String(),
		"refresh_ttl": svc.RefreshTTL().String(),
	}).Info("token lifetimes")

	for _, u := range users {
		identity, err := svc.Provision(ctx, u.Email, u.Password, "", u.Role)
		switch {
		case errors.Is(err, service.ErrEmailExists):
			log.WithField("email", u.Email).Info("seed user already exists")
		case err != nil:
			return fmt.Errorf("failed to seed %s: %w", u.Email, err)
		default:
			log.WithFields(logrus.Fields{"id": identity.ID, "role": identity.Role}).Info("seeded user")
		}
	}

	a := api.New(
		svc,
		policy,
		api.WithLogger(log),
		api.WithMetrics(metrics.New()),
		api.WithSecureCookies(cfg.Production),
		api.WithRateLimit(cfg.LoginRate.PerSecond, cfg.LoginRate.Burst),
		api.WithHealthCheck(db.Ping),
	)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errc:
		return err
	case sig := <-stop:
		log.WithField("signal", sig.String()).Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loadPolicy(path string, log *logrus.Logger) (*rbac.Policy, func() error, error) {
	if path == "" {
		return rbac.DefaultPolicy(rbac.WithLogger(log)), func() error { return nil }, nil
	}

	policy, err := rbac.LoadPolicyFile(path, rbac.WithLogger(log))
	if err != nil {
		return nil, nil, err
	}
	stop, err := rbac.WatchForDrift(path, log)
	if err != nil {
		log.WithError(err).Warn("policy file will not be watched")
		stop = func() error { return nil }
	}
	log.WithFields(logrus.Fields{"path": path, "roles": len(policy.Roles())}).Info("loaded policy")
	return policy, stop, nil
}
