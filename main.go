package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"tienda-service/handlers"
	"tienda-service/internal/auth"
	"tienda-service/internal/cart"
	"tienda-service/internal/consul"
	"tienda-service/internal/images"
	"tienda-service/internal/orders"
	"tienda-service/internal/products"
	"tienda-service/internal/stores/kafka"
	"tienda-service/internal/stores/postgres"
	"tienda-service/internal/users"
	"tienda-service/pkg/logkey"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, relying on the environment")
	}

	if err := startApp(); err != nil {
		slog.Error("service stopped", slog.String(logkey.ERROR, err.Error()))
		os.Exit(1)
	}
}

func startApp() error {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := postgres.OpenDB()
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if err := postgres.Migrate(db); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	keys, err := loadAuthKeys()
	if err != nil {
		return fmt.Errorf("loading auth keys: %w", err)
	}

	uConf, err := users.NewConf(db)
	if err != nil {
		return fmt.Errorf("setting up users store: %w", err)
	}
	pConn, err := products.NewConn(db)
	if err != nil {
		return fmt.Errorf("setting up products store: %w", err)
	}
	cConf, err := cart.NewConf(db)
	if err != nil {
		return fmt.Errorf("setting up cart store: %w", err)
	}
	oConf, err := orders.NewConf(db)
	if err != nil {
		return fmt.Errorf("setting up orders store: %w", err)
	}

	img, err := images.NewStore(envOrDefault("UPLOADS_DIR", "uploads"))
	if err != nil {
		return fmt.Errorf("setting up image store: %w", err)
	}

	if err := bootstrapAdmin(uConf); err != nil {
		return fmt.Errorf("bootstrapping admin account: %w", err)
	}

	var kConf *kafka.Conf
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		kConf, err = kafka.NewConf(brokers)
		if err != nil {
			return fmt.Errorf("connecting to kafka: %w", err)
		}
		defer kConf.Close()
	} else {
		slog.Warn("KAFKA_BROKERS not set, event publishing disabled")
	}

	port, err := strconv.Atoi(envOrDefault("APP_PORT", "8080"))
	if err != nil {
		return fmt.Errorf("invalid APP_PORT: %w", err)
	}

	if os.Getenv("CONSUL_HTTP_ADDR") != "" {
		client, err := consul.NewClient()
		if err != nil {
			return fmt.Errorf("connecting to consul: %w", err)
		}
		serviceID := "tienda-" + uuid.NewString()
		address := envOrDefault("SERVICE_ADDRESS", "localhost")
		if err := consul.RegisterService(client, "tienda", serviceID, address, port); err != nil {
			return fmt.Errorf("registering with consul: %w", err)
		}
		defer func() {
			if err := consul.DeregisterService(client, serviceID); err != nil {
				slog.Error("consul deregistration failed", slog.String(logkey.ERROR, err.Error()))
			}
		}()
	} else {
		slog.Warn("CONSUL_HTTP_ADDR not set, service registration disabled")
	}

	api := handlers.API(keys, uConf, products.Conf{Service: pConn}, cConf, oConf, kConf, img)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      api,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("server listening", slog.String("Addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		slog.Info("shutdown started", slog.String("Signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}
	return nil
}

func loadAuthKeys() (*auth.Keys, error) {
	privatePEM, err := os.ReadFile(envOrDefault("AUTH_PRIVATE_KEY_PATH", "private.pem"))
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}
	publicPEM, err := os.ReadFile(envOrDefault("AUTH_PUBLIC_KEY_PATH", "pubkey.pem"))
	if err != nil {
		return nil, fmt.Errorf("reading public key: %w", err)
	}
	return auth.NewKeys(privatePEM, publicPEM)
}

// bootstrapAdmin creates the admin account from the environment. Accounts
// can not self-register as admin, so this is the only way in.
func bootstrapAdmin(uConf *users.Conf) error {
	login := os.Getenv("ADMIN_LOGIN")
	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if login == "" || email == "" || password == "" {
		slog.Warn("ADMIN_LOGIN/ADMIN_EMAIL/ADMIN_PASSWORD not set, skipping admin bootstrap")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	user, err := uConf.EnsureAdmin(ctx, users.NewUser{
		Name:      "Admin",
		Surname:   "Admin",
		LoginName: login,
		Email:     email,
		Password:  password,
	})
	if err != nil && !errors.Is(err, users.ErrAlreadyExists) {
		return err
	}
	if user.ID != "" {
		slog.Info("admin account created", slog.String("LoginName", login))
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
