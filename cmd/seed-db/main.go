// Command seed-db bootstraps a database with an admin account and sample
// catalog data. Existing rows are left untouched, so re-running is safe.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/distriplus/backend/internal/domain/client"
	"github.com/distriplus/backend/internal/domain/product"
	"github.com/distriplus/backend/internal/domain/user"
	"github.com/distriplus/backend/internal/repository"
)

type productJSON struct {
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	SubCategory string          `json:"subCategory"`
	CodeBar     string          `json:"codeBar"`
	PriceBuy    decimal.Decimal `json:"priceBuy"`
	PriceSell   decimal.Decimal `json:"priceSell"`
	Stock       int             `json:"stock"`
	UnitMeasure string          `json:"unitMeasure"`
	Description string          `json:"description"`
	Brand       string          `json:"brand"`
	Provider    string          `json:"provider"`
}

type clientJSON struct {
	Name           string              `json:"name"`
	Email          string              `json:"email"`
	PhoneNumber    string              `json:"phoneNumber"`
	BusinessName   string              `json:"businessName"`
	CommerceName   string              `json:"commerceName"`
	Address        client.Address      `json:"address"`
	IvaCondition   client.IvaCondition `json:"ivaCondition"`
	CUIT           string              `json:"cuit"`
	IngresosBrutos string              `json:"ingresosBrutos"`
}

func main() {
	var (
		databaseURL   string
		productsFile  string
		clientsFile   string
		adminEmail    string
		adminPassword string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&clientsFile, "clients-file", "db/seed/clients.json", "path to clients JSON file")
	flag.StringVar(&adminEmail, "admin-email", "admin@distriplus.local", "email for the seeded admin account")
	flag.StringVar(&adminPassword, "admin-password", "", "password for the seeded admin account (or DISTRI_SEED_ADMIN_PASSWORD env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if adminPassword == "" {
		adminPassword = os.Getenv("DISTRI_SEED_ADMIN_PASSWORD")
	}
	if adminPassword == "" {
		slog.Error("admin password is required: set --admin-password or DISTRI_SEED_ADMIN_PASSWORD")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, clientsFile, adminEmail, adminPassword); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, clientsFile, adminEmail, adminPassword string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedAdmin(ctx, user.NewService(repository.NewUserRepository(pool)), adminEmail, adminPassword); err != nil {
		return errors.Wrap(err, "seed admin user")
	}

	if err := seedProducts(ctx, product.NewService(repository.NewProductRepository(pool)), productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedClients(ctx, client.NewService(repository.NewClientRepository(pool)), clientsFile); err != nil {
		return errors.Wrap(err, "seed clients")
	}

	return nil
}

func seedAdmin(ctx context.Context, users *user.Service, email, password string) error {
	slog.Info("seeding admin account", slog.String("email", email))

	_, err := users.Create(ctx, user.CreateRequest{
		Email:    email,
		Password: password,
		Name:     "Admin",
		Lastname: "Admin",
		Role:     user.RoleAdmin,
	})

	var dup *user.DuplicateEmailError
	if errors.As(err, &dup) {
		slog.Info("admin account already exists, skipping", slog.String("email", email))
		return nil
	}
	return err
}

func seedProducts(ctx context.Context, products *product.Service, path string) error {
	slog.Info("reading products file", slog.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var items []productJSON
	if err := json.Unmarshal(data, &items); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("creating products", slog.Int("count", len(items)))

	for _, p := range items {
		created, err := products.Create(ctx, product.CreateRequest{
			Name:        p.Name,
			Category:    p.Category,
			SubCategory: p.SubCategory,
			CodeBar:     p.CodeBar,
			PriceBuy:    p.PriceBuy,
			PriceSell:   p.PriceSell,
			Stock:       p.Stock,
			UnitMeasure: p.UnitMeasure,
			Description: p.Description,
			Brand:       p.Brand,
			Provider:    p.Provider,
		}, "seed")

		var dup *product.DuplicateBarcodeError
		if errors.As(err, &dup) {
			slog.Info("product already exists, skipping", slog.String("codeBar", p.CodeBar))
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "create product %s", p.Name)
		}

		slog.Info("created product", slog.String("id", created.ID), slog.String("name", created.Name))
	}

	return nil
}

func seedClients(ctx context.Context, clients *client.Service, path string) error {
	slog.Info("reading clients file", slog.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read clients file")
	}

	var items []clientJSON
	if err := json.Unmarshal(data, &items); err != nil {
		return errors.Wrap(err, "parse clients JSON")
	}

	slog.Info("creating clients", slog.Int("count", len(items)))

	for _, c := range items {
		created, err := clients.Create(ctx, client.CreateRequest{
			Name:           c.Name,
			Email:          c.Email,
			PhoneNumber:    c.PhoneNumber,
			BusinessName:   c.BusinessName,
			CommerceName:   c.CommerceName,
			Address:        c.Address,
			IvaCondition:   c.IvaCondition,
			CUIT:           c.CUIT,
			IngresosBrutos: c.IngresosBrutos,
		}, "seed")

		var dup *client.DuplicateCUITError
		if errors.As(err, &dup) {
			slog.Info("client already exists, skipping", slog.String("cuit", c.CUIT))
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "create client %s", c.Name)
		}

		slog.Info("created client", slog.String("id", created.ID), slog.String("name", created.Name))
	}

	return nil
}
