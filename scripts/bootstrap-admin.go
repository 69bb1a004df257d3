package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/commandgrid/pmt/internal/auth"
	"github.com/commandgrid/pmt/internal/model"
	"github.com/commandgrid/pmt/internal/repository"
)

type output struct {
	CompanyID string `json:"company_id"`
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Created   bool   `json:"created"`
	Password  string `json:"password,omitempty"`
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		companyName = flag.String("company", "PMT", "Company name")
		domain      = flag.String("domain", "", "Company domain")
		name        = flag.String("name", "Administrator", "Admin display name")
		email       = flag.String("email", "admin@pmt.local", "Admin email")
		username    = flag.String("username", "admin", "Admin username")
		password    = flag.String("password", os.Getenv("PMT_ADMIN_PASSWORD"), "Admin password (or PMT_ADMIN_PASSWORD); generated when empty")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}
	generated := false
	if *password == "" {
		pw, err := auth.GeneratePassword(20)
		if err != nil {
			fmt.Fprintln(os.Stderr, "generate password:", err)
			os.Exit(1)
		}
		*password = pw
		generated = true
	}
	if err := auth.ValidatePassword(*password); err != nil {
		fmt.Fprintln(os.Stderr, "password:", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, *databaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", err)
		os.Exit(1)
	}
	defer repo.Close()

	out, err := ensureAdmin(ctx, repo, *companyName, *domain, *name, *email, *username, *password)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	if generated && out.Created {
		out.Password = *password
	}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Printf("company=%s user=%s email=%s created=%t\n", out.CompanyID, out.UserID, out.Email, out.Created)
		if out.Password != "" {
			fmt.Printf("password=%s\n", out.Password)
		}
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use plain or json")
		os.Exit(1)
	}
}

// ensureAdmin creates the company and its admin unless the email is already
// registered, in which case the existing account must be an admin.
func ensureAdmin(ctx context.Context, repo *repository.Repository, companyName, domain, name, email, username, password string) (*output, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	existing, err := repo.GetUserByEmail(ctx, email)
	if err == nil {
		if !existing.HasAdminRights() {
			return nil, fmt.Errorf("user %s exists but is not an admin", email)
		}
		return &output{CompanyID: existing.CompanyIDValue(), UserID: existing.ID, Email: existing.Email}, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := auth.NewHasher(0).Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	company := &model.Company{
		ID:        ulid.Make().String(),
		Name:      companyName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if domain != "" {
		company.Domain = &domain
	}
	user := &model.User{
		ID:               ulid.Make().String(),
		CompanyID:        &company.ID,
		Name:             name,
		Email:            email,
		Username:         username,
		PasswordHash:     hash,
		Role:             model.RoleAdmin,
		IsAdmin:          true,
		RegistrationType: model.RegistrationCompany,
		Tier:             model.TierFree,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err = repo.WithTx(ctx, func(tx *repository.Repository) error {
		if err := tx.CreateCompany(ctx, company); err != nil {
			return fmt.Errorf("create company: %w", err)
		}
		if err := tx.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &output{CompanyID: company.ID, UserID: user.ID, Email: user.Email, Created: true}, nil
}
