package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/nkiryanov/smarthome/internal/apperrors"
	"github.com/nkiryanov/smarthome/internal/db"
	"github.com/nkiryanov/smarthome/internal/models"
	"github.com/nkiryanov/smarthome/internal/repository/postgres"
	"github.com/nkiryanov/smarthome/internal/service/user"
)

type options struct {
	DatabaseDSN string
	Username    string
	Password    string
	Role        string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Getenv, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func parseOptions(getenv func(string) string, args []string) (options, error) {
	o := options{
		DatabaseDSN: getenv("DATABASE_URI"),
		Role:        models.RoleUser,
	}

	fs := pflag.NewFlagSet("createuser", pflag.ContinueOnError)
	fs.StringVarP(&o.DatabaseDSN, "database", "d", o.DatabaseDSN, "Database connection string")
	fs.StringVarP(&o.Username, "username", "u", "", "Username")
	fs.StringVarP(&o.Password, "password", "p", "", "Password")
	fs.StringVarP(&o.Role, "role", "r", o.Role, "Role (user, admin)")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.DatabaseDSN == "" {
		return o, errors.New("database connection string is required")
	}
	if o.Username == "" || o.Password == "" {
		return o, errors.New("username and password are required")
	}

	return o, nil
}

// Create user with role and print its id
func run(ctx context.Context, getenv func(string) string, args []string) error {
	o, err := parseOptions(getenv, args)
	if err != nil {
		return err
	}

	pool, err := db.ConnectAndMigrate(ctx, o.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("error while connecting to db. Err: %w", err)
	}
	defer pool.Close()

	s := user.NewService(nil, postgres.NewStorage(pool))
	u, err := s.CreateUser(ctx, o.Username, o.Password, o.Role)
	switch {
	case errors.Is(err, apperrors.ErrUserAlreadyExists):
		return fmt.Errorf("user %q already exists", o.Username)
	case errors.Is(err, apperrors.ErrRoleNotFound):
		return fmt.Errorf("role %q not found", o.Role)
	case err != nil:
		return err
	}

	fmt.Printf("User %s created with role %s, id %s\n", u.Username, u.Role.Name, u.ID)
	return nil
}
