package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/frahmantamala/securemind/internal/claims"
	"github.com/frahmantamala/securemind/internal/identity"
	"github.com/frahmantamala/securemind/internal/roles"
	"github.com/frahmantamala/securemind/internal/user"
	"github.com/spf13/cobra"
)

var (
	seedFile      string
	adminEmail    string
	adminPassword string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed directory data and the first admin",
	Long:  `Import employees and preapprovals from JSON files, or bootstrap an admin account.`,
}

var seedEmployeesCmd = &cobra.Command{
	Use:   "employees",
	Short: "Import employee records from a JSON array",
	Run: func(cmd *cobra.Command, args []string) {
		runSeed(func(ctx context.Context, app *App, r io.Reader) (int, error) {
			return app.Directory.ImportJSON(ctx, r)
		})
	},
}

var seedPreapprovalsCmd = &cobra.Command{
	Use:   "preapprovals",
	Short: "Import preapproved roles from a JSON array of {userId, role}",
	Run: func(cmd *cobra.Command, args []string) {
		runSeed(func(ctx context.Context, app *App, r io.Reader) (int, error) {
			return app.Registration.ImportPreapprovals(ctx, r)
		})
	},
}

var seedAdminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Create (or promote) an admin account",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		app, err := newApp(ctx)
		if err != nil {
			log.Fatalf("failed to init: %v", err)
		}
		defer app.Close()

		uid, err := seedAdmin(ctx, app, adminEmail, adminPassword)
		if err != nil {
			log.Fatalf("failed to seed admin: %v", err)
		}
		fmt.Println("Seeded admin user:", adminEmail, uid)
	},
}

func runSeed(importFn func(ctx context.Context, app *App, r io.Reader) (int, error)) {
	ctx := context.Background()
	f, err := os.Open(seedFile)
	if err != nil {
		log.Fatalf("failed to open seed file: %v", err)
	}
	defer f.Close()

	app, err := newApp(ctx)
	if err != nil {
		log.Fatalf("failed to init: %v", err)
	}
	defer app.Close()

	n, err := importFn(ctx, app, f)
	if err != nil {
		log.Fatalf("seed stopped after %d records: %v", n, err)
	}
	fmt.Printf("Seeded %d records from %s\n", n, seedFile)
}

// seedAdmin reuses an existing account with the same email so the command can
// be rerun safely.
func seedAdmin(ctx context.Context, app *App, email, password string) (string, error) {
	account, err := app.Identity.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		fmt.Println("admin user already exists; will ensure role")
	case identity.IsUserNotFound(err):
		account, err = app.Identity.CreateUser(ctx, identity.CreateParams{
			Email:       email,
			Password:    password,
			DisplayName: "Administrator",
		})
		if err != nil {
			return "", err
		}
	default:
		return "", err
	}

	patch := user.ProfilePatch{Email: user.String(account.Email), Disabled: user.Bool(false)}
	if err := app.Propagator.ApplyRole(ctx, account.UID, roles.Admin, patch, claims.LegacyFlagIf(app.Config.Claims.LegacyRoleFlag)); err != nil {
		return "", err
	}
	return account.UID, nil
}

func init() {
	seedEmployeesCmd.Flags().StringVarP(&seedFile, "file", "f", "seed/employees.json", "employee seed file")
	seedPreapprovalsCmd.Flags().StringVarP(&seedFile, "file", "f", "seed/preapprovals.json", "preapproval seed file")

	seedAdminCmd.Flags().StringVar(&adminEmail, "email", "", "admin email")
	seedAdminCmd.Flags().StringVar(&adminPassword, "password", "", "admin password")
	_ = seedAdminCmd.MarkFlagRequired("email")
	_ = seedAdminCmd.MarkFlagRequired("password")

	seedCmd.AddCommand(seedEmployeesCmd, seedPreapprovalsCmd, seedAdminCmd)
}
