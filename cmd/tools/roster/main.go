// cmd/tools/roster/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/config"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/database"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/logger"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/models"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/storage/postgres"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/pkg/roster"
)

const defaultPath = "configs/roster.json"

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	applyCmd := flag.NewFlagSet("apply", flag.ExitOnError)

	addPath := addCmd.String("path", defaultPath, "Path to roster file")
	id := addCmd.String("id", "", "User ID")
	name := addCmd.String("name", "", "Display name")
	role := addCmd.String("role", "", "Role (e.g., admin, responder)")
	email := addCmd.String("email", "", "Email address")
	phone := addCmd.String("phone", "", "E.164 phone number")
	pushToken := addCmd.String("pushToken", "", "Device push token")
	channels := addCmd.String("channels", "", "Comma separated enabled channels (email,sms,push)")

	validatePath := validateCmd.String("path", defaultPath, "Path to roster file")

	applyPath := applyCmd.String("path", defaultPath, "Path to roster file")
	migrate := applyCmd.Bool("migrate", false, "Create tables before seeding")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		if *id == "" || *role == "" {
			fmt.Println("Error: id and role are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		user := models.Recipient{
			ID:        *id,
			Name:      *name,
			Role:      *role,
			Email:     *email,
			Phone:     *phone,
			PushToken: models.PushToken{Value: *pushToken},
			Channels:  parseChannels(*channels),
		}
		if err := addUser(*addPath, user); err != nil {
			fmt.Printf("Error adding user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added user: %s\n", *id)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		r, err := loadValid(*validatePath)
		if err != nil {
			fmt.Printf("Roster validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Roster validation passed. Found %d users.\n", len(r.Users))

	case "apply":
		applyCmd.Parse(os.Args[2:])
		n, err := apply(*applyPath, *migrate)
		if err != nil {
			fmt.Printf("Roster apply failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Upserted %d users.\n", n)

	case "help":
		fallthrough
	default:
		help()
	}
}

func addUser(path string, user models.Recipient) error {
	r, err := roster.Load(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to load roster: %w", err)
		}
		r = &roster.Roster{Version: "1.0.0"}
	}
	if err := r.Add(user); err != nil {
		return err
	}
	return roster.Save(r, path)
}

func loadValid(path string) (*roster.Roster, error) {
	r, err := roster.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// apply upserts every roster user into Postgres.
func apply(path string, migrate bool) (int, error) {
	r, err := loadValid(path)
	if err != nil {
		return 0, err
	}

	cfg, err := config.Load()
	if err != nil {
		return 0, fmt.Errorf("load config: %w", err)
	}
	log := logger.NewStructured(cfg.Logging.Level, "console")

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return 0, err
	}
	defer pg.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store := postgres.New(pg.DB, log)
	if migrate {
		if err := store.EnsureSchema(ctx); err != nil {
			return 0, err
		}
	}
	for _, u := range r.Users {
		if err := store.UpsertUser(ctx, u); err != nil {
			return 0, fmt.Errorf("user %s: %w", u.ID, err)
		}
	}
	return len(r.Users), nil
}

func parseChannels(csv string) models.ChannelPreferences {
	var prefs models.ChannelPreferences
	for _, c := range strings.Split(csv, ",") {
		switch models.Channel(strings.ToLower(strings.TrimSpace(c))) {
		case models.ChannelEmail:
			prefs.Email = true
		case models.ChannelSMS:
			prefs.SMS = true
		case models.ChannelPush:
			prefs.Push = true
		}
	}
	return prefs
}

func help() {
	fmt.Print(`
Usage: roster <command> [flags]

Commands:
  add       Add a user to the roster file
  validate  Validate the roster file
  apply     Upsert every roster user into Postgres
  help      Show this help message

Examples:
  roster add -id u-101 -role responder -phone +15551234567 -channels sms
  roster validate -path configs/roster.json
  roster apply -path configs/roster.json -migrate

Use 'roster <command> -h' for more information about a command.
`)
}
