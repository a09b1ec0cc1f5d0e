package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"tutorlink/backend/internal/auth"
	"tutorlink/backend/internal/config"
	"tutorlink/backend/internal/logging"
	"tutorlink/backend/internal/models"
	"tutorlink/backend/internal/storage"

	"github.com/rs/zerolog/log"
)

const usage = `Usage: admin <command> [args]

Commands:
  create-user <student|tutor> <email> <first_name> <last_name>
  create-room <student_id> <tutor_id>
  deactivate-room <room_id>
  issue-token <user_id>
  online`

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Warn().Err(err).Msg("could not read .env file")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logging.Setup(cfg.LogLevel, true)

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}
	if err := storage.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}
	// No Redis here: the online command reads the database columns.
	s := storage.NewStorageService(db, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	args := os.Args[2:]
	switch os.Args[1] {
	case "create-user":
		if len(args) != 4 {
			fmt.Println("Usage: admin create-user <student|tutor> <email> <first_name> <last_name>")
			os.Exit(1)
		}
		user, err := createUser(ctx, s, models.Role(args[0]), args[1], args[2], args[3])
		if err != nil {
			log.Fatal().Err(err).Msg("error creating user")
		}
		fmt.Printf("User %s (%s) created.\n", user.ID, user.UserType)
	case "create-room":
		if len(args) != 2 {
			fmt.Println("Usage: admin create-room <student_id> <tutor_id>")
			os.Exit(1)
		}
		room, created, err := s.GetOrCreateRoom(ctx, args[0], args[1])
		if err != nil {
			log.Fatal().Err(err).Msg("error creating room")
		}
		if created {
			fmt.Printf("Room %s created.\n", room.ID)
		} else {
			fmt.Printf("Room %s already exists.\n", room.ID)
		}
	case "deactivate-room":
		if len(args) != 1 {
			fmt.Println("Usage: admin deactivate-room <room_id>")
			os.Exit(1)
		}
		if err := s.DeactivateRoom(ctx, args[0]); err != nil {
			log.Fatal().Err(err).Msg("error deactivating room")
		}
		fmt.Printf("Room %s has been deactivated.\n", args[0])
	case "issue-token":
		if len(args) != 1 {
			fmt.Println("Usage: admin issue-token <user_id>")
			os.Exit(1)
		}
		authn := auth.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL, s)
		token, err := issueToken(ctx, s, authn, args[0])
		if err != nil {
			log.Fatal().Err(err).Msg("error issuing token")
		}
		fmt.Println(token)
	case "online":
		ids, err := s.OnlineUserIDs(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("error reading presence")
		}
		for _, id := range ids {
			fmt.Println(id)
		}
	default:
		fmt.Println("Unknown command")
		fmt.Println(usage)
		os.Exit(1)
	}
}

func createUser(ctx context.Context, s storage.Storage, role models.Role, email, first, last string) (*models.User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("unknown user type %q", role)
	}
	user := &models.User{Email: email, FirstName: first, LastName: last, UserType: role}
	if err := s.SaveUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// issueToken refuses to sign for users that do not exist.
func issueToken(ctx context.Context, s storage.Storage, authn *auth.Authenticator, userID string) (string, error) {
	if _, err := s.GetUserByID(ctx, userID); err != nil {
		return "", err
	}
	return authn.IssueToken(userID)
}
