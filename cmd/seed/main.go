package main

import (
	"context"
	"errors"
	"log"

	"zawj-chat/internal/backend"
	"zawj-chat/internal/config"
	"zawj-chat/internal/database"
	"zawj-chat/internal/models"
	"zawj-chat/internal/realtime"
	"zawj-chat/internal/repositories"
	"zawj-chat/internal/repositories/postgres"
	"zawj-chat/internal/services"
	"zawj-chat/pkg/logger"
)

// Seeds demo users, a conversation for every pair and a pending connection
// request from alice to bob.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logg, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatal("Failed to create logger:", err)
	}
	defer logg.Sync()

	logg.Info("Starting database seeding...")

	db, err := database.NewSQLConnection(cfg.Database, logg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	if err := database.Migrate(db, logg); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	ctx := context.Background()
	store := postgres.NewStore(db)
	bus := realtime.NewMemoryBus()
	defer bus.Close()
	be := backend.New(store, bus, logg)

	users := services.NewUserService(store.Users, cfg.JWT.Secret, cfg.JWT.ExpirationTime, logg)
	conversations := services.NewConversationService(store, cfg.Chat.Location(), logg)

	testUsers := []models.RegisterRequest{
		{Username: "alice", Email: "alice@zawj.local", Password: "123456", FirstName: "Alice"},
		{Username: "bob", Email: "bob@zawj.local", Password: "123456", FirstName: "Bob"},
		{Username: "charlie", Email: "charlie@zawj.local", Password: "123456", FirstName: "Charlie"},
	}

	ids := make(map[string]string, len(testUsers))
	for i := range testUsers {
		req := testUsers[i]
		created, err := users.Register(ctx, &req)
		switch {
		case err == nil:
			ids[req.Username] = created.ID
			logg.Info("Created user", "username", req.Username, "id", created.ID)
		case errors.Is(err, services.ErrUserAlreadyExists):
			existing, err := store.Users.FindByEmail(ctx, req.Email)
			if err != nil {
				log.Fatal("Failed to load existing user:", err)
			}
			ids[req.Username] = existing.ID
			logg.Warn("User already exists", "username", req.Username)
		default:
			log.Fatal("Failed to create user:", err)
		}
	}

	pairs := [][2]string{{"alice", "bob"}, {"alice", "charlie"}, {"bob", "charlie"}}
	for _, p := range pairs {
		conv, err := conversations.CreateOrGet(ctx, ids[p[0]], ids[p[1]])
		if err != nil {
			log.Fatal("Failed to create conversation:", err)
		}
		logg.Info("Conversation ready", "users", p, "id", conv.ID)
	}

	if _, err := be.CreateConnection(ctx, ids["alice"], ids["bob"]); err != nil {
		if !errors.Is(err, repositories.ErrConnectionExists) {
			log.Fatal("Failed to create connection request:", err)
		}
		logg.Warn("Connection between alice and bob already exists")
	} else {
		logg.Info("Created pending connection request", "from", "alice", "to", "bob")
	}

	logg.Info("Database seeding completed successfully!")
}
