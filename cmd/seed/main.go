package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"eventbook/internal/events"
	"eventbook/internal/shared/config"
	"eventbook/internal/shared/database"
	"eventbook/internal/users"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const seedPassword = "qwerty123"

type Seeder struct {
	db *database.DB
}

func main() {
	_ = godotenv.Load()
	fmt.Println("Starting eventbook database seeder...")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	seeder := &Seeder{db: db}

	fmt.Println("\nCleaning database...")
	if err := seeder.CleanDatabase(); err != nil {
		log.Fatalf("Failed to clean database: %v", err)
	}

	fmt.Println("\nSeeding database...")
	eventIDs, err := seeder.SeedAll()
	if err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}

	fmt.Println("\nSeeding completed. Try a reservation with:")
	fmt.Printf("  EVENT_ID=%s go run ./cmd/loadtest\n", eventIDs["Conf2025"])
	os.Exit(0)
}

// CleanDatabase truncates all tables, children first
func (s *Seeder) CleanDatabase() error {
	tables := []string{"bookings", "ticket_pools", "events", "users"}

	return s.db.PostgreSQL.Transaction(func(tx *gorm.DB) error {
		for _, table := range tables {
			fmt.Printf("  Truncating table: %s\n", table)
			if err := tx.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)).Error; err != nil {
				return fmt.Errorf("failed to truncate table %s: %w", table, err)
			}
		}
		return nil
	})
}

func (s *Seeder) SeedAll() (map[string]uuid.UUID, error) {
	userIDs, err := s.SeedUsers()
	if err != nil {
		return nil, fmt.Errorf("failed to seed users: %w", err)
	}

	eventIDs, err := s.SeedEvents(userIDs["organizer"])
	if err != nil {
		return nil, fmt.Errorf("failed to seed events: %w", err)
	}

	// Cached event details would point at the truncated rows
	if s.db.Redis != nil {
		if err := s.db.Redis.FlushDB(context.Background()).Err(); err != nil {
			log.Printf("Warning: failed to clear Redis cache: %v", err)
		}
	}

	return eventIDs, nil
}

func (s *Seeder) SeedUsers() (map[string]uuid.UUID, error) {
	fmt.Println("  Seeding users...")

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	usersData := []struct {
		key       string
		firstName string
		lastName  string
		email     string
		role      users.Role
	}{
		{"admin", "Admin", "User", "admin@eventbook.dev", users.RoleAdmin},
		{"organizer", "Olivia", "Organizer", "organizer@eventbook.dev", users.RoleOrganizer},
		{"buyerA", "Alex", "Buyer", "buyer.a@eventbook.dev", users.RoleUser},
		{"buyerB", "Blair", "Buyer", "buyer.b@eventbook.dev", users.RoleUser},
	}

	userIDs := make(map[string]uuid.UUID, len(usersData))
	for _, userData := range usersData {
		user := users.User{
			FirstName: userData.firstName,
			LastName:  userData.lastName,
			Email:     userData.email,
			Password:  string(hashedPassword),
			Role:      userData.role,
		}
		if err := s.db.PostgreSQL.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to create user %s: %w", userData.email, err)
		}

		userIDs[userData.key] = user.ID
		fmt.Printf("    Created user: %s (%s)\n", user.Email, user.Role)
	}

	return userIDs, nil
}

type seedPool struct {
	name     string
	price    float64
	capacity int
}

func (s *Seeder) SeedEvents(organizerID uuid.UUID) (map[string]uuid.UUID, error) {
	fmt.Println("  Seeding events...")

	start := time.Now().UTC().Truncate(time.Hour).Add(30 * 24 * time.Hour)
	eventsData := []struct {
		title      string
		category   events.Category
		visibility events.Visibility
		free       bool
		pools      []seedPool
	}{
		{"Conf2025", events.CategoryTechnology, events.VisibilityPublic, false,
			[]seedPool{{"GA", 50, 2}, {"VIP", 150, 5}}},
		{"Jazz Night", events.CategoryMusic, events.VisibilityPublic, false,
			[]seedPool{{"GA", 35, 5}}},
		{"City Marathon", events.CategorySports, events.VisibilityPublic, false,
			[]seedPool{{"Runner", 80, 500}, {"Spectator", 0, 1000}}},
		{"Go Meetup", events.CategoryEducation, events.VisibilityPublic, true, nil},
		{"Board Offsite", events.CategoryBusiness, events.VisibilityPrivate, false,
			[]seedPool{{"Attendee", 0, 20}}},
	}

	eventIDs := make(map[string]uuid.UUID, len(eventsData))
	for i, data := range eventsData {
		begins := start.Add(time.Duration(i) * 7 * 24 * time.Hour)
		event := events.Event{
			OrganizerID:   organizerID,
			Title:         data.title,
			Description:   data.title + " seeded for local testing",
			Category:      data.category,
			StartDateTime: begins,
			EndDateTime:   begins.Add(4 * time.Hour),
			VenueName:     "Main Hall",
			IsFreeEvent:   data.free,
			Visibility:    data.visibility,
		}
		if data.free {
			event.TicketPools = events.FreePass(100)
		}
		for pos, p := range data.pools {
			event.TicketPools = append(event.TicketPools, events.NewPool(pos, p.name, p.price, p.capacity))
		}

		if err := s.db.PostgreSQL.Create(&event).Error; err != nil {
			return nil, fmt.Errorf("failed to create event %s: %w", data.title, err)
		}

		eventIDs[data.title] = event.ID
		fmt.Printf("    Created event: %s (%s, %d ticket types)\n", event.Title, event.ID, len(event.TicketPools))
	}

	return eventIDs, nil
}
