// Command seed fills the database with demo travel posts.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"vlogy/internal/cache"
	"vlogy/internal/config"
	"vlogy/internal/database"
	"vlogy/internal/middleware"
	"vlogy/internal/seed"
)

func main() {
	numPosts := flag.Int("posts", 12, "Number of posts to create")
	shouldClean := flag.Bool("clean", false, "Delete existing posts before seeding")
	seedValue := flag.Int64("seed", time.Now().UnixNano(), "Random seed for generated content")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	middleware.ConfigureLogger(cfg.Env)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	rdb := cache.NewClient(cfg.RedisURL)
	if rdb != nil {
		defer rdb.Close()
	}

	ctx := context.Background()
	s := seed.NewSeeder(db, cache.New(rdb), *seedValue)

	if *shouldClean {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	posts, err := s.SeedPosts(ctx, *numPosts)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Printf("Seeded %d posts", len(posts))
}
