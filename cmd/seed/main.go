// Command main runs the demo data seeder for Inkwell.
package main

import (
	"context"
	"flag"
	"log"

	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()
	numPosts := flag.Int("posts", defaults.Posts, "Number of posts to create")
	numAuthors := flag.Int("authors", defaults.Authors, "Number of distinct author ids")
	maxRatings := flag.Int("max-ratings", defaults.MaxRatings, "Maximum ratings per post")
	maxComments := flag.Int("max-comments", defaults.MaxComments, "Maximum comments per post")
	shouldClean := flag.Bool("clean", defaults.Clean, "Delete existing posts before seeding")
	flag.Parse()

	log.Printf("Target: %d posts by %d authors, clean=%v", *numPosts, *numAuthors, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close() }()

	opts := seed.Options{
		Posts:       *numPosts,
		Authors:     *numAuthors,
		MaxRatings:  *maxRatings,
		MaxComments: *maxComments,
		MaxDays:     defaults.MaxDays,
		RatingMin:   cfg.RatingMin,
		RatingMax:   cfg.RatingMax,
		Clean:       *shouldClean,
	}
	summary, err := seed.Seed(context.Background(), db, opts)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeded %d posts, %d ratings, %d comments", summary.Posts, summary.Ratings, summary.Comments)
}
