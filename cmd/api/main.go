package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"movie-watchlist/backend/internal/database"
	"movie-watchlist/backend/internal/routes"
	"movie-watchlist/backend/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	db := database.InitDB()
	defer db.Close()

	r := routes.SetupRouter(db, services.NewSMTPMailer())

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server listening on port %s...", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal(err)
	}
}
