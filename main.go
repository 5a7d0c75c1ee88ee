package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/example/lexibot/internal/bot"
	"github.com/example/lexibot/internal/database"
	"github.com/example/lexibot/internal/export"
	"github.com/example/lexibot/internal/grading"
	"github.com/example/lexibot/internal/levels"
	"github.com/example/lexibot/internal/quiz"
	"github.com/example/lexibot/internal/scheduler"
	"github.com/example/lexibot/internal/srs"
	"github.com/example/lexibot/internal/stats"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	if err := database.Connect(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	retention := stats.NewRetentionService()
	levelSvc := levels.NewService()
	engine := srs.NewEngine(retention, levelSvc)
	grader := grading.NewGrader(engine)
	quizzes := quiz.NewService(engine)
	streaks := stats.NewStreakService(retention)
	exporter := export.NewExporter(streaks)

	b, err := bot.New(engine, grader, quizzes, levelSvc, streaks, exporter)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	sched := scheduler.New(b, retention)
	if os.Getenv("ENABLE_SCHEDULER") != "false" {
		sched.Start()
		defer sched.Stop()
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		sig := <-sigChan
		log.Printf("Received signal: %v, shutting down", sig)
		b.Stop()
	}()

	log.Println("Bot started. Press Ctrl+C to stop.")
	if err := b.Start(); err != nil {
		log.Fatalf("Bot error: %v", err)
	}
	log.Println("Bot stopped")
}
