package main

import (
	"os"

	"github.com/joho/godotenv"

	"vocalis/core"
	"vocalis/worker"
)

func main() {
	if err := godotenv.Load(".env.local"); err != nil {
		core.GetLogger().Debug("no .env.local file found")
	}

	// One JSON object per line so the platform's log collector can parse
	// job records.
	logger := core.NewJSONLogger()
	core.SetLogger(*logger)

	backend := worker.BackendConfig{
		BaseURL: getEnv("BACKEND_BASE_URL", "http://localhost:8000/v1"),
		APIKey:  os.Getenv("BACKEND_API_KEY"),
		Model:   getEnv("BACKEND_MODEL", "meta-llama/Llama-3.1-8B-Instruct"),
	}
	w := worker.NewWorker(worker.NewOpenAIGenerator(backend), logger)
	server := worker.NewServer(w, logger)

	addr := getEnv("WORKER_ADDR", ":8080")
	logger.Info("worker listening", "addr", addr, "model", backend.Model)
	if err := server.Router().Run(addr); err != nil {
		logger.Fatal("worker server failed", "error", err)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
