package main

import (
	"log"

	"biblo-chat-be/internal/config"
	"biblo-chat-be/internal/model"
	"biblo-chat-be/pkg/database"
)

// Creates the knowledge chunk and session archive tables. The chunks themselves are
// loaded by the offline indexing job.
func main() {
	cfg := config.Load()
	if cfg.Database.Connection == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, cfg.Database.Debug)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Running migration...")
	if err := database.Migrate(db, &model.KnowledgeChunk{}, &model.SessionLog{}); err != nil {
		log.Fatal("Error: migration failed:", err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_knowledge_chunks_embedding ON knowledge_chunks USING hnsw (embedding_value vector_cosine_ops);`,
		`CREATE INDEX IF NOT EXISTS idx_session_logs_session_end ON session_logs (session_end DESC);`,
	}
	for _, sql := range indexes {
		if err := db.Exec(sql).Error; err != nil {
			log.Fatalf("Error: %s: %v", sql, err)
		}
	}

	log.Println("Migration completed")
}
