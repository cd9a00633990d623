package logger

import (
	"context"
	"fmt"
	"time"

	"go-edu/internal/config"
	"go-edu/internal/database"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap/zapcore"
)

// LogEntry holds the data passed from Zap to our worker
type LogEntry struct {
	Level         zapcore.Level
	Message       string
	ActorID       string
	InstitutionID string
	Caller        string // Function name
}

type logRecord struct {
	AppID         string    `bson:"app_id"`
	Level         string    `bson:"level"`
	Message       string    `bson:"message"`
	ActorID       string    `bson:"actor_id,omitempty"`
	InstitutionID string    `bson:"institution_id,omitempty"`
	Caller        string    `bson:"caller,omitempty"`
	CreatedOnUtc  time.Time `bson:"created_on_utc"`
}

// DBLogWriter handles the async writing
type DBLogWriter struct {
	db      *mongo.Database
	logChan chan LogEntry
	appId   string
}

// NewDBLogWriter initializes the worker
func NewDBLogWriter(mongodb *database.MongodbDB, cfg *config.Config) *DBLogWriter {
	writer := &DBLogWriter{
		db:      mongodb.DB,
		logChan: make(chan LogEntry, 1000), // Buffer 1000 logs
		appId:   cfg.AppId,
	}

	// Start the background worker immediately
	go writer.processLogs()

	return writer
}

// AddLog is called by our Zap hook
func (w *DBLogWriter) AddLog(entry LogEntry) {
	select {
	case w.logChan <- entry:
		// Log pushed to channel
	default:
		// Channel full: drop log to prevent blocking the API
		fmt.Println("DB Log Channel Full! Dropping log:", entry.Message)
	}
}

func (w *DBLogWriter) processLogs() {
	for entry := range w.logChan {
		record := logRecord{
			AppID:         w.appId,
			Level:         entry.Level.String(),
			Message:       entry.Message,
			ActorID:       entry.ActorID,
			InstitutionID: entry.InstitutionID,
			Caller:        entry.Caller,
			CreatedOnUtc:  time.Now().UTC(),
		}

		// Insert into DB (safely ignore errors to keep app running)
		w.db.Collection("logs").InsertOne(context.Background(), record)
	}
}
