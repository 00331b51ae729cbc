package connect

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/joshua-takyi/eventpass/internal/broker"
	"github.com/joshua-takyi/eventpass/internal/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoURI substitutes the password placeholder used in Atlas connection
// strings.
func MongoURI(uri, password string) string {
	if password == "" {
		return uri
	}
	return strings.Replace(uri, "<password>", password, 1)
}

func MongoDBConnect(ctx context.Context, cfg *config.Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(MongoURI(cfg.MongoDBURI, cfg.MongoDBPassword))

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

func MongoDBDisconnect(client *mongo.Client) error {
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect MongoDB: %w", err)
	}
	return nil
}

// Cloudinary returns nil when no credentials are configured.
func Cloudinary(cfg *config.Config) (*cloudinary.Cloudinary, error) {
	if !cfg.CloudinaryEnabled() {
		return nil, nil
	}
	cld, err := cloudinary.NewFromParams(
		cfg.CloudinaryCloudName,
		cfg.CloudinaryAPIKey,
		cfg.CloudinaryAPISecret,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}
	return cld, nil
}

// Publisher dials RabbitMQ when configured and falls back to a no-op
// publisher otherwise. The returned close func is always safe to call.
func Publisher(cfg *config.Config, logger *slog.Logger) (broker.Publisher, func(), error) {
	if !cfg.BrokerEnabled() {
		return broker.NopPublisher{}, func() {}, nil
	}
	p, err := broker.NewRabbitPublisher(cfg.RabbitMQURL, logger)
	if err != nil {
		return nil, nil, err
	}
	return p, p.Close, nil
}
