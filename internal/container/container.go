package container

import (
	"log/slog"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/joshua-takyi/eventpass/internal/broker"
	"github.com/joshua-takyi/eventpass/internal/config"
	"github.com/joshua-takyi/eventpass/internal/helpers"
	"github.com/joshua-takyi/eventpass/internal/mailer"
	"github.com/joshua-takyi/eventpass/internal/models"
	"github.com/joshua-takyi/eventpass/internal/pass"
	"github.com/joshua-takyi/eventpass/internal/payment"
	"github.com/joshua-takyi/eventpass/internal/services"
	"go.mongodb.org/mongo-driver/mongo"
)

// Container holds all application dependencies
type Container struct {
	Config     *config.Config
	Logger     *slog.Logger
	Cloudinary *cloudinary.Cloudinary
	// Database clients
	MongoDBClient  *mongo.Client
	Repo           *models.MongodbRepo
	Tokens         *helpers.TokenValidator
	BookingService *services.BookingService
	CheckInService *services.CheckInService
}

// NewContainer creates a new dependency injection container. cld may be
// nil, in which case passes are only attached to the email.
func NewContainer(
	cfg *config.Config,
	logger *slog.Logger,
	cld *cloudinary.Cloudinary,
	mongoDBClient *mongo.Client,
	publisher broker.Publisher,
	tokens *helpers.TokenValidator,
) *Container {
	// Initialize repositories
	repo := models.MongodbNewRepo(mongoDBClient, cfg.MongoDBName)

	var notifier mailer.Notifier
	if cfg.MailEnabled() {
		notifier = mailer.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailFrom)
	} else {
		logger.Warn("SMTP not configured, pass emails will only be logged")
		notifier = mailer.NewLogMailer(logger)
	}

	deps := services.BookingDeps{
		Bookings:  repo,
		Events:    repo,
		Attendees: repo,
		Gateway:   payment.NewRazorpayGateway(cfg.RazorpayKeyID, cfg.RazorpayKeySecret),
		Encoder:   pass.NewEncoder(),
		Notifier:  notifier,
		Publisher: publisher,
		Logger:    logger,
	}
	if cld != nil {
		deps.Images = helpers.NewCloudinaryHost(cld)
	}

	bookingService := services.NewBookingService(deps, services.BookingConfig{
		KeyID:                cfg.RazorpayKeyID,
		KeySecret:            []byte(cfg.RazorpayKeySecret),
		WebhookSecret:        []byte(cfg.RazorpayWebhookSecret),
		Currency:             cfg.Currency,
		PendingRecoveryAfter: cfg.PendingRecoveryAfter,
	})
	checkInService := services.NewCheckInService(repo, publisher, logger)

	return &Container{
		Config:         cfg,
		Logger:         logger,
		Cloudinary:     cld,
		MongoDBClient:  mongoDBClient,
		Repo:           repo,
		Tokens:         tokens,
		BookingService: bookingService,
		CheckInService: checkInService,
	}
}
