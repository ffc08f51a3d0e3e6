package main

import (
	"log"
	"os"

	"donation-service/internal/database"
	"donation-service/internal/handlers"
	"donation-service/internal/middleware"
	"donation-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found in current directory, trying parent")
		if err := godotenv.Load("../.env"); err != nil {
			log.Println("No .env file found, using system environment variables")
		}
	}

	if mode := os.Getenv("GIN_MODE"); mode != "" {
		gin.SetMode(mode)
	}

	// Initialize Database
	database.Connect()
	database.Migrate()
	db := database.DB

	// Redis/Asynq Client
	redisAddr := os.Getenv("REDIS_URL")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	defer asynqClient.Close()

	// Init Services
	settingsService := services.NewSettingsService(db)
	mpesaService := services.NewMpesaService(settingsService)
	donationService := services.NewDonationService(db, mpesaService, asynqClient)
	notificationService := services.NewNotificationService(settingsService)

	// Handlers
	donationHandler := handlers.NewDonationHandler(donationService)
	mpesaHandler := handlers.NewMpesaHandler(mpesaService, donationService)
	settingsHandler := handlers.NewSettingsHandler(settingsService, notificationService)

	// Initialize Gin
	r := gin.Default()

	// Ping endpoint
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "Welcome to the Donation service",
		})
	})

	api := r.Group("/api")

	donations := api.Group("/donations")
	{
		donations.POST("", middleware.OptionalAuthenticate(), donationHandler.Create)
		donations.POST("/mpesa-callback", donationHandler.Callback)
		donations.POST("/transaction-result", mpesaHandler.TransactionResult)
		donations.POST("/transaction-timeout", mpesaHandler.TransactionTimeout)
		donations.GET("", middleware.Authenticate(), donationHandler.List)
		donations.GET("/stats", middleware.Authenticate(), middleware.RequireAdmin(), donationHandler.Stats)
		donations.GET("/:id", middleware.Authenticate(), donationHandler.Get)
		donations.PATCH("/:id/status", middleware.Authenticate(), middleware.RequireAdmin(), donationHandler.UpdateStatus)
		donations.DELETE("/:id", middleware.Authenticate(), middleware.RequireAdmin(), donationHandler.Delete)
	}

	mpesa := api.Group("/mpesa")
	{
		mpesa.POST("/stk-push", middleware.Authenticate(), mpesaHandler.StkPush)
		mpesa.GET("/stk-status/:checkoutRequestId", middleware.Authenticate(), mpesaHandler.StkStatus)
		mpesa.POST("/callback", mpesaHandler.Callback)
		mpesa.POST("/validation", mpesaHandler.Validation)
		mpesa.POST("/confirmation", mpesaHandler.Confirmation)
		mpesa.GET("/test-connection", middleware.Authenticate(), middleware.RequireAdmin(), mpesaHandler.TestConnection)
		mpesa.GET("/transaction-status/:receiptNumber", middleware.Authenticate(), middleware.RequireAdmin(), mpesaHandler.TransactionStatus)
		mpesa.POST("/register-urls", middleware.Authenticate(), middleware.RequireAdmin(), mpesaHandler.RegisterUrls)
	}

	settings := api.Group("/settings", middleware.Authenticate(), middleware.RequireAdmin())
	{
		settings.POST("/sms/test", settingsHandler.TestSms)
		settings.POST("/email/test", settingsHandler.TestEmail)
		settings.GET("/:type", settingsHandler.Get)
		settings.POST("/:type", settingsHandler.Update)
	}

	// Start Cron Schedulers
	donationService.StartScheduler()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("HTTP Server starting on port %s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal("Failed to start server: ", err)
	}
}
