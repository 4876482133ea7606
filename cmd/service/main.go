package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.vocdoni.io/dvote/log"

	"github.com/keepsakeprints/backend/api"
	"github.com/keepsakeprints/backend/db"
	"github.com/keepsakeprints/backend/fulfillment"
	"github.com/keepsakeprints/backend/notifications"
	"github.com/keepsakeprints/backend/notifications/smtp"
	"github.com/keepsakeprints/backend/stripe"
)

func main() {
	log.Init("debug", "stdout", nil)
	// define flags
	flag.StringP("host", "h", "0.0.0.0", "listen address")
	flag.IntP("port", "p", 8080, "listen port")
	flag.StringP("secret", "s", "", "API secret")
	flag.String("mongo-url", "", "The URL of the MongoDB server")
	flag.String("mongo-db", "keepsake-prints", "The name of the MongoDB database")
	flag.String("stripe-api-key", "", "Stripe secret API key")
	flag.String("stripe-webhook-secret", "", "Stripe webhook signing secret")
	flag.String("checkout-success-url", "", "frontend URL buyers return to after paying")
	flag.String("checkout-cancel-url", "", "frontend URL buyers return to after abandoning checkout")
	flag.String("fulfillment-url", "", "base URL of the print fulfillment provider API")
	flag.String("fulfillment-api-key", "", "API key of the print fulfillment provider")
	flag.StringP("webapp-url", "w", "https://keepsakeprints.example.com", "frontend web application URL")
	flag.String("smtp-server", "", "SMTP server for outgoing mail, empty disables email")
	flag.Int("smtp-port", 587, "SMTP server port")
	flag.String("smtp-username", "", "SMTP username")
	flag.String("smtp-password", "", "SMTP password")
	flag.String("email-from-address", "", "sender address of outgoing mail")
	flag.String("email-from-name", "Keepsake Prints", "sender name of outgoing mail")
	// parse flags
	flag.Parse()
	// initialize Viper
	viper.SetEnvPrefix("KEEPSAKE")
	if err := viper.BindPFlags(flag.CommandLine); err != nil {
		panic(err)
	}
	viper.AutomaticEnv()
	// read the configuration
	host := viper.GetString("host")
	port := viper.GetInt("port")
	secret := viper.GetString("secret")
	if secret == "" {
		log.Fatal("secret is required")
	}
	mongoURL := viper.GetString("mongo-url")
	mongoDB := viper.GetString("mongo-db")
	// initialize the MongoDB database
	database, err := db.New(mongoURL, mongoDB)
	if err != nil {
		log.Fatalf("could not create the MongoDB database: %v", err)
	}
	defer database.Close()
	// create the fulfillment provider client
	fulfiller := fulfillment.New(fulfillment.Config{
		BaseURL: viper.GetString("fulfillment-url"),
		APIKey:  viper.GetString("fulfillment-api-key"),
	})
	// create the email service if an SMTP server is configured
	var mailer notifications.NotificationService
	if smtpServer := viper.GetString("smtp-server"); smtpServer != "" {
		email := &smtp.Email{}
		if err := email.Init(&smtp.Config{
			FromName:     viper.GetString("email-from-name"),
			FromAddress:  viper.GetString("email-from-address"),
			SMTPUsername: viper.GetString("smtp-username"),
			SMTPPassword: viper.GetString("smtp-password"),
			SMTPServer:   smtpServer,
			SMTPPort:     viper.GetInt("smtp-port"),
		}); err != nil {
			log.Fatalf("could not create the email service: %v", err)
		}
		mailer = email
		log.Infow("email service created", "server", smtpServer)
	}
	// create the payment service
	stripeService, err := stripe.NewService(&stripe.Config{
		APIKey:        viper.GetString("stripe-api-key"),
		WebhookSecret: viper.GetString("stripe-webhook-secret"),
		SuccessURL:    viper.GetString("checkout-success-url"),
		CancelURL:     viper.GetString("checkout-cancel-url"),
	}, database, fulfiller, mailer)
	if err != nil {
		log.Fatalf("could not create the payment service: %v", err)
	}
	// start the background worker that retries parked fulfillment orders
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	worker := fulfillment.NewWorker(database, fulfiller, mailer)
	go worker.Start(ctx)
	// create the local API server
	api.New(&api.Config{
		Host:      host,
		Port:      port,
		Secret:    secret,
		DB:        database,
		Stripe:    stripeService,
		WebAppURL: viper.GetString("webapp-url"),
	}).Start()
	// wait forever, as the server is running in a goroutine
	log.Infow("server started", "host", host, "port", port)
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}
