// Command donate submits a donation from the terminal and watches the
// STK push to completion, the same flow a browser client follows:
// create the donation, then poll the status endpoint until the payment
// resolves or the polling window runs out.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"donation-service/internal/poller"
	"donation-service/pkg/common"

	"github.com/joho/godotenv"
)

type createResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		DonationId        uint   `json:"donationId"`
		CheckoutRequestId string `json:"checkoutRequestId"`
		CustomerMessage   string `json:"customerMessage"`
	} `json:"data"`
}

type statusResponse struct {
	Message string `json:"message"`
	Result  struct {
		ResultCode string `json:"ResultCode"`
		ResultDesc string `json:"ResultDesc"`
	} `json:"result"`
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	apiBase := os.Getenv("API_BASE_URL")
	if apiBase == "" {
		apiBase = "http://localhost:8080"
	}

	var (
		donor     = flag.String("donor", "", "donor full name")
		phone     = flag.String("phone", "", "M-Pesa phone number (07XX..., 2547XX... or +2547XX...)")
		amount    = flag.Float64("amount", 0, "donation amount in KSh")
		campaign  = flag.String("campaign", "", "optional campaign name")
		message   = flag.String("message", "", "optional message (max 500 chars)")
		anonymous = flag.Bool("anonymous", false, "donate anonymously")
		api       = flag.String("api", apiBase, "API base URL")
		interval  = flag.Duration("interval", poller.DefaultInterval, "status polling interval")
		attempts  = flag.Int("attempts", poller.DefaultMaxAttempts, "max status polling attempts")
	)
	flag.Parse()

	if *phone == "" || *amount <= 0 {
		fmt.Fprintln(os.Stderr, "Usage: donate -phone 0712345678 -amount 100 [-donor \"Jane Doe\"] [-anonymous]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var created createResponse
	err := common.PostJSON(ctx, *api+"/api/donations", map[string]interface{}{
		"donor":     *donor,
		"phone":     *phone,
		"amount":    *amount,
		"campaign":  *campaign,
		"message":   *message,
		"anonymous": *anonymous,
	}, nil, &created)
	if err != nil {
		log.Fatalf("Failed to initiate donation: %v", err)
	}
	if created.Data.CheckoutRequestId == "" {
		log.Fatalf("Donation %d was recorded but the payment request was not sent: %s",
			created.Data.DonationId, created.Message)
	}

	fmt.Printf("Donation #%d initiated. %s\n", created.Data.DonationId, created.Data.CustomerMessage)
	fmt.Println("Check your phone and enter your M-Pesa PIN...")

	// The status endpoint requires a bearer token; donors without one
	// still get the callback-driven outcome on the server side.
	headers := map[string]string{}
	if token := os.Getenv("API_TOKEN"); token != "" {
		headers["Authorization"] = "Bearer " + token
	}

	p := poller.New(func(ctx context.Context, checkoutRequestId string) (string, error) {
		var status statusResponse
		if err := common.GetJSON(ctx, *api+"/api/mpesa/stk-status/"+checkoutRequestId, headers, &status); err != nil {
			return "", err
		}
		return status.Result.ResultCode, nil
	})
	p.Interval = *interval
	p.MaxAttempts = *attempts

	start := time.Now()
	state, err := p.Run(ctx, created.Data.CheckoutRequestId)
	elapsed := time.Since(start).Round(time.Second)

	switch state {
	case poller.StateSuccess:
		fmt.Printf("Payment received after %s. Thank you for your donation!\n", elapsed)
	case poller.StateCancelled:
		fmt.Println("Payment was cancelled on the phone.")
		os.Exit(1)
	case poller.StateTimeout:
		fmt.Printf("No confirmation after %s. If you completed the payment it will be reconciled shortly; donation reference is #%d.\n",
			elapsed, created.Data.DonationId)
		os.Exit(1)
	default:
		log.Fatalf("Status polling failed: %v", err)
	}
}
