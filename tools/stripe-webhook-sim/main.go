// Command stripe-webhook-sim posts a signed Stripe event to billing-service,
// standing in for `stripe listen` during local runs.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/decorstudio/platform/libs/config"
)

type options struct {
	eventID        string
	eventType      string
	quoteID        string
	quotePaymentID string
	amount         int64
	currency       string
	paymentStatus  string
}

func main() {
	_ = config.LoadDotEnv()

	var (
		baseURL = flag.String("base-url", config.String("BASE_URL", "http://localhost:8084"), "billing-service base url")
		secret  = flag.String("secret", config.String("STRIPE_WEBHOOK_SECRET", ""), "stripe webhook signing secret (whsec_...)")
		repeat  = flag.Int("repeat", 1, "deliver the same event this many times")
		opts    options
	)
	flag.StringVar(&opts.eventID, "event-id", "", "event id; a fresh one when empty")
	flag.StringVar(&opts.eventType, "type", "checkout.session.completed", "stripe event type")
	flag.StringVar(&opts.quoteID, "quote-id", config.String("QUOTE_ID", ""), "quote_id metadata")
	flag.StringVar(&opts.quotePaymentID, "quote-payment-id", config.String("QUOTE_PAYMENT_ID", ""), "quote_payment_id metadata")
	flag.Int64Var(&opts.amount, "amount", 0, "amount_total in cents")
	flag.StringVar(&opts.currency, "currency", "eur", "currency")
	flag.StringVar(&opts.paymentStatus, "payment-status", "paid", "checkout session payment_status")
	flag.Parse()

	if strings.TrimSpace(*secret) == "" {
		fatal("STRIPE_WEBHOOK_SECRET is required")
	}
	if opts.quoteID == "" && opts.quotePaymentID == "" {
		fatal("one of -quote-id or -quote-payment-id is required")
	}

	now := time.Now().UTC()
	if opts.eventID == "" {
		opts.eventID = fmt.Sprintf("evt_sim_%d", now.UnixNano())
	}
	payload, err := buildEventJSON(opts, now)
	if err != nil {
		fatal(err.Error())
	}

	url := strings.TrimRight(*baseURL, "/") + "/api/v1/webhooks/stripe"
	for i := 0; i < *repeat; i++ {
		signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
			Payload:   payload,
			Secret:    *secret,
			Timestamp: time.Now(),
			Scheme:    "v1",
		})
		if err := post(url, payload, signed.Header); err != nil {
			fatal(err.Error())
		}
	}
}

func post(url string, payload []byte, signature string) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signature)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	fmt.Printf("status=%d body=%s\n", resp.StatusCode, strings.TrimSpace(string(body)))
	return nil
}

func buildEventJSON(o options, t time.Time) ([]byte, error) {
	metadata := map[string]string{}
	if o.quoteID != "" {
		metadata["quote_id"] = o.quoteID
	}
	if o.quotePaymentID != "" {
		metadata["quote_payment_id"] = o.quotePaymentID
	}

	var object map[string]any
	switch o.eventType {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded", "checkout.session.async_payment_failed":
		object = map[string]any{
			"id":             "cs_sim_" + o.eventID,
			"object":         "checkout.session",
			"mode":           "payment",
			"amount_total":   o.amount,
			"currency":       o.currency,
			"payment_status": o.paymentStatus,
			"payment_intent": "pi_sim_" + o.eventID,
			"metadata":       metadata,
		}
	case "payment_intent.payment_failed":
		object = map[string]any{
			"id":       "pi_sim_" + o.eventID,
			"object":   "payment_intent",
			"amount":   o.amount,
			"currency": o.currency,
			"metadata": metadata,
			"last_payment_error": map[string]any{
				"message": "Your card was declined.",
			},
		}
	default:
		return nil, fmt.Errorf("unsupported event type: %s", o.eventType)
	}

	return json.Marshal(map[string]any{
		"id":          o.eventID,
		"object":      "event",
		"created":     t.Unix(),
		"type":        o.eventType,
		"api_version": "2024-06-20",
		"data":        map[string]any{"object": object},
	})
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
