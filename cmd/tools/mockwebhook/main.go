// mockwebhook sends a signed gateway-style webhook to a local server, for
// exercising the reconciler without real gateway traffic.
package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

type entity map[string]any

type envelope struct {
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload"`
}

func main() {
	url := flag.String("url", "http://localhost:8080/payments/webhook", "Webhook URL")
	secret := flag.String("secret", os.Getenv("RAZORPAY_WEBHOOK_SECRET"), "Webhook secret")
	eventID := flag.String("event-id", "evt_"+randomHex(8), "Event ID header value")
	eventType := flag.String("type", "payment.captured", "Event type (payment.captured, payment.authorized, payment.failed, refund.processed, refund.created, refund.failed)")
	orderID := flag.String("order-id", "order_"+randomHex(8), "Gateway order id (payment events)")
	paymentID := flag.String("payment-id", "pay_"+randomHex(8), "Gateway payment id")
	refundID := flag.String("refund-id", "rfnd_"+randomHex(8), "Gateway refund id (refund events)")
	amount := flag.Int64("amount", 10000, "Amount in paise")
	dryRun := flag.Bool("dry-run", false, "Only print signature header, don't send")

	flag.Parse()

	if *secret == "" {
		fmt.Fprintf(os.Stderr, "Error: secret not provided and RAZORPAY_WEBHOOK_SECRET not set\n")
		os.Exit(1)
	}

	env := envelope{Event: *eventType, Payload: map[string]any{}}
	switch {
	case strings.HasPrefix(*eventType, "payment."):
		env.Payload["payment"] = map[string]any{"entity": entity{
			"id":       *paymentID,
			"order_id": *orderID,
			"amount":   *amount,
			"method":   "card",
			"email":    "payer@example.com",
			"contact":  "+919999999999",
		}}
	case strings.HasPrefix(*eventType, "refund."):
		env.Payload["refund"] = map[string]any{"entity": entity{
			"id":         *refundID,
			"payment_id": *paymentID,
			"amount":     *amount,
			"created_at": time.Now().Unix(),
		}}
	default:
		fmt.Fprintf(os.Stderr, "Error: unsupported event type %q\n", *eventType)
		os.Exit(1)
	}

	body, err := json.Marshal(env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling payload: %v\n", err)
		os.Exit(1)
	}

	// Signature is plain HMAC-SHA256 hex over the exact body bytes.
	mac := hmac.New(sha256.New, []byte(*secret))
	mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))

	fmt.Printf("X-Razorpay-Signature: %s\n", sig)
	fmt.Printf("X-Razorpay-Event-Id: %s\n", *eventID)
	fmt.Printf("Body: %s\n", string(body))

	if *dryRun {
		fmt.Println("\n[DRY RUN] Not sending request")
		return
	}

	fmt.Printf("\nSending to %s...\n", *url)
	req, err := http.NewRequest(http.MethodPost, *url, bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building request: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Razorpay-Signature", sig)
	req.Header.Set("X-Razorpay-Event-Id", *eventID)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error sending request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	fmt.Printf("Status: %s\nResponse: %s\n", resp.Status, string(respBody))
}

func randomHex(nBytes int) string {
	b := make([]byte, nBytes)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
