package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var ErrSignatureMismatch = errors.New("signature mismatch")

// Sign returns the hex HMAC-SHA256 of message under secret.
func Sign(secret []byte, message []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

// CheckoutMessage is the string the gateway signs when a checkout
// completes: "<order_id>|<payment_id>".
func CheckoutMessage(orderID, paymentID string) []byte {
	return []byte(orderID + "|" + paymentID)
}

// VerifyPaymentSignature checks the signature returned to the client by
// the checkout widget.
func VerifyPaymentSignature(secret []byte, orderID, paymentID, signature string) error {
	if orderID == "" || paymentID == "" {
		return errors.New("payment signature: order id and payment id are required")
	}
	return verify(secret, CheckoutMessage(orderID, paymentID), signature)
}

// VerifyWebhookSignature checks the signature header against the raw,
// unparsed request body.
func VerifyWebhookSignature(secret, body []byte, signature string) error {
	if len(body) == 0 {
		return errors.New("webhook signature: body is empty")
	}
	return verify(secret, body, signature)
}

// verify never reports the expected digest so errors are safe to log.
func verify(secret, message []byte, signature string) error {
	if len(secret) == 0 {
		return errors.New("signature: secret is empty")
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return errors.New("signature: signature is empty")
	}

	signatureBytes, err := hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
	if err != nil {
		return fmt.Errorf("signature: invalid hex: %w", ErrSignatureMismatch)
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(message)
	if subtle.ConstantTimeCompare(mac.Sum(nil), signatureBytes) != 1 {
		return ErrSignatureMismatch
	}
	return nil
}
