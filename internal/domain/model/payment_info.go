package model

import (
	"net/url"
	"strings"
	"time"
)

// PaymentInfo is the singleton describing how buyers pay: a QR image
// (Telegram file id) and a payment address such as a UPI id.
type PaymentInfo struct {
	QRFileID  string    `json:"qr_file_id"`
	Address   string    `json:"address"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *PaymentInfo) IsZero() bool {
	return p == nil || (p.QRFileID == "" && strings.TrimSpace(p.Address) == "")
}

// UPILink builds the upi://pay deep link that QR renderers encode.
func (p *PaymentInfo) UPILink(payee string) string {
	q := url.Values{}
	q.Set("pa", strings.TrimSpace(p.Address))
	if payee != "" {
		q.Set("pn", payee)
	}
	q.Set("cu", "INR")
	return "upi://pay?" + q.Encode()
}
