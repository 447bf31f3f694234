// Package qr renders payment QR codes as PNG.
package qr

import (
	"telegram-relay-subscription/internal/domain"
	"telegram-relay-subscription/internal/domain/model"

	qrcode "github.com/skip2/go-qrcode"
)

const DefaultSize = 256

// Encode renders content as a square PNG of size pixels.
func Encode(content string, size int) ([]byte, error) {
	if content == "" {
		return nil, domain.ErrInvalidArgument
	}
	if size <= 0 {
		size = DefaultSize
	}
	return qrcode.Encode(content, qrcode.Medium, size)
}

// PaymentPNG encodes the upi:// deep link for info, payable to payee.
func PaymentPNG(info *model.PaymentInfo, payee string) ([]byte, error) {
	if info.IsZero() || info.Address == "" {
		return nil, domain.ErrPaymentInfoMissing
	}
	return Encode(info.UPILink(payee), DefaultSize)
}
