package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"

	"github.com/skip2/go-qrcode"
)

// payload is what a scanner decodes: enough to find the ticket and verify
// who bought it. Opaque to everything else.
type payload struct {
	TicketID    string `json:"ticket_id"`
	EventID     string `json:"event_id"`
	PurchaserID string `json:"purchaser_id"`
}

type Generator struct {
	secret []byte
}

func NewGenerator(secret string) *Generator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &Generator{secret: hashed[:]}
}

// TicketQR renders a 256px PNG QR whose content is the AES-encrypted ticket
// payload.
func (g *Generator) TicketQR(ticketID, eventID, purchaserID string) ([]byte, error) {
	data, err := json.Marshal(payload{
		TicketID:    ticketID,
		EventID:     eventID,
		PurchaserID: purchaserID,
	})
	if err != nil {
		return nil, err
	}

	encrypted, err := encryptAES(data, g.secret)
	if err != nil {
		return nil, err
	}

	return qrcode.Encode(encrypted, qrcode.Medium, 256)
}

func encryptAES(data []byte, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	ciphertext := make([]byte, aes.BlockSize+len(data))
	iv := ciphertext[:aes.BlockSize]

	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	stream := cipher.NewCFBEncrypter(block, iv)
	stream.XORKeyStream(ciphertext[aes.BlockSize:], data)

	return base64.URLEncoding.EncodeToString(ciphertext), nil
}
