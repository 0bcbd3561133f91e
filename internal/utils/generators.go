package utils

import (
	"fmt"

	"github.com/google/uuid"
)

func GeneratePaymentID() string {
	return fmt.Sprintf("pay_%s", uuid.NewString())
}

func GenerateTicketID() string {
	return fmt.Sprintf("tkt_%s", uuid.NewString())
}

func GenerateEntryID() string {
	return fmt.Sprintf("wl_%s", uuid.NewString())
}
