package ids

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type UUIDGenerator struct{}

func (UUIDGenerator) NewID(context.Context) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
