package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func JobPhaseKey(jobID uuid.UUID) string {
	return fmt.Sprintf("job:phase:%s", jobID)
}

func RateLimitKey(client string) string {
	return fmt.Sprintf("ratelimit:%s", client)
}
