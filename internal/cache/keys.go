package cache

import (
	"fmt"
	"time"
)

func CompleteStoryKey(storyID int64) string {
	return fmt.Sprintf("story:%d:complete", storyID)
}

func JobKey(jobID string) string {
	return fmt.Sprintf("job:%s", jobID)
}

// RateLimitKey names the counter for one session in the window starting at
// windowStart.
func RateLimitKey(sessionID string, windowStart time.Time) string {
	return fmt.Sprintf("ratelimit:%s:%d", sessionID, windowStart.Unix())
}
