package fitbit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Profile holds the subset of the user profile the service displays
type Profile struct {
	User struct {
		DisplayName string `json:"displayName"`
		Avatar      string `json:"avatar"`
	} `json:"user"`
}

// ActivitySnapshot is a point-in-time read of activity data for one date.
// Summary fields are pointers so a missing field is distinguishable from
// a zero value when validating the payload.
type ActivitySnapshot struct {
	Summary *ActivitySummary `json:"summary"`
	Goals   *GoalsSnapshot   `json:"goals"`
}

// ActivitySummary is the daily totals block of an activity snapshot
type ActivitySummary struct {
	Steps         *int            `json:"steps"`
	Floors        *int            `json:"floors"`
	CaloriesOut   *int            `json:"caloriesOut"`
	ActiveMinutes *int            `json:"activeMinutes"`
	Distances     []DistanceEntry `json:"distances"`
}

// DistanceEntry is one entry of the per-activity distances list,
// in kilometers
type DistanceEntry struct {
	Activity string  `json:"activity"`
	Distance float64 `json:"distance"`
}

// GoalsSnapshot is the daily goals block as reported by the source.
// Distance is in kilometers.
type GoalsSnapshot struct {
	Steps         *int     `json:"steps"`
	Floors        *int     `json:"floors"`
	Distance      *float64 `json:"distance"`
	CaloriesOut   *int     `json:"caloriesOut"`
	ActiveMinutes *int     `json:"activeMinutes"`
}

// GetUserProfile fetches the user's profile. Returns nil on a non-success
// response.
func (c *Client) GetUserProfile(ctx context.Context, userID string) (*Profile, error) {
	body, status, err := c.doRequest(ctx, http.MethodGet, "/1/user/-/profile.json", "get_profile", userID)
	if err != nil {
		c.logger.Warn("Profile fetch failed", "user_id", userID, "error", err)
		return nil, nil
	}
	if status != http.StatusOK {
		c.logger.Warn("Profile fetch returned non-success", "user_id", userID, "status", status)
		return nil, nil
	}

	var profile Profile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile response: %w", err)
	}
	return &profile, nil
}

// GetActivitiesInfo fetches the activity snapshot for the given date
// (YYYY-MM-DD). Returns nil with no error when the upstream is
// unavailable; an error only when the response body cannot be decoded.
func (c *Client) GetActivitiesInfo(ctx context.Context, userID, date string) (*ActivitySnapshot, error) {
	path := fmt.Sprintf("/1/user/-/activities/date/%s.json", date)

	body, status, err := c.doRequest(ctx, http.MethodGet, path, "get_activities", userID)
	if err != nil {
		c.logger.Warn("Activities fetch failed", "user_id", userID, "date", date, "error", err)
		return nil, nil
	}
	if status != http.StatusOK {
		c.logger.Warn("Activities fetch returned non-success", "user_id", userID, "date", date, "status", status)
		return nil, nil
	}

	var snapshot ActivitySnapshot
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode activities response: %w", err)
	}
	return &snapshot, nil
}

// GetActivitiesGoals fetches the user's configured daily goals. Returns
// nil with no error when the upstream is unavailable.
func (c *Client) GetActivitiesGoals(ctx context.Context, userID string) (*GoalsSnapshot, error) {
	body, status, err := c.doRequest(ctx, http.MethodGet, "/1/user/-/activities/goals/daily.json", "get_goals", userID)
	if err != nil {
		c.logger.Warn("Goals fetch failed", "user_id", userID, "error", err)
		return nil, nil
	}
	if status != http.StatusOK {
		c.logger.Warn("Goals fetch returned non-success", "user_id", userID, "status", status)
		return nil, nil
	}

	var wrapper struct {
		Goals *GoalsSnapshot `json:"goals"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("failed to decode goals response: %w", err)
	}
	return wrapper.Goals, nil
}
