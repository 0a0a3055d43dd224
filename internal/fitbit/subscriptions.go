package fitbit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Subscription represents one update subscription on the user's account
type Subscription struct {
	SubscriptionID string `json:"subscriptionId"`
	SubscriberID   string `json:"subscriberId"`
	CollectionType string `json:"collectionType"`
	OwnerID        string `json:"ownerId"`
}

// GetSubscriptions lists this service's subscriptions for the user.
// Subscriptions owned by other subscribers are filtered out. Returns an
// empty list on a non-success response.
func (c *Client) GetSubscriptions(ctx context.Context, userID string) []Subscription {
	body, status, err := c.doRequest(ctx, http.MethodGet, "/1/user/-/apiSubscriptions.json", "list_subscriptions", userID)
	if err != nil {
		c.logger.Warn("Subscription list failed", "user_id", userID, "error", err)
		return nil
	}
	if status != http.StatusOK {
		c.logger.Warn("Subscription list returned non-success", "user_id", userID, "status", status)
		return nil
	}

	var wrapper struct {
		APISubscriptions []Subscription `json:"apiSubscriptions"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		c.logger.Error("Failed to decode subscriptions response", "user_id", userID, "error", err)
		return nil
	}

	var subs []Subscription
	for _, s := range wrapper.APISubscriptions {
		if s.SubscriberID == c.subscriberID {
			subs = append(subs, s)
		}
	}
	return subs
}

// CreateSubscription creates the update subscription for the user. All
// existing subscriptions are deleted first so at most one subscription is
// active per user; a duplicate would double-deliver notifications.
func (c *Client) CreateSubscription(ctx context.Context, userID string) error {
	if err := c.ClearSubscriptions(ctx, userID); err != nil {
		return err
	}

	path := fmt.Sprintf("/1/user/-/apiSubscriptions/%s.json", userID)
	body, status, err := c.doRequest(ctx, http.MethodPost, path, "create_subscription", userID)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	// 200 means the subscription already existed, which is fine
	if status != http.StatusOK && status != http.StatusCreated {
		return &HTTPError{StatusCode: status, Body: string(body)}
	}

	c.logger.Info("Created subscription", "user_id", userID)
	return nil
}

// DeleteSubscription deletes one subscription by id
func (c *Client) DeleteSubscription(ctx context.Context, userID, subscriptionID string) error {
	path := fmt.Sprintf("/1/user/-/apiSubscriptions/%s.json", subscriptionID)
	body, status, err := c.doRequest(ctx, http.MethodDelete, path, "delete_subscription", userID)
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	if status != http.StatusNoContent && status != http.StatusOK {
		return &HTTPError{StatusCode: status, Body: string(body)}
	}

	c.logger.Info("Deleted subscription", "user_id", userID, "subscription_id", subscriptionID)
	return nil
}

// ClearSubscriptions deletes all of this service's subscriptions for the
// user
func (c *Client) ClearSubscriptions(ctx context.Context, userID string) error {
	for _, s := range c.GetSubscriptions(ctx, userID) {
		if err := c.DeleteSubscription(ctx, userID, s.SubscriptionID); err != nil {
			return fmt.Errorf("failed to clear subscription %s: %w", s.SubscriptionID, err)
		}
	}
	return nil
}
