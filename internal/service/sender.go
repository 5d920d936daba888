package service

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"
)

// Sender performs the channel delivery for one job. The real transport
// (email/SMS/push) is out of scope; MockSender stands in for it.
type Sender interface {
	Send(ctx context.Context, campaignID, userID int) error
}

// MockSender simulates sending with a network delay and 90% success
type MockSender struct {
	Delay time.Duration
}

func (s *MockSender) Send(ctx context.Context, campaignID, userID int) error {
	log.Printf("📩 Simulating sending message to user %d for campaign %d\n", userID, campaignID)

	delay := s.Delay
	if delay == 0 {
		delay = 100 * time.Millisecond
	}
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return ctx.Err()
	}

	if rand.Intn(100) < 90 {
		return nil
	}
	return fmt.Errorf("mock sending failed")
}

var _ Sender = (*MockSender)(nil)
