package appErrors

import "fmt"

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
    CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
    return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id int) error {
    return &ErrCampaignNotFound{CampaignID: id}
}

// ErrCampaignAlreadyActive is returned when start is called on a
// campaign that has already been dispatched (or finished).
type ErrCampaignAlreadyActive struct {
    CampaignID int
    Status     string
}

func (e *ErrCampaignAlreadyActive) Error() string {
    return fmt.Sprintf("campaign %d cannot be started in status %q", e.CampaignID, e.Status)
}

func NewCampaignAlreadyActive(id int, status string) error {
    return &ErrCampaignAlreadyActive{CampaignID: id, Status: status}
}

// ErrPartialDispatch means some jobs were created/enqueued and a later
// step failed. The campaign stays in its pre-dispatch status, so the
// caller may retry start; job creation is idempotent per recipient.
type ErrPartialDispatch struct {
    CampaignID int
    Created    int
    Cause      error
}

func (e *ErrPartialDispatch) Error() string {
    return fmt.Sprintf("dispatch of campaign %d failed after %d jobs: %v", e.CampaignID, e.Created, e.Cause)
}

func (e *ErrPartialDispatch) Unwrap() error {
    return e.Cause
}

func NewPartialDispatch(campaignID, created int, cause error) error {
    return &ErrPartialDispatch{CampaignID: campaignID, Created: created, Cause: cause}
}
