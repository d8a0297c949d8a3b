package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ssuji15/kennel/model"
)

// Calendar is the reservation collaborator consumed by the reaper.
type Calendar interface {
	Approvals(ctx context.Context, from, to time.Time) ([]model.ApprovalRecord, error)
}

// HTTPCalendar fetches the approval window from a JSON endpoint fronting the
// reservation calendar. All failures are wrapped as upstream errors so the
// reaper aborts its cycle instead of guessing.
type HTTPCalendar struct {
	url    string
	client *http.Client
}

func NewHTTPCalendar(endpoint string, timeout time.Duration) *HTTPCalendar {
	return &HTTPCalendar{
		url: endpoint,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type approvalsResponse struct {
	Approvals []model.ApprovalRecord `json:"approvals"`
}

func (c *HTTPCalendar) Approvals(ctx context.Context, from, to time.Time) ([]model.ApprovalRecord, error) {
	q := url.Values{}
	q.Set("from", from.UTC().Format(time.RFC3339))
	q.Set("to", to.UTC().Format(time.RFC3339))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"?"+q.Encode(), nil)
	if err != nil {
		return nil, &model.UpstreamError{Upstream: "calendar", Err: err}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &model.UpstreamError{Upstream: "calendar", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &model.UpstreamError{
			Upstream: "calendar",
			Err:      fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	var body approvalsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &model.UpstreamError{Upstream: "calendar", Err: err}
	}
	return body.Approvals, nil
}
