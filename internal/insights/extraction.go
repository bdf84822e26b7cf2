package insights

import (
	"context"
	"net/http"
	"time"
)

// ExtractionClient launches and observes extraction jobs of one iModel.
type ExtractionClient struct {
	status *Resource[ExtractionStatus, struct{}, struct{}]
}

// Extraction returns the extraction client bound to iModelID.
func (c *Client) Extraction(iModelID string) *ExtractionClient {
	return &ExtractionClient{
		status: NewResource[ExtractionStatus, struct{}, struct{}](c, "extraction status",
			"datasources", "iModels", iModelID, "extraction"),
	}
}

// Run launches an extraction and returns its job identifier. The request has
// no body.
func (e *ExtractionClient) Run(ctx context.Context) (Run, error) {
	const operation = "run extraction"
	resp, err := e.status.client.do(ctx, operation, http.MethodPost, e.status.URL("run"), nil)
	if err != nil {
		return Run{}, err
	}
	run, err := ParseSingleEntityBody[Run](resp.Body)
	if err != nil {
		if iErr, ok := err.(*InvalidResponseError); ok {
			iErr.Operation = operation
		}
		return Run{}, err
	}
	if run.ID == "" {
		return Run{}, &InvalidResponseError{Operation: operation, Reason: "run has no id", Body: resp.Body}
	}
	return run, nil
}

// Status returns the current status of the job.
func (e *ExtractionClient) Status(ctx context.Context, jobID string) (ExtractionStatus, error) {
	return e.status.GetSingle(ctx, e.status.At("status", jobID))
}

// Wait polls the job until it reaches a terminal state or timeout elapses.
// See Poller.WaitForCompletion.
func (e *ExtractionClient) Wait(ctx context.Context, jobID string, timeout time.Duration, opts ...PollerOption) (ExtractionStatus, error) {
	opts = append([]PollerOption{WithPollLogger(e.status.client.logger)}, opts...)
	return NewPoller(e, opts...).WaitForCompletion(ctx, jobID, timeout)
}
