package launtel

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/codes"
)

// ChangeRequest carries everything the confirm_service endpoint expects.
// LocationID must come from a catalog fetch in the same logical flow; the
// executor never fetches it itself.
type ChangeRequest struct {
	UserID     string
	Psid       int
	ServiceID  int
	AvcID      string
	LocationID string
	Unpause    bool
	// "scheduleddt" form field; empty means immediately
	ScheduledAt string
	// "coat" form field; defaults to "0"
	ChangeOfAddress string
	PaymentOption   string
}

// ChangePlan drives the portal's two-step submission: a GET to the
// confirmation endpoint that establishes server-side state, then the
// form-encoded POST. If the GET fails the POST is never attempted.
// Success only means the portal accepted the submission; it then enters
// its own asynchronous change workflow.
func (c *Client) ChangePlan(ctx context.Context, req ChangeRequest) error {
	ctx, span := tracer.Start(ctx, "client:ChangePlan")
	defer span.End()

	if req.LocationID == "" {
		err := fmt.Errorf("%w: missing locid, fetch the catalog first", ErrPlanChange)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if err := c.ensureLogin(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "not authenticated")
		return err
	}

	coat := req.ChangeOfAddress
	if coat == "" {
		coat = "0"
	}
	unpause := "0"
	if req.Unpause {
		unpause = "1"
	}

	res, err := c.Http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"userid":          req.UserID,
			"psid":            strconv.Itoa(req.Psid),
			"unpause":         unpause,
			"service_id":      strconv.Itoa(req.ServiceID),
			"upgrade_options": "",
			"discount_code":   "",
			"avcid":           req.AvcID,
			"locid":           req.LocationID,
			"coat":            coat,
		}).
		Get("/confirm_service")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "confirmation fetch failed")
		return fmt.Errorf("%w: confirmation fetch: %w", ErrPlanChange, err)
	}
	if !res.IsSuccess() {
		err := fmt.Errorf("%w: confirmation fetch returned status %d", ErrPlanChange, res.StatusCode())
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	res, err = c.Http.R().
		SetContext(ctx).
		SetQueryParam("userid", req.UserID).
		SetFormData(map[string]string{
			"userid":                     req.UserID,
			"psid":                       strconv.Itoa(req.Psid),
			"locid":                      req.LocationID,
			"avcid":                      req.AvcID,
			"unpause":                    unpause,
			"scheduleddt":                req.ScheduledAt,
			"coat":                       coat,
			"new_service_payment_option": req.PaymentOption,
		}).
		Post("/confirm_service")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission failed")
		return fmt.Errorf("%w: submission: %w", ErrPlanChange, err)
	}
	if !res.IsSuccess() {
		err := fmt.Errorf("%w: submission returned status %d", ErrPlanChange, res.StatusCode())
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
