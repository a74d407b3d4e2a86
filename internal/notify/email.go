package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/cafe-api/internal/common"
	"github.com/noah-isme/cafe-api/internal/obs"
)

var orderPlacedTemplate = template.Must(template.New("order_placed").Parse(`<p>Hi {{if .Name}}{{.Name}}{{else}}there{{end}},</p>
<p>Thanks for your order #{{.OrderID}}. We are brewing it now.</p>
<p>Total charged: <strong>${{.Total}}</strong></p>`))

var notifierNopLogger = zerolog.Nop()

// EmailNotifier sends order confirmation emails from worker tasks.
type EmailNotifier struct {
	Mail   common.EmailSender
	From   string
	Logger *zerolog.Logger
}

// Register installs the task handlers on mux.
func (n EmailNotifier) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeOrderPlaced, n.HandleOrderPlaced)
}

// HandleOrderPlaced renders and sends the confirmation for one order.
func (n EmailNotifier) HandleOrderPlaced(ctx context.Context, task *asynq.Task) error {
	var p OrderPlaced
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		obs.RecordNotification("invalid")
		return fmt.Errorf("notify: decode %s: %v: %w", task.Type(), err, asynq.SkipRetry)
	}
	logger := n.loggerFor(ctx).With().Int64("order_id", p.OrderID).Logger()
	to := strings.TrimSpace(p.Email)
	if to == "" || n.Mail == nil {
		obs.RecordNotification("skipped")
		logger.Info().Msg("order_confirmation_skipped")
		return nil
	}
	var body bytes.Buffer
	if err := orderPlacedTemplate.Execute(&body, p); err != nil {
		obs.RecordNotification("invalid")
		return fmt.Errorf("notify: render: %v: %w", err, asynq.SkipRetry)
	}
	msg := common.Email{
		From:    n.From,
		To:      to,
		Subject: fmt.Sprintf("Your café order #%d", p.OrderID),
		HTML:    body.String(),
	}
	if err := n.Mail.Send(ctx, msg); err != nil {
		obs.RecordNotification("failed")
		logger.Warn().Err(err).Msg("order_confirmation_failed")
		return fmt.Errorf("notify: send: %w", err)
	}
	obs.RecordNotification("sent")
	return nil
}

func (n EmailNotifier) loggerFor(ctx context.Context) *zerolog.Logger {
	if ctxLogger := zerolog.Ctx(ctx); ctxLogger != nil && ctxLogger.GetLevel() != zerolog.Disabled {
		return ctxLogger
	}
	if n.Logger == nil {
		return &notifierNopLogger
	}
	return n.Logger
}
